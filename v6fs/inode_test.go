package v6fs

import "testing"

func TestINodeSerializeParseRoundTrip(t *testing.T) {
	n := &INode{
		Num:     7,
		Flag:    flagAllocated | TypeDir<<13 | 0o755,
		NLinks:  2,
		Uid:     3,
		Gid:     4,
		Size:    0x00ABCDEF,
		Actime:  0x11223344,
		Modtime: 0x55667788,
	}
	n.Addr[0] = 100
	n.Addr[7] = 200

	data := n.serialize()
	if len(data) != InodeSize {
		t.Fatalf("serialized length = %d, want %d", len(data), InodeSize)
	}

	got, err := parseINode(data)
	if err != nil {
		t.Fatalf("parseINode: %v", err)
	}
	// Num is not part of the serialized record.
	if got.Flag != n.Flag || got.NLinks != n.NLinks || got.Uid != n.Uid || got.Gid != n.Gid {
		t.Fatalf("header mismatch: got %+v", got)
	}
	if got.Size != n.Size {
		t.Fatalf("Size = %#x, want %#x", got.Size, n.Size)
	}
	if got.Addr != n.Addr {
		t.Fatalf("Addr mismatch: got %v, want %v", got.Addr, n.Addr)
	}
	if got.Actime != n.Actime || got.Modtime != n.Modtime {
		t.Fatalf("times mismatch: got %+v", got)
	}
}

func TestNewINodeStampsCreationMarker(t *testing.T) {
	n := newINode(0x000102)
	if n.Actime != CreatedByPdp11go|0x000102 {
		t.Fatalf("Actime = %#x, want CreatedByPdp11go marker", n.Actime)
	}
	if n.Modtime != n.Actime {
		t.Fatalf("expected Modtime == Actime for a freshly created inode")
	}
	if !n.IsAllocated() {
		t.Fatalf("expected a freshly allocated inode to be marked allocated")
	}
	if n.NLinks != 1 {
		t.Fatalf("NLinks = %d, want 1", n.NLinks)
	}
}

func TestINodeFlagHelpers(t *testing.T) {
	n := &INode{Flag: flagAllocated}
	if !n.IsRegularFile() {
		t.Fatalf("zero type field should read as a regular file")
	}
	n.SetDirectory()
	if !n.IsDir() || n.IsRegularFile() {
		t.Fatalf("expected IsDir after SetDirectory, got Flag=%#x", n.Flag)
	}
	if n.IsLarge() {
		t.Fatalf("expected not large before SetLarge")
	}
	n.SetLarge()
	if !n.IsLarge() {
		t.Fatalf("expected large after SetLarge")
	}
	n.ClearLarge()
	if n.IsLarge() {
		t.Fatalf("expected not large after ClearLarge")
	}
	n.SetFree()
	if n.IsAllocated() {
		t.Fatalf("expected not allocated after SetFree")
	}
}

func TestINodeFlagsStringRendersPermissionBits(t *testing.T) {
	n := &INode{Flag: flagAllocated | 0o755}
	s := n.FlagsString()
	if s[0] != 'a' {
		t.Fatalf("FlagsString()[0] = %c, want 'a' for an allocated inode", s[0])
	}
	if s[1] != 'F' {
		t.Fatalf("FlagsString()[1] = %c, want 'F' for a regular file", s[1])
	}
}
