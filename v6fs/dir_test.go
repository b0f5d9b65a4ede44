package v6fs

import "testing"

func TestListDirOnFreshRootReturnsDotEntries(t *testing.T) {
	fs := newTestFS(t)
	root, err := fs.ReadINode(1)
	if err != nil {
		t.Fatalf("ReadINode: %v", err)
	}
	entries, err := fs.ListDir(root)
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "." || entries[1].Name != ".." {
		t.Fatalf("entries = %+v, want [. ..]", entries)
	}
}

func TestListDirOnNonDirectoryReturnsNil(t *testing.T) {
	fs := newTestFS(t)
	file := &INode{Num: 2, Flag: flagAllocated | TypeFile<<13}
	entries, err := fs.ListDir(file)
	if err != nil || entries != nil {
		t.Fatalf("ListDir(file) = %v, %v, want nil, nil", entries, err)
	}
}

func TestPathINodeResolvesRoot(t *testing.T) {
	fs := newTestFS(t)
	node, err := fs.PathINode("/")
	if err != nil {
		t.Fatalf("PathINode: %v", err)
	}
	if node == nil || node.Num != 1 {
		t.Fatalf("PathINode(\"/\") = %v, want inode 1", node)
	}
}

func TestPathExistsFalseForMissingPath(t *testing.T) {
	fs := newTestFS(t)
	ok, err := fs.PathExists("/nope")
	if err != nil {
		t.Fatalf("PathExists: %v", err)
	}
	if ok {
		t.Fatalf("expected /nope to not exist")
	}
}

func TestAddToDirectoryThenResolveByPath(t *testing.T) {
	fs := newTestFS(t)
	root, err := fs.ReadINode(1)
	if err != nil {
		t.Fatalf("ReadINode root: %v", err)
	}

	fnode, err := fs.CreateFile([]byte("hello"), 0x1000)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := fs.AddToDirectory(root, fnode, "greeting.txt"); err != nil {
		t.Fatalf("AddToDirectory: %v", err)
	}

	got, err := fs.PathINode("/greeting.txt")
	if err != nil {
		t.Fatalf("PathINode: %v", err)
	}
	if got == nil || got.Num != fnode.Num {
		t.Fatalf("PathINode(/greeting.txt) = %v, want inode %d", got, fnode.Num)
	}

	data, err := fs.ReadFile(got)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("file contents = %q, want %q", data, "hello")
	}
}

func TestAddToDirectoryTruncatesLongNames(t *testing.T) {
	fs := newTestFS(t)
	root, err := fs.ReadINode(1)
	if err != nil {
		t.Fatalf("ReadINode root: %v", err)
	}
	fnode, err := fs.CreateFile(nil, 0)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := fs.AddToDirectory(root, fnode, "a-name-longer-than-fourteen-bytes"); err != nil {
		t.Fatalf("AddToDirectory: %v", err)
	}
	root, err = fs.ReadINode(1)
	if err != nil {
		t.Fatalf("ReadINode root (refresh): %v", err)
	}
	entries, err := fs.ListDir(root)
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	last := entries[len(entries)-1]
	if len(last.Name) > 14 {
		t.Fatalf("stored name %q longer than 14 bytes", last.Name)
	}
}

func TestMkdirCreatesResolvableDirectory(t *testing.T) {
	fs := newTestFS(t)
	if err := fs.Mkdir("/sub", 0xABCD); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	node, err := fs.PathINode("/sub")
	if err != nil {
		t.Fatalf("PathINode: %v", err)
	}
	if node == nil || !node.IsDir() {
		t.Fatalf("PathINode(/sub) = %v, want an allocated directory", node)
	}

	entries, err := fs.ListDir(node)
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "." || entries[1].Name != ".." || entries[1].Inum != 1 {
		t.Fatalf("new directory entries = %+v, want [. ..] with .. -> inode 1", entries)
	}
}

func TestMkdirRejectsExistingPath(t *testing.T) {
	fs := newTestFS(t)
	if err := fs.Mkdir("/dup", 0); err != nil {
		t.Fatalf("first Mkdir: %v", err)
	}
	if err := fs.Mkdir("/dup", 0); err == nil {
		t.Fatalf("expected an error creating /dup twice")
	}
}

func TestMkdirRejectsMissingParent(t *testing.T) {
	fs := newTestFS(t)
	if err := fs.Mkdir("/no/such/parent", 0); err == nil {
		t.Fatalf("expected an error when the parent directory does not exist")
	}
}
