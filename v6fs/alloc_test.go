package v6fs

import "testing"

func TestAllocateBlockThenFreeBlockIsLIFO(t *testing.T) {
	fs := newTestFS(t)

	first, err := fs.AllocateBlock()
	if err != nil {
		t.Fatalf("AllocateBlock: %v", err)
	}
	if first != 19 {
		t.Fatalf("first allocated block = %d, want 19 (top of the free cache)", first)
	}

	if err := fs.FreeBlock(first); err != nil {
		t.Fatalf("FreeBlock: %v", err)
	}

	second, err := fs.AllocateBlock()
	if err != nil {
		t.Fatalf("AllocateBlock after free: %v", err)
	}
	if second != first {
		t.Fatalf("expected LIFO reuse, got %d want %d", second, first)
	}
}

func TestAllocateBlockRefillsFromChainWhenCacheEmpty(t *testing.T) {
	fs := newTestFS(t)

	sup, err := fs.ReadSuperblock()
	if err != nil {
		t.Fatalf("ReadSuperblock: %v", err)
	}
	sup.Nfree = 1
	sup.Free[0] = 5 // chain block
	if err := fs.WriteSuperblock(sup); err != nil {
		t.Fatalf("WriteSuperblock: %v", err)
	}

	chain := make([]byte, BlockSize)
	chain[0], chain[1] = 3, 0 // Nfree = 3
	chain[2], chain[3] = 10, 0
	chain[4], chain[5] = 11, 0
	chain[6], chain[7] = 12, 0
	if err := fs.WriteBlock(5, chain); err != nil {
		t.Fatalf("WriteBlock chain: %v", err)
	}

	blkn, err := fs.AllocateBlock()
	if err != nil {
		t.Fatalf("AllocateBlock: %v", err)
	}
	if blkn != 5 {
		t.Fatalf("expected the chain block itself to be handed out, got %d", blkn)
	}

	sup, err = fs.ReadSuperblock()
	if err != nil {
		t.Fatalf("ReadSuperblock: %v", err)
	}
	if sup.Nfree != 3 || sup.Free[0] != 10 || sup.Free[1] != 11 || sup.Free[2] != 12 {
		t.Fatalf("superblock cache not refilled from chain: %+v", sup)
	}

	next, err := fs.AllocateBlock()
	if err != nil {
		t.Fatalf("AllocateBlock after refill: %v", err)
	}
	if next != 12 {
		t.Fatalf("AllocateBlock after refill = %d, want 12 (top of refilled cache)", next)
	}
}

func TestFreeBlockSpillsToChainWhenCacheFull(t *testing.T) {
	fs := newTestFS(t)

	sup, err := fs.ReadSuperblock()
	if err != nil {
		t.Fatalf("ReadSuperblock: %v", err)
	}
	sup.Nfree = 100
	for i := range sup.Free {
		sup.Free[i] = uint16(1000 + i)
	}
	if err := fs.WriteSuperblock(sup); err != nil {
		t.Fatalf("WriteSuperblock: %v", err)
	}

	if err := fs.FreeBlock(6); err != nil {
		t.Fatalf("FreeBlock: %v", err)
	}

	sup, err = fs.ReadSuperblock()
	if err != nil {
		t.Fatalf("ReadSuperblock: %v", err)
	}
	if sup.Nfree != 1 || sup.Free[0] != 6 {
		t.Fatalf("expected cache reset to [6], got Nfree=%d Free[0]=%d", sup.Nfree, sup.Free[0])
	}

	chain, err := fs.ReadBlock(6)
	if err != nil {
		t.Fatalf("ReadBlock chain: %v", err)
	}
	if chain[0] != 100 || chain[1] != 0 {
		t.Fatalf("chain block does not record the spilled Nfree=100")
	}
}

func TestAllocateINodeScansWhenCacheEmpty(t *testing.T) {
	fs := newTestFS(t)

	node, err := fs.AllocateINode(0x123)
	if err != nil {
		t.Fatalf("AllocateINode: %v", err)
	}
	if node.Num == 0 || node.Num == 1 {
		t.Fatalf("allocated inode num = %d, want a free slot other than the root (1)", node.Num)
	}
	if !node.IsAllocated() {
		t.Fatalf("expected the newly allocated inode to be marked allocated")
	}
}

func TestFreeINodeReturnsItToTheCache(t *testing.T) {
	fs := newTestFS(t)

	node, err := fs.AllocateINode(0)
	if err != nil {
		t.Fatalf("AllocateINode: %v", err)
	}
	num := node.Num

	if err := fs.FreeINode(num); err != nil {
		t.Fatalf("FreeINode: %v", err)
	}

	got, err := fs.ReadINode(num)
	if err != nil {
		t.Fatalf("ReadINode: %v", err)
	}
	if got.IsAllocated() {
		t.Fatalf("expected inode %d to be free after FreeINode", num)
	}
}
