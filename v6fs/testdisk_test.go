package v6fs

import (
	"io"
	"testing"
)

// memDisk is a fixed-size in-memory stand-in for a disk image file, enough
// to exercise FS without touching the host filesystem.
type memDisk struct {
	data []byte
	pos  int64
}

func newMemDisk(size int) *memDisk {
	return &memDisk{data: make([]byte, size)}
}

func (d *memDisk) Read(p []byte) (int, error) {
	if d.pos >= int64(len(d.data)) {
		return 0, io.EOF
	}
	n := copy(p, d.data[d.pos:])
	d.pos += int64(n)
	return n, nil
}

func (d *memDisk) Write(p []byte) (int, error) {
	if d.pos+int64(len(p)) > int64(len(d.data)) {
		return 0, io.ErrShortWrite
	}
	n := copy(d.data[d.pos:], p)
	d.pos += int64(n)
	return n, nil
}

func (d *memDisk) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		d.pos = offset
	case io.SeekCurrent:
		d.pos += offset
	case io.SeekEnd:
		d.pos = int64(len(d.data)) + offset
	}
	return d.pos, nil
}

// testImageBlocks is the total block count of the fixture image built by
// newTestFS: block 0 boot, block 1 superblock, block 2 the 16-entry inode
// list, block 3 the root directory's data, blocks 4-19 free.
const testImageBlocks = 20

// newTestFS builds a minimal but complete V6 filesystem image in memory:
// one inode block (16 inodes), a root directory (inode 1) containing "."
// and "..", and 16 free data blocks.
func newTestFS(t *testing.T) *FS {
	t.Helper()
	fs := New(newMemDisk(testImageBlocks * BlockSize))

	sup := &Superblock{Isize: 1, Fsize: testImageBlocks, Nfree: 16}
	for i := 0; i < 16; i++ {
		sup.Free[i] = uint16(4 + i)
	}
	if err := fs.WriteSuperblock(sup); err != nil {
		t.Fatalf("WriteSuperblock: %v", err)
	}

	root := &INode{Num: 1, Flag: flagAllocated | TypeDir<<13 | 0o755, NLinks: 1}
	root.Addr[0] = 3
	root.Size = dirEntrySize * 2
	if err := fs.WriteINode(root); err != nil {
		t.Fatalf("WriteINode root: %v", err)
	}

	dirBlock := make([]byte, dirEntrySize*2)
	dirBlock[0], dirBlock[2] = 1, '.'
	dirBlock[16], dirBlock[18], dirBlock[19] = 1, '.', '.'
	if err := fs.WriteBlock(3, dirBlock); err != nil {
		t.Fatalf("WriteBlock root dir: %v", err)
	}

	return fs
}
