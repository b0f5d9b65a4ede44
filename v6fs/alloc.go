// alloc.go - Version 6 Unix free-list block and inode allocation

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

package v6fs

import (
	"encoding/binary"
	"fmt"
)

// AllocateBlock pops a free block number off the superblock's free-list
// cache, refilling the cache from the on-disk chain when it runs dry.
func (fs *FS) AllocateBlock() (uint16, error) {
	sup, err := fs.ReadSuperblock()
	if err != nil {
		return 0, err
	}
	sup.Nfree--
	blkn := sup.Free[sup.Nfree]
	if sup.Nfree > 0 {
		if err := fs.WriteSuperblock(sup); err != nil {
			return 0, err
		}
		if blkn == 0 {
			return 0, fmt.Errorf("v6fs: allocated free block number is zero")
		}
		return blkn, nil
	}
	blk, err := fs.ReadBlock(blkn)
	if err != nil {
		return 0, err
	}
	sup.Nfree = binary.LittleEndian.Uint16(blk[0:2])
	for i := 0; i < 100; i++ {
		sup.Free[i] = binary.LittleEndian.Uint16(blk[2+2*i : 4+2*i])
	}
	if err := fs.WriteSuperblock(sup); err != nil {
		return 0, err
	}
	return blkn, nil
}

// FreeBlock returns blkn to the superblock's free-list cache, spilling the
// cache into blkn itself (as the new chain head) once it fills up.
func (fs *FS) FreeBlock(blkn uint16) error {
	sup, err := fs.ReadSuperblock()
	if err != nil {
		return err
	}
	if sup.Nfree >= 100 {
		data := make([]byte, 2+2*100)
		binary.LittleEndian.PutUint16(data[0:2], sup.Nfree)
		for i := 0; i < 100; i++ {
			binary.LittleEndian.PutUint16(data[2+2*i:4+2*i], sup.Free[i])
		}
		if err := fs.WriteBlock(blkn, data); err != nil {
			return err
		}
		sup.Nfree = 0
	}
	sup.Free[sup.Nfree] = blkn
	sup.Nfree++
	return fs.WriteSuperblock(sup)
}

// AllocateINode returns a freshly zeroed, allocated inode, rebuilding the
// superblock's free-inode cache by scanning the inode list if it is empty.
func (fs *FS) AllocateINode(now uint32) (*INode, error) {
	sup, err := fs.ReadSuperblock()
	if err != nil {
		return nil, err
	}
	if sup.Ninode == 0 {
		count := int(sup.Isize) * BlockSize / InodeSize
		for i := 1; i <= count && sup.Ninode < 100; i++ {
			node, err := fs.ReadINode(uint32(i))
			if err != nil {
				return nil, err
			}
			if !node.IsAllocated() {
				sup.Inode[sup.Ninode] = uint16(i)
				sup.Ninode++
			}
		}
	}
	if sup.Ninode == 0 {
		return nil, fmt.Errorf("v6fs: no free inodes")
	}
	sup.Ninode--
	num := sup.Inode[sup.Ninode]
	if err := fs.WriteSuperblock(sup); err != nil {
		return nil, err
	}
	node := newINode(now)
	node.Num = uint32(num)
	return node, nil
}

// FreeINode marks inode num free and pushes it onto the superblock's
// free-inode cache, matching the original's "the inode itself carries the
// free bit" comment on the V6 on-disk format.
func (fs *FS) FreeINode(num uint32) error {
	sup, err := fs.ReadSuperblock()
	if err != nil {
		return err
	}
	if sup.Ninode < 100 {
		sup.Inode[sup.Ninode] = uint16(num)
		sup.Ninode++
		if err := fs.WriteSuperblock(sup); err != nil {
			return err
		}
	}
	node, err := fs.ReadINode(num)
	if err != nil {
		return err
	}
	node.SetFree()
	return fs.WriteINode(node)
}
