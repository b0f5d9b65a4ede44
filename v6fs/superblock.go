// superblock.go - Version 6 Unix superblock

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

// Superblock is the 415-byte filesystem header at block 1. Field layout
// per /usr/man/man5/fs.5: isize/fsize/nfree, a 100-entry free block cache,
// ninode and a 100-entry free inode cache, three lock/mod bytes, and a
// 4-byte last-modified time.
type Superblock struct {
	Isize  uint16
	Fsize  uint16
	Nfree  uint16
	Free   [100]uint16
	Ninode uint16
	Inode  [100]uint16
	Flock  byte
	Ilock  byte
	Fmod   byte
	Time   uint32
}

func parseSuperblock(data []byte) (*Superblock, error) {
	if len(data) < SuperblockSize {
		return nil, fmt.Errorf("v6fs: superblock data too short (%d bytes)", len(data))
	}
	s := &Superblock{}
	s.Isize = binary.LittleEndian.Uint16(data[0:2])
	s.Fsize = binary.LittleEndian.Uint16(data[2:4])
	s.Nfree = binary.LittleEndian.Uint16(data[4:6])
	for i := 0; i < 100; i++ {
		s.Free[i] = binary.LittleEndian.Uint16(data[6+2*i : 8+2*i])
	}
	s.Ninode = binary.LittleEndian.Uint16(data[206:208])
	for i := 0; i < 100; i++ {
		s.Inode[i] = binary.LittleEndian.Uint16(data[208+2*i : 210+2*i])
	}
	s.Flock = data[408]
	s.Ilock = data[409]
	s.Fmod = data[410]
	s.Time = binary.LittleEndian.Uint32(data[411:415])
	return s, nil
}

func (s *Superblock) serialize() []byte {
	data := make([]byte, SuperblockSize)
	binary.LittleEndian.PutUint16(data[0:2], s.Isize)
	binary.LittleEndian.PutUint16(data[2:4], s.Fsize)
	binary.LittleEndian.PutUint16(data[4:6], s.Nfree)
	for i := 0; i < 100; i++ {
		binary.LittleEndian.PutUint16(data[6+2*i:8+2*i], s.Free[i])
	}
	binary.LittleEndian.PutUint16(data[206:208], s.Ninode)
	for i := 0; i < 100; i++ {
		binary.LittleEndian.PutUint16(data[208+2*i:210+2*i], s.Inode[i])
	}
	data[408] = s.Flock
	data[409] = s.Ilock
	data[410] = s.Fmod
	binary.LittleEndian.PutUint32(data[411:415], s.Time)
	return data
}

func (s *Superblock) String() string {
	return fmt.Sprintf("Superblock(isize=%d,fsize=%d,nfree=%d,ninode=%d)", s.Isize, s.Fsize, s.Nfree, s.Ninode)
}
