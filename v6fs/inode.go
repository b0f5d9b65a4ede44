// inode.go - Version 6 Unix inode

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

// Flag bits within INode.Flag, per /usr/man/man5/fs.5.
const (
	flagAllocated = 0x8000
	flagTypeMask  = 0x6000
	flagLarge     = 0x1000
	flagSetuid    = 0x0800
	flagSetgid    = 0x0400
)

// File type values extracted from flagTypeMask.
const (
	TypeFile = 0
	TypeChar = 1
	TypeDir  = 2
	TypeBlock = 3
)

// CreatedByPdp11go is stamped into Actime/Modtime's high byte when this
// package fabricates a brand-new inode, so a later sync pass can recognize
// files it created itself versus ones the guest wrote natively.
const CreatedByPdp11go = 0x13000000

// SyncedByPdp11go marks a file most recently written by a host<->guest sync.
const SyncedByPdp11go = 0x15000000

// INode is the 32-byte on-disk inode record.
type INode struct {
	Num     uint32 // 1-based inode number; not part of the serialized record
	Flag    uint16
	NLinks  byte
	Uid     byte
	Gid     byte
	Size    uint32 // 24 bits used
	Addr    [8]uint16
	Actime  uint32
	Modtime uint32
}

func parseINode(data []byte) (*INode, error) {
	if len(data) < InodeSize {
		return nil, fmt.Errorf("v6fs: inode data too short (%d bytes)", len(data))
	}
	n := &INode{}
	n.Flag = binary.LittleEndian.Uint16(data[0:2])
	n.NLinks = data[2]
	n.Uid = data[3]
	n.Gid = data[4]
	sizeHi := data[5]
	sizeLo := binary.LittleEndian.Uint16(data[6:8])
	n.Size = uint32(sizeHi)<<16 | uint32(sizeLo)
	for i := 0; i < 8; i++ {
		n.Addr[i] = binary.LittleEndian.Uint16(data[8+2*i : 10+2*i])
	}
	atHi := binary.LittleEndian.Uint16(data[24:26])
	atLo := binary.LittleEndian.Uint16(data[26:28])
	n.Actime = uint32(atHi)<<16 | uint32(atLo)
	mtHi := binary.LittleEndian.Uint16(data[28:30])
	mtLo := binary.LittleEndian.Uint16(data[30:32])
	n.Modtime = uint32(mtHi)<<16 | uint32(mtLo)
	return n, nil
}

func (n *INode) serialize() []byte {
	data := make([]byte, InodeSize)
	binary.LittleEndian.PutUint16(data[0:2], n.Flag)
	data[2] = n.NLinks
	data[3] = n.Uid
	data[4] = n.Gid
	data[5] = byte(n.Size >> 16)
	binary.LittleEndian.PutUint16(data[6:8], uint16(n.Size&0xFFFF))
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint16(data[8+2*i:10+2*i], n.Addr[i])
	}
	binary.LittleEndian.PutUint16(data[24:26], uint16(n.Actime>>16))
	binary.LittleEndian.PutUint16(data[26:28], uint16(n.Actime&0xFFFF))
	binary.LittleEndian.PutUint16(data[28:30], uint16(n.Modtime>>16))
	binary.LittleEndian.PutUint16(data[30:32], uint16(n.Modtime&0xFFFF))
	return data
}

// newINode fabricates an all-zero, newly-allocated regular file inode
// stamped with the current time, matching the original source's behavior
// when constructing an INode from scratch rather than parsing one off disk.
func newINode(now uint32) *INode {
	n := &INode{}
	n.Actime = CreatedByPdp11go | (now & 0xFFFFFF)
	n.Modtime = n.Actime
	n.Flag = flagAllocated | 0x01FF
	n.NLinks = 1
	return n
}

func (n *INode) SetFree()      { n.Flag &^= flagAllocated }
func (n *INode) SetDirectory() { n.Flag |= TypeDir << 13 }
func (n *INode) SetLarge()     { n.Flag |= flagLarge }
func (n *INode) ClearLarge()   { n.Flag &^= flagLarge }

func (n *INode) IsAllocated() bool   { return n.Flag&flagAllocated != 0 }
func (n *INode) IsDir() bool         { return n.Flag&flagTypeMask == TypeDir<<13 }
func (n *INode) IsRegularFile() bool { return n.Flag&flagTypeMask == TypeFile<<13 }
func (n *INode) IsLarge() bool       { return n.Flag&flagLarge != 0 }

// Type returns the 2-bit file type field (TypeFile/TypeChar/TypeDir/TypeBlock).
func (n *INode) Type() uint16 { return (n.Flag & flagTypeMask) >> 13 }

// FlagsString renders the flag word the way the original `ls -l`-adjacent
// debug dump does: allocated, type, large, setuid/setgid, then three rwx
// triplets for owner/group/other.
func (n *INode) FlagsString() string {
	b := make([]byte, 0, 13)
	put := func(bit uint16, c byte) {
		if n.Flag&bit != 0 {
			b = append(b, c)
		} else {
			b = append(b, '.')
		}
	}
	put(flagAllocated, 'a')
	b = append(b, "FSDB"[n.Type()])
	put(flagLarge, 'L')
	put(flagSetuid, 'U')
	put(flagSetgid, 'G')
	put(0o400, 'R')
	put(0o200, 'W')
	put(0o100, 'X')
	put(0o040, 'R')
	put(0o020, 'W')
	put(0o010, 'X')
	put(0o004, 'R')
	put(0o002, 'W')
	put(0o001, 'X')
	return string(b)
}

func (n *INode) String() string {
	return fmt.Sprintf("INode(num=%d,uid=%d,gid=%d,size=%d,flags=%s)", n.Num, n.Uid, n.Gid, n.Size, n.FlagsString())
}
