// dir.go - Version 6 Unix directory records and path resolution

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

package v6fs

import (
	"fmt"
	"strings"
)

// dirEntrySize is the size of one directory record: a 2-byte inode number
// followed by a 14-byte, NUL-padded filename.
const dirEntrySize = 16

// DirEntry is one record of a directory file.
type DirEntry struct {
	Inum uint32
	Name string
}

// ListDir returns the non-empty entries of a directory inode, in on-disk
// order. It returns nil, nil if node is not a directory.
func (fs *FS) ListDir(node *INode) ([]DirEntry, error) {
	if !node.IsDir() {
		return nil, nil
	}
	data, err := fs.ReadFile(node)
	if err != nil {
		return nil, err
	}
	var entries []DirEntry
	for i := 0; i+dirEntrySize <= len(data); i += dirEntrySize {
		inum := uint32(data[i]) | uint32(data[i+1])<<8
		if inum == 0 {
			continue
		}
		name := string(data[i+2 : i+16])
		name = strings.TrimRight(name, "\x00")
		entries = append(entries, DirEntry{Inum: inum, Name: name})
	}
	return entries, nil
}

// PathINode resolves a slash-separated path (relative to the root inode,
// number 1) to its inode, or returns nil, nil if no such path exists.
func (fs *FS) PathINode(path string) (*INode, error) {
	return fs.pathINodeFrom(strings.Trim(path, "/"), 1)
}

func (fs *FS) pathINodeFrom(path string, num uint32) (*INode, error) {
	node, err := fs.ReadINode(num)
	if err != nil {
		return nil, err
	}
	if path == "" {
		if node.IsAllocated() {
			return node, nil
		}
		return nil, nil
	}
	if !node.IsDir() {
		return nil, nil
	}
	name, tail, _ := strings.Cut(path, "/")
	entries, err := fs.ListDir(node)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		return fs.pathINodeFrom(tail, e.Inum)
	}
	return nil, nil
}

// PathExists reports whether path resolves to an inode.
func (fs *FS) PathExists(path string) (bool, error) {
	node, err := fs.PathINode(path)
	return node != nil, err
}

// AddToDirectory appends a (inode, name) record to dnode's directory file,
// allocating a new block when the current last block is full. Names longer
// than 14 bytes are truncated, matching the on-disk record width.
func (fs *FS) AddToDirectory(dnode, fnode *INode, name string) error {
	if dnode.IsLarge() || dnode.Size+dirEntrySize >= BlockSize*8 {
		return fmt.Errorf("v6fs: writing to large directories is not supported")
	}
	i := dnode.Size / BlockSize
	if dnode.Size%BlockSize == 0 {
		blkn, err := fs.AllocateBlock()
		if err != nil {
			return err
		}
		dnode.Addr[i] = blkn
	}
	blksz := dnode.Size - BlockSize*i
	block, err := fs.ReadBlock(dnode.Addr[i])
	if err != nil {
		return err
	}
	block = block[:blksz]

	if len(name) > 14 {
		name = name[:14]
	}
	rec := make([]byte, dirEntrySize)
	rec[0] = byte(fnode.Num)
	rec[1] = byte(fnode.Num >> 8)
	copy(rec[2:], name)
	block = append(block, rec...)

	if err := fs.WriteBlock(dnode.Addr[i], block); err != nil {
		return err
	}
	dnode.Size += dirEntrySize
	return fs.WriteINode(dnode)
}

// Mkdir creates a new, empty directory at dst (a slash-separated path whose
// parent must already exist). now stamps the new inode's creation time.
func (fs *FS) Mkdir(dst string, now uint32) error {
	if existing, err := fs.PathINode(dst); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("v6fs: %q already exists", dst)
	}

	dirpath, name := splitPath(dst)
	pnode, err := fs.PathINode(dirpath)
	if err != nil {
		return err
	}
	if pnode == nil {
		return fmt.Errorf("v6fs: parent directory of %q not found", dst)
	}

	node, err := fs.AllocateINode(now)
	if err != nil {
		return err
	}
	block, err := fs.AllocateBlock()
	if err != nil {
		return err
	}

	data := make([]byte, dirEntrySize*2)
	data[0] = byte(node.Num)
	data[1] = byte(node.Num >> 8)
	data[2] = '.'
	data[16] = byte(pnode.Num)
	data[17] = byte(pnode.Num >> 8)
	data[18] = '.'
	data[19] = '.'
	if err := fs.WriteBlock(block, data); err != nil {
		return err
	}

	node.SetDirectory()
	node.Addr[0] = block
	node.Size = dirEntrySize * 2
	if err := fs.WriteINode(node); err != nil {
		return err
	}

	return fs.AddToDirectory(pnode, node, name)
}

// splitPath mimics os.path.split for the slash-separated guest namespace:
// it returns the directory component and the final element.
func splitPath(p string) (dir, base string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}
