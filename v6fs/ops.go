// ops.go - File-level operations: create, overwrite, upload, download, tree

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

package v6fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// OverwriteFile replaces fnode's contents with data, freeing its previously
// occupied blocks first and choosing single- or one-level-indirect
// addressing depending on size, exactly as the teacher's original upload
// path does.
func (fs *FS) OverwriteFile(fnode *INode, data []byte) error {
	if len(data) > BiggestNotHugeSize {
		return ErrHugeFile
	}
	if fnode.Size > 0 {
		blocks, err := fs.YieldNodeBlocks(fnode, true)
		if err != nil {
			return err
		}
		for _, b := range blocks {
			if err := fs.FreeBlock(b); err != nil {
				return err
			}
		}
	}

	fnode.Size = uint32(len(data))
	fnode.Addr = [8]uint16{}

	lastBlock := 0
	if fnode.Size > 0 {
		lastBlock = int((fnode.Size - 1) / BlockSize)
	}

	if len(data) <= BlockSize*8 {
		fnode.ClearLarge()
		for i := 0; i <= lastBlock; i++ {
			blkn, err := fs.AllocateBlock()
			if err != nil {
				return err
			}
			fnode.Addr[i] = blkn
			lo, hi := i*BlockSize, (i+1)*BlockSize
			if hi > len(data) {
				hi = len(data)
			}
			if err := fs.WriteBlock(blkn, data[lo:hi]); err != nil {
				return err
			}
		}
	} else {
		fnode.SetLarge()
		blkcnt := 0
	outer:
		for a := 0; a < 8; a++ {
			ablkn, err := fs.AllocateBlock()
			if err != nil {
				return err
			}
			fnode.Addr[a] = ablkn
			ablkdata := make([]byte, 0, BlockSize)
			for b := 0; b < 256; b++ {
				blkn, err := fs.AllocateBlock()
				if err != nil {
					return err
				}
				ablkdata = append(ablkdata, byte(blkn), byte(blkn>>8))
				lo := blkcnt * BlockSize
				hi := lo + BlockSize
				if hi > len(data) {
					hi = len(data)
				}
				if err := fs.WriteBlock(blkn, data[lo:hi]); err != nil {
					return err
				}
				if blkcnt == lastBlock {
					if err := fs.WriteBlock(ablkn, ablkdata); err != nil {
						return err
					}
					break outer
				}
				blkcnt++
			}
			if err := fs.WriteBlock(ablkn, ablkdata); err != nil {
				return err
			}
		}
	}

	return fs.WriteINode(fnode)
}

// CreateFile allocates a new inode, writes data into it, and returns the
// inode. On failure after allocation (e.g. the file is too large), the
// inode is returned to the free list before the error propagates.
func (fs *FS) CreateFile(data []byte, now uint32) (*INode, error) {
	fnode, err := fs.AllocateINode(now)
	if err != nil {
		return nil, err
	}
	if err := fs.OverwriteFile(fnode, data); err != nil {
		if freeErr := fs.FreeINode(fnode.Num); freeErr != nil {
			return nil, fmt.Errorf("%w (and failed to free inode: %v)", err, freeErr)
		}
		return nil, err
	}
	return fnode, nil
}

// UploadFile copies the host file at src into the guest filesystem at dst,
// creating it fresh or overwriting an existing file or the file of the same
// base name inside an existing destination directory.
func (fs *FS) UploadFile(src, dst string, now uint32) (*INode, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}

	fnode, err := fs.PathINode(dst)
	if err != nil {
		return nil, err
	}
	var pnode *INode
	dstname := filepath.Base(dst)
	dirpath := filepath.Dir(dst)
	if fnode != nil && fnode.IsDir() {
		pnode = fnode
		dstname = filepath.Base(src)
		fnode, err = fs.PathINode(filepath.Join(dst, dstname))
		if err != nil {
			return nil, err
		}
	}

	if pnode == nil {
		pnode, err = fs.PathINode(dirpath)
		if err != nil {
			return nil, err
		}
		if pnode == nil {
			return nil, fmt.Errorf("v6fs: destination directory of %q not found", dst)
		}
		if !pnode.IsDir() {
			return nil, fmt.Errorf("v6fs: %q is not a directory", dirpath)
		}
	}

	if fnode == nil {
		fnode, err = fs.CreateFile(data, now)
		if err != nil {
			return nil, err
		}
		if err := fs.AddToDirectory(pnode, fnode, dstname); err != nil {
			return nil, err
		}
		return fnode, nil
	}
	if err := fs.OverwriteFile(fnode, data); err != nil {
		return nil, err
	}
	return fnode, nil
}

// DownloadFile writes node's contents to the host path dst.
func (fs *FS) DownloadFile(node *INode, dst string) error {
	data, err := fs.ReadFile(node)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// TreeEntry is one line of a recursive directory listing produced by Tree.
type TreeEntry struct {
	Path  string
	Node  *INode
	Sum   uint16
	Depth int
}

// Tree walks the directory rooted at inum and returns every file and
// subdirectory beneath it in listing order, along with the total byte size
// and block count consumed. If saveDir is non-empty, file contents are
// written under it, mirroring the guest directory structure.
func (fs *FS) Tree(inum uint32, saveDir string, depth int) ([]TreeEntry, int64, int64, error) {
	dirNode, err := fs.ReadINode(inum)
	if err != nil {
		return nil, 0, 0, err
	}
	entries, err := fs.ListDir(dirNode)
	if err != nil {
		return nil, 0, 0, err
	}
	if entries == nil {
		return nil, 0, 0, nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var out []TreeEntry
	var totalSize, totalBlocks int64
	var lastInum uint32
	var lastName string
	for _, e := range entries {
		if e.Inum == lastInum && e.Name == lastName {
			continue
		}
		node, err := fs.ReadINode(e.Inum)
		if err != nil {
			return nil, 0, 0, err
		}
		contents, err := fs.ReadFile(node)
		if err != nil {
			return nil, 0, 0, err
		}
		if !node.IsDir() && saveDir != "" {
			if err := os.WriteFile(filepath.Join(saveDir, e.Name), contents, 0644); err != nil {
				return nil, 0, 0, err
			}
		}
		out = append(out, TreeEntry{Path: e.Name, Node: node, Sum: SumFile(contents), Depth: depth})
		totalSize += int64(node.Size)
		blocks := int64(node.Size) / BlockSize
		if int64(node.Size)%BlockSize != 0 {
			blocks++
		}
		totalBlocks += blocks

		if e.Name != "." && e.Name != ".." && node.IsDir() {
			childDir := ""
			if saveDir != "" {
				childDir = filepath.Join(saveDir, e.Name)
				if err := os.Mkdir(childDir, 0755); err != nil {
					return nil, 0, 0, err
				}
			}
			sub, sz, blkSz, err := fs.Tree(e.Inum, childDir, depth+1)
			if err != nil {
				return nil, 0, 0, err
			}
			out = append(out, sub...)
			totalSize += sz
			totalBlocks += blkSz
		}
		lastInum, lastName = e.Inum, e.Name
	}
	return out, totalSize, totalBlocks, nil
}

// ExtractDir creates the host directory dstDir and populates it with a full
// recursive copy of the guest directory at srcDir (default "/").
func (fs *FS) ExtractDir(dstDir, srcDir string) (int64, int64, error) {
	if srcDir == "" {
		srcDir = "/"
	}
	if _, err := os.Stat(dstDir); err == nil {
		return 0, 0, fmt.Errorf("v6fs: %q already exists", dstDir)
	}
	node, err := fs.PathINode(srcDir)
	if err != nil {
		return 0, 0, err
	}
	if node == nil {
		return 0, 0, fmt.Errorf("v6fs: %q not found in guest filesystem", srcDir)
	}
	if err := os.Mkdir(dstDir, 0755); err != nil {
		return 0, 0, err
	}
	_, size, blocks, err := fs.Tree(node.Num, dstDir, 0)
	return size, blocks, err
}
