// pdp11fsx - standalone Version 6 Unix filesystem tool
//
// Operates directly on an RK05 disk image file without involving the CPU
// emulator at all, for scripting extract/inject/sum/tree against images that
// were never booted in this session.

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/otley-labs/pdp11go/v6fs"
)

func main() {
	image := flag.String("image", "rk0.img", "RK05 disk image file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pdp11fsx [-image path] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  tree                     print the full guest filesystem tree\n")
		fmt.Fprintf(os.Stderr, "  extract <dst> [src]      extract src (default /) into host directory dst\n")
		fmt.Fprintf(os.Stderr, "  upload <src> <dst>       upload host file src into the guest filesystem at dst\n")
		fmt.Fprintf(os.Stderr, "  sum <file>               print the V6 `sum`-compatible checksum of a host file\n")
		fmt.Fprintf(os.Stderr, "  exists <path>            check whether path exists in the guest filesystem\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}
	cmd, rest := args[0], args[1:]

	if cmd == "sum" {
		if len(rest) != 1 {
			flag.Usage()
			os.Exit(1)
		}
		data, err := os.ReadFile(rest[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "pdp11fsx: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(v6fs.SumFile(data))
		return
	}

	f, err := os.OpenFile(*image, os.O_RDWR, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdp11fsx: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	fs := v6fs.New(f)

	switch cmd {
	case "tree":
		entries, size, blocks, err := fs.Tree(1, "", 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pdp11fsx: %v\n", err)
			os.Exit(1)
		}
		for _, e := range entries {
			indent := ""
			for i := 0; i < e.Depth; i++ {
				indent += "    "
			}
			name := e.Path
			if e.Node.IsDir() {
				name += "/"
			}
			fmt.Printf("%s%-15s\t%d\t%s\tsum=%d\t%d\t%x\n", indent, name, e.Node.Size, e.Node.FlagsString(), e.Sum, e.Node.NLinks, e.Node.Modtime)
		}
		fmt.Printf("Total size: %d, Block size: %d (%d)\n", size, blocks*v6fs.BlockSize, blocks)

	case "extract":
		if len(rest) < 1 {
			flag.Usage()
			os.Exit(1)
		}
		src := "/"
		if len(rest) > 1 {
			src = rest[1]
		}
		size, blocks, err := fs.ExtractDir(rest[0], src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pdp11fsx: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("extracted %d bytes, %d blocks\n", size, blocks)

	case "upload":
		if len(rest) != 2 {
			flag.Usage()
			os.Exit(1)
		}
		node, err := fs.UploadFile(rest[0], rest[1], uint32(time.Now().Unix()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "pdp11fsx: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("uploaded as inode %d\n", node.Num)

	case "exists":
		if len(rest) != 1 {
			flag.Usage()
			os.Exit(1)
		}
		ok, err := fs.PathExists(rest[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "pdp11fsx: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ok)

	default:
		flag.Usage()
		os.Exit(1)
	}
}
