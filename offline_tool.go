// offline_tool.go - non-interactive disk image extract/inject/sync

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/otley-labs/pdp11go/v6fs"
)

// memDisk adapts an in-memory disk image to io.ReadWriteSeeker so v6fs can
// operate on it without touching the filesystem until the caller decides to
// persist it back.
type memDisk struct {
	data []byte
	pos  int64
}

func (d *memDisk) Read(p []byte) (int, error) {
	if d.pos >= int64(len(d.data)) {
		return 0, fmt.Errorf("v6fs: read past end of image")
	}
	n := copy(p, d.data[d.pos:])
	d.pos += int64(n)
	return n, nil
}

func (d *memDisk) Write(p []byte) (int, error) {
	end := d.pos + int64(len(p))
	if end > int64(len(d.data)) {
		return 0, fmt.Errorf("v6fs: write past end of image")
	}
	n := copy(d.data[d.pos:end], p)
	d.pos += int64(n)
	return n, nil
}

func (d *memDisk) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		d.pos = offset
	case 1:
		d.pos += offset
	case 2:
		d.pos = int64(len(d.data)) + offset
	}
	return d.pos, nil
}

// runOfflineTool services the -extract/-inject/-sync flags against the
// already-loaded RK05 image, writing the (possibly modified) image back to
// romPath when the operation mutates it.
func runOfflineTool(m *Machine, extractDir, injectDir, syncSpec string) {
	disk := &memDisk{data: m.Bus.rk.SaveImage()}
	fs := v6fs.New(disk)

	mutated := false
	now := time.Now().Unix()

	if extractDir != "" {
		size, blocks, err := fs.ExtractDir(extractDir, "/")
		if err != nil {
			fmt.Fprintf(os.Stderr, "pdp11go: extract: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("extracted %d bytes across %d blocks into %s\n", size, blocks, extractDir)
	}

	if injectDir != "" {
		node, err := fs.UploadFile(injectDir, "/"+lastPathComponent(injectDir), uint32(now))
		if err != nil {
			fmt.Fprintf(os.Stderr, "pdp11go: inject: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("injected as inode %d\n", node.Num)
		mutated = true
	}

	if syncSpec != "" {
		guestDir, hostDir, ok := strings.Cut(syncSpec, "=")
		if !ok {
			fmt.Fprintln(os.Stderr, "pdp11go: -sync wants guest=host")
			os.Exit(1)
		}
		result, err := fs.Sync(context.Background(), guestDir, hostDir, now, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pdp11go: sync: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("synced: %d downloaded, %d uploaded\n", len(result.Downloaded), len(result.Uploaded))
		mutated = true
	}

	if !mutated {
		return
	}
	if err := os.WriteFile(romFlagPath, disk.data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "pdp11go: writing back disk image: %v\n", err)
		os.Exit(1)
	}
}

func lastPathComponent(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
