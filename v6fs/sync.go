// sync.go - host<->guest directory synchronization

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

/*
Sync mirrors a host directory against a guest one, using file modification
timestamps the same way the original tool does: the high byte of a guest
inode's Modtime records who last touched it. CreatedByPdp11go/SyncedByPdp11go
mean "last written by this tool"; anything else means Unix itself modified
the file natively, so that version always wins and gets pulled down to the
host.

Downloads always go straight through the filesystem engine: reading a guest
file's bytes off the disk image is safe whether or not Unix is currently
running on it. Uploads are not, once Unix is live: writing an inode directly
under a running kernel's feet would be invisible to its buffer cache and
could corrupt the image. So when a GuestShell is supplied and has seen at
least one shell prompt, uploads (and the post-transfer modtime stamp) are
driven through that live shell instead, the same way the original tool typed
echo/base64/touch commands at a real terminal. With no shell, or before the
guest has ever reached a prompt, every transfer goes through the engine.
*/

package v6fs

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// timeErrorS and timeDeltaS reproduce the original tool's empirically
// chosen clock-skew tolerance when comparing a guest Modtime against a
// host mtime.
const (
	timeErrorS = 47
	timeDeltaS = 60
)

// tzOffsetS is the fixed UTC offset the original tool subtracted before
// formatting a `date` command for the guest, so the guest clock (which has
// no timezone database of its own) lands on the host's wall-clock minute.
const tzOffsetS = 18000

// tmpUploadFile is the scratch name a base64-encoded upload is assembled
// under in the guest filesystem before being decoded into its real name.
const tmpUploadFile = "tmp.b64"

// GuestShell drives a live Unix shell over the emulated console the way the
// original terminal-backed tool did: type a line, then block until the
// shell's prompt reappears so the next line isn't typed over a command still
// running. PromptCount reports how many prompts have been seen since boot;
// zero means no OS has reached its shell yet, matching the original's
// "terminal is None or terminal.prompt_cnt == 0" check for whether a direct
// engine write is safe.
type GuestShell interface {
	PromptCount() int
	RunCommand(ctx context.Context, line string) error
}

// SyncTime returns the guest Modtime value that marks a file as synced at
// Unix time mtime: SyncedByPdp11go in the high byte over the low 24 bits of
// mtime. The value is not rounded to the minute (hostSyncTime does that for
// the live-shell path).
func SyncTime(mtime int64) uint32 {
	return SyncedByPdp11go | (uint32(mtime) & 0xFFFFFF)
}

// SyncResult reports what Sync did, for logging by a caller.
type SyncResult struct {
	Downloaded []string
	Uploaded   []string
}

func (r *SyncResult) merge(o SyncResult) {
	r.Downloaded = append(r.Downloaded, o.Downloaded...)
	r.Uploaded = append(r.Uploaded, o.Uploaded...)
}

type hostEntry struct {
	name  string
	path  string
	isDir bool
}

type guestEntry struct {
	name  string
	path  string
	isDir bool
	node  *INode
}

// Sync synchronizes the guest directory at guestDir with the host directory
// at hostDir, recursing into subdirectories. A subdirectory found only in
// the guest is created on the host; one found only on the host is not
// created in the guest, and Sync returns an error when it reaches it. now is the current
// Unix time (passed in, not read from the clock, so callers control it).
// shell may be nil, meaning no live guest is available; otherwise it is
// consulted for whether the guest has reached a shell prompt yet, per the
// package doc comment above. Entries whose name starts with '.' are
// skipped, matching the original.
func (fs *FS) Sync(ctx context.Context, guestDir, hostDir string, now int64, shell GuestShell) (SyncResult, error) {
	var result SyncResult

	dnode, err := fs.PathINode(guestDir)
	if err != nil {
		return result, err
	}
	if dnode == nil {
		return result, fmt.Errorf("v6fs: guest directory %q not found", guestDir)
	}
	if !dnode.IsDir() {
		return result, fmt.Errorf("v6fs: %q is not a guest directory", guestDir)
	}

	if _, err := os.Stat(hostDir); os.IsNotExist(err) {
		if err := os.Mkdir(hostDir, 0755); err != nil {
			return result, err
		}
	} else if err != nil {
		return result, err
	} else if fi, statErr := os.Stat(hostDir); statErr == nil && !fi.IsDir() {
		return result, fmt.Errorf("v6fs: host path %q is not a directory", hostDir)
	}

	gentries, err := fs.ListDir(dnode)
	if err != nil {
		return result, err
	}
	var gfs []guestEntry
	for _, e := range gentries {
		if len(e.Name) > 0 && e.Name[0] == '.' {
			continue
		}
		node, err := fs.ReadINode(e.Inum)
		if err != nil {
			return result, err
		}
		gfs = append(gfs, guestEntry{name: e.Name, path: filepath.Join(guestDir, e.Name), isDir: node.IsDir(), node: node})
	}
	sort.Slice(gfs, func(i, j int) bool { return gfs[i].name < gfs[j].name })

	hostNames, err := os.ReadDir(hostDir)
	if err != nil {
		return result, err
	}
	var hfs []hostEntry
	for _, d := range hostNames {
		if len(d.Name()) > 0 && d.Name()[0] == '.' {
			continue
		}
		hfs = append(hfs, hostEntry{name: d.Name(), path: filepath.Join(hostDir, d.Name()), isDir: d.IsDir()})
	}
	sort.Slice(hfs, func(i, j int) bool { return hfs[i].name < hfs[j].name })

	var subdirs [][2]string // [guestPath, hostPath]
	gi, hi := 0, 0
	for gi < len(gfs) && hi < len(hfs) {
		g, h := gfs[gi], hfs[hi]
		switch {
		case g.name == h.name:
			if g.isDir != h.isDir {
				return result, fmt.Errorf("v6fs: type mismatch between %q and %q", g.path, h.path)
			}
			if g.isDir {
				subdirs = append(subdirs, [2]string{g.path, h.path})
			} else if err := fs.syncFile(ctx, g, h, &result, now, shell); err != nil {
				return result, err
			}
			gi++
			hi++
		case g.name < h.name:
			if g.isDir {
				subdirs = append(subdirs, [2]string{g.path, filepath.Join(hostDir, g.name)})
			} else if err := fs.download(ctx, g, filepath.Join(hostDir, g.name), &result, now, shell); err != nil {
				return result, err
			}
			gi++
		default:
			if h.isDir {
				subdirs = append(subdirs, [2]string{filepath.Join(guestDir, h.name), h.path})
			} else if err := fs.upload(ctx, h, filepath.Join(guestDir, h.name), &result, now, shell); err != nil {
				return result, err
			}
			hi++
		}
	}
	for ; gi < len(gfs); gi++ {
		g := gfs[gi]
		if g.isDir {
			subdirs = append(subdirs, [2]string{g.path, filepath.Join(hostDir, g.name)})
		} else if err := fs.download(ctx, g, filepath.Join(hostDir, g.name), &result, now, shell); err != nil {
			return result, err
		}
	}
	for ; hi < len(hfs); hi++ {
		h := hfs[hi]
		if h.isDir {
			subdirs = append(subdirs, [2]string{filepath.Join(guestDir, h.name), h.path})
		} else if err := fs.upload(ctx, h, filepath.Join(guestDir, h.name), &result, now, shell); err != nil {
			return result, err
		}
	}

	for _, pair := range subdirs {
		sub, err := fs.Sync(ctx, pair[0], pair[1], now, shell)
		if err != nil {
			return result, err
		}
		result.merge(sub)
	}

	return result, nil
}

// liveGuest reports whether shell should drive transfers instead of the
// engine, i.e. whether the guest has reached a shell prompt at least once.
func liveGuest(shell GuestShell) bool {
	return shell != nil && shell.PromptCount() > 0
}

func (fs *FS) syncFile(ctx context.Context, g guestEntry, h hostEntry, result *SyncResult, now int64, shell GuestShell) error {
	hi, err := os.Stat(h.path)
	if err != nil {
		return err
	}
	umtime := g.node.Modtime
	lmtime := hi.ModTime().Unix()
	highByte := umtime & 0xFF000000
	if highByte != CreatedByPdp11go && highByte != SyncedByPdp11go {
		return fs.download(ctx, g, h.path, result, now, shell)
	}
	diff := int64(umtime&0xFFFFFF) - (lmtime & 0xFFFFFF) + timeErrorS
	if diff < 0 {
		diff = -diff
	}
	if diff > timeDeltaS {
		return fs.upload(ctx, h, g.path, result, now, shell)
	}
	return nil
}

func (fs *FS) download(ctx context.Context, g guestEntry, hostPath string, result *SyncResult, now int64, shell GuestShell) error {
	if err := fs.DownloadFile(g.node, hostPath); err != nil {
		return err
	}
	if liveGuest(shell) {
		if err := markSyncedViaShell(ctx, shell, hostPath, g.path); err != nil {
			return err
		}
	} else {
		g.node.Modtime = SyncTime(now)
		if err := fs.WriteINode(g.node); err != nil {
			return err
		}
	}
	result.Downloaded = append(result.Downloaded, hostPath)
	return nil
}

func (fs *FS) upload(ctx context.Context, h hostEntry, guestPath string, result *SyncResult, now int64, shell GuestShell) error {
	if liveGuest(shell) {
		if err := uploadViaShell(ctx, shell, h.path, guestPath); err != nil {
			return err
		}
	} else {
		node, err := fs.UploadFile(h.path, guestPath, uint32(now))
		if err != nil {
			return err
		}
		node.Modtime = SyncTime(now)
		if err := fs.WriteINode(node); err != nil {
			return err
		}
	}
	result.Uploaded = append(result.Uploaded, guestPath)
	return nil
}

// shellQuote picks the same quoting heuristic the original used when typing
// a line into the guest shell via echo: double quotes, unless the line
// itself contains one, in which case fall back to single quotes (a line
// containing both is rejected earlier by canEchoAsText).
func shellQuote(line string) byte {
	if strings.IndexByte(line, '"') >= 0 {
		return '\''
	}
	return '"'
}

// echoSafeChars is the conservative, ASCII-only set of bytes the original
// tool was willing to risk typing as a literal echo line rather than
// falling back to base64.
const echoSafeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" +
	" .,;:_\"'`+-*/%=!?~$^&|\\()[]{}<>@#\n"

// canEchoAsText decides whether data is small and plain enough to upload as
// a sequence of `echo` lines instead of base64, matching the original's
// text_file eligibility check: must end in a newline, no single line may mix
// both quote characters, every line must fit inside a shell command after
// accounting for the echo/redirect wrapper, and every byte must be in the
// allowed set.
func canEchoAsText(data []byte, dst string) bool {
	if len(data) == 0 || data[len(data)-1] != '\n' {
		return false
	}
	for _, b := range data {
		if strings.IndexByte(echoSafeChars, b) < 0 {
			return false
		}
	}
	maxLine := 255 - len(` echo "" >> `+dst)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	for _, l := range lines {
		if strings.Contains(l, `"`) && strings.Contains(l, `'`) {
			return false
		}
		if len(l) > maxLine {
			return false
		}
	}
	return true
}

// uploadViaShell reproduces the original's upload_via_terminal: type the
// host file into the guest over echo lines when it is small, plain ASCII
// text, or otherwise base64-encode it into a scratch file and decode that
// with base64 -D, then stamp the result synced the same way either path
// finishes.
func uploadViaShell(ctx context.Context, shell GuestShell, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	if canEchoAsText(data, dst) {
		lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
		for i, line := range lines {
			if err := echoLine(ctx, shell, line, dst, i == 0); err != nil {
				return err
			}
		}
	} else {
		encoded := base64.StdEncoding.EncodeToString(data)
		for i := 0; i < len(encoded); i += 64 {
			end := i + 64
			if end > len(encoded) {
				end = len(encoded)
			}
			if err := echoLine(ctx, shell, encoded[i:end], tmpUploadFile, i == 0); err != nil {
				return err
			}
		}
		decode := fmt.Sprintf(`base64 -D -i "%s" -o "%s"`, tmpUploadFile, dst)
		if err := shell.RunCommand(ctx, decode); err != nil {
			return err
		}
	}

	return markSyncedViaShell(ctx, shell, src, dst)
}

func echoLine(ctx context.Context, shell GuestShell, line, dst string, truncate bool) error {
	q := shellQuote(line)
	redirect := ">>"
	if truncate {
		redirect = ">"
	}
	cmd := fmt.Sprintf("echo %c%s%c %s %s", q, line, q, redirect, dst)
	return shell.RunCommand(ctx, cmd)
}

// hostSyncTime returns the host file's mtime truncated to the minute (the
// guest clock has no finer resolution), truncating the host file itself if
// it wasn't already, matching the original's synctime().
func hostSyncTime(hostPath string) (int64, error) {
	fi, err := os.Stat(hostPath)
	if err != nil {
		return 0, err
	}
	mtime := fi.ModTime().Unix()
	if rem := mtime % 60; rem != 0 {
		truncated := mtime - rem
		if err := os.Chtimes(hostPath, fi.ModTime(), time.Unix(truncated, 0)); err != nil {
			return 0, err
		}
		mtime = truncated
	}
	return mtime, nil
}

// markSyncedViaShell finishes an upload or download against a live guest by
// setting the guest's clock and touching the target file, rather than
// writing the inode's Modtime directly, matching the original's
// mark_synced_via_terminal: a running kernel's buffer cache wouldn't see a
// direct write, but it sees its own date/touch commands.
func markSyncedViaShell(ctx context.Context, shell GuestShell, hostPath, guestPath string) error {
	mtime, err := hostSyncTime(hostPath)
	if err != nil {
		return err
	}
	stamp := time.Unix(mtime-tzOffsetS, 0).UTC().Format("0102150406")
	if err := shell.RunCommand(ctx, "date "+stamp); err != nil {
		return err
	}
	return shell.RunCommand(ctx, fmt.Sprintf(`touch "%s"`, guestPath))
}
