package v6fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSumFileKnownChecksum(t *testing.T) {
	// '1'..'9' are 0x31..0x39 (477 together) and '\n' is 10: 487. No byte has
	// its high bit set and the sum stays below 0x10000, so no carry folds in.
	data := []byte("123456789\n")
	const want = 487
	if got := SumFile(data); got != want {
		t.Fatalf("SumFile = %d, want %d", got, want)
	}
}

func TestSumFileEmptyIsZero(t *testing.T) {
	if got := SumFile(nil); got != 0 {
		t.Fatalf("SumFile(nil) = %d, want 0", got)
	}
}

func TestSyncDownloadsGuestOnlyFile(t *testing.T) {
	fs := newTestFS(t)
	hostDir := t.TempDir()

	hostSrc := filepath.Join(t.TempDir(), "seed.txt")
	if err := os.WriteFile(hostSrc, []byte("seed"), 0644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := fs.UploadFile(hostSrc, "/guest-only.txt", 0); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	result, err := fs.Sync(context.Background(), "/", hostDir, 1000, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(result.Downloaded) != 1 || result.Downloaded[0] != filepath.Join(hostDir, "guest-only.txt") {
		t.Fatalf("Downloaded = %v, want one entry for guest-only.txt", result.Downloaded)
	}
	if _, err := os.Stat(filepath.Join(hostDir, "guest-only.txt")); err != nil {
		t.Fatalf("expected the file to now exist on the host: %v", err)
	}
}

func TestSyncUploadsHostOnlyFile(t *testing.T) {
	fs := newTestFS(t)
	hostDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(hostDir, "host-only.txt"), []byte("h"), 0644); err != nil {
		t.Fatalf("write host file: %v", err)
	}

	result, err := fs.Sync(context.Background(), "/", hostDir, 2000, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(result.Uploaded) != 1 || result.Uploaded[0] != "/host-only.txt" {
		t.Fatalf("Uploaded = %v, want one entry for /host-only.txt", result.Uploaded)
	}
	node, err := fs.PathINode("/host-only.txt")
	if err != nil || node == nil {
		t.Fatalf("expected /host-only.txt to now exist in the guest fs, err=%v", err)
	}
}

func TestSyncSkipsMatchingFileWithinTolerance(t *testing.T) {
	fs := newTestFS(t)
	hostDir := t.TempDir()
	hostPath := filepath.Join(hostDir, "same.txt")
	if err := os.WriteFile(hostPath, []byte("same"), 0644); err != nil {
		t.Fatalf("write host file: %v", err)
	}

	now := int64(5000)
	node, err := fs.UploadFile(hostPath, "/same.txt", uint32(now))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	node.Modtime = SyncTime(now)
	if err := fs.WriteINode(node); err != nil {
		t.Fatalf("WriteINode: %v", err)
	}
	hostTime := time.Unix(now, 0)
	if err := os.Chtimes(hostPath, hostTime, hostTime); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	result, err := fs.Sync(context.Background(), "/", hostDir, now, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(result.Downloaded) != 0 || len(result.Uploaded) != 0 {
		t.Fatalf("expected no transfers for an in-sync file, got %+v", result)
	}
}

func TestSyncRejectsMissingGuestDirectory(t *testing.T) {
	fs := newTestFS(t)
	if _, err := fs.Sync(context.Background(), "/nope", t.TempDir(), 0, nil); err == nil {
		t.Fatalf("expected an error for a missing guest directory")
	}
}

func TestSyncRecursesIntoMatchingSubdirectories(t *testing.T) {
	fs := newTestFS(t)
	hostDir := t.TempDir()
	if err := fs.Mkdir("/sub", 0); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.Mkdir(filepath.Join(hostDir, "sub"), 0755); err != nil {
		t.Fatalf("host Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(hostDir, "sub", "nested.txt"), []byte("n"), 0644); err != nil {
		t.Fatalf("write nested host file: %v", err)
	}

	result, err := fs.Sync(context.Background(), "/", hostDir, 9000, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	found := false
	for _, p := range result.Uploaded {
		if p == "/sub/nested.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected /sub/nested.txt among uploaded paths, got %v", result.Uploaded)
	}
}

// fakeShell is a GuestShell test double that just records every command it
// was asked to run, as if it always found the prompt immediately.
type fakeShell struct {
	prompts  int
	commands []string
}

func (f *fakeShell) PromptCount() int { return f.prompts }

func (f *fakeShell) RunCommand(ctx context.Context, line string) error {
	f.commands = append(f.commands, line)
	return nil
}

func TestCanEchoAsTextAcceptsPlainLines(t *testing.T) {
	if !canEchoAsText([]byte("hello world\nsecond line\n"), "/tmp/x") {
		t.Fatalf("expected plain ASCII text ending in newline to be echo-eligible")
	}
}

func TestCanEchoAsTextRejectsMissingTrailingNewline(t *testing.T) {
	if canEchoAsText([]byte("no newline"), "/tmp/x") {
		t.Fatalf("expected data without a trailing newline to be rejected")
	}
}

func TestCanEchoAsTextRejectsMixedQuotesOnOneLine(t *testing.T) {
	data := []byte("he said \"it's fine\"\n")
	if canEchoAsText(data, "/tmp/x") {
		t.Fatalf("expected a line containing both quote characters to be rejected")
	}
}

func TestShellQuotePrefersDoubleQuote(t *testing.T) {
	if q := shellQuote("plain text"); q != '"' {
		t.Fatalf("shellQuote = %c, want \"", q)
	}
	if q := shellQuote(`has "quotes"`); q != '\'' {
		t.Fatalf("shellQuote = %c, want '", q)
	}
}

func TestUploadViaShellEchoesSmallTextFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(src, []byte("abc\n"), 0644); err != nil {
		t.Fatalf("write host file: %v", err)
	}
	shell := &fakeShell{prompts: 1}
	if err := uploadViaShell(context.Background(), shell, src, "/tmp/hello.txt"); err != nil {
		t.Fatalf("uploadViaShell: %v", err)
	}
	if len(shell.commands) == 0 {
		t.Fatalf("expected at least one command to be run")
	}
	if shell.commands[0] != `echo "abc" > /tmp/hello.txt` {
		t.Fatalf("first command = %q, want the truncating echo of the only line", shell.commands[0])
	}
	last := shell.commands[len(shell.commands)-1]
	if !strings.HasPrefix(last, `touch "/tmp/hello.txt"`) {
		t.Fatalf("last command = %q, want a touch of the uploaded path", last)
	}
	foundDate := false
	for _, c := range shell.commands {
		if strings.HasPrefix(c, "date ") {
			foundDate = true
		}
	}
	if !foundDate {
		t.Fatalf("expected a date command among %v", shell.commands)
	}
}

func TestUploadViaShellBase64FallsBackForBinary(t *testing.T) {
	src := filepath.Join(t.TempDir(), "blob.bin")
	data := []byte{0, 1, 2, 3, 0xFF, 0xFE}
	if err := os.WriteFile(src, data, 0644); err != nil {
		t.Fatalf("write host file: %v", err)
	}
	shell := &fakeShell{prompts: 1}
	if err := uploadViaShell(context.Background(), shell, src, "/tmp/blob.bin"); err != nil {
		t.Fatalf("uploadViaShell: %v", err)
	}
	sawTmp := false
	sawDecode := false
	for _, c := range shell.commands {
		if strings.Contains(c, tmpUploadFile) && strings.HasPrefix(c, "echo ") {
			sawTmp = true
		}
		if strings.HasPrefix(c, "base64 -D") {
			sawDecode = true
		}
	}
	if !sawTmp {
		t.Fatalf("expected base64 chunks echoed into %s, got %v", tmpUploadFile, shell.commands)
	}
	if !sawDecode {
		t.Fatalf("expected a base64 -D decode command, got %v", shell.commands)
	}
}

func TestSyncUploadsHostOnlyFileViaLiveShell(t *testing.T) {
	fs := newTestFS(t)
	hostDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(hostDir, "host-only.txt"), []byte("h\n"), 0644); err != nil {
		t.Fatalf("write host file: %v", err)
	}

	shell := &fakeShell{prompts: 3}
	result, err := fs.Sync(context.Background(), "/", hostDir, 2000, shell)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(result.Uploaded) != 1 || result.Uploaded[0] != "/host-only.txt" {
		t.Fatalf("Uploaded = %v, want one entry for /host-only.txt", result.Uploaded)
	}
	if len(shell.commands) == 0 {
		t.Fatalf("expected Sync to drive the live shell instead of writing the engine directly")
	}
	if node, err := fs.PathINode("/host-only.txt"); err == nil && node != nil {
		t.Fatalf("a live-guest upload must not also create the inode via the engine")
	}
}
