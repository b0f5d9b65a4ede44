// guest_shell.go - drives a live Unix shell over the console TTY

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

/*
ttyShell implements v6fs.GuestShell against the emulator's own console TTY,
the role the original tool's Tkinter terminal played when it drove a live
upload via simulated keystrokes: type a command, then wait for the shell's
prompt to reappear before typing the next one. It uses TTY.StartTap/DrainTap
rather than DrainOutput, so it can watch the guest's output independently of
the interactive loop that's simultaneously echoing that same output to the
user's real terminal.
*/

package main

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// shellPrompt is the prompt Version 6's shell prints for the superuser,
// which is the only account a sync pass runs as.
const shellPrompt = "# "

const shellPollInterval = 5 * time.Millisecond

// ttyShell drives a booted guest's shell over its console TTY.
type ttyShell struct {
	tty     *TTY
	prompts int
	pending string
}

// newTTYShell wraps tty for use as a v6fs.GuestShell. The caller must call
// tty.StartTap before driving any commands through it and tty.StopTap once
// done, so the tap buffer this type reads from is actually being fed.
func newTTYShell(tty *TTY) *ttyShell {
	return &ttyShell{tty: tty}
}

// PromptCount reports how many shell prompts have been seen so far.
func (s *ttyShell) PromptCount() int { return s.prompts }

// RunCommand types line into the guest's keyboard FIFO and blocks until the
// shell's next prompt appears on the tap, or ctx is done.
func (s *ttyShell) RunCommand(ctx context.Context, line string) error {
	s.tty.RouteHostPaste(line + "\n")
	return s.waitForPrompt(ctx)
}

// waitForFirstPrompt blocks until the guest's shell has printed its first
// prompt, for a caller that wants to start driving commands only once Unix
// is actually up and not still mid-boot.
func (s *ttyShell) waitForFirstPrompt(ctx context.Context) error {
	return s.waitForPrompt(ctx)
}

func (s *ttyShell) waitForPrompt(ctx context.Context) error {
	ticker := time.NewTicker(shellPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("guest shell: %w waiting for prompt; last seen output: %q", ctx.Err(), s.pending)
		case <-ticker.C:
			out := s.tty.DrainTap()
			if out == "" {
				continue
			}
			s.pending += out
			if strings.HasSuffix(s.pending, shellPrompt) {
				s.prompts++
				s.pending = ""
				return nil
			}
		}
	}
}
