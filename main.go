// main.go - Main entry point for pdp11go

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/otley-labs/pdp11go/v6fs"
)

func boilerPlate() {
	fmt.Println("pdp11go - a software PDP-11/40")
	fmt.Println("(c) 2024 - 2026 the pdp11go authors")
	fmt.Println("https://github.com/otley-labs/pdp11go")
	fmt.Println("License: GPLv3 or later")
}

// romFlagPath holds the -rom value so runOfflineTool knows where to write a
// mutated disk image back to.
var romFlagPath string

func main() {
	var (
		romPath    = flag.String("rom", "rk0.img", "RK05 disk image to load")
		extractDir = flag.String("extract", "", "extract the guest filesystem into this host directory and exit")
		injectDir  = flag.String("inject", "", "upload this host file into the guest filesystem root and exit")
		syncSpec   = flag.String("sync", "", "one-shot sync between a guest and host directory, format guest=host")
		syncLive   = flag.String("sync-live", "", "wait for the booted guest's shell, then sync guest=host against it over the console before continuing interactively")
		quiet      = flag.Bool("quiet", false, "suppress the startup banner")
		version    = flag.Bool("version", false, "print version information and exit")
	)
	flag.Parse()

	if *version {
		printFeatures()
		return
	}
	if !*quiet {
		boilerPlate()
	}

	romFlagPath = *romPath
	data, err := os.ReadFile(*romPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdp11go: %v\n", err)
		os.Exit(1)
	}

	m := NewMachine()
	m.HardReset()
	if err := m.Bus.rk.LoadImage(data); err != nil {
		fmt.Fprintf(os.Stderr, "pdp11go: %v\n", err)
		os.Exit(1)
	}

	if *extractDir != "" || *injectDir != "" || *syncSpec != "" {
		runOfflineTool(m, *extractDir, *injectDir, *syncSpec)
		return
	}

	runInteractive(m, *syncLive)
}

// runInteractive starts the terminal host's own stdin-reader goroutine, then
// runs the line clock and the CPU loop on their own goroutines under an
// errgroup. SIGINT/SIGTERM end the CPU loop, which in turn stops the clock;
// the terminal host is stopped on return.
func runInteractive(m *Machine, syncLiveSpec string) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	host := NewTerminalHost(m.Bus.tty)
	host.Start()
	defer host.Stop()

	if syncLiveSpec != "" {
		go runLiveSync(ctx, m, syncLiveSpec)
	}

	stopClock := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m.Bus.lineClock.Run(stopClock)
		return nil
	})

	g.Go(func() error {
		defer close(stopClock)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				runSlice(m)
				host.PrintOutput()
			}
		}
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "pdp11go: %v\n", err)
		os.Exit(1)
	}
}

// runLiveSync drives a single host<->guest sync pass against a machine that
// is already running, typing commands at its booted shell over the console
// TTY rather than writing the disk image's inodes directly, per the live-
// guest path v6fs.Sync takes when given a GuestShell. It waits out the boot
// (V6 takes tens of seconds on this hardware) before typing anything.
func runLiveSync(ctx context.Context, m *Machine, spec string) {
	guestDir, hostDir, ok := strings.Cut(spec, "=")
	if !ok {
		fmt.Fprintln(os.Stderr, "pdp11go: -sync-live wants guest=host")
		return
	}

	bootCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	m.Bus.tty.StartTap()
	shell := newTTYShell(m.Bus.tty)
	if err := shell.waitForFirstPrompt(bootCtx); err != nil {
		m.Bus.tty.StopTap()
		fmt.Fprintf(os.Stderr, "pdp11go: sync-live: %v\n", err)
		return
	}

	fs := v6fs.New(m.Bus.rk.LiveDisk())
	result, err := fs.Sync(ctx, guestDir, hostDir, time.Now().Unix(), shell)
	m.Bus.tty.StopTap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdp11go: sync-live: %v\n", err)
		return
	}
	fmt.Printf("\r\nsync-live: %d downloaded, %d uploaded\r\n", len(result.Downloaded), len(result.Uploaded))
}

// runSlice executes a batch of instructions and services the TTY keyboard
// FIFO once per batch, keeping the keyboard's one-char-per-interrupt pacing
// independent of however many instructions the CPU retires between ticks.
func runSlice(m *Machine) {
	defer func() {
		if r := recover(); r != nil {
			dumpAndExit(m.CPU, r)
			os.Exit(1)
		}
	}()
	for i := 0; i < 4000; i++ {
		m.CPU.Step()
	}
	m.Bus.tty.Tick()
}
