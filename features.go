package main

import (
	"fmt"
	"runtime"
)

// Version is the pdp11go build version, overridable at link time with
// -ldflags "-X main.Version=...".
var Version = "dev"

func printFeatures() {
	fmt.Printf("pdp11go %s\n", Version)
	fmt.Printf("  Go version: %s\n", runtime.Version())
	fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
