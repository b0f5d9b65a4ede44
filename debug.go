// debug.go - Panic and register-dump support for the PDP-11 core

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

/*
debug.go - Device Panic and Register Dump

spec.md's error taxonomy (§7) splits faults into synchronous traps (handled
entirely inside the CPU's trap dispatch), red-stack conditions (also handled
inside the CPU) and device panics - programmer errors such as an odd
interrupt vector or an unimplemented RK05 opcode. Device panics are
unrecoverable: the emulator terminates with a register dump, the same way the
original JavaScript/Python source calls system.panic() and the teacher's
debug monitor renders a CPUEntry snapshot on a breakpoint hit.

This file formats that dump and centralizes the panic path so every call
site produces the same shape of diagnostic.
*/

package main

import (
	"fmt"
)

// devicePanicf formats a device-panic message. Call sites panic with its
// result; main recovers at the top level and prints a register dump before
// exiting, mirroring the original's system.panic(msg) plus register trace.
func devicePanicf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

// registerDump renders the CPU's full visible state the way a PDP-11 front
// panel (or the teacher's debug monitor CPUEntry snapshot) would: general
// registers, decoded PSW fields, the instruction being executed, and the
// MMU fault registers.
func registerDump(cpu *CPU) string {
	psw := cpu.PSW
	out := fmt.Sprintf("R0=%06o R1=%06o R2=%06o R3=%06o\n", cpu.R[0], cpu.R[1], cpu.R[2], cpu.R[3])
	out += fmt.Sprintf("R4=%06o R5=%06o R6=%06o R7=%06o\n", cpu.R[4], cpu.R[5], cpu.R[6], cpu.R[7])
	out += fmt.Sprintf("KSP=%06o USP=%06o curPC=%06o instr=%06o\n", cpu.KSP, cpu.USP, cpu.curPC, cpu.instr)
	out += fmt.Sprintf("PSW=%06o [N=%d Z=%d V=%d C=%d pri=%d prevMode=%d curMode=%d]\n",
		psw,
		b2i(psw&flagN != 0), b2i(psw&flagZ != 0), b2i(psw&flagV != 0), b2i(psw&flagC != 0),
		(psw>>5)&7, (psw>>12)&3, (psw>>14)&3,
	)
	out += fmt.Sprintf("SR0=%06o SR2=%06o LKS=%06o\n", cpu.bus.mmu.SR0, cpu.bus.mmu.SR2, cpu.bus.lineClock.LKS)
	return out
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// dumpAndExit is the top-level recovery point wired from main: it prints the
// panic message plus a register dump and returns; the caller (runSlice) then
// exits the process. Kept separate from registerDump so tests can call
// registerDump on its own.
func dumpAndExit(cpu *CPU, r any) {
	fmt.Println("PANIC:", r)
	if cpu != nil {
		fmt.Print(registerDump(cpu))
	}
}
