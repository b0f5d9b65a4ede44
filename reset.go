// reset.go - Machine-wide hard reset orchestration

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

/*
reset.go - Hard Reset

Each component owns its own Reset() method (MMU, TTY, RK05, LineClock in
their own files; Bus.Reset composes the device resets; CPU.Reset composes
Bus.Reset plus the register/bootstrap state). Machine.HardReset is the single
entry point main.go calls to bring the whole system back to its
just-powered-on state without tearing down and reallocating anything -
mirroring the teacher's component-by-component Reset() convention, just
narrowed to the six components this machine actually has.
*/

package main

// Machine bundles the CPU, its bus, and the host-facing goroutines main.go
// launches around it.
type Machine struct {
	CPU *CPU
	Bus *Bus
}

// NewMachine wires a fresh CPU, Bus and all devices together and performs
// the initial hard reset.
func NewMachine() *Machine {
	irq := newInterruptQueue()
	bus := newBus(irq)
	cpu := newCPU(bus)
	return &Machine{CPU: cpu, Bus: bus}
}

// HardReset restores every component to its just-powered-on state. Safe to
// call at any time; CPU.Reset cascades into Bus.Reset and thus every device.
func (m *Machine) HardReset() {
	m.CPU.Reset()
}
