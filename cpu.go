// cpu.go - PDP-11/40 CPU core

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

/*
cpu.go - CPU Core

Implements the PDP-11/40 instruction set to the depth Unix V6 actually
exercises: double-operand and single-operand groups, branches, the EMT/TRAP/
IOT/BPT software traps, condition-code set/clear, and the HALT/WAIT/RTI/RTT/
RESET privileged group. Every numeric operation (ADD/SUB/MUL/DIV/ASH/ASHC/
ROR/ROL/ASR/ASL/SWAB and the flag computation that goes with each) is
carried over unchanged from the original source's step() - these flag
formulas look arbitrary out of context but are exactly what real PDP-11
silicon computes, so no "cleaner" rederivation is attempted here.

A single goroutine owns *CPU; Step is not safe to call concurrently with
itself. Interrupts are drained once per Step via the shared interruptQueue,
matching the original's nsteps() loop which checks interrupts after every
instruction rather than asynchronously preempting mid-instruction.
*/

package main

import "fmt"

// Condition code bits within PSW (and the low byte of PS generally).
const (
	flagN = 8
	flagZ = 4
	flagV = 2
	flagC = 1
)

// Trap is raised by any CPU/bus/MMU operation that should divert control to
// a trap vector instead of unwinding as a Go panic. Device panics (odd
// interrupt vector, unimplemented RK05 op, and similar programmer errors)
// still use plain panic/recover, per debug.go.
type Trap struct {
	Vector uint16
	Msg    string
}

func (t *Trap) Error() string { return fmt.Sprintf("trap %03o: %s", t.Vector, t.Msg) }

// CPU is the PDP-11/40 register and execution state.
type CPU struct {
	R   [8]uint16
	PSW uint16
	KSP uint16
	USP uint16

	curPC uint16
	instr uint16

	curUser  bool
	prevUser bool
	waiting  bool

	ips uint64

	bus *Bus
}

func newCPU(bus *Bus) *CPU {
	c := &CPU{bus: bus}
	c.Reset()
	return c
}

// Reset restores the documented post-bootstrap state: registers and PSW
// zeroed, all sixteen MMU pages cleared, the boot ROM installed at word
// address 01000 (byte address 02000), and PC pointed at its entry point
// (02002), matching the original's
// reset() exactly.
func (c *CPU) Reset() {
	for i := range c.R {
		c.R[i] = 0
	}
	c.PSW = 0
	c.KSP = 0
	c.USP = 0
	c.curUser = false
	c.prevUser = false
	c.curPC = 0
	c.instr = 0
	c.ips = 0
	c.waiting = false

	c.bus.Reset()
	c.bus.lineClock.LKS = 1 << 7

	loadBootROM(c.bus)
	c.R[7] = 0o2002
}

// switchmode implements the PSW-write mode transition: the outgoing mode's
// R6 is saved to its shadow stack pointer and the incoming mode's shadow
// stack pointer is loaded into R6.
func (c *CPU) switchmode(newUser bool) {
	c.prevUser = c.curUser
	c.curUser = newUser
	if c.prevUser {
		c.USP = c.R[6]
	} else {
		c.KSP = c.R[6]
	}
	if c.curUser {
		c.R[6] = c.USP
	} else {
		c.R[6] = c.KSP
	}
	c.PSW &= 0o007777
	if c.curUser {
		c.PSW |= (1 << 15) | (1 << 14)
	}
	if c.prevUser {
		c.PSW |= (1 << 13) | (1 << 12)
	}
}

// decode resolves a virtual address through the MMU for the current mode.
func (c *CPU) decode(va uint16, write, user bool) (uint32, error) {
	pa, err := c.bus.mmu.decode(va, write, user, c.curPC)
	if err != nil {
		if f, ok := err.(*mmuFault); ok {
			return 0, &Trap{Vector: vecMMUFault, Msg: f.msg}
		}
		return 0, err
	}
	return pa, nil
}

// physRead16/physWrite16 service the 777776 (PSW) special case directly,
// since writing it has mode-switch side effects only the CPU can resolve;
// every other address is delegated to the bus.
func (c *CPU) physRead16(addr uint32) (uint16, error) {
	if addr == pswAddr {
		return c.PSW, nil
	}
	w, err := c.bus.ReadWord(addr)
	if err != nil {
		if be, ok := err.(*busError); ok {
			return 0, &Trap{Vector: vecBus, Msg: be.msg}
		}
		return 0, err
	}
	return w, nil
}

func (c *CPU) physWrite16(addr uint32, v uint16) error {
	if addr == pswAddr {
		switch v >> 14 {
		case 0:
			c.switchmode(false)
		case 3:
			c.switchmode(true)
		default:
			panic(devicePanicf("cpu: invalid current-mode bits in PSW write %06o", v))
		}
		switch (v >> 12) & 3 {
		case 0:
			c.prevUser = false
		case 3:
			c.prevUser = true
		default:
			panic(devicePanicf("cpu: invalid previous-mode bits in PSW write %06o", v))
		}
		c.PSW = v
		return nil
	}
	if err := c.bus.WriteWord(addr, v); err != nil {
		if be, ok := err.(*busError); ok {
			return &Trap{Vector: vecBus, Msg: be.msg}
		}
		return err
	}
	return nil
}

func (c *CPU) physRead8(addr uint32) (uint8, error) {
	w, err := c.physRead16(addr &^ 1)
	if err != nil {
		return 0, err
	}
	if addr&1 != 0 {
		return uint8(w >> 8), nil
	}
	return uint8(w), nil
}

func (c *CPU) physWrite8(addr uint32, v uint8) error {
	if addr < ramSize {
		return c.bus.WriteByte(addr, v)
	}
	w, err := c.physRead16(addr &^ 1)
	if err != nil {
		return err
	}
	if addr&1 != 0 {
		w = (w & 0x00FF) | (uint16(v) << 8)
	} else {
		w = (w & 0xFF00) | uint16(v)
	}
	return c.physWrite16(addr&^1, w)
}

func (c *CPU) read16(va uint16) (uint16, error) {
	pa, err := c.decode(va, false, c.curUser)
	if err != nil {
		return 0, err
	}
	return c.physRead16(pa)
}

func (c *CPU) write16(va uint16, v uint16) error {
	pa, err := c.decode(va, true, c.curUser)
	if err != nil {
		return err
	}
	return c.physWrite16(pa, v)
}

func (c *CPU) read8(va uint16) (uint8, error) {
	pa, err := c.decode(va, false, c.curUser)
	if err != nil {
		return 0, err
	}
	return c.physRead8(pa)
}

func (c *CPU) write8(va uint16, v uint8) error {
	pa, err := c.decode(va, true, c.curUser)
	if err != nil {
		return err
	}
	return c.physWrite8(pa, v)
}

func (c *CPU) fetch16() (uint16, error) {
	v, err := c.read16(c.R[7])
	if err != nil {
		return 0, err
	}
	c.R[7] += 2
	return v, nil
}

func (c *CPU) push(v uint16) error {
	c.R[6] -= 2
	return c.write16(c.R[6], v)
}

func (c *CPU) pop() (uint16, error) {
	v, err := c.read16(c.R[6])
	if err != nil {
		return 0, err
	}
	c.R[6] += 2
	return v, nil
}

// aget resolves one operand specifier into either a register index (encoded
// as the negative value -(reg+1), matching the original's convention so a
// single signed int can carry "this is register N" through memread/memwrite)
// or a virtual address. l is the operand length in bytes (1 or 2); register,
// autoincrement and autodecrement modes always step by a full word when the
// mode touches R6 or R7 or uses deferred addressing, per the real hardware.
func (c *CPU) aget(v uint16, l uint16) (int32, error) {
	if (v&7) >= 6 || (v&0o10) != 0 {
		l = 2
	}
	if v&0o70 == 0o00 {
		return -(int32(v&7) + 1), nil
	}
	var addr uint16
	switch v & 0o60 {
	case 0o00:
		addr = c.R[v&7]
	case 0o20:
		addr = c.R[v&7]
		c.R[v&7] += l
	case 0o40:
		c.R[v&7] -= l
		addr = c.R[v&7]
	case 0o60:
		disp, err := c.fetch16()
		if err != nil {
			return 0, err
		}
		addr = disp + c.R[v&7]
	}
	if v&0o10 != 0 {
		w, err := c.read16(addr)
		if err != nil {
			return 0, err
		}
		addr = w
	}
	return int32(addr), nil
}

// memread/memwrite dereference an aget result: negative means "register
// -(a+1)", non-negative is a virtual address.
func (c *CPU) memread(a int32, l uint16) (uint16, error) {
	if a < 0 {
		reg := uint16(-(a + 1))
		if l == 2 {
			return c.R[reg], nil
		}
		return c.R[reg] & 0xFF, nil
	}
	if l == 2 {
		return c.read16(uint16(a))
	}
	b, err := c.read8(uint16(a))
	return uint16(b), err
}

func (c *CPU) memwrite(a int32, l uint16, v uint16) error {
	if a < 0 {
		reg := uint16(-(a + 1))
		if l == 2 {
			c.R[reg] = v
		} else {
			c.R[reg] = (c.R[reg] & 0xFF00) | (v & 0xFF)
		}
		return nil
	}
	if l == 2 {
		return c.write16(uint16(a), v)
	}
	return c.write8(uint16(a), uint8(v))
}

func (c *CPU) branch(o uint16) {
	so := int16(int8(o))
	c.R[7] = uint16(int32(c.R[7]) + int32(so)*2)
}

func boolXor(a, b bool) bool { return a != b }

// Step executes one instruction, then drains the single highest-priority
// pending interrupt if its priority exceeds PSW's current priority field.
// Traps raised mid-instruction (bus errors, MMU faults, invalid opcodes)
// are caught here and redirected through trapAt rather than propagated,
// mirroring the original's try/catch(Trap) wrapper around step().
func (c *CPU) Step() {
	c.ips++
	if !c.waiting {
		if err := c.step(); err != nil {
			if t, ok := err.(*Trap); ok {
				c.trapAt(t.Vector, t.Msg)
			} else {
				panic(err)
			}
		}
	}

	// Interrupts must still be drained while waiting - WAIT's whole point is
	// to sit idle until one arrives, and handleInterrupt is what clears
	// c.waiting. Skipping this block here deadlocks V6's idle loop forever.
	if pri, ok := c.bus.irq.Peek(); ok {
		// Strictly greater: an interrupt at the CPU's own priority level
		// stays pending until the PSW priority drops below it.
		if int(pri.priority) > int((c.PSW>>5)&7) {
			p, _ := c.bus.irq.Take()
			c.handleInterrupt(p.vector)
		}
	}
}

func (c *CPU) step() error {
	c.curPC = c.R[7]
	ia, err := c.decode(c.R[7], false, c.curUser)
	if err != nil {
		return err
	}
	c.R[7] += 2
	instr, err := c.physRead16(ia)
	if err != nil {
		return err
	}
	c.instr = instr

	d := instr & 0o77
	s := (instr & 0o7700) >> 6
	l := uint16(2 - (instr >> 15))
	o := instr & 0xFF

	var max, maxp, msb uint16
	if l == 2 {
		max, maxp, msb = 0xFFFF, 0x7FFF, 0x8000
	} else {
		max, maxp, msb = 0xFF, 0x7F, 0x80
	}

	switch instr & 0o070000 {
	case 0o010000: // MOV
		return c.opMOV(s, d, l, msb)
	case 0o020000: // CMP
		return c.opCMP(s, d, l, max, msb)
	case 0o030000: // BIT
		return c.opBIT(s, d, l, msb)
	case 0o040000: // BIC
		return c.opBIC(s, d, l, max, msb)
	case 0o050000: // BIS
		return c.opBIS(s, d, l, msb)
	}

	switch instr & 0o170000 {
	case 0o060000: // ADD
		return c.opADD(s, d)
	case 0o160000: // SUB
		return c.opSUB(s, d)
	}

	switch instr & 0o177000 {
	case 0o004000: // JSR
		return c.opJSR(s, d, l)
	case 0o070000: // MUL
		return c.opMUL(s, d, l)
	case 0o071000: // DIV
		return c.opDIV(s, d, l)
	case 0o072000: // ASH
		return c.opASH(s, d)
	case 0o073000: // ASHC
		return c.opASHC(s, d)
	case 0o074000: // XOR
		return c.opXOR(s, d)
	case 0o077000: // SOB
		c.R[s&7]--
		if c.R[s&7] != 0 {
			c.R[7] -= (o & 0o77) << 1
		}
		return nil
	}

	switch instr & 0o077700 {
	case 0o005000: // CLR
		return c.opCLR(d, l)
	case 0o005100: // COM
		return c.opCOM(d, l, max, msb)
	case 0o005200: // INC
		return c.opINC(d, l, max, msb)
	case 0o005300: // DEC
		return c.opDEC(d, l, max, maxp, msb)
	case 0o005400: // NEG
		return c.opNEG(d, l, max, msb)
	case 0o005500: // ADC
		return c.opADC(d, l, max, msb)
	case 0o005600: // SBC
		return c.opSBC(d, l, max, msb)
	case 0o005700: // TST
		return c.opTST(d, l, msb)
	case 0o006000: // ROR
		return c.opROR(d, l, max, msb)
	case 0o006100: // ROL
		return c.opROL(d, l, max, msb)
	case 0o006200: // ASR
		return c.opASR(d, l, msb)
	case 0o006300: // ASL
		return c.opASL(d, l, max, msb)
	case 0o006700: // SXT
		return c.opSXT(d, l, max)
	}

	switch instr & 0o177700 {
	case 0o000100: // JMP
		return c.opJMP(d)
	case 0o000300: // SWAB
		return c.opSWAB(d, l)
	case 0o006400: // MARK
		return c.opMARK(instr)
	case 0o006500: // MFPI
		return c.opMFPI(d)
	case 0o006600: // MTPI
		return c.opMTPI(d)
	}

	if instr&0o177770 == 0o000200 { // RTS
		reg := d & 7
		c.R[7] = c.R[reg]
		v, err := c.pop()
		if err != nil {
			return err
		}
		c.R[reg] = v
		return nil
	}

	switch instr & 0o177400 {
	case 0o000400:
		c.branch(o)
		return nil
	case 0o001000:
		if c.PSW&flagZ == 0 {
			c.branch(o)
		}
		return nil
	case 0o001400:
		if c.PSW&flagZ != 0 {
			c.branch(o)
		}
		return nil
	case 0o002000:
		if !boolXor(c.PSW&flagN != 0, c.PSW&flagV != 0) {
			c.branch(o)
		}
		return nil
	case 0o002400:
		if boolXor(c.PSW&flagN != 0, c.PSW&flagV != 0) {
			c.branch(o)
		}
		return nil
	case 0o003000:
		if !boolXor(c.PSW&flagN != 0, c.PSW&flagV != 0) && c.PSW&flagZ == 0 {
			c.branch(o)
		}
		return nil
	case 0o003400:
		if boolXor(c.PSW&flagN != 0, c.PSW&flagV != 0) || c.PSW&flagZ != 0 {
			c.branch(o)
		}
		return nil
	case 0o100000:
		if c.PSW&flagN == 0 {
			c.branch(o)
		}
		return nil
	case 0o100400:
		if c.PSW&flagN != 0 {
			c.branch(o)
		}
		return nil
	case 0o101000:
		if c.PSW&flagC == 0 && c.PSW&flagZ == 0 {
			c.branch(o)
		}
		return nil
	case 0o101400:
		if c.PSW&flagC != 0 || c.PSW&flagZ != 0 {
			c.branch(o)
		}
		return nil
	case 0o102000:
		if c.PSW&flagV == 0 {
			c.branch(o)
		}
		return nil
	case 0o102400:
		if c.PSW&flagV != 0 {
			c.branch(o)
		}
		return nil
	case 0o103000:
		if c.PSW&flagC == 0 {
			c.branch(o)
		}
		return nil
	case 0o103400:
		if c.PSW&flagC != 0 {
			c.branch(o)
		}
		return nil
	}

	if instr&0o177000 == 0o104000 || instr == 3 || instr == 4 { // EMT TRAP IOT BPT
		var vec uint16
		switch {
		case instr&0o177400 == 0o104000:
			vec = vecEMT
		case instr&0o177400 == 0o104400:
			vec = vecTrap
		case instr == 3:
			vec = vecBPT
		default:
			vec = vecIOT
		}
		return c.softwareTrap(vec)
	}

	if instr&0o177740 == 0o240 { // CL?/SE?
		if instr&0o20 != 0 {
			c.PSW |= instr & 0o17
		} else {
			c.PSW &^= instr & 0o17
		}
		return nil
	}

	switch instr {
	case 0o000000: // HALT
		if c.curUser {
			break
		}
		panic(devicePanicf("HALT at %06o\n%s", c.curPC, registerDump(c)))
	case 0o000001: // WAIT
		if c.curUser {
			break
		}
		c.waiting = true
		return nil
	case 0o000002, 0o000006: // RTI, RTT
		pc, err := c.pop()
		if err != nil {
			return err
		}
		c.R[7] = pc
		val, err := c.pop()
		if err != nil {
			return err
		}
		if c.curUser {
			val &= 0o47
			val |= c.PSW & 0o177730
		}
		return c.physWrite16(pswAddr, val)
	case 0o000005: // RESET
		if c.curUser {
			return nil
		}
		c.bus.tty.Reset()
		c.bus.rk.Reset()
		return nil
	case 0o170011: // SETD - ignored, not needed by Unix V6
		return nil
	}

	return &Trap{Vector: vecInval, Msg: fmt.Sprintf("invalid instruction %06o at %06o", instr, c.curPC)}
}

// softwareTrap dispatches EMT/TRAP/IOT/BPT exactly like handleInterrupt,
// but synchronously (no interrupt-queue priority check - these always fire).
func (c *CPU) softwareTrap(vec uint16) error {
	prev := c.PSW
	c.switchmode(false)
	if err := c.push(prev); err != nil {
		return err
	}
	if err := c.push(c.R[7]); err != nil {
		return err
	}
	pc, err := c.physRead16(uint32(vec))
	if err != nil {
		return err
	}
	ps, err := c.physRead16(uint32(vec) + 2)
	if err != nil {
		return err
	}
	c.R[7] = pc
	c.PSW = ps
	if c.prevUser {
		c.PSW |= (1 << 13) | (1 << 12)
	}
	return nil
}

// handleInterrupt vectors to a device interrupt. A fault raised while
// pushing PS/PC onto the (possibly invalid) new kernel stack is a red-stack
// condition and is handled by redStack, matching the original's nested
// try/catch.
func (c *CPU) handleInterrupt(vec uint16) {
	prev := c.PSW
	c.switchmode(false)
	if err := c.push(prev); err != nil {
		c.redStack(err, vec)
		return
	}
	if err := c.push(c.R[7]); err != nil {
		c.redStack(err, vec)
		return
	}
	c.vectorTo(vec)
}

func (c *CPU) vectorTo(vec uint16) {
	pc, err1 := c.physRead16(uint32(vec))
	ps, err2 := c.physRead16(uint32(vec) + 2)
	if err1 != nil || err2 != nil {
		panic(devicePanicf("cpu: unreadable trap vector %03o", vec))
	}
	c.R[7] = pc
	c.PSW = ps
	if c.prevUser {
		c.PSW |= (1 << 13) | (1 << 12)
	}
	c.waiting = false
}

// trapAt is the synchronous-trap counterpart of handleInterrupt: it saves
// PS/PC to the kernel stack and vectors to the trap. msg describes the cause
// of the trap; it is not logged.
func (c *CPU) trapAt(vec uint16, msg string) {
	prev := c.PSW
	c.switchmode(false)
	if err := c.push(prev); err != nil {
		c.redStack(err, vec)
		return
	}
	if err := c.push(c.R[7]); err != nil {
		c.redStack(err, vec)
		return
	}
	c.vectorTo(vec)
}

// redStack handles a fault raised while already handling a trap: per
// spec.md this is unrecoverable except by forcing a bus-error trap off a
// known-good vector, matching the original's "red stack trap" path which
// stashes R7/PS at physical address 0 before forcing vector 4.
func (c *CPU) redStack(cause error, origVec uint16) {
	_ = cause
	_ = origVec
	_ = c.physWrite16(0, c.R[7])
	_ = c.physWrite16(2, c.PSW)
	c.vectorTo(vecBus)
}
