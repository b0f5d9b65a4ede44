// interrupt.go - Prioritized interrupt queue for the PDP-11 core

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

/*
interrupt.go - Interrupt Queue

The PDP-11's interrupt scheme is priority-ordered: the CPU drains the highest
priority pending interrupt at each instruction boundary when its PSW priority
allows it. Multiple devices (the line clock, the TTY, the RK05) can post an
interrupt concurrently from their own goroutines, while only the CPU thread
ever calls Take. The queue is therefore a small multi-producer/single-consumer
structure guarded by a single mutex - a lock-protected slice is sufficient
given the bounded population (clock, TTY-in, TTY-out, RK, at most a handful of
entries at any one time).

Ordering: higher priority first; ties broken by lower vector first. This
matches spec.md's Pending Interrupt total order exactly.
*/

package main

import "sync"

// Interrupt vectors (octal), per the PDP-11/40 bootstrap and trap contract.
const (
	vecBus      = 0o004
	vecInval    = 0o010
	vecBPT      = 0o014
	vecIOT      = 0o020
	vecEMT      = 0o030
	vecTrap     = 0o034
	vecTTYIn    = 0o060
	vecTTYOut   = 0o064
	vecClock    = 0o100
	vecRK       = 0o220
	vecMMUFault = 0o250
)

// Priority of each interrupt source, as posted by the owning device.
const (
	prioTTYIn = 4
	prioRK    = 5
	prioClock = 6
)

// pendingInterrupt is a single (vector, priority) entry awaiting dispatch.
type pendingInterrupt struct {
	vector   uint16
	priority uint8
}

// interruptQueue is the ordered set of pending interrupts. Safe for
// concurrent Post calls from any device thread; Peek/Take are intended
// for the single CPU thread but are themselves safe to call from anywhere.
type interruptQueue struct {
	mu      sync.Mutex
	pending []pendingInterrupt
}

func newInterruptQueue() *interruptQueue {
	return &interruptQueue{}
}

// Post inserts a new pending interrupt into the queue. Posting with an odd
// vector is a programmer error - every PDP-11 trap/interrupt vector is even
// by construction, so this panics rather than silently corrupting state.
func (q *interruptQueue) Post(vector uint16, priority uint8) {
	if vector&1 != 0 {
		panic(devicePanicf("interrupt queue: odd vector %03o posted at priority %d", vector, priority))
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, pendingInterrupt{vector: vector, priority: priority})
}

// Peek returns the highest-priority pending entry (ties broken by lower
// vector) without removing it, and whether one exists.
func (q *interruptQueue) Peek() (pendingInterrupt, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.highestLocked()
}

// Take removes and returns the highest-priority pending entry.
func (q *interruptQueue) Take() (pendingInterrupt, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	best, ok := q.highestLocked()
	if !ok {
		return pendingInterrupt{}, false
	}
	for i, p := range q.pending {
		if p == best {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	return best, true
}

// PendingPriority reports the priority of the current highest-priority
// entry, or -1 if the queue is empty, without removing the entry. (The CPU's
// drain check uses Peek.)
func (q *interruptQueue) PendingPriority() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	best, ok := q.highestLocked()
	if !ok {
		return -1
	}
	return int(best.priority)
}

// Reset clears all pending interrupts.
func (q *interruptQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = q.pending[:0]
}

func (q *interruptQueue) highestLocked() (pendingInterrupt, bool) {
	if len(q.pending) == 0 {
		return pendingInterrupt{}, false
	}
	best := q.pending[0]
	for _, p := range q.pending[1:] {
		if p.priority > best.priority || (p.priority == best.priority && p.vector < best.vector) {
			best = p
		}
	}
	return best, true
}
