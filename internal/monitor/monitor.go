// Package monitor implements the cross-processor exclusive-access arbiter
// for LL/SC-style atomics (spec §4.7 "Exclusive monitor"): ExclusiveRead
// claims an address and snapshots its value, ExclusiveWrite validates the
// claim with a compare-and-swap, and ClearExclusiveState drops it. Modeled
// as a process-global table indexed by processor_id, the same
// "lazy-initialized, internally synchronized, one registry, never
// multiplexed by instance" shape spec §9 "Design notes: Global state"
// prescribes for the signal-handler registry (internal/fastmem), applied
// here to the monitor instead.
package monitor

import "sync"

// Global is the process-wide exclusive monitor. One instance serves every
// CPU in the process unless an embedding supplies its own (spec §6
// "global_monitor: shared exclusive monitor instance, or absent").
var Global = New()

// claim is one processor's outstanding exclusive-access reservation.
type claim struct {
	held bool
	addr uint64
	size int
	// snapshot holds up to 16 bytes (the widest exclusive access, 128-bit
	// STXP-style pairs) so ExclusiveWrite can detect any intervening
	// write, not only ones from other processors holding this monitor.
	snapshot [16]byte
}

// Monitor is a table of per-processor claims guarded by one mutex. A real
// LL/SC implementation would use a per-cache-line compare-and-swap against
// live memory; this exercise's monitor instead snapshots the watched bytes
// at claim time and compares them again at commit time, which is
// sufficient to detect the interleavings spec §8 scenario 5 tests
// (concurrent writes from another processor) without requiring the
// watched address to be backed by a Go-visible atomic type.
type Monitor struct {
	mu     sync.Mutex
	claims map[uint32]*claim
}

// New returns an empty monitor.
func New() *Monitor {
	return &Monitor{claims: make(map[uint32]*claim)}
}

// MemReadFunc reads size bytes (1, 2, 4, 8, or 16) at addr, used to
// populate and re-check a claim's snapshot.
type MemReadFunc func(addr uint64, size int) [16]byte

// MemCASFunc attempts to atomically replace the size bytes at addr with
// newVal, succeeding only if the current bytes equal oldVal. It returns
// whether the swap committed.
type MemCASFunc func(addr uint64, size int, oldVal, newVal [16]byte) bool

// ExclusiveRead records processorID's claim on addr and returns the
// current value, read via mem (spec §4.7: "loads the value and records the
// claim").
func (m *Monitor) ExclusiveRead(processorID uint32, addr uint64, size int, mem MemReadFunc) [16]byte {
	val := mem(addr, size)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[processorID] = &claim{held: true, addr: addr, size: size, snapshot: val}
	return val
}

// ExclusiveWrite validates processorID's claim against addr/size and, if
// still valid, attempts cas; it reports success (spec §4.7: "validates the
// claim, compares the snapshot to the current value in memory, and uses a
// host compare-and-swap to atomically commit or fail"). Any claim is
// consumed by this call, matching STREX's architectural effect of
// clearing the local monitor on either outcome.
func (m *Monitor) ExclusiveWrite(processorID uint32, addr uint64, size int, newVal [16]byte, cas MemCASFunc) bool {
	m.mu.Lock()
	c, ok := m.claims[processorID]
	delete(m.claims, processorID)
	m.mu.Unlock()

	if !ok || !c.held || c.addr != addr || c.size != size {
		return false
	}
	return cas(addr, size, c.snapshot, newVal)
}

// ClearExclusiveState drops processorID's claim without validating it
// (spec §4.7: "invalidates the local claim").
func (m *Monitor) ClearExclusiveState(processorID uint32) {
	m.mu.Lock()
	delete(m.claims, processorID)
	m.mu.Unlock()
}
