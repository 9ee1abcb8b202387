package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func u64Bytes(v uint64) [16]byte {
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func TestMonitor_ReadThenWriteSucceedsUninterrupted(t *testing.T) {
	m := New()
	mem := map[uint64][16]byte{0x1000: u64Bytes(42)}

	read := func(addr uint64, size int) [16]byte { return mem[addr] }
	cas := func(addr uint64, size int, old, next [16]byte) bool {
		if mem[addr] != old {
			return false
		}
		mem[addr] = next
		return true
	}

	got := m.ExclusiveRead(0, 0x1000, 8, read)
	require.Equal(t, u64Bytes(42), got)

	ok := m.ExclusiveWrite(0, 0x1000, 8, u64Bytes(43), cas)
	require.True(t, ok)
	require.Equal(t, u64Bytes(43), mem[0x1000])
}

// TestMonitor_InterveningWriteFailsCommit exercises spec §8 scenario 5: CPU1
// writes X between CPU0's LDREX/STREX pair, so CPU0's STREX reports failure.
func TestMonitor_InterveningWriteFailsCommit(t *testing.T) {
	m := New()
	mem := map[uint64][16]byte{0x2000: u64Bytes(1)}

	read := func(addr uint64, size int) [16]byte { return mem[addr] }
	cas := func(addr uint64, size int, old, next [16]byte) bool {
		if mem[addr] != old {
			return false
		}
		mem[addr] = next
		return true
	}

	m.ExclusiveRead(0, 0x2000, 8, read) // CPU0 LDREX

	// CPU1 writes X directly (not through the monitor).
	mem[0x2000] = u64Bytes(99)

	ok := m.ExclusiveWrite(0, 0x2000, 8, u64Bytes(2), cas) // CPU0 STREX
	require.False(t, ok)
	require.Equal(t, u64Bytes(99), mem[0x2000])
}

func TestMonitor_WriteWithoutClaimFails(t *testing.T) {
	m := New()
	cas := func(addr uint64, size int, old, next [16]byte) bool {
		t.Fatal("cas must not run without a valid claim")
		return false
	}
	require.False(t, m.ExclusiveWrite(0, 0x3000, 8, u64Bytes(1), cas))
}

func TestMonitor_ClaimConsumedAfterWrite(t *testing.T) {
	m := New()
	mem := map[uint64][16]byte{0x4000: u64Bytes(7)}
	read := func(addr uint64, size int) [16]byte { return mem[addr] }
	cas := func(addr uint64, size int, old, next [16]byte) bool {
		mem[addr] = next
		return true
	}

	m.ExclusiveRead(0, 0x4000, 8, read)
	require.True(t, m.ExclusiveWrite(0, 0x4000, 8, u64Bytes(8), cas))

	// No claim remains: a second STREX without a fresh LDREX must fail.
	require.False(t, m.ExclusiveWrite(0, 0x4000, 8, u64Bytes(9), cas))
}

func TestMonitor_ClearExclusiveStateDropsClaim(t *testing.T) {
	m := New()
	mem := map[uint64][16]byte{0x5000: u64Bytes(5)}
	read := func(addr uint64, size int) [16]byte { return mem[addr] }
	cas := func(addr uint64, size int, old, next [16]byte) bool { return true }

	m.ExclusiveRead(1, 0x5000, 8, read)
	m.ClearExclusiveState(1)
	require.False(t, m.ExclusiveWrite(1, 0x5000, 8, u64Bytes(6), cas))
}

func TestMonitor_DistinctProcessorsIndependentClaims(t *testing.T) {
	m := New()
	mem := map[uint64][16]byte{0x6000: u64Bytes(0)}
	read := func(addr uint64, size int) [16]byte { return mem[addr] }
	cas := func(addr uint64, size int, old, next [16]byte) bool {
		if mem[addr] != old {
			return false
		}
		mem[addr] = next
		return true
	}

	m.ExclusiveRead(0, 0x6000, 8, read)
	m.ExclusiveRead(1, 0x6000, 8, read)

	require.True(t, m.ExclusiveWrite(0, 0x6000, 8, u64Bytes(1), cas))
	// CPU1's snapshot is now stale relative to memory, so its commit fails
	// (spec §8 "Exclusive commit": at most one of two commits succeeds).
	require.False(t, m.ExclusiveWrite(1, 0x6000, 8, u64Bytes(2), cas))
}
