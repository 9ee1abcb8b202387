package dispatch

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/dynarm/dynarm/internal/ir"
	"github.com/dynarm/dynarm/internal/optimize"
	"github.com/dynarm/dynarm/internal/state"
	"github.com/dynarm/dynarm/internal/translate"
)

// retWord is RET Xn with n=0, encoded per the A64 decode table.
const retWord = 0xd65f0000

// dcZvaWord is DC ZVA, Xt with t=0, encoded per the A64 decode table.
const dcZvaWord = 0xd5091c00

func newTestDispatcher(t *testing.T, mem translate.MemReadFunc, opts translate.Options) *Dispatcher {
	t.Helper()
	d, err := New(mem, opts, &optimize.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.region.Release() })
	return d
}

func TestDispatcher_ResolveCachesRepeatLookup(t *testing.T) {
	mem := func(pc uint64) uint32 { return retWord }
	d := newTestDispatcher(t, mem, translate.Options{})
	loc := ir.NewA64Location(0x1000, 0, false)
	b := ir.NewBuilder()

	entry1, err := d.Resolve(b, loc)
	require.NoError(t, err)

	desc, ok := d.cache.Lookup(loc)
	require.True(t, ok)
	require.Equal(t, entry1, desc.CodeOffset)

	entry2, err := d.Resolve(b, loc)
	require.NoError(t, err)
	require.Equal(t, entry1, entry2)
}

// TestDispatcher_ResolvePatchesPendingJumpSite compiles a block whose
// terminator links to a second, not-yet-compiled location, then compiles
// that second location and checks the first block's jump site was rewritten
// to point at it (spec §4.5 "Patching").
func TestDispatcher_ResolvePatchesPendingJumpSite(t *testing.T) {
	locA := ir.NewA64Location(0x2000, 0, false)
	locB := ir.NewA64Location(0x2004, 0, false)

	mem := func(pc uint64) uint32 {
		switch pc {
		case locA.PC:
			return dcZvaWord
		case locB.PC:
			return retWord
		default:
			t.Fatalf("unexpected guest PC read: %#x", pc)
			return 0
		}
	}
	// MaxInstructions=1 forces locA's single DC ZVA to terminate the block
	// with a LinkBlockFast to locB, rather than decoding past it. DCZIDEL0=0
	// gives a 4-byte DCZVABlockSize, so the zeroing is four byte stores.
	opts := translate.Options{MaxInstructions: 1, DCZIDEL0: 0}
	d := newTestDispatcher(t, mem, opts)
	b := ir.NewBuilder()

	_, err := d.Resolve(b, locA)
	require.NoError(t, err)

	_, pending := d.cache.Lookup(locB)
	require.False(t, pending, "locB must not be cached yet")

	d.mu.Lock()
	sites := append([]int{}, d.cache.pendingJump[locB]...)
	d.mu.Unlock()
	require.NotEmpty(t, sites, "locA's jump to locB should be pending")

	entryB, err := d.Resolve(b, locB)
	require.NoError(t, err)

	for _, off := range sites {
		rel := int32(uint32(d.region.mem.Bytes()[off]) |
			uint32(d.region.mem.Bytes()[off+1])<<8 |
			uint32(d.region.mem.Bytes()[off+2])<<16 |
			uint32(d.region.mem.Bytes()[off+3])<<24)
		require.Equal(t, int32(entryB-(off+4)), rel)
	}
}

func TestDispatcher_InvalidateAllClearsCacheAndRegion(t *testing.T) {
	mem := func(pc uint64) uint32 { return retWord }
	d := newTestDispatcher(t, mem, translate.Options{})
	loc := ir.NewA64Location(0x3000, 0, false)
	b := ir.NewBuilder()

	_, err := d.Resolve(b, loc)
	require.NoError(t, err)
	_, ok := d.cache.Lookup(loc)
	require.True(t, ok)

	d.InvalidateAll()

	_, ok = d.cache.Lookup(loc)
	require.False(t, ok)
	require.Equal(t, 0, d.region.highWater)
}

func TestDispatcher_SetHaltAndTicks(t *testing.T) {
	buf := make([]byte, state.TotalSize)
	ptr := unsafe.Pointer(&buf[0])

	require.Equal(t, int64(0), GetTicksRemaining(ptr))
	AddTicks(ptr, 5)
	require.Equal(t, int64(0), GetTicksRemaining(ptr), "AddTicks updates ticks-consumed, not ticks-remaining")
	require.Equal(t, int64(5), *(*int64)(unsafe.Pointer(uintptr(ptr) + uintptr(state.TicksConsumedOffset))))

	SetHalt(ptr, true)
	require.Equal(t, uint64(1), *(*uint64)(unsafe.Pointer(uintptr(ptr) + uintptr(state.HaltOffset))))
	SetHalt(ptr, false)
	require.Equal(t, uint64(0), *(*uint64)(unsafe.Pointer(uintptr(ptr) + uintptr(state.HaltOffset))))
}
