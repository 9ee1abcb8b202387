package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynarm/dynarm/internal/ir"
)

func TestCache_LookupMissThenInsert(t *testing.T) {
	c := NewCache()
	loc := ir.NewA64Location(0x100, 0, false)

	_, ok := c.Lookup(loc)
	require.False(t, ok)

	c.Insert(loc, 42)

	desc, ok := c.Lookup(loc)
	require.True(t, ok)
	require.Equal(t, 42, desc.CodeOffset)
}

func TestCache_PendingSitesDrainOnInsert(t *testing.T) {
	c := NewCache()
	target := ir.NewA64Location(0x200, 0, false)

	c.AddPending(target, PatchCondJump, 10)
	c.AddPending(target, PatchJump, 20)
	c.AddPending(target, PatchJump, 24)
	c.AddPending(target, PatchMovImm, 30)

	resolved := c.Insert(target, 100)
	require.Equal(t, []int{10}, resolved.CondJumpSites)
	require.Equal(t, []int{20, 24}, resolved.JumpSites)
	require.Equal(t, []int{30}, resolved.MovImmSites)

	// A second Insert for the same location (recompilation after
	// invalidation) must not redeliver already-drained sites.
	resolved2 := c.Insert(target, 200)
	require.Empty(t, resolved2.CondJumpSites)
	require.Empty(t, resolved2.JumpSites)
	require.Empty(t, resolved2.MovImmSites)
}

func TestCache_InvalidateRangeRemovesOnlyMatchingBlocks(t *testing.T) {
	c := NewCache()
	in := ir.NewA64Location(0x1000, 0, false)
	out := ir.NewA64Location(0x2000, 0, false)

	c.Insert(in, 0)
	c.Insert(out, 16)

	removed := c.InvalidateRange(0x1000, 0x2000)
	require.Len(t, removed, 1)
	require.Equal(t, in, removed[0].Loc)

	_, ok := c.Lookup(in)
	require.False(t, ok)
	_, ok = c.Lookup(out)
	require.True(t, ok)
}

func TestCache_ClearAllRemovesEverything(t *testing.T) {
	c := NewCache()
	loc := ir.NewA64Location(0x3000, 0, false)
	c.Insert(loc, 0)
	c.AddPending(ir.NewA64Location(0x3004, 0, false), PatchJump, 4)

	c.ClearAll()

	_, ok := c.Lookup(loc)
	require.False(t, ok)
	require.Empty(t, c.InvalidateRange(0, 1<<32))
}
