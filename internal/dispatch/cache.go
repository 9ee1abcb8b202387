// Package dispatch implements the block cache and run loop (spec §4.6):
// given a guest location, find or compile the host code for it, resolve
// pending cross-block patch sites, and hand back an entrypoint. Grounded on
// the teacher's engine-level maps (wazevo.go's compiledModules/mux) for the
// "small sync-guarded map owned by one type" shape, generalized here to
// also track the three patch-site lists spec §4.5 "Patching" requires.
package dispatch

import (
	"sync"

	"github.com/dynarm/dynarm/internal/ir"
)

// BlockDescriptor is everything the cache keeps per compiled block.
type BlockDescriptor struct {
	Loc        ir.Location
	CodeOffset int // relative to the emitted-code region's base
}

// PatchKind distinguishes the three site lists (spec §4.5 "Patching").
type PatchKind int

const (
	PatchCondJump PatchKind = iota
	PatchJump
	PatchMovImm
)

// ResolvedPatches is the set of previously-pending sites, by kind, that
// are now resolvable to loc's freshly assigned entrypoint.
type ResolvedPatches struct {
	CondJumpSites []int
	JumpSites     []int
	MovImmSites   []int
}

// Cache maps guest locations to compiled blocks and tracks pending patch
// sites targeting not-yet-compiled locations (spec §4.6 "Cache miss path":
// "resolve any pending patch sites for this location").
type Cache struct {
	mu sync.Mutex

	blocks map[ir.Location]*BlockDescriptor

	pendingCond   map[ir.Location][]int
	pendingJump   map[ir.Location][]int
	pendingMovImm map[ir.Location][]int

	// ranges supports range-based invalidation (spec §4.6 "Invalidation"):
	// each compiled block's guest location is recorded so InvalidateRange
	// can find every descriptor whose Loc.PC falls in [start, end).
	ranges []ir.Location
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		blocks:        make(map[ir.Location]*BlockDescriptor),
		pendingCond:   make(map[ir.Location][]int),
		pendingJump:   make(map[ir.Location][]int),
		pendingMovImm: make(map[ir.Location][]int),
	}
}

// Lookup returns the descriptor for loc, if already compiled.
func (c *Cache) Lookup(loc ir.Location) (*BlockDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.blocks[loc]
	return d, ok
}

// AddPending records that a not-yet-compiled block's forward reference (at
// absolute region offset site, of the given kind) must be patched once loc
// is compiled.
func (c *Cache) AddPending(loc ir.Location, kind PatchKind, site int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case PatchCondJump:
		c.pendingCond[loc] = append(c.pendingCond[loc], site)
	case PatchJump:
		c.pendingJump[loc] = append(c.pendingJump[loc], site)
	case PatchMovImm:
		c.pendingMovImm[loc] = append(c.pendingMovImm[loc], site)
	}
}

// Insert records a freshly compiled block at entryOffset and returns the
// patch sites (across all three kinds) that were pending on loc, now
// resolvable to entryOffset (spec §4.5 "When the target compiles, each
// list is drained and rewritten").
func (c *Cache) Insert(loc ir.Location, entryOffset int) *ResolvedPatches {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks[loc] = &BlockDescriptor{Loc: loc, CodeOffset: entryOffset}
	c.ranges = append(c.ranges, loc)

	resolved := &ResolvedPatches{
		CondJumpSites: c.pendingCond[loc],
		JumpSites:     c.pendingJump[loc],
		MovImmSites:   c.pendingMovImm[loc],
	}
	delete(c.pendingCond, loc)
	delete(c.pendingJump, loc)
	delete(c.pendingMovImm, loc)
	return resolved
}

// ClearAll implements full invalidation (spec §4.6 "Invalidation": "clear
// everything and reset the emitted-code high-water pointer"). The caller
// is responsible for resetting the region's high-water mark, which
// Dispatcher.InvalidateAll does; neither resets the guest-state RSB or
// fast-dispatch slots, which emitted code does not read.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = make(map[ir.Location]*BlockDescriptor)
	c.pendingCond = make(map[ir.Location][]int)
	c.pendingJump = make(map[ir.Location][]int)
	c.pendingMovImm = make(map[ir.Location][]int)
	c.ranges = nil
}

// InvalidateRange implements range-based invalidation: every compiled
// block whose guest PC falls in [start, end) is removed from the cache
// (spec §4.6: "use the PC-range interval map to find affected blocks, ...
// mark them gone"). Un-patching their incoming links is the caller's
// responsibility (Dispatcher.InvalidateRange), since only it holds the
// Region needed to rewrite bytes back to trampoline-bound form.
func (c *Cache) InvalidateRange(start, end uint64) []*BlockDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed []*BlockDescriptor
	kept := c.ranges[:0]
	for _, loc := range c.ranges {
		if loc.PC >= start && loc.PC < end {
			if d, ok := c.blocks[loc]; ok {
				removed = append(removed, d)
				delete(c.blocks, loc)
			}
			continue
		}
		kept = append(kept, loc)
	}
	c.ranges = kept
	return removed
}
