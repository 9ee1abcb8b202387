package optimize

// Config is the small surrounding configuration passes may consult, never
// mutate (spec §4.3: "Passes are pure functions over the block and its
// (small) surrounding config. Passes may never observe or depend on
// host-backend state.").
type Config struct {
	// HookDataCacheOperations disables pass 1's A32 zero-by-VA expansion
	// when true. It has no other effect on pass 1: every A32 DC op is
	// removed from the block either way.
	HookDataCacheOperations bool

	// IsReadOnly reports whether an 8-byte-aligned guest address range
	// [addr, addr+size) is backed by memory the callback promises never
	// changes, enabling pass 4's constant-memory-read folding.
	IsReadOnly func(addr uint64, size int) bool

	// ReadConst returns the current value at a guest address IsReadOnly has
	// already approved, sized in bytes (1, 2, 4, or 8). Only consulted after
	// IsReadOnly returns true, so it never needs to model writable memory.
	ReadConst func(addr uint64, size int) uint64

	// A64 enables pass 7's merge-interpret-blocks, an A64-only pass (spec
	// §4.3 step 7).
	A64 bool
}
