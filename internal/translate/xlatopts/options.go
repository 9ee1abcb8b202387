// Package xlatopts holds the types shared by the translate entry point and
// every architecture-specific translator, split into a leaf package so
// a32/thumb/a64 can depend on them without importing the dispatching
// internal/translate package itself.
package xlatopts

// MemReadFunc reads the 32-bit code word containing the requested PC,
// regardless of guest instruction size (spec §4.2 "Translator").
type MemReadFunc func(pc uint64) uint32

// Options configures one Translate call (spec §4.2, §4.3 step 1).
type Options struct {
	// MaxInstructions bounds block length (spec §4.2 contract (b)).
	MaxInstructions int

	// DefineUnpredictableBehaviour, when true, maps unpredictable
	// encodings to defined per-instruction behavior instead of raising
	// UnpredictableInstruction (spec §4.2 "Error policy").
	DefineUnpredictableBehaviour bool

	// SingleStep forces the block to terminate after one guest
	// instruction (spec §4.2 contract (d)).
	SingleStep bool

	// HookDataCacheOperations, when false, lets the A64 translator lower
	// DC ZVA to explicit zeroing stores instead of emitting a
	// DataCacheOperationRaised op (spec §8 scenario 3).
	HookDataCacheOperations bool

	// DCZIDEL0 models the A64 DCZID_EL0 register's block-size field: the
	// DC ZVA zeroed region is 4 << DCZIDEL0 bytes (spec §8 scenario 3:
	// "dczid_el0=4 (block size 64 bytes)" — 4 << 4 == 64).
	DCZIDEL0 uint32
}

// DCZVABlockSize returns the DC ZVA zeroed-region size in bytes.
func (o Options) DCZVABlockSize() uint32 { return 4 << o.DCZIDEL0 }
