package amd64

import "encoding/binary"

// constPoolEntryBytes is one pool slot's width: a full 128 bits (low qword
// then high qword), wide enough for both a plain 64-bit immediate (high
// half zero) and a future 128-bit vector constant without changing the
// addressing scheme.
const constPoolEntryBytes = 16

// ConstPool is the emitted-code region's deduplicating constant-pool
// sub-region (spec §4.5 "Constant pool"; glossary: "Region in the
// emitted-code allocation holding deduplicated immediate operands
// addressed relative to the host instruction pointer"). One ConstPool is
// block-scoped: Emitter.Lower resets it per block and appends its bytes
// after the block's code, the same way the block's patch-site lists never
// survive past the block that produced them.
type ConstPool struct {
	offsets map[[2]uint64]int
	data    []byte
}

// Add returns the byte offset of the (lo, hi) pair within the pool,
// appending a new 16-byte entry only the first time this exact pair is
// seen (spec §8: "Encoding any immediate to the constant pool twice yields
// the same pool offset").
func (p *ConstPool) Add(lo, hi uint64) int {
	key := [2]uint64{lo, hi}
	if off, ok := p.offsets[key]; ok {
		return off
	}
	if p.offsets == nil {
		p.offsets = make(map[[2]uint64]int)
	}
	off := len(p.data)
	var b [constPoolEntryBytes]byte
	binary.LittleEndian.PutUint64(b[0:8], lo)
	binary.LittleEndian.PutUint64(b[8:16], hi)
	p.data = append(p.data, b[:]...)
	p.offsets[key] = off
	return off
}

// Bytes returns the pool's accumulated bytes.
func (p *ConstPool) Bytes() []byte { return p.data }

// Len reports the pool's current size in bytes.
func (p *ConstPool) Len() int { return len(p.data) }
