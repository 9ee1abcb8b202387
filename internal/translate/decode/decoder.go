// Package decode implements a table-driven bit-pattern matcher shared by
// every architectural sub-domain's instruction decoder (spec §4.2
// "Decoder"). It has no wazero analog: wasm opcodes are single bytes
// switched on directly (frontend/lower.go), while ARM encodings require
// matching and binding named bit-fields within a fixed-width word.
package decode

import "fmt"

// Entry is one (bit-pattern, visitor) row in a decode table. V is the
// per-architecture visitor type (e.g. a32's *visitor); the resolved field
// values are passed to Visit as a Fields map keyed by field name.
type Entry[V any] struct {
	Name   string
	Bits   string
	mask   uint32
	value  uint32
	fields map[byte]fieldSpan
	Visit  func(v V, f Fields) bool
}

type fieldSpan struct {
	// hi, lo are bit positions (31 = MSB-first in the pattern string),
	// inclusive, of one contiguous run of a named field character.
	hi, lo int
}

// Fields is the set of named bit-fields bound by a successful match,
// keyed by the single-character field name used in the pattern string.
type Fields map[byte]uint32

// Table is an ordered, construction-time-validated list of Entry.
type Table[V any] struct {
	entries []Entry[V]
}

// New parses pattern strings eagerly and detects overlapping (ambiguous)
// entries at construction time (spec §4.2: "ambiguous overlap is a
// decoder-construction error, not a runtime error").
func New[V any](width int, rows []Entry[V]) *Table[V] {
	t := &Table[V]{entries: make([]Entry[V], len(rows))}
	for i, r := range rows {
		mask, value, fields := parsePattern(r.Bits, width)
		r.mask, r.value, r.fields = mask, value, fields
		t.entries[i] = r
	}
	for i := range t.entries {
		for j := i + 1; j < len(t.entries); j++ {
			if overlaps(t.entries[i], t.entries[j]) {
				panic(fmt.Sprintf("decode: ambiguous patterns %q and %q overlap",
					t.entries[i].Name, t.entries[j].Name))
			}
		}
	}
	return t
}

// parsePattern reads a fixed-width pattern string of '0', '1', and
// field-name characters (any other rune), MSB-first, and returns the
// fixed-bit mask/value plus the bit-span of every named field.
func parsePattern(bits string, width int) (mask, value uint32, fields map[byte]fieldSpan) {
	runes := []rune(bits)
	if len(runes) != width {
		panic(fmt.Sprintf("decode: pattern %q has %d bits, want %d", bits, len(runes), width))
	}
	fields = make(map[byte]fieldSpan)
	for i, r := range runes {
		bitPos := width - 1 - i
		switch r {
		case '0':
			mask |= 1 << uint(bitPos)
		case '1':
			mask |= 1 << uint(bitPos)
			value |= 1 << uint(bitPos)
		default:
			c := byte(r)
			sp, ok := fields[c]
			if !ok {
				fields[c] = fieldSpan{hi: bitPos, lo: bitPos}
			} else {
				sp.lo = bitPos
				fields[c] = sp
			}
		}
	}
	return mask, value, fields
}

// overlaps reports whether any word could match both a and b's fixed bits.
func overlaps[V any](a, b Entry[V]) bool {
	common := a.mask & b.mask
	return (a.value & common) == (b.value & common)
}

// Decode finds the first matching entry for word and invokes its Visit
// callback, returning (continue-block, matched). A false matched means no
// entry's fixed bits were satisfied — an undefined encoding.
func (t *Table[V]) Decode(word uint32, v V) (cont bool, matched bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if word&e.mask != e.value {
			continue
		}
		f := make(Fields, len(e.fields))
		for name, sp := range e.fields {
			width := sp.hi - sp.lo + 1
			f[name] = (word >> uint(sp.lo)) & ((1 << uint(width)) - 1)
		}
		return e.Visit(v, f), true
	}
	return false, false
}
