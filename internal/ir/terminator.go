package ir

import "fmt"

// TermKind tags the Terminator union (spec §3 "Terminator").
type TermKind byte

const (
	TermInvalid TermKind = iota
	TermInterpret
	TermReturnToDispatch
	TermLinkBlock
	TermLinkBlockFast
	TermPopRSBHint
	TermFastDispatchHint
	TermIf
	TermCheckBit
	TermCheckHalt
)

// maxTerminatorDepth bounds the structural nesting of If/CheckBit/CheckHalt
// terminators (spec §3: "Nesting ... is bounded and structural"). Real
// guest sequences need at most CheckHalt wrapping a CheckBit wrapping a
// leaf; 8 leaves ample headroom without making a pathological translator
// bug silently produce an unbounded tree.
const maxTerminatorDepth = 8

// Terminator is the symbolic exit of a Block (spec §3). Only the fields
// relevant to Kind are valid; this is a tagged union realized as a struct
// because Go has none, mirroring how the teacher flattens per-opcode data
// onto ssa.Instruction itself ("Since Go doesn't have union type, we use
// this flattened type for all instructions").
type Terminator struct {
	Kind TermKind

	// Loc is valid for TermInterpret, TermLinkBlock, TermLinkBlockFast.
	Loc Location

	// Cond is valid for TermIf: a u1 Value that must be live at block exit.
	Cond Value

	// Then/Else are valid for TermIf and TermCheckBit.
	Then, Else *Terminator

	// Inner is valid for TermCheckHalt.
	Inner *Terminator
}

func Interpret(loc Location) *Terminator        { return &Terminator{Kind: TermInterpret, Loc: loc} }
func ReturnToDispatch() *Terminator              { return &Terminator{Kind: TermReturnToDispatch} }
func LinkBlock(loc Location) *Terminator         { return &Terminator{Kind: TermLinkBlock, Loc: loc} }
func LinkBlockFast(loc Location) *Terminator     { return &Terminator{Kind: TermLinkBlockFast, Loc: loc} }
func PopRSBHint() *Terminator                    { return &Terminator{Kind: TermPopRSBHint} }
func FastDispatchHint() *Terminator               { return &Terminator{Kind: TermFastDispatchHint} }

// If builds an If terminator. cond must be a TypeU1 value.
func If(cond Value, then, els *Terminator) *Terminator {
	return &Terminator{Kind: TermIf, Cond: cond, Then: then, Else: els}
}

// CheckBit builds a CheckBit terminator (spec §4.5: used for CBZ/CBNZ-style late conditions).
func CheckBit(then, els *Terminator) *Terminator {
	return &Terminator{Kind: TermCheckBit, Then: then, Else: els}
}

// CheckHalt wraps inner with a halt-flag check (spec §4.6 "Halt semantics").
func CheckHalt(inner *Terminator) *Terminator {
	return &Terminator{Kind: TermCheckHalt, Inner: inner}
}

// Depth returns the structural nesting depth, 1 for a leaf.
func (t *Terminator) Depth() int {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case TermIf, TermCheckBit:
		d := t.Then.Depth()
		if e := t.Else.Depth(); e > d {
			d = e
		}
		return 1 + d
	case TermCheckHalt:
		return 1 + t.Inner.Depth()
	default:
		return 1
	}
}

// Validate enforces the bounded-nesting invariant and that every leaf is a
// recognized terminal kind.
func (t *Terminator) Validate() error {
	if t == nil {
		return fmt.Errorf("ir: nil terminator")
	}
	if d := t.Depth(); d > maxTerminatorDepth {
		return fmt.Errorf("ir: terminator nesting depth %d exceeds bound %d", d, maxTerminatorDepth)
	}
	switch t.Kind {
	case TermInterpret, TermReturnToDispatch, TermLinkBlock, TermLinkBlockFast, TermPopRSBHint, TermFastDispatchHint:
		return nil
	case TermIf, TermCheckBit:
		if err := t.Then.Validate(); err != nil {
			return err
		}
		return t.Else.Validate()
	case TermCheckHalt:
		return t.Inner.Validate()
	default:
		return fmt.Errorf("ir: invalid terminator kind %d", t.Kind)
	}
}

// String implements fmt.Stringer for debugging.
func (t *Terminator) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TermInterpret:
		return fmt.Sprintf("interpret(%#x)", t.Loc.PC)
	case TermReturnToDispatch:
		return "return_to_dispatch"
	case TermLinkBlock:
		return fmt.Sprintf("link_block(%#x)", t.Loc.PC)
	case TermLinkBlockFast:
		return fmt.Sprintf("link_block_fast(%#x)", t.Loc.PC)
	case TermPopRSBHint:
		return "pop_rsb_hint"
	case TermFastDispatchHint:
		return "fast_dispatch_hint"
	case TermIf:
		return fmt.Sprintf("if(%s, %s, %s)", t.Cond, t.Then, t.Else)
	case TermCheckBit:
		return fmt.Sprintf("check_bit(%s, %s)", t.Then, t.Else)
	case TermCheckHalt:
		return fmt.Sprintf("check_halt(%s)", t.Inner)
	default:
		return "<invalid>"
	}
}
