package ir

import (
	"fmt"
	"strings"
)

// Instruction is one IR micro-op: (opcode, fixed-arity argument list, use
// count), per spec §3 "IR instruction (micro-op)". Instructions are SSA:
// each has exactly one defining site, namely this struct itself.
//
// Instructions live in a pool (pool.go) and form an intrusive doubly-linked
// list within their owning Block, the same layout the teacher uses for
// ssa.Instruction inside ssa.basicBlock (rootInstr/currentInstr, next/prev).
type Instruction struct {
	Opcode Opcode

	args    []Value
	Imm     uint64
	ImmKind ImmKind

	result Value

	// useCount is the number of live consumers referencing Result(). Spec
	// §8 "IR well-formedness": this must always equal the number of
	// argument-slot references to it across the block.
	useCount int

	// live is set by the dead-code-elimination pass (internal/optimize)
	// while it walks the use graph; false after the sweep means "remove".
	live bool

	prev, next *Instruction
}

// Result returns the Value this instruction defines, or the invalid Value
// if it has none (e.g. a store).
func (i *Instruction) Result() Value { return i.result }

// Args returns the instruction's argument list. Callers must not retain the
// returned slice across a pool Reset.
func (i *Instruction) Args() []Value { return i.args }

// Arg returns the n-th argument.
func (i *Instruction) Arg(n int) Value { return i.args[n] }

// UseCount returns the current number of live uses of Result().
func (i *Instruction) UseCount() int { return i.useCount }

// AdjustUseCount changes the use count by delta. Exported for the optimizer,
// which must track Block.Cond and Terminator.Cond references itself since
// those aren't reachable through any instruction's Args() (spec §8
// well-formedness, "exact use count").
func (i *Instruction) AdjustUseCount(delta int) { i.useCount += delta }

// HasSideEffect reports whether this instruction's opcode has the
// side-effect flag set in the OpcodeInfo table.
func (i *Instruction) HasSideEffect() bool { return Info(i.Opcode).HasSideEffect }

// Pure reports whether this instruction's opcode is pure (spec §4.3 step 5,
// constant folding is only valid for pure opcodes over immediate operands).
func (i *Instruction) Pure() bool { return Info(i.Opcode).Pure }

// Next returns the next instruction in program order, or nil at block end.
func (i *Instruction) Next() *Instruction { return i.next }

// Prev returns the previous instruction in program order, or nil at block start.
func (i *Instruction) Prev() *Instruction { return i.prev }

func (i *Instruction) reset() {
	i.Opcode = OpcodeInvalid
	i.args = i.args[:0]
	i.Imm = 0
	i.ImmKind = ImmKindNone
	i.result = ValueInvalid
	i.useCount = 0
	i.live = false
	i.prev, i.next = nil, nil
}

// setArgs replaces the argument list, adjusting use counts on both the
// removed and the added argument producers. producerOf resolves a Value to
// the Instruction that defines it (nil for immediates/values outside this
// block), matching the builder's bookkeeping requirement that "use count is
// maintained incrementally by every producer/consumer edge change."
func (i *Instruction) setArgs(args []Value, producerOf func(Value) *Instruction) {
	for _, old := range i.args {
		if p := producerOf(old); p != nil {
			p.useCount--
		}
	}
	i.args = append(i.args[:0], args...)
	for _, a := range i.args {
		if p := producerOf(a); p != nil {
			p.useCount++
		}
	}
}

// replaceArg swaps the argument at index n, adjusting use counts.
func (i *Instruction) replaceArg(n int, v Value, producerOf func(Value) *Instruction) {
	old := i.args[n]
	if p := producerOf(old); p != nil {
		p.useCount--
	}
	i.args[n] = v
	if p := producerOf(v); p != nil {
		p.useCount++
	}
}

// SetArgs is setArgs exported for the optimizer (internal/optimize), which
// maintains its own producerOf map built by walking the block once rather
// than the Builder's incremental one.
func (i *Instruction) SetArgs(args []Value, producerOf func(Value) *Instruction) {
	i.setArgs(args, producerOf)
}

// ReplaceArg is replaceArg exported for the optimizer.
func (i *Instruction) ReplaceArg(n int, v Value, producerOf func(Value) *Instruction) {
	i.replaceArg(n, v, producerOf)
}

// ReplaceWithConst rewrites i in place into an OpIconst carrying value v,
// keeping i's existing Result() identity so every prior reference to it
// stays valid without rewiring (spec §4.3 step 5, "constant propagation /
// folding": "replace uses with the immediate" is realized here by letting
// the producer itself become the immediate rather than rewriting its
// consumers).
func (i *Instruction) ReplaceWithConst(v uint64, producerOf func(Value) *Instruction) {
	i.SetArgs(nil, producerOf)
	i.Opcode = OpIconst
	i.Imm = v
	i.ImmKind = ImmKindInt
}

// NewRawInstruction allocates an unpooled Instruction for optimizer passes
// that splice new instructions into an already-translated block (spec
// §4.3 step 1). result must come from Block.AllocValue (or ValueInvalid
// for side-effect-only instructions); producerOf registers use-count
// bookkeeping for args exactly as the Builder does.
func NewRawInstruction(op Opcode, result Value, imm uint64, immKind ImmKind, args []Value, producerOf func(Value) *Instruction) *Instruction {
	instr := &Instruction{Opcode: op, Imm: imm, ImmKind: immKind, result: result}
	instr.setArgs(args, producerOf)
	return instr
}

// Format renders a debug string, e.g. "v3:u32 = iadd v1, v2".
func (i *Instruction) Format() string {
	var sb strings.Builder
	if i.result.Valid() {
		sb.WriteString(i.result.String())
		sb.WriteString(" = ")
	}
	sb.WriteString(i.Opcode.String())
	parts := make([]string, 0, len(i.args)+1)
	if i.ImmKind != ImmKindNone {
		parts = append(parts, fmt.Sprintf("#%d", i.Imm))
	}
	for _, a := range i.args {
		parts = append(parts, a.String())
	}
	if len(parts) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(parts, ", "))
	}
	return sb.String()
}
