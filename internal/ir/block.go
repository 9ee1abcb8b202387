package ir

// Block is a single-entry/single-exit straight-line sequence of
// instructions ending in exactly one Terminator (spec §3 "IR block").
// Unlike the teacher's basicBlock, a Block has no parameters and no
// predecessor/successor edges at the IR level: intra-block branches do not
// exist, and inter-block control flow is entirely the dispatcher's concern
// (internal/dispatch), expressed only through Terminator targets.
type Block struct {
	id basicBlockID

	Entry Location

	// Cond, when non-nil, must hold for the entire block to execute (spec
	// §3: "used by Thumb IT blocks"). CondFailLoc/CondFailCycles apply only
	// when Cond != nil.
	Cond         Value
	CondFailLoc  Location
	CondFailCycles uint32

	Cycles uint32

	Term *Terminator

	rootInstr, tailInstr *Instruction

	termSet bool

	// nextAllocID backs AllocValue, lazily initialized from the highest
	// ValueID already in use. Only the optimizer (internal/optimize)
	// allocates values post-construction; the Builder's own counter is
	// unrelated and never touches this field.
	nextAllocID ValueID
	nextAllocSet bool
}

type basicBlockID uint32

// init initializes (or re-initializes, if taken from a pool) a Block
// for entry point loc.
func (b *Block) init(id basicBlockID, loc Location) {
	b.id = id
	b.Entry = loc
	b.Cond = ValueInvalid
	b.CondFailLoc = Location{}
	b.CondFailCycles = 0
	b.Cycles = 0
	b.Term = nil
	b.rootInstr, b.tailInstr = nil, nil
	b.termSet = false
	b.nextAllocID, b.nextAllocSet = 0, false
}

func (b *Block) reset() { b.init(b.id, Location{}) }

// ID returns a small dense identifier, stable only within one compilation.
func (b *Block) ID() basicBlockID { return b.id }

// Root returns the first instruction, or nil if the block is empty.
func (b *Block) Root() *Instruction { return b.rootInstr }

// IsConditional reports whether this block carries a block-level condition.
func (b *Block) IsConditional() bool { return b.Cond.Valid() }

// TerminatorSet reports whether SetTerminator has already been called.
// Emission after this is a caller bug (spec §4.1 "Well-formedness").
func (b *Block) TerminatorSet() bool { return b.termSet }

// InsertInstruction appends instr to the tail of the block. The caller
// (ir.Builder) is responsible for having already set instr.result and
// initial arg use counts.
func (b *Block) InsertInstruction(instr *Instruction) {
	if b.termSet {
		panic("BUG: instruction emitted after this block's terminator was set")
	}
	if b.tailInstr != nil {
		b.tailInstr.next = instr
		instr.prev = b.tailInstr
	} else {
		b.rootInstr = instr
	}
	b.tailInstr = instr
}

// SetTerminator installs the block's terminator. May be called exactly
// once; a second call panics, matching spec §4.1's "further emission after
// terminator-set is a caller bug."
func (b *Block) SetTerminator(term *Terminator) {
	if b.termSet {
		panic("BUG: terminator set twice on the same block")
	}
	if err := term.Validate(); err != nil {
		panic("BUG: " + err.Error())
	}
	b.Term = term
	b.termSet = true
}

// SetCondition fixes the block-level condition the first time it is
// called; subsequent calls must agree or the translator should instead end
// the block (spec §4.2 "Conditional execution").
func (b *Block) SetCondition(cond Value, failLoc Location, failCycles uint32) {
	b.Cond = cond
	b.CondFailLoc = failLoc
	b.CondFailCycles = failCycles
}

// Instructions returns a slice snapshot of the block's instructions in
// program order. Intended for tests and the optimizer's verification pass;
// hot paths should walk Root()/Next() directly to avoid the allocation.
func (b *Block) Instructions() []*Instruction {
	var out []*Instruction
	for i := b.rootInstr; i != nil; i = i.next {
		out = append(out, i)
	}
	return out
}

// AllocValue mints a fresh Value of type t, unique within this block, for
// use by an optimizer pass splicing in new instructions (spec §4.3 step 1,
// "lower it to a sequence of IR stores"). The Builder never calls this; it
// has its own counter for values produced during translation.
func (b *Block) AllocValue(t Type) Value {
	if !b.nextAllocSet {
		var max ValueID
		for i := b.rootInstr; i != nil; i = i.next {
			if r := i.result; r.Valid() && r.ID() >= max {
				max = r.ID() + 1
			}
		}
		b.nextAllocID, b.nextAllocSet = max, true
	}
	id := b.nextAllocID
	b.nextAllocID++
	return Value(id).withType(t)
}

// InsertBefore splices instr immediately before mark, or at the tail if
// mark is nil. Unlike InsertInstruction, this is legal even after the
// terminator has been set: optimizer passes run on a fully translated
// block and only ever splice ordinary instructions, never re-open it for
// append-at-tail emission.
func (b *Block) InsertBefore(mark, instr *Instruction) {
	if mark == nil {
		if b.tailInstr != nil {
			b.tailInstr.next = instr
			instr.prev = b.tailInstr
		} else {
			b.rootInstr = instr
		}
		instr.next = nil
		b.tailInstr = instr
		return
	}
	instr.prev = mark.prev
	instr.next = mark
	if mark.prev != nil {
		mark.prev.next = instr
	} else {
		b.rootInstr = instr
	}
	mark.prev = instr
}

// RemoveInstruction unlinks instr from the block's instruction list. Used
// by the dead-code-elimination pass (spec §4.3 step 3/6).
func (b *Block) RemoveInstruction(instr *Instruction) {
	if prev := instr.prev; prev != nil {
		prev.next = instr.next
	} else {
		b.rootInstr = instr.next
	}
	if next := instr.next; next != nil {
		next.prev = instr.prev
	} else {
		b.tailInstr = instr.prev
	}
	instr.prev, instr.next = nil, nil
}
