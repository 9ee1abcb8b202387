package ir

import "fmt"

// Builder is the translator's handle onto the IR block under construction
// (spec §4.1 "Builder"). It appends instructions to the current block,
// returns typed handles, and owns the incremental use-count bookkeeping the
// optimizer later relies on.
type Builder struct {
	instrPool pool[Instruction]
	blockPool pool[Block]

	cur *Block

	// curLoc is "the current guest location at emission time" (spec
	// §4.1). materializedPC tracks the PC value last emitted via an
	// implicit OpSetPC, so redundant SetPC emission is skipped.
	curLoc          Location
	pcMaterialized  bool
	materializedPC  uint64

	// valueIDToInstr maps a ValueID back to its producing Instruction, for
	// use-count maintenance (setArgs/replaceArg) and for the optimizer's
	// dead-code walk. Indexed densely per translated block.
	valueIDToInstr []*Instruction
	nextValueID    ValueID
}

// NewBuilder returns a ready-to-use Builder.
func NewBuilder() *Builder {
	return &Builder{instrPool: newPool[Instruction](), blockPool: newPool[Block]()}
}

// Reset prepares the Builder to translate a new block, reusing pooled
// memory (mirrors the teacher's builder.Reset in ssa/builder.go).
func (b *Builder) Reset() {
	b.instrPool.reset()
	b.blockPool.reset()
	b.cur = nil
	b.curLoc = Location{}
	b.pcMaterialized = false
	b.materializedPC = 0
	b.valueIDToInstr = b.valueIDToInstr[:0]
	b.nextValueID = 0
}

// StartBlock allocates and begins emitting into a new Block for entry loc.
// The translator calls this exactly once per Translate invocation.
func (b *Builder) StartBlock(loc Location) *Block {
	blk := b.blockPool.allocate()
	blk.init(basicBlockID(b.blockPool.allocated-1), loc)
	b.cur = blk
	b.curLoc = loc
	b.pcMaterialized = false
	b.materializedPC = loc.PC
	return blk
}

// Block returns the block currently being emitted into.
func (b *Builder) Block() *Block { return b.cur }

// AdvanceLocation updates the builder's notion of "current guest location"
// as the translator steps to the next guest instruction, without touching
// the IR; SetPC materialization (via touchPC) happens lazily on the next
// register access, per spec §4.1.
func (b *Builder) AdvanceLocation(loc Location) {
	b.curLoc = loc
	if loc.PC != b.materializedPC {
		b.pcMaterialized = false
	}
}

// AdvanceCycles bumps the block's cycle counter by n, once per decoded
// guest instruction (spec §4.1 "Well-formedness").
func (b *Builder) AdvanceCycles(n uint32) { b.cur.Cycles += n }

func (b *Builder) producerOf(v Value) *Instruction {
	id := int(v.ID())
	if !v.Valid() || id >= len(b.valueIDToInstr) {
		return nil
	}
	return b.valueIDToInstr[id]
}

func (b *Builder) allocValueID() ValueID {
	id := b.nextValueID
	b.nextValueID++
	if int(id) >= len(b.valueIDToInstr) {
		b.valueIDToInstr = append(b.valueIDToInstr, make([]*Instruction, int(id)+1-len(b.valueIDToInstr))...)
	}
	return id
}

// emit allocates an instruction, type-checks args against the opcode
// table, links it into the current block, and returns its result Value (or
// ValueInvalid for void opcodes). This is the single choke point every
// convenience method below funnels through, realizing spec §4.1's
// contract (a): "every instruction argument type is compatible with the
// opcode's declared slot type."
func (b *Builder) emit(op Opcode, resultType Type, args ...Value) *Instruction {
	info := Info(op)
	if info.ArgTypes != nil {
		if len(args) != len(info.ArgTypes) {
			panic(fmt.Sprintf("BUG: %s expects %d args, got %d", op, len(info.ArgTypes), len(args)))
		}
		for i, want := range info.ArgTypes {
			if args[i].Valid() && args[i].Type() != TypeInvalid && args[i].Type() != want {
				panic(fmt.Sprintf("BUG: %s arg %d: expected %s, got %s", op, i, want, args[i].Type()))
			}
		}
	}

	instr := b.instrPool.allocate()
	instr.reset()
	instr.Opcode = op
	instr.setArgs(args, b.producerOf)

	rt := resultType
	if rt == TypeInvalid {
		rt = info.ReturnType
	}
	if rt != TypeVoid && rt != TypeInvalid {
		id := b.allocValueID()
		instr.result = Value(id).withType(rt)
		b.valueIDToInstr[id] = instr
	} else {
		instr.result = ValueInvalid
	}

	b.cur.InsertInstruction(instr)
	return instr
}

func (b *Builder) emitImm(op Opcode, resultType Type, imm uint64, kind ImmKind, args ...Value) *Instruction {
	instr := b.emit(op, resultType, args...)
	instr.Imm = imm
	instr.ImmKind = kind
	return instr
}

// touchPC emits the implicit set-pc instruction the first time, within a
// given program-counter value, that a register is read or written (spec
// §4.1 "Builder": "a 'set-pc' IR instruction emitted implicitly when
// registers are read/written if not already current").
func (b *Builder) touchPC() {
	if b.pcMaterialized {
		return
	}
	b.emitImm(OpSetPC, TypeVoid, b.curLoc.PC, ImmKindInt, b.Iconst(TypeU64, b.curLoc.PC))
	b.pcMaterialized = true
	b.materializedPC = b.curLoc.PC
}

// --- convenience operations (spec §4.1 "Builder") ---

// Iconst materializes an immediate of type t.
func (b *Builder) Iconst(t Type, v uint64) Value {
	return b.emitImm(OpIconst, t, v, ImmKindInt).result
}

// GetRegister reads a guest register slot.
func (b *Builder) GetRegister(name RegName, t Type) Value {
	b.touchPC()
	return b.emitImm(OpGetReg, t, uint64(name), ImmKindRegName).result
}

// SetRegister writes a guest register slot.
func (b *Builder) SetRegister(name RegName, v Value) {
	b.touchPC()
	b.emitImm(OpSetReg, TypeVoid, uint64(name), ImmKindRegName, v)
}

func (b *Builder) binary(op Opcode, x, y Value) Value { return b.emit(op, x.Type(), x, y).result }

func (b *Builder) Add(x, y Value) Value { return b.binary(OpAdd, x, y) }
func (b *Builder) Sub(x, y Value) Value { return b.binary(OpSub, x, y) }
func (b *Builder) Mul(x, y Value) Value { return b.binary(OpMul, x, y) }
func (b *Builder) And(x, y Value) Value { return b.binary(OpAnd, x, y) }
func (b *Builder) Or(x, y Value) Value  { return b.binary(OpOr, x, y) }
func (b *Builder) Xor(x, y Value) Value { return b.binary(OpXor, x, y) }
func (b *Builder) Shl(x, y Value) Value { return b.binary(OpShl, x, y) }
func (b *Builder) Lshr(x, y Value) Value { return b.binary(OpLshr, x, y) }
func (b *Builder) Ashr(x, y Value) Value { return b.binary(OpAshr, x, y) }
func (b *Builder) Ror(x, y Value) Value  { return b.binary(OpRor, x, y) }

func (b *Builder) Not(x Value) Value { return b.emit(OpNot, x.Type(), x).result }
func (b *Builder) Neg(x Value) Value { return b.emit(OpNeg, x.Type(), x).result }

// AddWithCarry produces the sum result; GetCarryFromOp/GetOverflowFromOp on
// the returned producer instruction's result recover the flags (spec §4.3
// step 5: "such carry/overflow metadata producers are not separately dead
// even if their arithmetic result is").
func (b *Builder) AddWithCarry(x, y, carryIn Value) Value {
	return b.emit(OpAddWithCarry, x.Type(), x, y, carryIn).result
}

func (b *Builder) SubWithCarry(x, y, carryIn Value) Value {
	return b.emit(OpSubWithCarry, x.Type(), x, y, carryIn).result
}

// GetCarryFromOp/GetOverflowFromOp/GetNZFromOp extract flag metadata from
// the arithmetic producer that computed them.
func (b *Builder) GetCarryFromOp(producer Value) Value {
	return b.emit(OpGetCarryFromOp, TypeU1, producer).result
}

func (b *Builder) GetOverflowFromOp(producer Value) Value {
	return b.emit(OpGetOverflowFromOp, TypeU1, producer).result
}

func (b *Builder) GetNZFromOp(producer Value) Value {
	return b.emit(OpGetNZFromOp, TypeNZCVFlags, producer).result
}

func (b *Builder) ZeroExtend(x Value, to Type) Value { return b.emit(OpZeroExtend, to, x).result }
func (b *Builder) SignExtend(x Value, to Type) Value { return b.emit(OpSignExtend, to, x).result }
func (b *Builder) Trunc(x Value, to Type) Value      { return b.emit(OpTrunc, to, x).result }

func (b *Builder) Select(cond, t, f Value) Value {
	return b.emit(OpSelect, t.Type(), cond, t, f).result
}

// Cond is a comparison predicate for ICompare/FCompare (spec §4.5
// "Per-opcode emission": the opcode table's read-cpsr/write-cpsr flags and
// predicate immediates are shared by translator and backend).
type Cond uint8

const (
	CondEQ Cond = iota
	CondNE
	CondCS
	CondCC
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS
	CondGE
	CondLT
	CondGT
	CondLE
	CondAL
)

func (b *Builder) ICompare(c Cond, x, y Value) Value {
	return b.emitImm(OpICompare, TypeU1, uint64(c), ImmKindCondCode, x, y).result
}

// Memory read/write. size is 8/16/32/64/128.
func (b *Builder) ReadMemory(size int, addr Value) Value {
	op, t := memOp(size, true)
	return b.emit(op, t, addr).result
}

func (b *Builder) WriteMemory(size int, addr, v Value) {
	op, _ := memOp(size, false)
	b.emit(op, TypeVoid, addr, v)
}

func memOp(size int, read bool) (Opcode, Type) {
	switch {
	case size == 8 && read:
		return OpReadMemory8, TypeU8
	case size == 8:
		return OpWriteMemory8, TypeU8
	case size == 16 && read:
		return OpReadMemory16, TypeU16
	case size == 16:
		return OpWriteMemory16, TypeU16
	case size == 32 && read:
		return OpReadMemory32, TypeU32
	case size == 32:
		return OpWriteMemory32, TypeU32
	case size == 64 && read:
		return OpReadMemory64, TypeU64
	case size == 64:
		return OpWriteMemory64, TypeU64
	case size == 128 && read:
		return OpReadMemory128, TypeU128
	case size == 128:
		return OpWriteMemory128, TypeU128
	default:
		panic(fmt.Sprintf("BUG: invalid memory access size %d", size))
	}
}

func (b *Builder) ExclusiveRead(size int, addr Value) Value {
	if size == 32 {
		return b.emit(OpExclusiveReadMemory32, TypeU32, addr).result
	}
	return b.emit(OpExclusiveReadMemory64, TypeU64, addr).result
}

// ExclusiveWrite returns a u1 success flag (spec §4.7 "Exclusive monitor").
func (b *Builder) ExclusiveWrite(size int, addr, v Value) Value {
	if size == 32 {
		return b.emit(OpExclusiveWriteMemory32, TypeU1, addr, v).result
	}
	return b.emit(OpExclusiveWriteMemory64, TypeU1, addr, v).result
}

func (b *Builder) ClearExclusive() { b.emit(OpClearExclusive, TypeVoid) }

func (b *Builder) CallSupervisor(swi uint32) {
	b.emitImm(OpCallSupervisor, TypeVoid, uint64(swi), ImmKindInt)
}

// ExceptionKind is the closed set of guest-faulting exception kinds (spec §7).
type ExceptionKind uint32

const (
	ExceptionUndefinedInstruction ExceptionKind = iota
	ExceptionUnpredictableInstruction
	ExceptionDecodeError
	ExceptionSendEvent
	ExceptionWaitForInterrupt
)

func (b *Builder) ExceptionRaised(kind ExceptionKind, pc Value) {
	b.emitImm(OpExceptionRaised, TypeVoid, uint64(kind), ImmKindInt, pc)
}

func (b *Builder) SetCheckBit(v Value) { b.emit(OpSetCheckBit, TypeVoid, v) }

// Coprocessor access (A32 only; spec §4.5 "Coprocessor").
func (b *Builder) CoprocGetOneWord() Value  { return b.emit(OpCoprocGetOneWord, TypeU32).result }
func (b *Builder) CoprocGetTwoWords() Value { return b.emit(OpCoprocGetTwoWords, TypeU64).result }
func (b *Builder) CoprocSetOneWord(v Value) { b.emit(OpCoprocSetOneWord, TypeVoid, v) }
func (b *Builder) CoprocSetTwoWords(v Value) { b.emit(OpCoprocSetTwoWords, TypeVoid, v) }
func (b *Builder) CoprocInternalOp()        { b.emit(OpCoprocInternalOp, TypeVoid) }
func (b *Builder) CoprocLoadWords(addr Value) { b.emit(OpCoprocLoadWords, TypeVoid, addr) }
func (b *Builder) CoprocStoreWords(addr Value) { b.emit(OpCoprocStoreWords, TypeVoid, addr) }

// Vector lane ops.
func (b *Builder) VectorGetLane(v Value, lane int) Value {
	return b.emitImm(OpVectorGetLane, TypeU64, uint64(lane), ImmKindInt, v).result
}

func (b *Builder) VectorSetLane(v, lane Value) Value {
	return b.emit(OpVectorSetLane, TypeU128, v, lane).result
}

func (b *Builder) VectorAdd(x, y Value) Value { return b.emit(OpVectorAdd, TypeU128, x, y).result }
func (b *Builder) VectorSub(x, y Value) Value { return b.emit(OpVectorSub, TypeU128, x, y).result }

// Floating point.
func (b *Builder) FAdd(x, y Value) Value { return b.emit(OpFAdd, TypeU64, x, y).result }
func (b *Builder) FSub(x, y Value) Value { return b.emit(OpFSub, TypeU64, x, y).result }
func (b *Builder) FMul(x, y Value) Value { return b.emit(OpFMul, TypeU64, x, y).result }
func (b *Builder) FDiv(x, y Value) Value { return b.emit(OpFDiv, TypeU64, x, y).result }
func (b *Builder) FSqrt(x Value) Value   { return b.emit(OpFSqrt, TypeU64, x).result }
func (b *Builder) FCompare(x, y Value) Value { return b.emit(OpFCompare, TypeU1, x, y).result }
func (b *Builder) FConvertToInt(x Value) Value   { return b.emit(OpFConvertToInt, TypeU64, x).result }
func (b *Builder) FConvertFromInt(x Value) Value { return b.emit(OpFConvertFromInt, TypeU64, x).result }
func (b *Builder) FRoundInt(x Value) Value       { return b.emit(OpFRoundInt, TypeU64, x).result }

// DataCacheOperationRaised (A32).
func (b *Builder) A32DataCacheOperationRaised(dcOp uint32, addr Value) {
	b.emitImm(OpA32DataCacheOperationRaised, TypeVoid, uint64(dcOp), ImmKindInt, addr)
}

// A64DataCacheOperationRaised / A64InstructionCacheOperationRaised / A64GetCNTPCT (A64).
func (b *Builder) A64DataCacheOperationRaised(dcOp uint32, addr Value) {
	b.emitImm(OpA64DataCacheOperationRaised, TypeVoid, uint64(dcOp), ImmKindInt, addr)
}

func (b *Builder) A64InstructionCacheOperationRaised(addr Value) {
	b.emit(OpA64InstructionCacheOperationRaised, TypeVoid, addr)
}

func (b *Builder) A64GetCNTPCT() Value { return b.emit(OpA64GetCNTPCT, TypeU64).result }

// SetCondition fixes the block's condition, bumping the predicate
// producer's use count: the condition is live at block exit even though
// no instruction argument references it (spec §3: Cond "must be live at
// block exit"), so it must count toward the exact-use-count invariant the
// same way an ordinary argument reference would.
func (b *Builder) SetCondition(pred Value, failLoc Location, failCycles uint32) {
	if p := b.producerOf(pred); p != nil {
		p.useCount++
	}
	b.cur.SetCondition(pred, failLoc, failCycles)
}

// SetTerminator installs the block's terminator, bumping the use count of
// every Cond value reachable through it (TermIf, possibly nested under
// CheckBit/CheckHalt) for the same reason SetCondition does.
func (b *Builder) SetTerminator(t *Terminator) {
	b.bumpTerminatorUses(t)
	b.cur.SetTerminator(t)
}

func (b *Builder) bumpTerminatorUses(t *Terminator) {
	if t == nil {
		return
	}
	if t.Cond.Valid() {
		if p := b.producerOf(t.Cond); p != nil {
			p.useCount++
		}
	}
	b.bumpTerminatorUses(t.Then)
	b.bumpTerminatorUses(t.Else)
	b.bumpTerminatorUses(t.Inner)
}
