package ir

// Opcode is a closed catalog of IR instruction kinds, partitioned into
// three families (spec §3 "Opcode table"): architecture-neutral, A32, A64.
// Following DESIGN NOTES §9 ("Dynamic dispatch over opcode"), this is one
// tagged enumeration with a build-time info table, not virtual dispatch —
// the same choice the teacher makes for ssa.Opcode (ssa/instructions.go).
type Opcode uint32

// Family identifies which of the three opcode families an Opcode belongs to.
type Family byte

const (
	FamilyNeutral Family = iota
	FamilyA32
	FamilyA64
)

const (
	OpcodeInvalid Opcode = iota

	// --- architecture-neutral ---

	OpIconst     // result = imm (bit-width from result type)
	OpGetReg     // result = *reg[imm RegName]
	OpSetReg     // *reg[imm RegName] = arg0; side effect
	OpAdd        // result = arg0 + arg1
	OpSub        // result = arg0 - arg1
	OpMul        // result = arg0 * arg1
	OpAnd        // result = arg0 & arg1
	OpOr         // result = arg0 | arg1
	OpXor        // result = arg0 ^ arg1
	OpNot        // result = ^arg0
	OpNeg        // result = -arg0
	OpShl        // result = arg0 << arg1
	OpLshr       // result = arg0 >>(logical) arg1
	OpAshr       // result = arg0 >>(arith) arg1
	OpRor        // result = arg0 rotr arg1
	OpAddWithCarry // result = arg0 + arg1 + carryIn(arg2); also produces NZCV, consumed by OpGetCarryFromOp/OpGetOverflowFromOp
	OpSubWithCarry // result = arg0 - arg1 - 1 + carryIn(arg2)
	OpGetCarryFromOp    // result:u1 = carry produced by producer arg0 (must be AddWithCarry/SubWithCarry)
	OpGetOverflowFromOp // result:u1 = overflow produced by producer arg0
	OpGetNZFromOp       // result:nzcv-flags = N,Z produced by producer arg0
	OpZeroExtend // result = zext(arg0) to result type
	OpSignExtend // result = sext(arg0) to result type
	OpTrunc      // result = trunc(arg0) to result type
	OpSelect     // result = arg0(cond:u1) ? arg1 : arg2
	OpICompare   // result:u1 = icmp(imm Cond, arg0, arg1)
	OpReadMemory8
	OpReadMemory16
	OpReadMemory32
	OpReadMemory64
	OpReadMemory128
	OpWriteMemory8
	OpWriteMemory16
	OpWriteMemory32
	OpWriteMemory64
	OpWriteMemory128
	OpExclusiveReadMemory32
	OpExclusiveReadMemory64
	OpExclusiveWriteMemory32 // result:u1 success = store-conditional arg0=addr, arg1=value
	OpExclusiveWriteMemory64
	OpClearExclusive // side effect, no args
	OpCallSupervisor // side effect; imm = SWI number
	OpExceptionRaised // side effect; imm = exception kind, arg0 = pc value
	OpSetCheckBit     // side effect; arg0:u1 written to guest-state "check bit" (CBZ/CBNZ support)
	OpSetPC           // side effect; arg0 = new PC value, emitted implicitly by the builder
	OpCoprocGetOneWord
	OpCoprocGetTwoWords
	OpCoprocSetOneWord
	OpCoprocSetTwoWords
	OpCoprocInternalOp
	OpCoprocLoadWords
	OpCoprocStoreWords
	OpVectorGetLane
	OpVectorSetLane
	OpVectorAdd
	OpVectorSub
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFSqrt
	OpFCompare   // result:u1, imm = compare predicate
	OpFConvertToInt
	OpFConvertFromInt
	OpFRoundInt

	// --- A32-specific ---

	OpA32DataCacheOperationRaised // side effect; imm = DC op kind, arg0 = addr

	// --- A64-specific ---

	OpA64DataCacheOperationRaised      // side effect; imm = DC op kind, arg0 = addr
	OpA64InstructionCacheOperationRaised // side effect; arg0 = addr
	OpA64GetCNTPCT                     // result:u64, no args, side effect (reads a live counter)

	numOpcodes
)

// OpcodeInfo is the build-time-fixed metadata for one Opcode, shared by the
// translator (to type-check emission) and the backend (to drive per-opcode
// lowering), per spec §3 "Opcode table".
type OpcodeInfo struct {
	Name          string
	Family        Family
	ArgTypes      []Type // nil/variadic-sized args (e.g. coprocessor ops) use ArgTypes == nil and their argument types are not checked
	ReturnType    Type   // TypeVoid if none
	HasSideEffect bool
	Pure          bool // true only if deterministic given args and has no side effect; required for constant folding (spec §4.3 step 5)
	ReadsCPSR     bool
	WritesCPSR    bool
}

var opcodeTable [numOpcodes]OpcodeInfo

func reg(t Type) []Type { return []Type{t} }

func init() {
	t := &opcodeTable

	t[OpIconst] = OpcodeInfo{Name: "iconst", Pure: true}
	t[OpGetReg] = OpcodeInfo{Name: "get_reg", ReadsCPSR: true}
	t[OpSetReg] = OpcodeInfo{Name: "set_reg", HasSideEffect: true, WritesCPSR: true, ArgTypes: reg(TypeU64)}

	bin := func(name string, pure bool) OpcodeInfo {
		return OpcodeInfo{Name: name, ArgTypes: []Type{TypeU64, TypeU64}, Pure: pure}
	}
	t[OpAdd] = bin("iadd", true)
	t[OpSub] = bin("isub", true)
	t[OpMul] = bin("imul", true)
	t[OpAnd] = bin("band", true)
	t[OpOr] = bin("bor", true)
	t[OpXor] = bin("bxor", true)
	t[OpNot] = OpcodeInfo{Name: "bnot", ArgTypes: reg(TypeU64), Pure: true}
	t[OpNeg] = OpcodeInfo{Name: "ineg", ArgTypes: reg(TypeU64), Pure: true}
	t[OpShl] = bin("ishl", true)
	t[OpLshr] = bin("ushr", true)
	t[OpAshr] = bin("sshr", true)
	t[OpRor] = bin("rotr", true)

	t[OpAddWithCarry] = OpcodeInfo{Name: "add_with_carry", ArgTypes: []Type{TypeU64, TypeU64, TypeU1}, WritesCPSR: true}
	t[OpSubWithCarry] = OpcodeInfo{Name: "sub_with_carry", ArgTypes: []Type{TypeU64, TypeU64, TypeU1}, WritesCPSR: true}
	t[OpGetCarryFromOp] = OpcodeInfo{Name: "get_carry_from_op", ArgTypes: reg(TypeU64), ReturnType: TypeU1}
	t[OpGetOverflowFromOp] = OpcodeInfo{Name: "get_overflow_from_op", ArgTypes: reg(TypeU64), ReturnType: TypeU1}
	t[OpGetNZFromOp] = OpcodeInfo{Name: "get_nz_from_op", ArgTypes: reg(TypeU64), ReturnType: TypeNZCVFlags}

	// ZeroExtend/SignExtend/Trunc accept any source width narrower (resp.
	// wider) than their result type; ArgTypes is left nil rather than
	// fixed to one width, so the source width is not checked (the same
	// convention as the coprocessor ops below).
	t[OpZeroExtend] = OpcodeInfo{Name: "zext", Pure: true}
	t[OpSignExtend] = OpcodeInfo{Name: "sext", Pure: true}
	t[OpTrunc] = OpcodeInfo{Name: "trunc", Pure: true}
	t[OpSelect] = OpcodeInfo{Name: "select", ArgTypes: []Type{TypeU1, TypeU64, TypeU64}, Pure: true}
	t[OpICompare] = OpcodeInfo{Name: "icmp", ArgTypes: []Type{TypeU64, TypeU64}, ReturnType: TypeU1, Pure: true}

	ldInfo := func(name string, rt Type) OpcodeInfo {
		return OpcodeInfo{Name: name, ArgTypes: reg(TypeU64), ReturnType: rt, HasSideEffect: true}
	}
	t[OpReadMemory8] = ldInfo("read_memory_8", TypeU8)
	t[OpReadMemory16] = ldInfo("read_memory_16", TypeU16)
	t[OpReadMemory32] = ldInfo("read_memory_32", TypeU32)
	t[OpReadMemory64] = ldInfo("read_memory_64", TypeU64)
	t[OpReadMemory128] = ldInfo("read_memory_128", TypeU128)

	stInfo := func(name string, vt Type) OpcodeInfo {
		return OpcodeInfo{Name: name, ArgTypes: []Type{TypeU64, vt}, HasSideEffect: true}
	}
	t[OpWriteMemory8] = stInfo("write_memory_8", TypeU8)
	t[OpWriteMemory16] = stInfo("write_memory_16", TypeU16)
	t[OpWriteMemory32] = stInfo("write_memory_32", TypeU32)
	t[OpWriteMemory64] = stInfo("write_memory_64", TypeU64)
	t[OpWriteMemory128] = stInfo("write_memory_128", TypeU128)

	t[OpExclusiveReadMemory32] = ldInfo("exclusive_read_memory_32", TypeU32)
	t[OpExclusiveReadMemory64] = ldInfo("exclusive_read_memory_64", TypeU64)
	t[OpExclusiveWriteMemory32] = OpcodeInfo{Name: "exclusive_write_memory_32", ArgTypes: []Type{TypeU64, TypeU32}, ReturnType: TypeU1, HasSideEffect: true}
	t[OpExclusiveWriteMemory64] = OpcodeInfo{Name: "exclusive_write_memory_64", ArgTypes: []Type{TypeU64, TypeU64}, ReturnType: TypeU1, HasSideEffect: true}
	t[OpClearExclusive] = OpcodeInfo{Name: "clear_exclusive", HasSideEffect: true}

	t[OpCallSupervisor] = OpcodeInfo{Name: "call_supervisor", HasSideEffect: true}
	t[OpExceptionRaised] = OpcodeInfo{Name: "exception_raised", ArgTypes: reg(TypeU64), HasSideEffect: true}
	t[OpSetCheckBit] = OpcodeInfo{Name: "set_check_bit", ArgTypes: reg(TypeU1), HasSideEffect: true}
	t[OpSetPC] = OpcodeInfo{Name: "set_pc", ArgTypes: reg(TypeU64), HasSideEffect: true}

	t[OpCoprocGetOneWord] = OpcodeInfo{Name: "coproc_get_one_word", ReturnType: TypeU32, HasSideEffect: true}
	t[OpCoprocGetTwoWords] = OpcodeInfo{Name: "coproc_get_two_words", ReturnType: TypeU64, HasSideEffect: true}
	t[OpCoprocSetOneWord] = OpcodeInfo{Name: "coproc_set_one_word", ArgTypes: reg(TypeU32), HasSideEffect: true}
	t[OpCoprocSetTwoWords] = OpcodeInfo{Name: "coproc_set_two_words", ArgTypes: reg(TypeU64), HasSideEffect: true}
	t[OpCoprocInternalOp] = OpcodeInfo{Name: "coproc_internal_op", HasSideEffect: true}
	t[OpCoprocLoadWords] = OpcodeInfo{Name: "coproc_load_words", ArgTypes: reg(TypeU64), HasSideEffect: true}
	t[OpCoprocStoreWords] = OpcodeInfo{Name: "coproc_store_words", ArgTypes: reg(TypeU64), HasSideEffect: true}

	t[OpVectorGetLane] = OpcodeInfo{Name: "vector_get_lane", ArgTypes: reg(TypeU128), ReturnType: TypeU64, Pure: true}
	t[OpVectorSetLane] = OpcodeInfo{Name: "vector_set_lane", ArgTypes: []Type{TypeU128, TypeU64}, ReturnType: TypeU128, Pure: true}
	t[OpVectorAdd] = OpcodeInfo{Name: "vector_add", ArgTypes: []Type{TypeU128, TypeU128}, ReturnType: TypeU128, Pure: true}
	t[OpVectorSub] = OpcodeInfo{Name: "vector_sub", ArgTypes: []Type{TypeU128, TypeU128}, ReturnType: TypeU128, Pure: true}

	fbin := func(name string) OpcodeInfo {
		return OpcodeInfo{Name: name, ArgTypes: []Type{TypeU64, TypeU64}, ReturnType: TypeU64, Pure: true}
	}
	t[OpFAdd] = fbin("fadd")
	t[OpFSub] = fbin("fsub")
	t[OpFMul] = fbin("fmul")
	t[OpFDiv] = fbin("fdiv")
	t[OpFSqrt] = OpcodeInfo{Name: "fsqrt", ArgTypes: reg(TypeU64), ReturnType: TypeU64, Pure: true}
	t[OpFCompare] = OpcodeInfo{Name: "fcmp", ArgTypes: []Type{TypeU64, TypeU64}, ReturnType: TypeU1, Pure: true}
	t[OpFConvertToInt] = OpcodeInfo{Name: "fcvt_to_int", ArgTypes: reg(TypeU64), ReturnType: TypeU64}
	t[OpFConvertFromInt] = OpcodeInfo{Name: "fcvt_from_int", ArgTypes: reg(TypeU64), ReturnType: TypeU64, Pure: true}
	t[OpFRoundInt] = OpcodeInfo{Name: "fround_int", ArgTypes: reg(TypeU64), ReturnType: TypeU64}

	t[OpA32DataCacheOperationRaised] = OpcodeInfo{Name: "a32_dc_op_raised", Family: FamilyA32, ArgTypes: reg(TypeU64), HasSideEffect: true}
	t[OpA64DataCacheOperationRaised] = OpcodeInfo{Name: "a64_dc_op_raised", Family: FamilyA64, ArgTypes: reg(TypeU64), HasSideEffect: true}
	t[OpA64InstructionCacheOperationRaised] = OpcodeInfo{Name: "a64_ic_op_raised", Family: FamilyA64, ArgTypes: reg(TypeU64), HasSideEffect: true}
	t[OpA64GetCNTPCT] = OpcodeInfo{Name: "a64_get_cntpct", Family: FamilyA64, ReturnType: TypeU64, HasSideEffect: true}

	for op := Opcode(1); op < numOpcodes; op++ {
		if t[op].Name == "" {
			panic("BUG: opcode missing from init table")
		}
	}
}

// Info returns the OpcodeInfo for op.
func Info(op Opcode) *OpcodeInfo { return &opcodeTable[op] }

// String implements fmt.Stringer.
func (op Opcode) String() string {
	if op >= numOpcodes {
		return "invalid"
	}
	return opcodeTable[op].Name
}
