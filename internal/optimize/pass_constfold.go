package optimize

import "github.com/dynarm/dynarm/internal/ir"

// passConstFold implements spec §4.3 step 5: every pure opcode whose
// operands are all constants folds to its literal result. AddWithCarry,
// SubWithCarry, and the float family are not in the opcode table's Pure set
// and so are left alone; their consumers (GetCarryFromOp and friends) keep
// them alive through ordinary use counting on the producer's Result(), with
// no extra bookkeeping required here.
func passConstFold(blk *ir.Block) {
	pm := buildProducerMap(blk)
	for i := blk.Root(); i != nil; i = i.Next() {
		if !i.Pure() || i.Opcode == ir.OpIconst {
			continue
		}
		v, ok := evalConst(i, pm)
		if !ok {
			continue
		}
		i.ReplaceWithConst(v, pm.lookup)
	}
}

// constArg returns the literal value of arg n, and whether it resolves to a
// constant at all (either a block-local OpIconst producer).
func constArg(i *ir.Instruction, n int, pm producerMap) (uint64, bool) {
	a := i.Arg(n)
	p := pm.lookup(a)
	if p == nil || p.Opcode != ir.OpIconst {
		return 0, false
	}
	return p.Imm, true
}

func mask(t ir.Type) uint64 {
	bits := t.Bits()
	if bits == 0 || bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

func evalConst(i *ir.Instruction, pm producerMap) (uint64, bool) {
	resultMask := mask(i.Result().Type())

	switch i.Opcode {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpXor,
		ir.OpShl, ir.OpLshr, ir.OpAshr, ir.OpRor:
		a, ok := constArg(i, 0, pm)
		if !ok {
			return 0, false
		}
		b, ok := constArg(i, 1, pm)
		if !ok {
			return 0, false
		}
		return evalBinary(i.Opcode, a, b, resultMask), true

	case ir.OpNot:
		a, ok := constArg(i, 0, pm)
		if !ok {
			return 0, false
		}
		return ^a & resultMask, true

	case ir.OpNeg:
		a, ok := constArg(i, 0, pm)
		if !ok {
			return 0, false
		}
		return (-a) & resultMask, true

	case ir.OpZeroExtend:
		a, ok := constArg(i, 0, pm)
		if !ok {
			return 0, false
		}
		return a & resultMask, true

	case ir.OpSignExtend:
		a, ok := constArg(i, 0, pm)
		if !ok {
			return 0, false
		}
		srcBits := i.Arg(0).Type().Bits()
		if srcBits == 0 || srcBits >= 64 {
			return a & resultMask, true
		}
		signBit := uint64(1) << uint(srcBits-1)
		if a&signBit != 0 {
			a |= ^uint64(0) << uint(srcBits)
		}
		return a & resultMask, true

	case ir.OpTrunc:
		a, ok := constArg(i, 0, pm)
		if !ok {
			return 0, false
		}
		return a & resultMask, true

	case ir.OpSelect:
		c, ok := constArg(i, 0, pm)
		if !ok {
			return 0, false
		}
		if c != 0 {
			return constArg(i, 1, pm)
		}
		return constArg(i, 2, pm)

	case ir.OpICompare:
		a, ok := constArg(i, 0, pm)
		if !ok {
			return 0, false
		}
		b, ok := constArg(i, 1, pm)
		if !ok {
			return 0, false
		}
		if evalCompare(ir.Cond(i.Imm), a, b) {
			return 1, true
		}
		return 0, true

	default:
		return 0, false
	}
}

func evalBinary(op ir.Opcode, a, b, resultMask uint64) uint64 {
	switch op {
	case ir.OpAdd:
		return (a + b) & resultMask
	case ir.OpSub:
		return (a - b) & resultMask
	case ir.OpMul:
		return (a * b) & resultMask
	case ir.OpAnd:
		return a & b & resultMask
	case ir.OpOr:
		return (a | b) & resultMask
	case ir.OpXor:
		return (a ^ b) & resultMask
	case ir.OpShl:
		return (a << (b & 63)) & resultMask
	case ir.OpLshr:
		return (a >> (b & 63)) & resultMask
	case ir.OpAshr:
		bits := 64
		signBit := uint64(1) << 63
		if resultMask != ^uint64(0) {
			bits = popcountPlusOne(resultMask)
			signBit = (resultMask + 1) >> 1
		}
		shift := b & 63
		if a&signBit == 0 {
			return (a >> shift) & resultMask
		}
		if shift >= uint64(bits) {
			return resultMask
		}
		return ((a >> shift) | (^uint64(0) << (uint64(bits) - shift))) & resultMask
	case ir.OpRor:
		bits := popcountPlusOne(resultMask)
		shift := b % uint64(bits)
		if shift == 0 {
			return a & resultMask
		}
		return ((a >> shift) | (a << (uint64(bits) - shift))) & resultMask
	default:
		return 0
	}
}

// popcountPlusOne returns log2(m+1) for a mask m of the form 2^n-1.
func popcountPlusOne(m uint64) int {
	n := 0
	for m != 0 {
		n++
		m >>= 1
	}
	return n
}

func evalCompare(c ir.Cond, a, b uint64) bool {
	switch c {
	case ir.CondEQ:
		return a == b
	case ir.CondNE:
		return a != b
	default:
		return int64(a) < int64(b)
	}
}
