package amd64

import (
	"encoding/binary"

	"github.com/dynarm/dynarm/internal/regalloc"
)

// Assembler accumulates raw x86-64 bytes into a single emitted-code region
// (spec §4.5). It has no notion of IR; Emitter (instr.go) drives it per
// opcode.
type Assembler struct {
	buf []byte
}

// Bytes returns the accumulated machine code.
func (a *Assembler) Bytes() []byte { return a.buf }

// Len returns the current write offset, used by callers recording patch
// sites and branch targets.
func (a *Assembler) Len() int { return len(a.buf) }

func (a *Assembler) emit(b ...byte) { a.buf = append(a.buf, b...) }

func (a *Assembler) emit32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	a.emit(b[:]...)
}

func (a *Assembler) emit64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	a.emit(b[:]...)
}

// rex emits a REX prefix iff any bit or an extended (R8-R15/XMM8-15)
// register forces one; w selects the 64-bit operand size.
func (a *Assembler) rex(w bool, reg, rm regalloc.RealReg) {
	_, rBit := encBits(reg)
	_, bBit := encBits(rm)
	b := byte(0x40)
	if w {
		b |= 1 << 3
	}
	b |= rBit << 2
	b |= bBit
	if b != 0x40 || w {
		a.emit(b)
	}
}

func modrm(mod, reg, rm byte) byte { return mod<<6 | (reg&7)<<3 | rm&7 }

// regReg emits opc (a two-register-form opcode byte) with dst/src as a
// ModRM.reg/ModRM.rm register-direct pair.
func (a *Assembler) regReg(w bool, opc byte, reg, rm regalloc.RealReg) {
	a.rex(w, reg, rm)
	a.emit(opc)
	regField, _ := encBits(reg)
	rmField, _ := encBits(rm)
	a.emit(modrm(3, regField, rmField))
}

// MovRegReg emits `mov dst, src` (64-bit GPR to GPR).
func (a *Assembler) MovRegReg(dst, src regalloc.RealReg) {
	a.regReg(true, 0x89, src, dst) // 0x89 /r: MOV r/m64, r64 (reg=src, rm=dst)
}

// MovRegImm64 emits `movabs dst, imm64`.
func (a *Assembler) MovRegImm64(dst regalloc.RealReg, imm uint64) {
	a.rex(true, 0, dst)
	field, _ := encBits(dst)
	a.emit(0xB8 + field)
	a.emit64(imm)
}

// MovRegImm32 emits a zero-extending `mov dst32, imm32`.
func (a *Assembler) MovRegImm32(dst regalloc.RealReg, imm uint32) {
	a.rex(false, 0, dst)
	field, _ := encBits(dst)
	a.emit(0xB8 + field)
	a.emit32(imm)
}

// AluOp is the /r opcode byte for each binary ALU op, add-family
// encoding (ADD=0x01, OR=0x09, AND=0x21, SUB=0x29, XOR=0x31), matching the
// standard x86 ALU opcode group layout.
type AluOp byte

const (
	AluAdd AluOp = 0x01
	AluOr  AluOp = 0x09
	AluAnd AluOp = 0x21
	AluSub AluOp = 0x29
	AluXor AluOp = 0x31
	AluCmp AluOp = 0x39
)

// AluRegReg emits `op dst, src` (dst/src both 64-bit GPRs); dst is both
// input and output, matching the two-operand x86 form the teacher's own
// arm64 lowering has no analogue for (ARM is three-operand), so this is
// grounded directly on the x86-64 ISA manual's ALU opcode group rather
// than adapted teacher code.
func (a *Assembler) AluRegReg(op AluOp, dst, src regalloc.RealReg) {
	a.regReg(true, byte(op), src, dst)
}

// IMulRegReg emits `imul dst, src` (two-operand form, 0F AF /r): unlike the
// add-family group, IMUL's reg field is the read-modify-write operand and
// r/m is the source, the opposite operand convention from AluRegReg.
func (a *Assembler) IMulRegReg(dst, src regalloc.RealReg) {
	a.rex(true, dst, src)
	a.emit(0x0F)
	a.emit(0xAF)
	dstField, _ := encBits(dst)
	srcField, _ := encBits(src)
	a.emit(modrm(3, dstField, srcField))
}

// Lea emits `lea dst, [base+disp32]`.
func (a *Assembler) Lea(dst, base regalloc.RealReg, disp int32) {
	a.rex(true, dst, base)
	a.emit(0x8D)
	dstField, _ := encBits(dst)
	baseField, _ := encBits(base)
	a.emit(modrm(2, dstField, baseField))
	if baseField == 4 { // RSP/R12 require a SIB byte
		a.emit(0x24)
	}
	a.emit32(uint32(disp))
}

// LoadMem emits `mov dst, [base+disp32]` sized by width in {8,16,32,64}.
func (a *Assembler) LoadMem(width int, dst, base regalloc.RealReg, disp int32) {
	a.sizedMemOp(width, 0x8A, 0x8B, dst, base, disp)
}

// StoreMem emits `mov [base+disp32], src` sized by width.
func (a *Assembler) StoreMem(width int, base, src regalloc.RealReg, disp int32) {
	a.sizedMemOp(width, 0x88, 0x89, src, base, disp)
}

func (a *Assembler) sizedMemOp(width int, opc8, opcWide byte, reg, base regalloc.RealReg, disp int32) {
	if width == 16 {
		a.emit(0x66) // operand-size override prefix
	}
	opc := opcWide
	w := width == 64
	if width == 8 {
		opc = opc8
	}
	a.rex(w, reg, base)
	a.emit(opc)
	regField, _ := encBits(reg)
	baseField, _ := encBits(base)
	a.emit(modrm(2, regField, baseField))
	if baseField == 4 {
		a.emit(0x24)
	}
	a.emit32(uint32(disp))
}

// LoadConstRIP emits `mov dst, [rip+disp32]`, returning the offset of the
// 4-byte displacement for later patching once the constant pool's final
// position relative to this instruction is known (mirrors
// JmpRel32/PatchRel32's patch-site shape; spec §4.5 "Constant pool":
// "Operands are addressed via RIP-relative loads").
func (a *Assembler) LoadConstRIP(dst regalloc.RealReg) (patchOffset int) {
	a.rex(true, dst, 0)
	a.emit(0x8B)
	field, _ := encBits(dst)
	a.emit(modrm(0, field, 5)) // mod=00, rm=101: RIP-relative, disp32 follows
	patchOffset = a.Len()
	a.emit32(0)
	return patchOffset
}

// Ret emits `ret`.
func (a *Assembler) Ret() { a.emit(0xC3) }

// Push emits `push reg`.
func (a *Assembler) Push(reg regalloc.RealReg) {
	_, b := encBits(reg)
	if b != 0 {
		a.emit(0x41)
	}
	field, _ := encBits(reg)
	a.emit(0x50 + field)
}

// Pop emits `pop reg`.
func (a *Assembler) Pop(reg regalloc.RealReg) {
	_, b := encBits(reg)
	if b != 0 {
		a.emit(0x41)
	}
	field, _ := encBits(reg)
	a.emit(0x58 + field)
}

// CallReg emits `call reg` (indirect call through a register holding a
// host function pointer, used for callback fallbacks per spec §4.5).
func (a *Assembler) CallReg(reg regalloc.RealReg) {
	_, b := encBits(reg)
	if b != 0 {
		a.emit(0x41)
	}
	field, _ := encBits(reg)
	a.emit(0xFF)
	a.emit(modrm(3, 2, field))
}

// JmpRel32 emits a near unconditional jump with a placeholder rel32,
// returning the offset of the 4-byte displacement for later patching (spec
// §4.5 "Patching": "unconditional-jump sites").
func (a *Assembler) JmpRel32() (patchOffset int) {
	a.emit(0xE9)
	patchOffset = a.Len()
	a.emit32(0)
	return patchOffset
}

// JccRel32 emits a conditional near jump (cc is an x86 condition-code
// nibble, e.g. 0x4 for JE) with a placeholder rel32, returning the
// displacement offset (spec §4.5 "conditional-jump sites").
func (a *Assembler) JccRel32(cc byte) (patchOffset int) {
	a.emit(0x0F, 0x80|cc)
	patchOffset = a.Len()
	a.emit32(0)
	return patchOffset
}

// PatchRel32 rewrites the 4-byte displacement at offset so the jump whose
// instruction ends at offset+4 lands at target.
func (a *Assembler) PatchRel32(offset int, target int) {
	rel := int32(target - (offset + 4))
	binary.LittleEndian.PutUint32(a.buf[offset:offset+4], uint32(rel))
}

// TestRegReg emits `test dst, dst` (used to check a GPR against zero for
// CheckBit/CheckHalt terminator epilogues).
func (a *Assembler) TestRegReg(reg regalloc.RealReg) {
	a.regReg(true, 0x85, reg, reg)
}

const (
	CcE  = 0x4
	CcNE = 0x5
	CcL  = 0xC
	CcGE = 0xD
)

// UnaryOp selects NOT/NEG within the 0xF7 opcode group's ModRM.reg
// extension field.
type UnaryOp byte

const (
	UnaryNot UnaryOp = 2
	UnaryNeg UnaryOp = 3
)

// UnaryReg emits `op dst` in place (0xF7 /op).
func (a *Assembler) UnaryReg(op UnaryOp, dst regalloc.RealReg) {
	a.rex(true, 0, dst)
	a.emit(0xF7)
	field, _ := encBits(dst)
	a.emit(modrm(3, byte(op), field))
}

// ShiftOp selects ROL/ROR/SHL/SHR/SAR within the 0xC1/0xD3 opcode group's
// ModRM.reg extension field.
type ShiftOp byte

const (
	ShiftRol ShiftOp = 0
	ShiftRor ShiftOp = 1
	ShiftShl ShiftOp = 4
	ShiftShr ShiftOp = 5
	ShiftSar ShiftOp = 7
)

// ShiftRegImm8 emits `op dst, imm8` for a constant shift count.
func (a *Assembler) ShiftRegImm8(op ShiftOp, dst regalloc.RealReg, imm8 byte) {
	a.rex(true, 0, dst)
	a.emit(0xC1)
	field, _ := encBits(dst)
	a.emit(modrm(3, byte(op), field))
	a.emit(imm8)
}

// ShiftRegCl emits `op dst, cl`; the count must already be in CL.
func (a *Assembler) ShiftRegCl(op ShiftOp, dst regalloc.RealReg) {
	a.rex(true, 0, dst)
	a.emit(0xD3)
	field, _ := encBits(dst)
	a.emit(modrm(3, byte(op), field))
}

// SetccAndZeroExtend emits `setcc dst8` followed by a zero-extend of dst8
// into all 64 bits of dst, realizing an ICompare's u1 result as a 0/1 GPR
// value (spec §4.3's icmp opcode).
func (a *Assembler) SetccAndZeroExtend(cc byte, dst regalloc.RealReg) {
	field, bBit := encBits(dst)
	a.emit(0x40 | bBit) // force a REX prefix so the low byte is always SPL/BPL/SIL/DIL-safe
	a.emit(0x0F, 0x90|cc)
	a.emit(modrm(3, 0, field))
	a.rex(true, dst, dst)
	a.emit(0x0F, 0xB6)
	a.emit(modrm(3, field, field))
}

// MovzxReg emits a zero-extending move from a src register holding a
// srcWidth-bit value (8, 16, or 32) into all 64 bits of dst.
func (a *Assembler) MovzxReg(srcWidth int, dst, src regalloc.RealReg) {
	a.rex(srcWidth != 32, dst, src)
	if srcWidth == 32 {
		a.emit(0x8B) // plain 32-bit mov already zero-extends the upper half
	} else {
		a.emit(0x0F)
		if srcWidth == 8 {
			a.emit(0xB6)
		} else {
			a.emit(0xB7)
		}
	}
	dField, _ := encBits(dst)
	sField, _ := encBits(src)
	a.emit(modrm(3, dField, sField))
}

// CmovCc emits `cmovcc dst, src`: dst is overwritten with src when cc
// holds, and keeps its value otherwise.
func (a *Assembler) CmovCc(cc byte, dst, src regalloc.RealReg) {
	a.rex(true, dst, src)
	a.emit(0x0F, 0x40|cc)
	dField, _ := encBits(dst)
	sField, _ := encBits(src)
	a.emit(modrm(3, dField, sField))
}

// MovsxReg is MovzxReg's sign-extending counterpart.
func (a *Assembler) MovsxReg(srcWidth int, dst, src regalloc.RealReg) {
	a.rex(true, dst, src)
	if srcWidth == 32 {
		a.emit(0x63) // movsxd
	} else {
		a.emit(0x0F)
		if srcWidth == 8 {
			a.emit(0xBE)
		} else {
			a.emit(0xBF)
		}
	}
	dField, _ := encBits(dst)
	sField, _ := encBits(src)
	a.emit(modrm(3, dField, sField))
}
