// Package amd64 implements the host code emitter for the x86-64 backend
// (spec §4.5), lowering one optimized IR block to host machine code via
// internal/regalloc.
package amd64

import "github.com/dynarm/dynarm/internal/regalloc"

// Amd64-specific registers. RAX..R15 are numbered to match their
// ModRM/REX.B encoding (so for them RealReg(r) & 7 is the three-bit field
// and RealReg(r) >> 3 is the REX extension bit; the XMM registers are
// numbered from 16 onwards), following the same "index IS the encoding"
// convention as the teacher's arm64 reg.go.
const (
	RAX regalloc.RealReg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15

	numRegisters
)

var regNames = [...]string{
	RAX: "rax", RCX: "rcx", RDX: "rdx", RBX: "rbx",
	RSP: "rsp", RBP: "rbp", RSI: "rsi", RDI: "rdi",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11",
	R12: "r12", R13: "r13", R14: "r14", R15: "r15",
	XMM0: "xmm0", XMM1: "xmm1", XMM2: "xmm2", XMM3: "xmm3",
	XMM4: "xmm4", XMM5: "xmm5", XMM6: "xmm6", XMM7: "xmm7",
	XMM8: "xmm8", XMM9: "xmm9", XMM10: "xmm10", XMM11: "xmm11",
	XMM12: "xmm12", XMM13: "xmm13", XMM14: "xmm14", XMM15: "xmm15",
}

func (e *Emitter) regName(r regalloc.RealReg) string {
	if int(r) >= len(regNames) {
		return "?"
	}
	return regNames[r]
}

// encBits returns the 3-bit ModRM/SIB register field and the REX extension
// bit for r (valid for both the GPR and XMM files — the encoder always
// selects the right opcode map separately).
func encBits(r regalloc.RealReg) (field byte, rexBit byte) {
	v := byte(r)
	if r >= XMM0 {
		v = byte(r - XMM0)
	}
	return v & 7, (v >> 3) & 1
}

// SysVRegInfo is the regalloc.RegInfo for the System V AMD64 ABI (spec §4.4,
// §4.5): RBX/RBP/R12-R15 are callee-saved, RDI/RSI/RDX/RCX/R8/R9 carry
// integer arguments in order, XMM0-7 carry float arguments, and RAX/XMM0
// are the return registers. RBP and R15 are reserved by dynarm itself as
// the guest-state pointer and page-table base (spec §4.4 "The emitter
// reserves a small subset for fixed purposes"), so they are excluded from
// the allocatable GPR set; RAX/RDX double as the scratch pair since the
// emitter materializes flags and call results through them anyway.
var SysVRegInfo = &regalloc.RegInfo{
	GPRs: []regalloc.RealReg{RAX, RDX, RCX, RBX, RSI, RDI, R8, R9, R10, R11, R12, R13, R14},
	XMMs: []regalloc.RealReg{
		XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7,
		XMM8, XMM9, XMM10, XMM11, XMM12, XMM13, XMM14, XMM15,
	},
	StatePointer:  RBP,
	PageTableBase: R15,
	Scratch1:      RAX,
	Scratch2:      RDX,
	CalleeSaved: map[regalloc.RealReg]bool{
		RBX: true, RBP: true, R12: true, R13: true, R14: true, R15: true,
	},
	ArgGPRs:      []regalloc.RealReg{RDI, RSI, RDX, RCX, R8, R9},
	ArgXMMs:      []regalloc.RealReg{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7},
	ReturnGPR:    RAX,
	ReturnXMM:    XMM0,
	FlagsScratch: RAX,
}
