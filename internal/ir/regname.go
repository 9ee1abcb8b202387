package ir

import "fmt"

// RegName is an opaque reference to a guest register slot maintained in the
// guest-state struct (spec §3 "IR value": "a reference to a fixed constant
// such as a register name or condition code"; spec §4.3 step 2 enumerates
// the slot kinds the get/set elimination pass tracks: "GPRs, flags, FPR
// lanes, SP, PC, extended registers, CPSR fields").
type RegName uint16

const (
	// A32/Thumb general-purpose registers r0..r15 (r13=SP, r14=LR, r15=PC).
	RegA32GPR0 RegName = iota
)

// A32GPR returns the RegName for A32 general register n (0..15).
func A32GPR(n int) RegName {
	if n < 0 || n > 15 {
		panic(fmt.Sprintf("ir: invalid A32 GPR index %d", n))
	}
	return RegA32GPR0 + RegName(n)
}

const (
	RegA32CPSR RegName = 64 + iota
	RegA32FPSCR
	regA32FPR0 // 64 extended (S/D/Q-aliased) registers follow
)

// A32ExtReg returns the RegName for A32 extended register n (0..63, the
// spec's "64×32-bit extension registers").
func A32ExtReg(n int) RegName {
	if n < 0 || n > 63 {
		panic(fmt.Sprintf("ir: invalid A32 extended register index %d", n))
	}
	return regA32FPR0 + RegName(n)
}

const (
	// A64 general-purpose registers x0..x30; SP and PC are separate slots
	// because A64 keeps SP and the zero register distinct from x0..x30.
	RegA64GPR0 RegName = 256 + iota
)

// A64GPR returns the RegName for A64 general register n (0..30).
func A64GPR(n int) RegName {
	if n < 0 || n > 30 {
		panic(fmt.Sprintf("ir: invalid A64 GPR index %d", n))
	}
	return RegA64GPR0 + RegName(n)
}

const (
	RegA64SP RegName = 320 + iota
	RegA64PC
	RegA64PSTATE
	RegA64FPCR
	RegA64FPSR
	regA64Vec0 // 32 128-bit vector registers follow
)

// A64Vec returns the RegName for A64 vector register n (0..31).
func A64Vec(n int) RegName {
	if n < 0 || n > 31 {
		panic(fmt.Sprintf("ir: invalid A64 vector register index %d", n))
	}
	return regA64Vec0 + RegName(n)
}

// CheckBit is the pseudo-register the CBZ/CBNZ-supporting CheckBit
// terminator reads (spec §4.5 "CheckBit(then, else)").
const RegCheckBit RegName = 1023
