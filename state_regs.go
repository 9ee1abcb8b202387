package dynarm

import (
	"unsafe"

	"github.com/dynarm/dynarm/internal/ir"
	"github.com/dynarm/dynarm/internal/state"
)

// regPtr returns a pointer to the 16-byte slot backing name.
func (c *CPU) regPtr(name ir.RegName) unsafe.Pointer {
	return unsafe.Pointer(uintptr(c.ptr) + uintptr(state.RegOffset(name)))
}

// GetGPR/SetGPR read and write one general-purpose register: r0..r15 for
// ArchA32, x0..x30 for ArchA64 (spec §6 "State: get/set general-purpose
// registers").
func (c *CPU) GetGPR(n int) uint64 {
	var name ir.RegName
	if c.cfg.Arch == ArchA32 {
		name = ir.A32GPR(n)
		return uint64(*(*uint32)(c.regPtr(name)))
	}
	name = ir.A64GPR(n)
	return *(*uint64)(c.regPtr(name))
}

func (c *CPU) SetGPR(n int, v uint64) {
	if c.cfg.Arch == ArchA32 {
		*(*uint32)(c.regPtr(ir.A32GPR(n))) = uint32(v)
		return
	}
	*(*uint64)(c.regPtr(ir.A64GPR(n))) = v
}

// GetExtReg/SetExtReg read and write one A32 extended (S/D/Q-aliased)
// register as raw bytes; callers reinterpret per the width they asked
// for, matching how the teacher's moduleContextOpaque is addressed as
// untyped bytes rather than a Go union.
func (c *CPU) GetExtReg(n int) [16]byte {
	return *(*[16]byte)(c.regPtr(ir.A32ExtReg(n)))
}

func (c *CPU) SetExtReg(n int, v [16]byte) {
	*(*[16]byte)(c.regPtr(ir.A32ExtReg(n))) = v
}

// GetVectorReg/SetVectorReg read and write one A64 vector register's full
// 128 bits (spec §6 "State: get/set vector registers").
func (c *CPU) GetVectorReg(n int) [16]byte {
	return *(*[16]byte)(c.regPtr(ir.A64Vec(n)))
}

func (c *CPU) SetVectorReg(n int, v [16]byte) {
	*(*[16]byte)(c.regPtr(ir.A64Vec(n))) = v
}

// GetSP/SetSP read and write the stack pointer: r13 for ArchA32 (the
// teacher's guest state has no separate SP slot for A32, it is just
// GPR 13), the dedicated RegA64SP slot for ArchA64.
func (c *CPU) GetSP() uint64 {
	if c.cfg.Arch == ArchA32 {
		return c.GetGPR(13)
	}
	return *(*uint64)(c.regPtr(ir.RegA64SP))
}

func (c *CPU) SetSP(v uint64) {
	if c.cfg.Arch == ArchA32 {
		c.SetGPR(13, v)
		return
	}
	*(*uint64)(c.regPtr(ir.RegA64SP)) = v
}

// GetPC/SetPC read and write the program counter: r15 for ArchA32, the
// dedicated RegA64PC slot for ArchA64.
func (c *CPU) GetPC() uint64 {
	if c.cfg.Arch == ArchA32 {
		return c.GetGPR(15)
	}
	return *(*uint64)(c.regPtr(ir.RegA64PC))
}

// SetPC updates both the guest-state PC slot and the dispatcher's notion
// of the current block's entry location, so the next Run/Step starts
// from the new address rather than wherever the last block left off.
func (c *CPU) SetPC(v uint64) {
	if c.cfg.Arch == ArchA32 {
		c.SetGPR(15, v)
	} else {
		*(*uint64)(c.regPtr(ir.RegA64PC)) = v
	}
	c.loc = c.loc.WithPC(v)
}

// GetFPCR/SetFPCR and GetFPSR/SetFPSR read and write the A64 FPCR/FPSR
// control/status registers (spec §6 "State: get/set FPCR/FPSR").
func (c *CPU) GetFPCR() uint64 { return *(*uint64)(c.regPtr(ir.RegA64FPCR)) }
func (c *CPU) SetFPCR(v uint64) { *(*uint64)(c.regPtr(ir.RegA64FPCR)) = v }
func (c *CPU) GetFPSR() uint64 { return *(*uint64)(c.regPtr(ir.RegA64FPSR)) }
func (c *CPU) SetFPSR(v uint64) { *(*uint64)(c.regPtr(ir.RegA64FPSR)) = v }

// GetPSTATE/SetPSTATE (A64) and GetCPSR/SetCPSR (A32) read and write the
// packed flags/mode register (spec §6 "State: get/set
// PSTATE/CPSR"). Calling the wrong pair for the configured Arch panics,
// same as GetGPR/GetVectorReg would on an out-of-range index.
func (c *CPU) GetPSTATE() uint32 {
	c.requireArch(ArchA64, "GetPSTATE")
	return *(*uint32)(c.regPtr(ir.RegA64PSTATE))
}

func (c *CPU) SetPSTATE(v uint32) {
	c.requireArch(ArchA64, "SetPSTATE")
	*(*uint32)(c.regPtr(ir.RegA64PSTATE)) = v
}

func (c *CPU) GetCPSR() uint32 {
	c.requireArch(ArchA32, "GetCPSR")
	return *(*uint32)(c.regPtr(ir.RegA32CPSR))
}

func (c *CPU) SetCPSR(v uint32) {
	c.requireArch(ArchA32, "SetCPSR")
	*(*uint32)(c.regPtr(ir.RegA32CPSR)) = v
}

// GetFPSCR/SetFPSCR (A32) read and write the combined floating-point
// status/control register.
func (c *CPU) GetFPSCR() uint32 {
	c.requireArch(ArchA32, "GetFPSCR")
	return *(*uint32)(c.regPtr(ir.RegA32FPSCR))
}

func (c *CPU) SetFPSCR(v uint32) {
	c.requireArch(ArchA32, "SetFPSCR")
	*(*uint32)(c.regPtr(ir.RegA32FPSCR)) = v
}

func (c *CPU) requireArch(want Arch, method string) {
	if c.cfg.Arch != want {
		panic("dynarm: " + method + " called on a CPU not configured for that architecture")
	}
}
