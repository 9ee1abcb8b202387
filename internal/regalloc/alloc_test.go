package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynarm/dynarm/internal/ir"
)

func testInfo() *RegInfo {
	return &RegInfo{
		GPRs:         []RealReg{1, 2, 3},
		XMMs:         []RealReg{10, 11},
		ArgGPRs:      []RealReg{1, 2},
		ArgXMMs:      []RealReg{10},
		ReturnGPR:    1,
		ReturnXMM:    10,
		FlagsScratch: 3,
		CalleeSaved:  map[RealReg]bool{2: true},
	}
}

func newVal(id uint32) ir.Value { return ir.Value(id) | ir.Value(ir.TypeU64)<<32 }

func TestAllocator_UseRegThenRelease(t *testing.T) {
	a := NewAllocator(testInfo(), func(ir.Value) *ir.Instruction { return nil })
	v := newVal(1)

	r1 := a.UseReg(v)
	r2 := a.UseReg(v)
	require.Equal(t, r1, r2, "repeated UseReg of the same still-live value must return the same register")

	a.Release(v)
	require.Equal(t, 3, len(a.freeGPR), "releasing the only live value must return its register to the free list")
}

func TestAllocator_EvictsLRUWhenFull(t *testing.T) {
	a := NewAllocator(testInfo(), func(ir.Value) *ir.Instruction { return nil })
	v1, v2, v3, v4 := newVal(1), newVal(2), newVal(3), newVal(4)

	a.UseReg(v1)
	a.UseReg(v2)
	a.UseReg(v3)
	// All three GPRs are now occupied; a fourth live value must evict v1,
	// the least recently touched.
	a.UseReg(v4)

	loc1, ok := a.SpillLoc(v1)
	require.True(t, ok)
	require.Equal(t, LocSpill, loc1.Kind)

	loc4, ok := a.SpillLoc(v4)
	require.True(t, ok)
	require.Equal(t, LocReg, loc4.Kind)
}

func TestAllocator_HostCallSpillsCallerSaved(t *testing.T) {
	a := NewAllocator(testInfo(), func(ir.Value) *ir.Instruction { return nil })
	caller, callee := newVal(1), newVal(2)

	a.UseReg(caller) // lands in GPR 1 (preference order)
	a.UseReg(callee) // lands in GPR 2, which testInfo marks CalleeSaved

	plan := a.HostCall(ir.ValueInvalid, false, nil, nil)
	require.Equal(t, RealRegInvalid, plan.ResultReg)

	callerLoc, _ := a.SpillLoc(caller)
	require.Equal(t, LocSpill, callerLoc.Kind, "caller-saved register holding a live value must be spilled across a call")

	calleeLoc, _ := a.SpillLoc(callee)
	require.Equal(t, LocReg, calleeLoc.Kind, "callee-saved register is preserved across the call and needs no spill")
}

func TestAllocator_HostCallAssignsArgRegsAndResult(t *testing.T) {
	a := NewAllocator(testInfo(), func(ir.Value) *ir.Instruction { return nil })
	arg0, arg1, result := newVal(1), newVal(2), newVal(3)

	plan := a.HostCall(result, false, []ir.Value{arg0, arg1}, []bool{false, false})
	require.Equal(t, []RealReg{1, 2}, plan.ArgRegs)
	require.Equal(t, RealReg(1), plan.ResultReg)

	resLoc, ok := a.SpillLoc(result)
	require.True(t, ok)
	require.Equal(t, RealReg(1), resLoc.Reg)
}

func TestAllocator_ReleaseUnknownValueIsNoop(t *testing.T) {
	a := NewAllocator(testInfo(), func(ir.Value) *ir.Instruction { return nil })
	require.NotPanics(t, func() { a.Release(newVal(99)) })
}
