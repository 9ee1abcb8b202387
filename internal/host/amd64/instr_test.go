package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynarm/dynarm/internal/ir"
)

func buildProducerOf(blk *ir.Block) func(ir.Value) *ir.Instruction {
	m := make(map[ir.ValueID]*ir.Instruction)
	for i := blk.Root(); i != nil; i = i.Next() {
		if r := i.Result(); r.Valid() {
			m[r.ID()] = i
		}
	}
	return func(v ir.Value) *ir.Instruction {
		if !v.Valid() {
			return nil
		}
		return m[v.ID()]
	}
}

func TestEmitter_LowerAddAndLinkBlock(t *testing.T) {
	b := ir.NewBuilder()
	blk := b.StartBlock(ir.Location{PC: 0x1000})
	r0 := b.GetRegister(ir.A32GPR(0), ir.TypeU64)
	r1 := b.GetRegister(ir.A32GPR(1), ir.TypeU64)
	sum := b.Add(r0, r1)
	b.SetRegister(ir.A32GPR(0), sum)
	blk.SetTerminator(ir.LinkBlock(ir.Location{PC: 0x1004}))

	e := NewEmitter(SysVRegInfo, buildProducerOf(blk))
	result, err := e.Lower(blk)
	require.NoError(t, err)
	require.NotEmpty(t, result.Code)
	require.Len(t, result.JumpSites, 1)
	require.Equal(t, uint64(0x1004), result.JumpSites[0].Target.PC)
	require.Empty(t, result.CondJumpSites)
	require.Empty(t, result.MovImmSites)
}

func TestEmitter_LowerInterpretRecordsMovImmSite(t *testing.T) {
	b := ir.NewBuilder()
	blk := b.StartBlock(ir.Location{PC: 0x2000})
	blk.SetTerminator(ir.Interpret(ir.Location{PC: 0x2004}))

	e := NewEmitter(SysVRegInfo, buildProducerOf(blk))
	result, err := e.Lower(blk)
	require.NoError(t, err)
	require.Len(t, result.MovImmSites, 1)
	require.Equal(t, uint64(0x2004), result.MovImmSites[0].Target.PC)
}

func TestEmitter_LowerICompareAndSelect(t *testing.T) {
	b := ir.NewBuilder()
	blk := b.StartBlock(ir.Location{PC: 0x3000})
	r0 := b.GetRegister(ir.A32GPR(0), ir.TypeU64)
	r1 := b.GetRegister(ir.A32GPR(1), ir.TypeU64)
	eq := b.ICompare(ir.CondEQ, r0, r1)
	sel := b.Select(eq, r0, r1)
	b.SetRegister(ir.A32GPR(2), sel)
	blk.SetTerminator(ir.ReturnToDispatch())

	e := NewEmitter(SysVRegInfo, buildProducerOf(blk))
	result, err := e.Lower(blk)
	require.NoError(t, err)
	require.NotEmpty(t, result.Code)
}

func TestEmitter_LowerReadMemoryEmitsHostCall(t *testing.T) {
	b := ir.NewBuilder()
	blk := b.StartBlock(ir.Location{PC: 0x4000})
	addr := b.Iconst(ir.TypeU64, 0x8000)
	v := b.ReadMemory(32, addr)
	b.SetRegister(ir.A32GPR(3), v)
	blk.SetTerminator(ir.ReturnToDispatch())

	e := NewEmitter(SysVRegInfo, buildProducerOf(blk))
	result, err := e.Lower(blk)
	require.NoError(t, err)
	require.NotEmpty(t, result.Code)
}
