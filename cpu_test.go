package dynarm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynarm/dynarm/internal/ir"
)

// retWord is RET X0, and dcZvaWord is DC ZVA, X0, both encoded per the A64
// decode table; used here only to get real emitted bytes into the region
// for Disassemble, not to exercise Run/Step (those need an EntryTrampoline
// no test in this package provides).
const retWord = 0xd65f0000
const dcZvaWord = 0xd5091c00

func newTestA64CPU(t *testing.T) *CPU {
	t.Helper()
	cb := &A64Callbacks{
		MemoryReadCode: func(vaddr uint64) uint32 { return retWord },
	}
	c, err := New(Config{Arch: ArchA64, A64Callbacks: cb})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestA32CPU(t *testing.T) *CPU {
	t.Helper()
	cb := &A32Callbacks{
		MemoryReadCode: func(vaddr uint32) uint32 { return 0 },
	}
	c, err := New(Config{Arch: ArchA32, A32Callbacks: cb})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCPU_A64GPRRoundTrip(t *testing.T) {
	c := newTestA64CPU(t)
	c.SetGPR(3, 0x1122334455667788)
	require.Equal(t, uint64(0x1122334455667788), c.GetGPR(3))
}

func TestCPU_A32GPRTruncatesTo32Bits(t *testing.T) {
	c := newTestA32CPU(t)
	c.SetGPR(5, 0xffffffff00000042)
	require.Equal(t, uint64(0x42), c.GetGPR(5))
}

func TestCPU_A64SPAndPCAreDistinctFromGPRs(t *testing.T) {
	c := newTestA64CPU(t)
	c.SetSP(0xaaaa)
	c.SetGPR(0, 0xbbbb)
	require.Equal(t, uint64(0xaaaa), c.GetSP())
	require.Equal(t, uint64(0xbbbb), c.GetGPR(0))
}

func TestCPU_A32SPIsGPR13(t *testing.T) {
	c := newTestA32CPU(t)
	c.SetSP(0x7000)
	require.Equal(t, uint64(0x7000), c.GetGPR(13))
}

func TestCPU_SetPCUpdatesDispatchLocation(t *testing.T) {
	c := newTestA64CPU(t)
	c.SetPC(0x4000)
	require.Equal(t, uint64(0x4000), c.GetPC())
	require.Equal(t, uint64(0x4000), c.loc.PC)
}

func TestCPU_VectorRegRoundTrip(t *testing.T) {
	c := newTestA64CPU(t)
	var v [16]byte
	for i := range v {
		v[i] = byte(i)
	}
	c.SetVectorReg(7, v)
	require.Equal(t, v, c.GetVectorReg(7))
}

func TestCPU_FPCRFPSRRoundTrip(t *testing.T) {
	c := newTestA64CPU(t)
	c.SetFPCR(0xcafe)
	c.SetFPSR(0xbeef)
	require.Equal(t, uint64(0xcafe), c.GetFPCR())
	require.Equal(t, uint64(0xbeef), c.GetFPSR())
}

func TestCPU_PSTATERoundTrip(t *testing.T) {
	c := newTestA64CPU(t)
	c.SetPSTATE(0x80000000)
	require.Equal(t, uint32(0x80000000), c.GetPSTATE())
}

func TestCPU_CPSRPanicsOnA64CPU(t *testing.T) {
	c := newTestA64CPU(t)
	require.Panics(t, func() { c.GetCPSR() })
}

func TestCPU_ClearExclusiveStateDoesNotPanic(t *testing.T) {
	c := newTestA64CPU(t)
	c.ClearExclusiveState()
}

func TestCPU_RunWithoutEntryTrampolineErrors(t *testing.T) {
	c := newTestA64CPU(t)
	err := c.Run()
	require.Error(t, err)
}

func TestCPU_ClearCacheAndInvalidateRangeDoNotPanicWhenEmpty(t *testing.T) {
	c := newTestA64CPU(t)
	c.ClearCache()
	c.InvalidateRange(0, 0x1000)
}

func TestCPU_Disassemble(t *testing.T) {
	c := newTestA64CPU(t)
	loc := ir.NewA64Location(0x1000, 0, false)

	_, err := c.disp.Resolve(c.b, loc)
	require.NoError(t, err)

	out, err := c.Disassemble(0, uint64(len(c.disp.CodeBytes())))
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

func TestCPU_DisassembleRejectsOutOfRange(t *testing.T) {
	c := newTestA64CPU(t)
	_, err := c.Disassemble(0, 1<<30)
	require.Error(t, err)
}
