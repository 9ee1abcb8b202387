package fastmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTable_LookupLocalOffsetMode(t *testing.T) {
	tbl := &Table{Bases: make([]uintptr, 4), Mode: AddrModeLocalOffset}
	tbl.Bases[1] = 0x7f0000000000

	host, ok := tbl.Lookup(PageSize+0x10, 32, MisalignedPolicy{})
	require.True(t, ok)
	require.Equal(t, uintptr(0x7f0000000010), host)
}

func TestTable_LookupAbsoluteOffsetMode(t *testing.T) {
	tbl := &Table{Bases: make([]uintptr, 4), Mode: AddrModeAbsoluteOffset}
	tbl.Bases[1] = 0x1000 // pre-biased: base - page_start already folded in

	host, ok := tbl.Lookup(PageSize+0x10, 32, MisalignedPolicy{})
	require.True(t, ok)
	require.Equal(t, uintptr(0x1000+PageSize+0x10), host)
}

func TestTable_LookupFallsBackOnNullEntry(t *testing.T) {
	tbl := &Table{Bases: make([]uintptr, 4), Mode: AddrModeLocalOffset}
	_, ok := tbl.Lookup(PageSize, 32, MisalignedPolicy{})
	require.False(t, ok)
}

func TestTable_LookupFallsBackOutOfRange(t *testing.T) {
	tbl := &Table{Bases: make([]uintptr, 1), Mode: AddrModeLocalOffset}
	_, ok := tbl.Lookup(4*PageSize, 32, MisalignedPolicy{})
	require.False(t, ok)
}

func TestTable_MisalignedAccessFallsBackWhenPoliced(t *testing.T) {
	tbl := &Table{Bases: make([]uintptr, 4), Mode: AddrModeLocalOffset}
	tbl.Bases[0] = 0x7f0000000000

	// Straddles the page boundary: offset PageSize-2, 4-byte access.
	_, ok := tbl.Lookup(PageSize-2, 32, MisalignedPolicy{Widths: map[int]bool{32: true}})
	require.False(t, ok)
}

func TestTable_MisalignedAccessAllowedWhenNotPoliced(t *testing.T) {
	tbl := &Table{Bases: make([]uintptr, 4), Mode: AddrModeLocalOffset}
	tbl.Bases[0] = 0x7f0000000000

	_, ok := tbl.Lookup(PageSize-2, 32, MisalignedPolicy{})
	require.True(t, ok)
}

func TestTable_OnlyAtPageBoundaryAllowsMidPageMisalignment(t *testing.T) {
	tbl := &Table{Bases: make([]uintptr, 4), Mode: AddrModeLocalOffset}
	tbl.Bases[0] = 0x7f0000000000

	policy := MisalignedPolicy{Widths: map[int]bool{32: true}, OnlyAtPageBoundary: true}
	// Misaligned (addr%4 != 0) but well within the page, doesn't straddle.
	_, ok := tbl.Lookup(0x10+1, 32, policy)
	require.True(t, ok)
}

func TestTable_RecordMissMirrorsOnlyWhenEnabled(t *testing.T) {
	tbl := &Table{Bases: make([]uintptr, 4), Mode: AddrModeLocalOffset, MirrorOnMiss: true}
	tbl.RecordMiss(2, 0x550000000000)
	require.Equal(t, uintptr(0x550000000000), tbl.Bases[2])

	tbl2 := &Table{Bases: make([]uintptr, 4), Mode: AddrModeLocalOffset}
	tbl2.RecordMiss(2, 0x550000000000)
	require.Equal(t, uintptr(0), tbl2.Bases[2])
}
