package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstPoolDedup(t *testing.T) {
	var p ConstPool
	off1 := p.Add(0x1122334455667788, 0)
	off2 := p.Add(0x1122334455667788, 0)
	require.Equal(t, off1, off2, "encoding the same immediate twice must yield the same pool offset")

	off3 := p.Add(0xdeadbeef, 0)
	require.NotEqual(t, off1, off3)

	off4 := p.Add(0x1122334455667788, 1)
	require.NotEqual(t, off1, off4, "a differing high half is a distinct entry")
}

func TestConstPoolBytesLayout(t *testing.T) {
	var p ConstPool
	off := p.Add(0xaabbccdd, 0x11223344)
	require.Equal(t, 0, off)
	require.Len(t, p.Bytes(), constPoolEntryBytes)
	require.Equal(t, constPoolEntryBytes, p.Len())
}
