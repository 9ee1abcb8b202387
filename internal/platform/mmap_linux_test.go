package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapExecutable_LifecycleRoundTrip(t *testing.T) {
	r, err := MapExecutable(4096)
	require.NoError(t, err)
	require.Len(t, r.Bytes(), 4096)

	// 0xC3 is a bare `ret`; writing it while RW and then switching to RX
	// must not corrupt the mapping's contents.
	r.Bytes()[0] = 0xC3

	require.NoError(t, r.MakeExecutable())
	require.NoError(t, r.MakeWritable())
	require.Equal(t, byte(0xC3), r.Bytes()[0])

	require.NotZero(t, r.Addr())
	require.NoError(t, r.Release())
}
