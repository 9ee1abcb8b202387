package amd64

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeFPCR(t *testing.T) {
	raw := uint32(1<<25 | 1<<24 | 2<<22)
	got := DecodeFPCR(raw)
	require.True(t, got.DN)
	require.True(t, got.FZ)
	require.Equal(t, RoundTowardMinusInf, got.RMode)
	require.False(t, got.FZ16)
	require.False(t, got.AHP)
}

func TestRoundToIntegral(t *testing.T) {
	require.Equal(t, 2.0, RoundToIntegral(1.5, RoundTowardPlusInf))
	require.Equal(t, 1.0, RoundToIntegral(1.5, RoundTowardMinusInf))
	require.Equal(t, 1.0, RoundToIntegral(1.9, RoundTowardZero))
	require.Equal(t, 2.0, RoundToIntegral(2.5, RoundNearestEven))
	require.Equal(t, 2.0, RoundToIntegral(1.5, RoundNearestEven))
}

func TestApplyDefaultNaN64(t *testing.T) {
	nan := math.Float64bits(math.NaN())
	require.Equal(t, uint64(defaultNaN64), ApplyDefaultNaN64(nan, FPCRSettings{DN: true}))
	require.Equal(t, nan, ApplyDefaultNaN64(nan, FPCRSettings{DN: false}))

	notNaN := math.Float64bits(1.0)
	require.Equal(t, notNaN, ApplyDefaultNaN64(notNaN, FPCRSettings{DN: true}))
}

func TestApplyDefaultNaN32(t *testing.T) {
	nan := math.Float32bits(float32(math.NaN()))
	require.Equal(t, uint32(defaultNaN32), ApplyDefaultNaN32(nan, FPCRSettings{DN: true}))
	require.Equal(t, nan, ApplyDefaultNaN32(nan, FPCRSettings{DN: false}))
}

func TestFlushToZero64(t *testing.T) {
	subnormal := uint64(0x0000000000000001)
	require.Equal(t, uint64(0), FlushToZero64(subnormal, FPCRSettings{FZ: true}))
	require.Equal(t, subnormal, FlushToZero64(subnormal, FPCRSettings{FZ: false}))

	negSubnormal := uint64(1<<63 | 1)
	require.Equal(t, uint64(1<<63), FlushToZero64(negSubnormal, FPCRSettings{FZ: true}))

	normal := math.Float64bits(1.0)
	require.Equal(t, normal, FlushToZero64(normal, FPCRSettings{FZ: true}))
}

func TestFlushToZero32(t *testing.T) {
	subnormal := uint32(1)
	require.Equal(t, uint32(0), FlushToZero32(subnormal, FPCRSettings{FZ: true}))

	normal := math.Float32bits(1.0)
	require.Equal(t, normal, FlushToZero32(normal, FPCRSettings{FZ: true}))
}
