package fastmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterLookupUnregister(t *testing.T) {
	r := &Registry{sites: make(map[uintptr]FaultSite)}
	site := FaultSite{FaultingPC: 0x1000, ResumePC: 0x1010, CallbackPC: 0x2000}
	r.Register(site)

	got, ok := r.Lookup(0x1000)
	require.True(t, ok)
	require.Equal(t, site, got)

	_, ok = r.Lookup(0x9999)
	require.False(t, ok)

	r.Unregister(0x0f00, 0x1100)
	_, ok = r.Lookup(0x1000)
	require.False(t, ok)
}

func TestRegistry_UnregisterOnlyAffectsRange(t *testing.T) {
	r := &Registry{sites: make(map[uintptr]FaultSite)}
	r.Register(FaultSite{FaultingPC: 0x1000, ResumePC: 0x1010})
	r.Register(FaultSite{FaultingPC: 0x5000, ResumePC: 0x5010})

	r.Unregister(0x0, 0x2000)

	_, ok := r.Lookup(0x1000)
	require.False(t, ok)
	_, ok = r.Lookup(0x5000)
	require.True(t, ok)
}

func TestRegistry_HandlerReportsUnhandledForUnknownPC(t *testing.T) {
	r := &Registry{sites: make(map[uintptr]FaultSite)}
	_, handled := r.Handler(0xdead)
	require.False(t, handled)
}

func TestRegistry_HandlerResolvesKnownSite(t *testing.T) {
	r := &Registry{sites: make(map[uintptr]FaultSite)}
	r.Register(FaultSite{FaultingPC: 0x3000, ResumePC: 0x3100})

	resume, handled := r.Handler(0x3000)
	require.True(t, handled)
	require.Equal(t, uintptr(0x3100), resume)
}

func TestGlobalRegistryIsSharedSingleton(t *testing.T) {
	require.Same(t, Global(), Global())
}
