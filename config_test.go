package dynarm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynarm/dynarm/internal/monitor"
)

func TestNewRejectsMismatchedCallbacks(t *testing.T) {
	_, err := New(Config{Arch: ArchA32})
	require.Error(t, err)

	_, err = New(Config{Arch: ArchA64})
	require.Error(t, err)
}

func TestNewRejectsInvalidArch(t *testing.T) {
	_, err := New(Config{Arch: Arch(99)})
	require.Error(t, err)
}

func TestMonitorForDefaultsToGlobal(t *testing.T) {
	var cfg Config
	require.Same(t, monitor.Global, cfg.monitorFor())
}

func TestMonitorForPrefersConfigured(t *testing.T) {
	custom := monitor.New()
	cfg := Config{GlobalMonitor: custom}
	require.Same(t, custom, cfg.monitorFor())
}
