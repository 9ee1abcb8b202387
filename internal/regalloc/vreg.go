// Package regalloc implements the linear-scan host register allocator
// (spec §4.4) the emitter drives while lowering one IR block to host
// instructions.
package regalloc

import "math"

// RealReg is a physical host register, an index into the RealReg tables
// declared per host ISA (internal/host/amd64's reg.go).
type RealReg uint16

// RealRegInvalid marks a Location not yet assigned a physical register.
const RealRegInvalid RealReg = math.MaxUint16

// RegClass partitions live values into GPR and vector/XMM register files (spec
// §4.4 "a fixed set of general-purpose registers and a fixed set of
// vector registers").
type RegClass byte

const (
	RegClassInt RegClass = iota
	RegClassFloat
)

// HostLoc tags where a live value currently resides (spec §4.4 "Location
// model").
type HostLoc byte

const (
	// LocPending means "defined but never yet materialized — still a pure
	// immediate", spec §4.4.
	LocPending HostLoc = iota
	LocReg
	LocSpill
)
