package dynarm

// ExceptionKind mirrors internal/ir.ExceptionKind for the embedding-facing
// callback signature, so callers outside internal/ don't need to import
// it directly.
type ExceptionKind uint32

const (
	ExceptionUndefinedInstruction ExceptionKind = iota
	ExceptionUnpredictableInstruction
	ExceptionDecodeError
	ExceptionSendEvent
	ExceptionWaitForInterrupt
)

// A32Callbacks is the callback table an A32/Thumb CPU invokes for memory
// access and guest-faulting conditions (spec §6 "The callback table
// (distinct for A32 and A64)").
type A32Callbacks struct {
	MemoryReadCode func(vaddr uint32) uint32

	MemoryRead8   func(vaddr uint32) uint8
	MemoryRead16  func(vaddr uint32) uint16
	MemoryRead32  func(vaddr uint32) uint32
	MemoryRead64  func(vaddr uint32) uint64
	MemoryWrite8  func(vaddr uint32, v uint8)
	MemoryWrite16 func(vaddr uint32, v uint16)
	MemoryWrite32 func(vaddr uint32, v uint32)
	MemoryWrite64 func(vaddr uint32, v uint64)

	MemoryWriteExclusive8  func(vaddr uint32, v, expected uint8) bool
	MemoryWriteExclusive16 func(vaddr uint32, v, expected uint16) bool
	MemoryWriteExclusive32 func(vaddr uint32, v, expected uint32) bool
	MemoryWriteExclusive64 func(vaddr uint32, v, expected uint64) bool

	IsReadOnlyMemory func(vaddr uint32) bool

	InterpreterFallback func(pc uint32, numInstructions int)
	CallSVC             func(swi uint32)
	ExceptionRaised     func(pc uint32, kind ExceptionKind)

	AddTicks          func(n uint64)
	GetTicksRemaining func() uint64
}

// A64Callbacks is the A64 callback table: the same memory/exception/tick
// surface as A32Callbacks plus the 128-bit and A64-specific entries spec
// §6 lists.
type A64Callbacks struct {
	MemoryReadCode func(vaddr uint64) uint32

	MemoryRead8   func(vaddr uint64) uint8
	MemoryRead16  func(vaddr uint64) uint16
	MemoryRead32  func(vaddr uint64) uint32
	MemoryRead64  func(vaddr uint64) uint64
	MemoryRead128 func(vaddr uint64) [2]uint64

	MemoryWrite8   func(vaddr uint64, v uint8)
	MemoryWrite16  func(vaddr uint64, v uint16)
	MemoryWrite32  func(vaddr uint64, v uint32)
	MemoryWrite64  func(vaddr uint64, v uint64)
	MemoryWrite128 func(vaddr uint64, v [2]uint64)

	MemoryWriteExclusive8   func(vaddr uint64, v, expected uint8) bool
	MemoryWriteExclusive16  func(vaddr uint64, v, expected uint16) bool
	MemoryWriteExclusive32  func(vaddr uint64, v, expected uint32) bool
	MemoryWriteExclusive64  func(vaddr uint64, v, expected uint64) bool
	MemoryWriteExclusive128 func(vaddr uint64, v, expected [2]uint64) bool

	IsReadOnlyMemory func(vaddr uint64) bool

	InterpreterFallback func(pc uint64, numInstructions int)
	CallSVC             func(swi uint32)
	ExceptionRaised     func(pc uint64, kind ExceptionKind)

	AddTicks          func(n uint64)
	GetTicksRemaining func() uint64

	DataCacheOperationRaised        func(op uint32, xt uint64)
	InstructionCacheOperationRaised func(op uint32, xt uint64)
	GetCNTPCT                       func() uint64
}
