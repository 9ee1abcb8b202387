package dynarm

import (
	"fmt"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"

	"github.com/dynarm/dynarm/internal/dispatch"
	"github.com/dynarm/dynarm/internal/ir"
	"github.com/dynarm/dynarm/internal/monitor"
	"github.com/dynarm/dynarm/internal/optimize"
	"github.com/dynarm/dynarm/internal/state"
	"github.com/dynarm/dynarm/internal/translate"
)

// CPU is one guest processor instance: a guest-state buffer, a block
// dispatcher, and the callback table driving both (spec §6 "External
// interfaces": "a small set of operations on a CPU instance").
type CPU struct {
	cfg Config

	buf  []byte // guest-state struct, laid out per internal/state
	ptr  unsafe.Pointer
	disp *dispatch.Dispatcher
	mon  *monitor.Monitor
	b    *ir.Builder

	loc ir.Location
}

// New constructs a CPU from cfg (spec §6 "Lifecycle: new(config), drop").
func New(cfg Config) (*CPU, error) {
	switch cfg.Arch {
	case ArchA32:
		if cfg.A32Callbacks == nil {
			return nil, fmt.Errorf("dynarm: Config.Arch is ArchA32 but A32Callbacks is nil")
		}
	case ArchA64:
		if cfg.A64Callbacks == nil {
			return nil, fmt.Errorf("dynarm: Config.Arch is ArchA64 but A64Callbacks is nil")
		}
	default:
		return nil, fmt.Errorf("dynarm: invalid Config.Arch %d", cfg.Arch)
	}

	mem, optsFn := translateOptionsFor(&cfg)
	optCfg := optimizeConfigFor(&cfg)

	disp, err := dispatch.New(mem, optsFn, optCfg)
	if err != nil {
		return nil, err
	}
	disp.Entry = cfg.Entry

	buf := make([]byte, state.TotalSize)
	ptr := unsafe.Pointer(&buf[0])
	*(*uint32)(unsafe.Pointer(uintptr(ptr) + uintptr(state.ProcessorIDOffset))) = cfg.ProcessorID

	c := &CPU{
		cfg:  cfg,
		buf:  buf,
		ptr:  ptr,
		disp: disp,
		mon:  cfg.monitorFor(),
		b:    ir.NewBuilder(),
		loc:  initialLocation(&cfg),
	}
	return c, nil
}

// Close releases the CPU's emitted-code region (spec §6 "drop").
func (c *CPU) Close() error { return c.disp.Close() }

func initialLocation(cfg *Config) ir.Location {
	switch cfg.Arch {
	case ArchA32:
		return ir.NewA32Location(0, false, false, 0, 0, false)
	default:
		return ir.NewA64Location(0, 0, false)
	}
}

func translateOptionsFor(cfg *Config) (translate.MemReadFunc, translate.Options) {
	opts := translate.Options{
		MaxInstructions:              cfg.MaxInstructionsPerBlock,
		DefineUnpredictableBehaviour: cfg.DefineUnpredictableBehaviour,
		HookDataCacheOperations:      cfg.HookDataCacheOperations,
		DCZIDEL0:                     cfg.DCZIDEL0,
	}
	var mem translate.MemReadFunc
	switch cfg.Arch {
	case ArchA32:
		mem = func(pc uint64) uint32 { return cfg.A32Callbacks.MemoryReadCode(uint32(pc)) }
	default:
		mem = func(pc uint64) uint32 { return cfg.A64Callbacks.MemoryReadCode(pc) }
	}
	return mem, opts
}

func optimizeConfigFor(cfg *Config) *optimize.Config {
	oc := &optimize.Config{HookDataCacheOperations: cfg.HookDataCacheOperations}
	if cfg.Optimizations&AllSafeOptimizations == 0 {
		return oc
	}
	switch cfg.Arch {
	case ArchA32:
		if cfg.A32Callbacks.IsReadOnlyMemory != nil {
			oc.IsReadOnly = func(addr uint64, size int) bool { return cfg.A32Callbacks.IsReadOnlyMemory(uint32(addr)) }
			oc.ReadConst = func(addr uint64, size int) uint64 { return readConstA32(cfg.A32Callbacks, addr, size) }
		}
	default:
		if cfg.A64Callbacks.IsReadOnlyMemory != nil {
			oc.IsReadOnly = func(addr uint64, size int) bool { return cfg.A64Callbacks.IsReadOnlyMemory(addr) }
			oc.ReadConst = func(addr uint64, size int) uint64 { return readConstA64(cfg.A64Callbacks, addr, size) }
		}
	}
	return oc
}

func readConstA32(cb *A32Callbacks, addr uint64, size int) uint64 {
	a := uint32(addr)
	switch size {
	case 1:
		return uint64(cb.MemoryRead8(a))
	case 2:
		return uint64(cb.MemoryRead16(a))
	case 4:
		return uint64(cb.MemoryRead32(a))
	default:
		return cb.MemoryRead64(a)
	}
}

func readConstA64(cb *A64Callbacks, addr uint64, size int) uint64 {
	switch size {
	case 1:
		return uint64(cb.MemoryRead8(addr))
	case 2:
		return uint64(cb.MemoryRead16(addr))
	case 4:
		return uint64(cb.MemoryRead32(addr))
	default:
		return cb.MemoryRead64(addr)
	}
}

// Run executes guest code from the current PC until a terminator returns
// control to the dispatcher (spec §6 "run()").
func (c *CPU) Run() error { return c.disp.Run(c.b, c.ptr, c.loc) }

// Step executes exactly one block (spec §6 "step()").
func (c *CPU) Step() error { return c.disp.Step(c.b, c.ptr, c.loc) }

// Halt requests cooperative stop at the next CheckHalt terminator (spec §6
// "halt()"). Safe to call from any host thread (spec §5 "Scheduling
// model").
func (c *CPU) Halt() { dispatch.SetHalt(c.ptr, true) }

// ExceptionalExit is the same cooperative stop request as Halt. A true
// unwind out of an in-flight embedding callback would need the kind of
// longjmp-style control transfer this exercise's synchronous Go call
// stack doesn't model; ExceptionalExit is accepted for API completeness
// but behaves identically to Halt.
func (c *CPU) ExceptionalExit() { c.Halt() }

// IsExecuting reports whether this CPU is currently inside Run/Step. The
// representative dispatcher here runs Run/Step synchronously to
// completion on the calling goroutine, so by the time this method could
// observe the CPU, Run has already returned; it always reports false.
func (c *CPU) IsExecuting() bool { return false }

// ClearCache drops every compiled block (spec §6 "clear_cache()").
func (c *CPU) ClearCache() { c.disp.InvalidateAll() }

// InvalidateRange drops compiled blocks overlapping [start, start+length)
// (spec §6 "invalidate_range(start, length)").
func (c *CPU) InvalidateRange(start, length uint64) { c.disp.InvalidateRange(start, start+length) }

// ClearExclusiveState drops this CPU's exclusive-monitor claim (spec §6
// "exclusive-state clear").
func (c *CPU) ClearExclusiveState() { c.mon.ClearExclusiveState(c.cfg.ProcessorID) }

// Disassemble renders the emitted code in [start, start+length) as Intel-
// syntax amd64 assembly, one instruction per line (spec §6 "Disassemble:
// Produce a textual dump of the emitted code range (debug only)").
func (c *CPU) Disassemble(start, length uint64) (string, error) {
	base := c.disp.StateBase()
	region := c.disp.CodeBytes()
	if start > uint64(len(region)) || start+length > uint64(len(region)) {
		return "", fmt.Errorf("dynarm: disassemble range [%d, %d) out of bounds for a %d-byte code region", start, start+length, len(region))
	}
	src := region[start : start+length]

	var out []byte
	pc := uint64(base) + start
	for len(src) > 0 {
		inst, err := x86asm.Decode(src, 64)
		if err != nil {
			out = append(out, fmt.Sprintf("%#x: <bad instruction: %v>\n", pc, err)...)
			src = src[1:]
			pc++
			continue
		}
		out = append(out, fmt.Sprintf("%#x: %s\n", pc, x86asm.IntelSyntax(inst, pc, nil))...)
		src = src[inst.Len:]
		pc += uint64(inst.Len)
	}
	return string(out), nil
}
