package fastmem

import "sync"

// FaultSite is what the registry knows about one inline fastmem access:
// where to resume (the fallback sequence's entry) once a fault at
// FaultingPC has been recognized (spec §4.7 "Signal-based fastmem": "a
// per-block map keyed by faulting-PC to (resume-PC, callback address)").
type FaultSite struct {
	FaultingPC  uintptr
	ResumePC    uintptr
	CallbackPC  uintptr
}

// Registry is the process-wide fault-site table (spec §9 "Design notes:
// Global state" — "lazy-initialized, internally synchronized... keep it to
// one registry, do not multiplex by instance"). Nothing outside this
// package calls Register or Unregister: the amd64 emitter emits no inline
// fastmem accesses, so the global registry stays empty unless an embedder
// fills it.
type Registry struct {
	mu    sync.Mutex
	sites map[uintptr]FaultSite
}

// global is the single process-wide instance every CPU shares.
var global = &Registry{sites: make(map[uintptr]FaultSite)}

// Global returns the process-wide fault registry.
func Global() *Registry { return global }

// Register records a fault site keyed by its FaultingPC, replacing any
// earlier site with the same PC.
func (r *Registry) Register(site FaultSite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites[site.FaultingPC] = site
}

// Unregister drops every site whose FaultingPC falls in [start, end).
func (r *Registry) Unregister(start, end uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pc := range r.sites {
		if pc >= start && pc < end {
			delete(r.sites, pc)
		}
	}
}

// Lookup returns the fault site for a faulting PC, if the registry has one
// (spec §4.7: "If the map does not contain the PC, the original signal
// disposition is restored").
func (r *Registry) Lookup(faultingPC uintptr) (FaultSite, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sites[faultingPC]
	return s, ok
}

// Handler is the decision a process-wide SIGSEGV/SIGBUS handler makes for
// one fault: given the faulting PC, either rewrite the host PC to resume
// at a fallback sequence, or report that this fault is not ours to handle
// (the caller must then restore the original disposition and re-raise).
//
// Installing an actual SA_SIGINFO handler that can read and rewrite the
// faulting thread's saved program counter needs either cgo or raw
// runtime-internal assembly trampolines; nothing in this corpus
// demonstrates that pattern (golang.org/x/sys/unix exposes Sigaction's
// bitmask/mask-set plumbing, but not a Go-callable replacement for the C
// trampoline the kernel invokes). Registry and Handler provide everything
// around that boundary — the bookkeeping, the lookup, the decision — ready
// to be driven by whatever OS-specific handler an embedding installs;
// wiring the actual signal disposition is left to the embedder, the same
// way internal/dispatch.EntryTrampoline leaves Go-calling-convention glue
// to the caller.
func (r *Registry) Handler(faultingPC uintptr) (resumePC uintptr, handled bool) {
	site, ok := r.Lookup(faultingPC)
	if !ok {
		return 0, false
	}
	return site.ResumePC, true
}
