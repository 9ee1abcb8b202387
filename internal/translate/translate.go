// Package translate is the entry point `translate(location_descriptor,
// memory_read_code_fn, options) -> IR block` (spec §4.2), dispatching to
// the architecture-specific decoder/visitor set selected by the location's
// Arch and Thumb bits. Grounded on frontend.Compiler.LowerToSSA's overall
// shape (reset builder, lower one unit of guest code, return) from the
// teacher's frontend/frontend.go.
package translate

import (
	"fmt"

	"github.com/dynarm/dynarm/internal/ir"
	"github.com/dynarm/dynarm/internal/translate/a32"
	"github.com/dynarm/dynarm/internal/translate/a64"
	"github.com/dynarm/dynarm/internal/translate/thumb"
	"github.com/dynarm/dynarm/internal/translate/xlatopts"
)

// MemReadFunc and Options are re-exported so callers need not import the
// xlatopts leaf package directly.
type MemReadFunc = xlatopts.MemReadFunc
type Options = xlatopts.Options

// Translate decodes and lowers exactly one guest block starting at loc
// (spec §4.2 "Translator"). b is reset by the caller between blocks; this
// function only calls b.StartBlock once, via the chosen architecture's
// Translate function.
func Translate(b *ir.Builder, loc ir.Location, mem MemReadFunc, opts Options) (*ir.Block, error) {
	switch loc.Arch() {
	case ir.ArchA32:
		if loc.Thumb() {
			return thumb.Translate(b, loc, mem, opts)
		}
		return a32.Translate(b, loc, mem, opts)
	case ir.ArchA64:
		return a64.Translate(b, loc, mem, opts)
	default:
		return nil, fmt.Errorf("translate: unknown architecture for location %#x", loc.PC)
	}
}
