package optimize

import (
	"fmt"

	"github.com/dynarm/dynarm/internal/ir"
)

// passVerify implements spec §4.3 step 8: check that every argument's type
// matches its opcode's declared ArgTypes and that every producer's use count
// equals the number of live references to it, counting both ordinary
// instruction arguments and the Block/Terminator Cond references (spec §8
// well-formedness, "exact use count"). A violation here means an earlier
// pass has a bug; the pipeline treats it as an abort-class error rather than
// silently shipping a miscompiled block.
func passVerify(blk *ir.Block) error {
	actual := make(map[ir.ValueID]int)
	byID := make(map[ir.ValueID]*ir.Instruction)

	for i := blk.Root(); i != nil; i = i.Next() {
		if r := i.Result(); r.Valid() {
			byID[r.ID()] = i
		}
	}

	for i := blk.Root(); i != nil; i = i.Next() {
		info := ir.Info(i.Opcode)
		if info.ArgTypes != nil {
			if len(i.Args()) != len(info.ArgTypes) {
				return fmt.Errorf("optimize: %s has %d args, want %d", i.Format(), len(i.Args()), len(info.ArgTypes))
			}
			for n, want := range info.ArgTypes {
				if got := i.Arg(n).Type(); got != want {
					return fmt.Errorf("optimize: %s arg %d has type %s, want %s", i.Format(), n, got, want)
				}
			}
		}
		for _, a := range i.Args() {
			if a.Valid() {
				actual[a.ID()]++
			}
		}
	}

	countCond := func(v ir.Value) {
		if v.Valid() {
			actual[v.ID()]++
		}
	}
	countCond(blk.Cond)
	var walkTerm func(t *ir.Terminator)
	walkTerm = func(t *ir.Terminator) {
		if t == nil {
			return
		}
		if t.Kind == ir.TermIf {
			countCond(t.Cond)
		}
		walkTerm(t.Then)
		walkTerm(t.Else)
		walkTerm(t.Inner)
	}
	walkTerm(blk.Term)

	for i := blk.Root(); i != nil; i = i.Next() {
		r := i.Result()
		if !r.Valid() {
			continue
		}
		if got, want := i.UseCount(), actual[r.ID()]; got != want {
			return fmt.Errorf("optimize: %s has use count %d, actual references %d", i.Format(), got, want)
		}
	}
	for id := range actual {
		if _, ok := byID[id]; !ok {
			return fmt.Errorf("optimize: value v%d referenced but has no producer in this block", id)
		}
	}

	return nil
}
