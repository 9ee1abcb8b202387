package optimize

import "github.com/dynarm/dynarm/internal/ir"

// memReadSizes maps each ReadMemory opcode to its size in bytes.
var memReadSizes = map[ir.Opcode]int{
	ir.OpReadMemory8:  1,
	ir.OpReadMemory16: 2,
	ir.OpReadMemory32: 4,
	ir.OpReadMemory64: 8,
}

// passConstMemReads implements spec §4.3 step 4: any ReadMemory{8,16,32,64}
// whose address is a known constant, and whose address range the callback
// reports as read-only, is replaced by the literal value it reads.
func passConstMemReads(blk *ir.Block, cfg *Config) {
	if cfg.IsReadOnly == nil || cfg.ReadConst == nil {
		return
	}
	pm := buildProducerMap(blk)
	for i := blk.Root(); i != nil; i = i.Next() {
		size, ok := memReadSizes[i.Opcode]
		if !ok {
			continue
		}
		addrProd := pm.lookup(i.Arg(0))
		if addrProd == nil || addrProd.Opcode != ir.OpIconst {
			continue
		}
		addr := addrProd.Imm
		if !cfg.IsReadOnly(addr, size) {
			continue
		}
		i.ReplaceWithConst(cfg.ReadConst(addr, size), pm.lookup)
	}
}
