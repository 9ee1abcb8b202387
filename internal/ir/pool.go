package ir

// poolPageSize is the bucket size for the page-bucketed object pool below.
// Grounded on the teacher's ssa/pool.go, adapted for dynarm's Instruction
// and Block types instead of wasm's Instruction and basicBlock.
const poolPageSize = 128

type pool[T any] struct {
	pages            []*[poolPageSize]T
	allocated, index int
}

func newPool[T any]() pool[T] {
	var p pool[T]
	p.reset()
	return p
}

func (p *pool[T]) allocate() *T {
	if p.index == poolPageSize {
		if len(p.pages) == cap(p.pages) {
			p.pages = append(p.pages, new([poolPageSize]T))
		} else {
			i := len(p.pages)
			p.pages = p.pages[:i+1]
			if p.pages[i] == nil {
				p.pages[i] = new([poolPageSize]T)
			}
		}
		p.index = 0
	}
	ret := &p.pages[len(p.pages)-1][p.index]
	p.index++
	p.allocated++
	return ret
}

func (p *pool[T]) view(i int) *T {
	page, idx := i/poolPageSize, i%poolPageSize
	return &p.pages[page][idx]
}

// reset makes every allocated element zero-valued and available again,
// without releasing the backing pages, so steady-state reuse across
// compiled blocks allocates nothing on the Go heap.
func (p *pool[T]) reset() {
	for _, page := range p.pages {
		for i := range page {
			var zero T
			page[i] = zero
		}
	}
	p.pages = p.pages[:0]
	p.index = poolPageSize
	p.allocated = 0
}
