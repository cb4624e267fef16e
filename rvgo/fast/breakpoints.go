package fast

import (
	"maps"
	"slices"
)

// Breakpoints is a set of PC values.
type Breakpoints struct {
	set map[U32]struct{}
}

func NewBreakpoints() *Breakpoints {
	return &Breakpoints{set: make(map[U32]struct{})}
}

func (b *Breakpoints) Add(pc U32) {
	b.set[pc] = struct{}{}
}

// Remove reports whether pc was set.
func (b *Breakpoints) Remove(pc U32) bool {
	_, ok := b.set[pc]
	delete(b.set, pc)
	return ok
}

// Has is safe to call on a nil set.
func (b *Breakpoints) Has(pc U32) bool {
	if b == nil {
		return false
	}
	_, ok := b.set[pc]
	return ok
}

func (b *Breakpoints) Len() int {
	if b == nil {
		return 0
	}
	return len(b.set)
}

func (b *Breakpoints) Clear() {
	clear(b.set)
}

// List returns the breakpoints in ascending order.
func (b *Breakpoints) List() []U32 {
	return slices.Sorted(maps.Keys(b.set))
}
