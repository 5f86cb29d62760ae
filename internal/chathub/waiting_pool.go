package chathub

import (
	"iter"
	"slices"
)

// waitingPool is the insertion-ordered set of sessions seeking a partner.
// Order decides which candidate the matcher reaches first, not priority.
type waitingPool struct {
	order   []string
	members map[string]struct{}
}

func newWaitingPool() *waitingPool {
	return &waitingPool{members: make(map[string]struct{})}
}

// Enqueue appends id. It reports false if id was already waiting.
func (p *waitingPool) Enqueue(id string) bool {
	if _, ok := p.members[id]; ok {
		return false
	}
	p.members[id] = struct{}{}
	p.order = append(p.order, id)
	return true
}

// Dequeue removes id. It reports false if id was not waiting.
func (p *waitingPool) Dequeue(id string) bool {
	if _, ok := p.members[id]; !ok {
		return false
	}
	delete(p.members, id)
	if i := slices.Index(p.order, id); i >= 0 {
		p.order = slices.Delete(p.order, i, i+1)
	}
	return true
}

func (p *waitingPool) Contains(id string) bool {
	_, ok := p.members[id]
	return ok
}

func (p *waitingPool) Len() int {
	return len(p.order)
}

// All iterates the ids waiting at call time. The snapshot is taken when All
// is called, so the pool may change while the sequence is consumed and the
// sequence may be ranged over more than once.
func (p *waitingPool) All() iter.Seq[string] {
	snapshot := slices.Clone(p.order)
	return slices.Values(snapshot)
}
