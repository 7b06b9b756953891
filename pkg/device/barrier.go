package device

import (
	"errors"
	"sync"
)

// errBarrierPoisoned aborts subgroups stuck at a barrier after a sibling
// subgroup died; without it a kernel panic would deadlock the block.
var errBarrierPoisoned = errors.New("block barrier poisoned by failed subgroup")

// barrier is the per-block cyclic rendezvous for all subgroups of one
// block. It is reused across tile iterations.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	waiting int
	phase   int
	broken  bool
}

func newBarrier(n int) *barrier {
	b := &barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// await blocks until all n subgroups have arrived, then releases the whole
// block into the next phase.
func (b *barrier) await() {
	b.mu.Lock()
	if b.broken {
		b.mu.Unlock()
		panic(errBarrierPoisoned)
	}
	phase := b.phase
	b.waiting++
	if b.waiting == b.n {
		b.waiting = 0
		b.phase++
		b.cond.Broadcast()
		b.mu.Unlock()
		return
	}
	for phase == b.phase && !b.broken {
		b.cond.Wait()
	}
	broken := b.broken
	b.mu.Unlock()
	if broken {
		panic(errBarrierPoisoned)
	}
}

// poison wakes every waiter with a panic instead of a release.
func (b *barrier) poison() {
	b.mu.Lock()
	b.broken = true
	b.cond.Broadcast()
	b.mu.Unlock()
}
