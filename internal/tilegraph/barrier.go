package tilegraph

import "sync"

// Barrier is a reusable rendezvous point for a fixed-size pool of goroutines,
// the Go substitute for pthread_barrier_wait at iteration boundaries (spec
// §5). Unlike sync.WaitGroup, it can be waited on repeatedly: every n-th
// arrival resets the generation and releases the previous n-1 waiters.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	count      int
	generation uint64
	onRelease  func()
}

// NewBarrier constructs a barrier for n participants. onRelease, if non-nil,
// runs once per generation on the goroutine that completes the barrier,
// before the other n-1 waiters are released — used for the "distinguished
// serial thread" duties spec §4.9/§5 assigns at round boundaries (advancing
// the iteration counter, forwarding shutdown).
func NewBarrier(n int, onRelease func()) *Barrier {
	b := &Barrier{n: n, onRelease: onRelease}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all n participants have called Wait for the current
// generation, then returns. The goroutine that completes the barrier runs
// onRelease before waking the others, and reports isLast=true.
func (b *Barrier) Wait() (isLast bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.count++
	if b.count < b.n {
		for gen == b.generation {
			b.cond.Wait()
		}
		return false
	}

	b.count = 0
	if b.onRelease != nil {
		b.onRelease()
	}
	b.generation++
	b.cond.Broadcast()
	return true
}
