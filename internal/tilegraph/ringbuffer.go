package tilegraph

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
)

// ErrWouldBlock is returned by Put/Get in non-blocking mode when the ring
// buffer has no space/no ready slot. It is not an error: callers either
// retry or report backpressure (spec §7's BackpressureSignal).
var ErrWouldBlock = errors.New("tilegraph: ring buffer would block")

// ErrShutdown is returned once the ring buffer has been told to shut down
// and has no more ready slots to deliver; it propagates the distinguished
// shutdown sentinel described in spec §5.
var ErrShutdown = errors.New("tilegraph: ring buffer shut down")

// slotStatus mirrors the INIT -> READY -> DONE lifecycle of spec §3's
// Ring-Buffer Slot. Transitions are plain atomic stores: the previous state is
// not checked, so an out-of-order transition is not detected or reported.
type slotStatus int32

const (
	statusInit slotStatus = iota
	statusReady
	statusDone
)

// Slot is the producer/consumer handle for one ring-buffer reservation.
// Payload is sized exactly to the caller's requested size; the producer
// fills it before calling SetReady.
type Slot struct {
	rb      *RingBuffer
	index   uint64
	size    int64
	status  int32
	Payload []byte
}

// Status reports the slot's current lifecycle state, for tests and
// diagnostics.
func (s *Slot) Status() string {
	switch slotStatus(atomic.LoadInt32(&s.status)) {
	case statusInit:
		return "INIT"
	case statusReady:
		return "READY"
	case statusDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// RingBuffer is a bounded multi-producer/multi-consumer transport: a
// byte-capacity budget with slot-lifecycle tracking over a fixed-length
// logical ring. Unlike the source's manual bump arena, slot payloads are
// ordinary Go byte slices — the GC already gives safe, cache-friendly
// variable-sized allocation, so reimplementing a hand-rolled arena would add
// risk (use-after-free, alignment bugs) without the benefit it has in C.
// What's preserved verbatim is the contract: three monotonic cursors, a
// byte-capacity budget, and cooperative blocking on park/wake.
type RingBuffer struct {
	mu      sync.Mutex
	notFull *sync.Cond
	notEmpty *sync.Cond

	capacityBytes int64
	usedBytes     int64

	ring  []*Slot // fixed-length logical ring; nil entries are empty
	head  uint64  // next reservation cursor (mod len(ring))
	tail  uint64  // next consumption cursor (mod len(ring))
	tail2 uint64  // reaped-done frontier (mod len(ring))

	blocking bool
	shutdown bool

	// color is a random start-offset chosen at construction, matching the
	// source's cache-line-aliasing mitigation; it only affects where the
	// first reservation lands, not correctness.
	color uint64
}

// NewRingBuffer constructs a ring buffer with the given byte capacity and
// logical slot count. blocking selects whether Put/Get park on backpressure
// (true) or return ErrWouldBlock immediately (false).
func NewRingBuffer(capacityBytes int64, slotCount int, blocking bool) *RingBuffer {
	if slotCount < 1 {
		slotCount = 1
	}
	rb := &RingBuffer{
		capacityBytes: capacityBytes,
		ring:          make([]*Slot, slotCount),
		blocking:      blocking,
		color:         pseudoRandomColor(),
	}
	rb.notFull = sync.NewCond(&rb.mu)
	rb.notEmpty = sync.NewCond(&rb.mu)
	rb.head = rb.color % uint64(slotCount)
	rb.tail = rb.head
	rb.tail2 = rb.head
	return rb
}

func pseudoRandomColor() uint64 {
	// Only needs to vary across instances to spread co-located buffers'
	// first reservations across cache lines; cryptographic strength is not
	// required.
	return rand.Uint64()
}

// Put reserves a slot sized to hold `size` payload bytes. In blocking mode it
// parks until space is reclaimed or Shutdown is called; in non-blocking mode
// it returns ErrWouldBlock immediately when the ring is full or the byte
// budget is exhausted.
func (rb *RingBuffer) Put(size int) (*Slot, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for {
		if rb.shutdown {
			return nil, ErrShutdown
		}
		if rb.hasRoom(int64(size)) {
			break
		}
		if !rb.blocking {
			return nil, ErrWouldBlock
		}
		rb.notFull.Wait()
	}

	idx := rb.head % uint64(len(rb.ring))
	slot := &Slot{rb: rb, index: rb.head, size: int64(size), Payload: make([]byte, size)}
	rb.ring[idx] = slot
	rb.usedBytes += int64(size)
	rb.head++
	return slot, nil
}

// hasRoom reports whether a size-byte reservation fits; caller holds mu.
func (rb *RingBuffer) hasRoom(size int64) bool {
	if rb.head-rb.tail2 >= uint64(len(rb.ring)) {
		return false
	}
	return rb.usedBytes+size <= rb.capacityBytes
}

// SetReady transitions a slot INIT -> READY. Must be called by the producer
// after the payload is fully written; establishes the release edge the
// consumer's acquire read of Payload depends on (spec §5).
func (rb *RingBuffer) SetReady(s *Slot) {
	atomic.StoreInt32(&s.status, int32(statusReady))
	rb.mu.Lock()
	rb.notEmpty.Broadcast()
	rb.mu.Unlock()
}

// Get dequeues the oldest READY slot. In blocking mode it parks until one
// becomes ready or the buffer shuts down with nothing left to deliver; in
// non-blocking mode it returns ErrWouldBlock when none is ready yet.
func (rb *RingBuffer) Get() (*Slot, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for {
		if rb.tail != rb.head {
			idx := rb.tail % uint64(len(rb.ring))
			slot := rb.ring[idx]
			if slot != nil && slotStatus(atomic.LoadInt32(&slot.status)) == statusReady {
				rb.tail++
				return slot, nil
			}
		}
		if rb.shutdown && rb.tail == rb.head {
			return nil, ErrShutdown
		}
		if !rb.blocking {
			return nil, ErrWouldBlock
		}
		rb.notEmpty.Wait()
	}
}

// SetDone transitions a slot READY -> DONE and releases its bytes for reuse.
// Reclamation advances tail2 past any contiguous prefix of DONE slots,
// matching spec §4.1's reclamation rule.
func (rb *RingBuffer) SetDone(s *Slot) {
	atomic.StoreInt32(&s.status, int32(statusDone))

	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.tail2 < rb.tail {
		idx := rb.tail2 % uint64(len(rb.ring))
		slot := rb.ring[idx]
		if slot == nil || slotStatus(atomic.LoadInt32(&slot.status)) != statusDone {
			break
		}
		rb.usedBytes -= slot.size
		rb.ring[idx] = nil
		rb.tail2++
	}
	rb.notFull.Broadcast()
}

// FreeSpace returns an instantaneous estimate of free byte capacity.
func (rb *RingBuffer) FreeSpace() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.capacityBytes - rb.usedBytes
}

// IsEmpty reports whether there is no ready-or-inflight slot outstanding.
func (rb *RingBuffer) IsEmpty() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.tail == rb.head
}

// IsFull reports whether the ring has no room for any reservation right now.
func (rb *RingBuffer) IsFull() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return !rb.hasRoom(1)
}

// Shutdown marks the buffer as shutting down and wakes every parked waiter;
// producers see ErrShutdown immediately, consumers drain remaining READY
// slots first and then see ErrShutdown, matching the shutdown-sentinel flow
// in spec §5.
func (rb *RingBuffer) Shutdown() {
	rb.mu.Lock()
	rb.shutdown = true
	rb.notFull.Broadcast()
	rb.notEmpty.Broadcast()
	rb.mu.Unlock()
}
