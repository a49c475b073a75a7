// Package tilegraph implements the out-of-core tile-based vertex-centric
// execution pipeline: ring-buffer transport, refcounted tile offset tables,
// barrier-synchronized iterations, and the fetch/process/reduce/apply
// component chain described for each storage shard (an EdgeProcessor), all
// orchestrated by a single VertexDomain.
package tilegraph

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/sslab-gatech/tile-graph/pkg/collections"
	"github.com/sslab-gatech/tile-graph/internal/tilegraph/kernel"
)

// MagicIdentifier is the constant stamped into every TileBlock and
// ProcessedBlock header (spec §8's "magic_identifier equals the constant used
// at creation" invariant). No stage compares it on read, so a mismatched
// value is not reported as a CorruptionError.
const MagicIdentifier uint32 = 0x7a676c74 // "tlgz" little-endian

// MaxVerticesPerTile bounds the tile-local id space to 16 bits on each side.
const MaxVerticesPerTile = 65536

// MaxEdgesPerTile bounds count_edges to a uint16.
const MaxEdgesPerTile = 65535

// Degree is the in/out degree pair stored per vertex; an alias of the kernel
// package's type so callers need not import both.
type Degree = kernel.Degree

// VertexState is the global, kernel-parameterized vertex-value state owned
// by the VertexDomain (spec §3).
type VertexState struct {
	Count int

	Current []uint64
	Next    []uint64

	ActiveCurrent *collections.AtomicBitset
	ActiveNext    *collections.AtomicBitset
	Changed       *collections.AtomicBitset

	Degrees []Degree
}

// NewVertexState allocates a VertexState for count vertices.
func NewVertexState(count int) *VertexState {
	return &VertexState{
		Count:         count,
		Current:       make([]uint64, count),
		Next:          make([]uint64, count),
		ActiveCurrent: collections.NewAtomicBitset(count),
		ActiveNext:    collections.NewAtomicBitset(count),
		Changed:       collections.NewAtomicBitset(count),
		Degrees:       make([]Degree, count),
	}
}

// Swap exchanges current/next and active-current/active-next, called at the
// iteration boundary unless the kernel vetoes it via ResetVertices.
func (v *VertexState) Swap() {
	v.Current, v.Next = v.Next, v.Current
	v.ActiveCurrent, v.ActiveNext = v.ActiveNext, v.ActiveCurrent
}

// EdgeEncoding distinguishes the two on-disk edge-block target encodings.
type EdgeEncoding int

const (
	EncodingList EdgeEncoding = iota
	EncodingRLE
)

// Run is one run-length-encoded target span; Count == 0 denotes a full
// 65536-element run (spec §8 S3, §9 open question: tile-local counts are in
// [1, 65536] and a literal 0 would be ambiguous, hence the 0-means-65536
// convention).
type Run struct {
	Count uint16
	ID    uint16
}

// runLength returns the number of edges a run represents.
func (r Run) runLength() int {
	if r.Count == 0 {
		return 65536
	}
	return int(r.Count)
}

// RLEOffset is the decoded position within a run sequence: which run index,
// and how far into that run.
type RLEOffset struct {
	Run       int
	Remainder int
}

// AdvanceRLEOffset computes (run, remainder) for the i'th edge of an RLE tgt
// sequence, matching spec §8 S3's get_rle_offset.
func AdvanceRLEOffset(runs []Run, i int) RLEOffset {
	remaining := i
	for runIdx, r := range runs {
		length := r.runLength()
		if remaining < length {
			return RLEOffset{Run: runIdx, Remainder: remaining}
		}
		remaining -= length
	}
	return RLEOffset{Run: len(runs), Remainder: remaining}
}

// TargetAt returns the tile-local target vertex id for logical edge index i
// in an RLE tgt sequence.
func TargetAt(runs []Run, i int) uint16 {
	off := AdvanceRLEOffset(runs, i)
	if off.Run >= len(runs) {
		return 0
	}
	return runs[off.Run].ID
}

// ExpandRLE decodes a full RLE run sequence into the flat per-edge target id
// list the list encoding would have produced for the same edges.
func ExpandRLE(runs []Run) []uint16 {
	total := 0
	for _, r := range runs {
		total += r.runLength()
	}
	out := make([]uint16, 0, total)
	for _, r := range runs {
		for i := 0; i < r.runLength(); i++ {
			out = append(out, r.ID)
		}
	}
	return out
}

// SplitGlobalID splits a 33-bit global vertex id into its lower-32-bit word
// and its bit-33 extension flag, matching the tile-index on-disk format
// (spec §6, §8 S4).
func SplitGlobalID(id uint64) (lower uint32, ext bool) {
	return uint32(id), id&(1<<32) != 0
}

// JoinGlobalID reconstructs a 33-bit global id from its lower word and
// extension bit (inverse of SplitGlobalID; spec §8 S4).
func JoinGlobalID(lower uint32, ext bool) uint64 {
	id := uint64(lower)
	if ext {
		id |= 1 << 32
	}
	return id
}

// VertexLockTable is the spinlock array backing LocalReducerMode=Locking:
// VERTEX_LOCK_TABLE_SIZE mutexes indexed by hash(id, salt) mod size, salt
// randomized per run to avoid pathological collisions (spec §4.5, §5).
type VertexLockTable struct {
	locks []sync.Mutex
	salt  uint64
}

// NewVertexLockTable builds a lock table of the given size with a random
// per-run salt.
func NewVertexLockTable(size int) *VertexLockTable {
	if size < 1 {
		size = 1
	}
	return &VertexLockTable{
		locks: make([]sync.Mutex, size),
		salt:  rand.Uint64(),
	}
}

func (t *VertexLockTable) index(id uint64) int {
	h := id ^ t.salt
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return int(h % uint64(len(t.locks)))
}

// Lock acquires the spinlock guarding vertex id.
func (t *VertexLockTable) Lock(id uint64) { t.locks[t.index(id)].Lock() }

// Unlock releases the spinlock guarding vertex id.
func (t *VertexLockTable) Unlock(id uint64) { t.locks[t.index(id)].Unlock() }

// AtomicCell is a lock-free compare-and-swap cell used by
// LocalReducerMode=Atomic when the kernel's value type fits a uint64 word
// (true for all four kernels here, since every value is bit-cast to uint64).
type AtomicCell struct {
	word uint64
}

// Load reads the cell's current value.
func (c *AtomicCell) Load() uint64 { return atomic.LoadUint64(&c.word) }

// CAS attempts to swap old for new, retrying the caller's combine function
// against fresh reads until it wins the race.
func (c *AtomicCell) CAS(combine func(old uint64) uint64) uint64 {
	for {
		old := atomic.LoadUint64(&c.word)
		next := combine(old)
		if atomic.CompareAndSwapUint64(&c.word, old, next) {
			return next
		}
	}
}
