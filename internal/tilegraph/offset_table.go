package tilegraph

import (
	"sync/atomic"

	"github.com/sslab-gatech/tile-graph/pkg/collections"
)

// TileBlock is the runtime header over a tile's edge payload, materialized
// by a VertexFetcher and shared read-only across its tile-partition workers
// (spec §3).
type TileBlock struct {
	BlockID          uint64
	NumTilePartition int
	TilePartitionID  int
	MagicIdentifier  uint32
	Shutdown         bool
	SampleExecution  bool

	ActiveSrc  *collections.Bitset
	ActiveTgt  *collections.Bitset
	SrcDegrees []Degree
	TgtDegrees []Degree
	SrcValues  []uint64

	CountVertexSrc int
	CountVertexTgt int
	CountEdges     int

	SrcIDs []uint16
	TgtIDs []uint16 // valid when Encoding == EncodingList
	TgtRLE []Run    // valid when Encoding == EncodingRLE
	Encoding EdgeEncoding

	SrcIndex []uint64 // tile-local id -> global id
	TgtIndex []uint64
}

// ProcessedBlock is produced by a TileProcessor: a tile-local target-vertex
// value array plus the active bitmaps it touched (spec §3).
type ProcessedBlock struct {
	BlockID            uint64
	CountTgtVertexBlock int
	ActiveSrc          *collections.Bitset
	ActiveTgt          *collections.Bitset
	TgtValues          []uint64
	MagicIdentifier    uint32
	Shutdown           bool
}

// ProcessedIndexBlock is produced by a VertexReducer per destination
// GlobalReducer: the local->global id mapping plus the values routed to that
// partition (spec §3).
type ProcessedIndexBlock struct {
	GlobalIDs []uint64
	Values    []uint64
	Shutdown  bool
}

// OffsetEntry is one slot of a Tile Offset Table (spec §3): tracks whether a
// tile's payload is installed and how many parallel partition processors
// still hold a reference to it, for both the edge-side and index-side
// tables (each EdgeProcessor owns one of each).
type OffsetEntry struct {
	dataReady int32 // atomic bool
	active    int32 // atomic bool

	tileBlock atomic.Pointer[TileBlock]

	fetchRefcnt   int64 // atomic
	processRefcnt int64 // atomic
	vrRefcnt      int64 // atomic

	bundle *Bundle
}

// Bundle is an I/O batch holding several tiles, released to storage when the
// last contained tile is done (spec Glossary).
type Bundle struct {
	refcnt int64 // atomic
	Raw    []byte
	onDone func()
}

// NewBundle creates a bundle pinned for count tiles; onDone fires exactly
// once, when the last tile releases it.
func NewBundle(count int, onDone func()) *Bundle {
	return &Bundle{refcnt: int64(count), onDone: onDone}
}

// Release decrements the bundle's refcount; the caller that observes the
// transition to zero invokes onDone exactly once.
func (b *Bundle) Release() {
	if atomic.AddInt64(&b.refcnt, -1) == 0 && b.onDone != nil {
		b.onDone()
	}
}

// OffsetTable is the per-EdgeProcessor array of OffsetEntry, indexed by
// tile-local id within the current iteration (spec §3).
type OffsetTable struct {
	entries []OffsetEntry
}

// NewOffsetTable allocates a table sized for tilesPerEngine tile slots.
func NewOffsetTable(tilesPerEngine int) *OffsetTable {
	return &OffsetTable{entries: make([]OffsetEntry, tilesPerEngine)}
}

// Entry returns the offset-table slot for a tile-local id.
func (t *OffsetTable) Entry(localID int) *OffsetEntry {
	return &t.entries[localID]
}

// Reset clears an entry for reuse at the next iteration's round for this
// tile id (spec §4.9's per-engine reset_round).
func (e *OffsetEntry) Reset() {
	atomic.StoreInt32(&e.dataReady, 0)
	atomic.StoreInt32(&e.active, 0)
	e.tileBlock.Store(nil)
	atomic.StoreInt64(&e.fetchRefcnt, 0)
	atomic.StoreInt64(&e.processRefcnt, 0)
	atomic.StoreInt64(&e.vrRefcnt, 0)
	e.bundle = nil
}

// Install publishes a tile's payload: the leader partition (TilePartitionID
// == 0) calls this to set the shared pointer and initialize the fan-out
// refcounts to NumTilePartition, then releases with a store (spec §4.4's
// leader-coordination protocol; the release/acquire pair is the "tile
// payload publication" ordering guarantee from spec §5).
func (e *OffsetEntry) Install(block *TileBlock, bundle *Bundle) {
	atomic.StoreInt64(&e.fetchRefcnt, int64(block.NumTilePartition))
	atomic.StoreInt64(&e.processRefcnt, int64(block.NumTilePartition))
	atomic.StoreInt64(&e.vrRefcnt, int64(block.NumTilePartition))
	e.bundle = bundle
	e.tileBlock.Store(block) // release store
	atomic.StoreInt32(&e.dataReady, 1)
}

// Load performs the acquire read a non-leader partition uses to spin for the
// installed payload; returns nil until Install has published it.
func (e *OffsetEntry) Load() *TileBlock {
	if atomic.LoadInt32(&e.dataReady) == 0 {
		return nil
	}
	return e.tileBlock.Load() // acquire load
}

// DataReady reports whether the payload has been installed.
func (e *OffsetEntry) DataReady() bool { return atomic.LoadInt32(&e.dataReady) != 0 }

// SetActive marks the tile active for the current iteration's selective
// scheduling decision (OR-set: idempotent, many writers, cleared only by a
// single owner at round reset per spec §5).
func (e *OffsetEntry) SetActive() { atomic.StoreInt32(&e.active, 1) }

// Active reports the tile's selective-scheduling active flag.
func (e *OffsetEntry) Active() bool { return atomic.LoadInt32(&e.active) != 0 }

// ReleaseFetch decrements fetch_refcnt; the caller that observes 1->0 is the
// unique releaser of the tile's storage slot (spec §3 refcount law, §8 S5).
func (e *OffsetEntry) ReleaseFetch() bool {
	return atomic.AddInt64(&e.fetchRefcnt, -1) == 0
}

// ReleaseProcess decrements process_refcnt; the last decrementer notifies
// completion to the reducer side and, if a bundle is attached, releases the
// bundle reference this tile was holding.
func (e *OffsetEntry) ReleaseProcess() bool {
	last := atomic.AddInt64(&e.processRefcnt, -1) == 0
	if last && e.bundle != nil {
		e.bundle.Release()
	}
	return last
}

// ReleaseVR decrements vr_refcnt (the VertexReducer-side refcount on the
// index-block table); the last decrementer clears data_ready and releases
// the bundle slot if applicable (spec §4.5's tile-release protocol).
func (e *OffsetEntry) ReleaseVR() bool {
	last := atomic.AddInt64(&e.vrRefcnt, -1) == 0
	if last {
		atomic.StoreInt32(&e.dataReady, 0)
		if e.bundle != nil {
			e.bundle.Release()
		}
	}
	return last
}

// FetchRefcnt, ProcessRefcnt, and VRRefcnt expose the live counters for
// invariant tests (spec §8: 0 <= refcnt <= num_tile_partition at all times).
func (e *OffsetEntry) FetchRefcnt() int64   { return atomic.LoadInt64(&e.fetchRefcnt) }
func (e *OffsetEntry) ProcessRefcnt() int64 { return atomic.LoadInt64(&e.processRefcnt) }
func (e *OffsetEntry) VRRefcnt() int64      { return atomic.LoadInt64(&e.vrRefcnt) }
