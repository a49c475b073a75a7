package tilegraph

import (
	"sync/atomic"

	"github.com/sslab-gatech/tile-graph/internal/tilegraph/kernel"
)

// VerticesPerPartitionStripe sizes the routing stripe GlobalReducer-mode
// reduction uses to spread vertex ids across GlobalReducer partitions (spec
// §4.5's partition = (id / stripe) mod count_global_reducers).
const VerticesPerPartitionStripe = 4096

// VertexReducer consumes a ProcessedBlock, maps its tile-local target ids
// back to global ids, and either routes the values to the appropriate
// GlobalReducer partition or folds them into the global next-state array in
// place, depending on LocalReducerMode (spec §4.5).
type VertexReducer struct {
	kernel     kernel.Kernel[uint64]
	cfg        kernel.Config
	vertices   *VertexState
	mode       LocalReducerMode
	lockTable  *VertexLockTable
	table      *OffsetTable
	globalOuts []*Queue[*ProcessedIndexBlock] // one per GlobalReducer, GlobalReducer mode only
}

// NewVertexReducer constructs a VertexReducer. globalOuts is only consulted
// in ReducerGlobalReducer mode; lockTable only in ReducerLocking mode.
func NewVertexReducer(kern kernel.Kernel[uint64], cfg kernel.Config, vertices *VertexState, mode LocalReducerMode, lockTable *VertexLockTable, table *OffsetTable, globalOuts []*Queue[*ProcessedIndexBlock]) *VertexReducer {
	return &VertexReducer{
		kernel: kern, cfg: cfg, vertices: vertices, mode: mode,
		lockTable: lockTable, table: table, globalOuts: globalOuts,
	}
}

// Reduce handles one ProcessedBlock for the tile at localID, releasing the
// index-side refcount when it is the last consumer of that tile's payload
// (spec §4.5's tile-release protocol).
func (r *VertexReducer) Reduce(pb *ProcessedBlock, localID int) {
	entry := r.table.Entry(localID)

	if pb.Shutdown {
		if r.mode == ReducerGlobalReducer {
			for _, out := range r.globalOuts {
				out.Send(&ProcessedIndexBlock{Shutdown: true})
			}
		}
		return
	}

	block := entry.Load()
	var tgtIndex []uint64
	if block != nil {
		tgtIndex = block.TgtIndex
	}

	switch r.mode {
	case ReducerGlobalReducer:
		r.routeToGlobalReducers(pb, tgtIndex)
	case ReducerLocking:
		r.reduceLocking(pb, tgtIndex)
	case ReducerAtomic:
		r.reduceAtomic(pb, tgtIndex)
	}

	entry.ReleaseVR()
}

func (r *VertexReducer) routeToGlobalReducers(pb *ProcessedBlock, tgtIndex []uint64) {
	if len(r.globalOuts) == 0 {
		return
	}
	perPartition := make(map[int]*ProcessedIndexBlock)
	for i, v := range pb.TgtValues {
		if i >= len(tgtIndex) {
			continue
		}
		gid := tgtIndex[i]
		partition := int((gid / VerticesPerPartitionStripe)) % len(r.globalOuts)
		pib, ok := perPartition[partition]
		if !ok {
			pib = &ProcessedIndexBlock{}
			perPartition[partition] = pib
		}
		pib.GlobalIDs = append(pib.GlobalIDs, gid)
		pib.Values = append(pib.Values, v)
	}
	for partition, pib := range perPartition {
		r.globalOuts[partition].Send(pib)
	}
}

func (r *VertexReducer) reduceLocking(pb *ProcessedBlock, tgtIndex []uint64) {
	for i, v := range pb.TgtValues {
		if i >= len(tgtIndex) {
			continue
		}
		gid := tgtIndex[i]
		r.lockTable.Lock(gid)
		next, changed := r.kernel.Reduce(r.vertices.Next[gid], v, gid, r.vertices.Degrees[gid], r.cfg)
		r.vertices.Next[gid] = next
		r.lockTable.Unlock(gid)
		if changed {
			r.vertices.ActiveNext.Set(int(gid))
		}
	}
}

func (r *VertexReducer) reduceAtomic(pb *ProcessedBlock, tgtIndex []uint64) {
	for i, v := range pb.TgtValues {
		if i >= len(tgtIndex) {
			continue
		}
		gid := tgtIndex[i]
		var changed bool
		for {
			old := atomic.LoadUint64(&r.vertices.Next[gid])
			next, ch := r.kernel.Reduce(old, v, gid, r.vertices.Degrees[gid], r.cfg)
			if atomic.CompareAndSwapUint64(&r.vertices.Next[gid], old, next) {
				changed = ch
				break
			}
		}
		if changed {
			r.vertices.ActiveNext.Set(int(gid))
		}
	}
}
