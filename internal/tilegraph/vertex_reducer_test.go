package tilegraph

import (
	"testing"

	"github.com/sslab-gatech/tile-graph/internal/tilegraph/kernel"
)

func newReducerFixture(t *testing.T, mode LocalReducerMode) (*VertexReducer, *VertexState, *OffsetTable) {
	t.Helper()
	kern, err := kernel.Lookup("pagerank", 0.85)
	if err != nil {
		t.Fatalf("kernel.Lookup: %v", err)
	}
	cfg := kernel.Config{Algorithm: "pagerank", VertexCount: 2}
	vertices := NewVertexState(2)
	table := NewOffsetTable(1)

	var lockTable *VertexLockTable
	var globalOuts []*Queue[*ProcessedIndexBlock]
	if mode == ReducerLocking {
		lockTable = NewVertexLockTable(4)
	}
	if mode == ReducerGlobalReducer {
		globalOuts = []*Queue[*ProcessedIndexBlock]{NewQueue[*ProcessedIndexBlock](4)}
	}
	r := NewVertexReducer(kern, cfg, vertices, mode, lockTable, table, globalOuts)
	return r, vertices, table
}

func installTile(table *OffsetTable, localID int, tgtIndex []uint64) {
	table.Entry(localID).Install(&TileBlock{NumTilePartition: 1, TgtIndex: tgtIndex}, nil)
}

func TestVertexReducer_Atomic(t *testing.T) {
	r, vertices, table := newReducerFixture(t, ReducerAtomic)
	installTile(table, 0, []uint64{1})

	r.Reduce(&ProcessedBlock{BlockID: 0, TgtValues: []uint64{kernel.U64(0.5)}}, 0)

	got := kernel.F64(vertices.Next[1])
	if diff := got - 0.5; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("vertices.Next[1] = %v, want 0.5", got)
	}
	if !vertices.ActiveNext.Test(1) {
		t.Fatal("expected vertex 1 to be marked active-next")
	}
}

func TestVertexReducer_Locking(t *testing.T) {
	r, vertices, table := newReducerFixture(t, ReducerLocking)
	installTile(table, 0, []uint64{1})

	r.Reduce(&ProcessedBlock{BlockID: 0, TgtValues: []uint64{kernel.U64(0.25)}}, 0)

	got := kernel.F64(vertices.Next[1])
	if diff := got - 0.25; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("vertices.Next[1] = %v, want 0.25", got)
	}
}

func TestVertexReducer_GlobalReducerRoutesByStripe(t *testing.T) {
	r, _, table := newReducerFixture(t, ReducerGlobalReducer)
	installTile(table, 0, []uint64{1})

	r.Reduce(&ProcessedBlock{BlockID: 0, TgtValues: []uint64{kernel.U64(0.4)}}, 0)

	pib, ok := r.globalOuts[0].Recv()
	if !ok {
		t.Fatal("expected a ProcessedIndexBlock to be routed to the single GlobalReducer partition")
	}
	if len(pib.GlobalIDs) != 1 || pib.GlobalIDs[0] != 1 {
		t.Fatalf("pib.GlobalIDs = %v, want [1]", pib.GlobalIDs)
	}
	if pib.Values[0] != kernel.U64(0.4) {
		t.Fatalf("pib.Values[0] = %v, want %v", pib.Values[0], kernel.U64(0.4))
	}
}

func TestVertexReducer_ShutdownInGlobalReducerModeBroadcasts(t *testing.T) {
	r, _, table := newReducerFixture(t, ReducerGlobalReducer)
	installTile(table, 0, nil)

	r.Reduce(&ProcessedBlock{Shutdown: true}, 0)

	pib, ok := r.globalOuts[0].Recv()
	if !ok || !pib.Shutdown {
		t.Fatal("expected the shutdown sentinel to be forwarded to every GlobalReducer partition")
	}
}

func TestVertexReducer_ReleasesOffsetEntryOnLastPartition(t *testing.T) {
	r, _, table := newReducerFixture(t, ReducerAtomic)
	installTile(table, 0, []uint64{1})

	entry := table.Entry(0)
	if entry.VRRefcnt() != 1 {
		t.Fatalf("VRRefcnt() = %d, want 1 before Reduce", entry.VRRefcnt())
	}
	r.Reduce(&ProcessedBlock{BlockID: 0, TgtValues: []uint64{kernel.U64(0.1)}}, 0)
	if entry.VRRefcnt() != 0 {
		t.Fatalf("VRRefcnt() = %d, want 0 after the sole partition's Reduce", entry.VRRefcnt())
	}
	if entry.DataReady() {
		t.Fatal("expected DataReady() to clear once vr_refcnt reaches zero")
	}
}
