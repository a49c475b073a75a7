package tilegraph

import (
	"bytes"
	"context"
	"testing"

	"github.com/sslab-gatech/tile-graph/internal/storage"
	"github.com/sslab-gatech/tile-graph/internal/tilegraph/kernel"
	"github.com/sslab-gatech/tile-graph/internal/tilegraph/onfile"
)

// writeTile serializes a one-tile graph's three side files into dir via
// store, mirroring what the real tile builder would emit on disk (spec §6).
func writeTile(t *testing.T, store storage.Storage, dir string, stat *onfile.TileStat, edges *onfile.EdgeBlock, index *onfile.TileIndex) {
	t.Helper()
	ctx := context.Background()

	var statBuf bytes.Buffer
	if err := onfile.WriteTileStat(&statBuf, stat); err != nil {
		t.Fatalf("WriteTileStat: %v", err)
	}
	var edgeBuf bytes.Buffer
	if err := onfile.WriteEdgeBlock(&edgeBuf, edges); err != nil {
		t.Fatalf("WriteEdgeBlock: %v", err)
	}
	var idxBuf bytes.Buffer
	if err := onfile.WriteTileIndex(&idxBuf, index); err != nil {
		t.Fatalf("WriteTileIndex: %v", err)
	}

	keys := map[string]*bytes.Buffer{
		dir + "/tile-stat-0.dat":  &statBuf,
		dir + "/tile-0.dat":       &edgeBuf,
		dir + "/tile-index-0.dat": &idxBuf,
	}
	for key, buf := range keys {
		if err := store.Upload(ctx, key, bytes.NewReader(buf.Bytes())); err != nil {
			t.Fatalf("upload %s: %v", key, err)
		}
	}
}

// TestEdgeProcessor_RunRound_PageRankSingleTile drives the full
// fetch/process/reduce chain over one real on-disk tile: vertex 0 -> vertex
// 1, pagerank kernel, direct-access fetch, atomic reduce. This exercises the
// same RunRound path the Runtime uses each iteration (spec §4's per-engine
// pipeline).
func TestEdgeProcessor_RunRound_PageRankSingleTile(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	writeTile(t, store, "tiles",
		&onfile.TileStat{BlockID: 0, CountEdges: 1, CountVertexSrc: 1, CountVertexTgt: 1, UseRLE: false},
		&onfile.EdgeBlock{Src: []uint16{0}, TgtList: []uint16{0}},
		&onfile.TileIndex{BlockID: 0, SrcIDs: []uint64{0}, TgtIDs: []uint64{1}},
	)

	kern, err := kernel.Lookup("pagerank", 0.85)
	if err != nil {
		t.Fatalf("kernel.Lookup: %v", err)
	}
	cfg := kernel.Config{Algorithm: "pagerank", VertexCount: 2}

	vertices := NewVertexState(2)
	kern.InitVertices(vertices.Current, cfg)
	vertices.Degrees[0] = Degree{Out: 1}
	vertices.Degrees[1] = Degree{In: 1}

	ep := NewEdgeProcessor(EdgeProcessorConfig{
		ShardID:         0,
		Store:           store,
		TileDir:         "tiles",
		Weighted:        false,
		Vertices:        vertices,
		Kernel:          kern,
		KernelConfig:    cfg,
		TilesPerEngine:  1,
		FetcherMode:     FetcherDirectAccess,
		TileBreakPoint:  func() int { return 64 },
		ReducerMode:     ReducerAtomic,
		ProcessorMode:   TileProcessorActive,
		CountProcessors: 1,
		Rate:            NewRateTracker(),
	})

	processed, err := ep.RunRound(context.Background(), []uint64{0}, []int{0}, false)
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	got := kernel.F64(vertices.Next[1])
	want := 0.5 // vertex 0 starts at 1/2, out-degree 1, all of it flows to vertex 1
	if got != want {
		t.Fatalf("vertices.Next[1] = %v, want %v", got, want)
	}
	if !vertices.ActiveNext.Test(1) {
		t.Fatal("expected vertex 1 to be marked active-next after a changing reduce")
	}
}

// TestEdgeProcessor_RunRound_SelectiveSchedulingSkipsInactiveTile checks that
// useSelective lets a tile whose only source vertex is inactive be skipped
// entirely, without touching its target's next value (spec §4.3 step 2).
func TestEdgeProcessor_RunRound_SelectiveSchedulingSkipsInactiveTile(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	writeTile(t, store, "tiles",
		&onfile.TileStat{BlockID: 0, CountEdges: 1, CountVertexSrc: 1, CountVertexTgt: 1, UseRLE: false},
		&onfile.EdgeBlock{Src: []uint16{0}, TgtList: []uint16{0}},
		&onfile.TileIndex{BlockID: 0, SrcIDs: []uint64{0}, TgtIDs: []uint64{1}},
	)

	kern, err := kernel.Lookup("pagerank", 0.85)
	if err != nil {
		t.Fatalf("kernel.Lookup: %v", err)
	}
	cfg := kernel.Config{Algorithm: "pagerank", VertexCount: 2}

	vertices := NewVertexState(2)
	kern.InitVertices(vertices.Current, cfg)
	vertices.Degrees[0] = Degree{Out: 1}
	vertices.Degrees[1] = Degree{In: 1}
	// vertex 0 is left inactive: ActiveCurrent defaults to all-clear.

	ep := NewEdgeProcessor(EdgeProcessorConfig{
		ShardID:         0,
		Store:           store,
		TileDir:         "tiles",
		Vertices:        vertices,
		Kernel:          kern,
		KernelConfig:    cfg,
		TilesPerEngine:  1,
		FetcherMode:     FetcherDirectAccess,
		TileBreakPoint:  func() int { return 64 },
		ReducerMode:     ReducerAtomic,
		ProcessorMode:   TileProcessorActive,
		CountProcessors: 1,
		Rate:            NewRateTracker(),
	})

	processed, err := ep.RunRound(context.Background(), []uint64{0}, []int{0}, true)
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if processed != 0 {
		t.Fatalf("processed = %d, want 0 (tile should be skipped)", processed)
	}
	if vertices.Next[1] != 0 {
		t.Fatalf("vertices.Next[1] = %v, want untouched 0", vertices.Next[1])
	}
}
