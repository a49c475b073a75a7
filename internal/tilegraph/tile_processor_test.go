package tilegraph

import (
	"testing"

	"github.com/sslab-gatech/tile-graph/internal/tilegraph/kernel"
	"github.com/sslab-gatech/tile-graph/pkg/collections"
)

func simpleBlock() *TileBlock {
	return &TileBlock{
		BlockID:          0,
		NumTilePartition: 1,
		TilePartitionID:  0,
		CountVertexSrc:   1,
		CountVertexTgt:   1,
		CountEdges:       1,
		SrcIDs:           []uint16{0},
		TgtIDs:           []uint16{0},
		Encoding:         EncodingList,
		SrcIndex:         []uint64{0},
		TgtIndex:         []uint64{1},
		SrcValues:        []uint64{kernel.U64(0.5)},
	}
}

func TestTileProcessor_ProcessSinglePartitionPageRank(t *testing.T) {
	kern, err := kernel.Lookup("pagerank", 0.85)
	if err != nil {
		t.Fatalf("kernel.Lookup: %v", err)
	}
	cfg := kernel.Config{Algorithm: "pagerank", VertexCount: 2}
	vertices := NewVertexState(2)
	table := NewOffsetTable(1)
	out := NewQueue[*ProcessedBlock](1)

	p := NewTileProcessor(kern, cfg, vertices, TileProcessorActive, 0, 0, table, out, nil)
	job := &PartitionJob{Block: simpleBlock(), PartitionID: 0}

	p.Process(job, nil, 0)

	pb, ok := out.Recv()
	if !ok {
		t.Fatal("expected a ProcessedBlock")
	}
	if len(pb.TgtValues) != 1 {
		t.Fatalf("len(TgtValues) = %d, want 1", len(pb.TgtValues))
	}
	if got := kernel.F64(pb.TgtValues[0]); got != 0.5 {
		t.Fatalf("TgtValues[0] = %v, want 0.5", got)
	}
	entry := table.Entry(0)
	if entry.ProcessRefcnt() != 0 {
		t.Fatalf("ProcessRefcnt() = %d, want 0 after the sole partition finishes", entry.ProcessRefcnt())
	}
}

// TestTileProcessor_InitLocalSizesAndSeedsFromPool checks that initLocal's
// pooled accumulator is sized to the tile's target-vertex count and seeded
// via the kernel's reset hook, and that the returned handle can be cycled
// back through PutUint64Slice/GetUint64Slice like any other pool borrow.
func TestTileProcessor_InitLocalSizesAndSeedsFromPool(t *testing.T) {
	kern, err := kernel.Lookup("pagerank", 0.85)
	if err != nil {
		t.Fatalf("kernel.Lookup: %v", err)
	}
	cfg := kernel.Config{Algorithm: "pagerank", VertexCount: 2}
	vertices := NewVertexState(2)
	p := NewTileProcessor(kern, cfg, vertices, TileProcessorActive, 0, 0, NewOffsetTable(1), NewQueue[*ProcessedBlock](1), nil)

	block := &TileBlock{CountVertexTgt: 4, TgtIndex: []uint64{0, 1}}
	local, buf := p.initLocal(block)
	if len(local) != 4 {
		t.Fatalf("len(local) = %d, want 4", len(local))
	}
	for i, v := range local {
		if v != kernel.U64(0.0) {
			t.Fatalf("local[%d] = %v, want the pagerank kernel's neutral 0.0 seed", i, kernel.F64(v))
		}
	}

	collections.PutUint64Slice(buf)
	if len(*buf) != 0 {
		t.Fatalf("len(*buf) after Put = %d, want 0", len(*buf))
	}
}
