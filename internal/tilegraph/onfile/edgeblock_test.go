package onfile

import (
	"bytes"
	"testing"

	"github.com/sslab-gatech/tile-graph/internal/tilegraph"
)

func TestEdgeBlock_ListRoundTrip(t *testing.T) {
	want := &EdgeBlock{
		Src:     []uint16{0, 0, 1, 2},
		TgtList: []uint16{1, 2, 2, 3},
		Weight:  []float32{0.5, 1.5, 2.5, 3.5},
	}

	var buf bytes.Buffer
	if err := WriteEdgeBlock(&buf, want); err != nil {
		t.Fatalf("WriteEdgeBlock: %v", err)
	}

	got, err := ReadEdgeBlock(buf.Bytes(), want.CountEdges(), false, true)
	if err != nil {
		t.Fatalf("ReadEdgeBlock: %v", err)
	}
	if !equalU16(got.Src, want.Src) || !equalU16(got.TgtList, want.TgtList) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
	for i := range want.Weight {
		if got.Weight[i] != want.Weight[i] {
			t.Fatalf("weight[%d] = %v, want %v", i, got.Weight[i], want.Weight[i])
		}
	}
}

func TestEdgeBlock_RLERoundTrip(t *testing.T) {
	want := &EdgeBlock{
		Src:    []uint16{0, 0, 0},
		UseRLE: true,
		TgtRuns: []tilegraph.Run{
			{Count: 3, ID: 10},
		},
	}

	var buf bytes.Buffer
	if err := WriteEdgeBlock(&buf, want); err != nil {
		t.Fatalf("WriteEdgeBlock: %v", err)
	}

	got, err := ReadEdgeBlock(buf.Bytes(), want.CountEdges(), true, false)
	if err != nil {
		t.Fatalf("ReadEdgeBlock: %v", err)
	}
	if len(got.TgtRuns) != 1 || got.TgtRuns[0] != want.TgtRuns[0] {
		t.Fatalf("rle round trip mismatch: got %+v, want %+v", got.TgtRuns, want.TgtRuns)
	}
	if got.Weight != nil {
		t.Fatalf("unweighted block decoded a weight array")
	}
}

func TestEdgeBlock_RLEZeroCountMeans65536Run(t *testing.T) {
	want := &EdgeBlock{
		Src:     make([]uint16, 65536),
		UseRLE:  true,
		TgtRuns: []tilegraph.Run{{Count: 0, ID: 7}},
	}

	var buf bytes.Buffer
	if err := WriteEdgeBlock(&buf, want); err != nil {
		t.Fatalf("WriteEdgeBlock: %v", err)
	}

	got, err := ReadEdgeBlock(buf.Bytes(), want.CountEdges(), true, false)
	if err != nil {
		t.Fatalf("ReadEdgeBlock: %v", err)
	}
	if len(got.TgtRuns) != 1 || got.TgtRuns[0].Count != 0 {
		t.Fatalf("expected a single zero-count (65536-length) run, got %+v", got.TgtRuns)
	}
}

func equalU16(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
