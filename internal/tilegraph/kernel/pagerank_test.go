package kernel

import (
	"math"
	"testing"
)

// toy graph from the PageRank scenarios: 3 source vertices, 4 target
// vertices, 6 edges, all source out-degrees = 2, all source values = 0.15.
func toyEdges() (src, tgt []uint64) {
	return []uint64{0, 2, 0, 1, 1, 2}, []uint64{0, 0, 1, 1, 2, 3}
}

func runToyGraph(t *testing.T, pr *PageRank) []uint64 {
	t.Helper()
	src, tgt := toyEdges()
	srcVals := []uint64{U64(0.15), U64(0.15), U64(0.15)}
	srcDeg := Degree{Out: 2}
	accum := make([]uint64, 4)
	for i, s := range src {
		pr.PullGather(srcVals[s], &accum[tgt[i]], s, tgt[i], srcDeg, Degree{}, 1.0, nil, Config{})
	}
	return accum
}

func TestPageRank_ListEncoding(t *testing.T) {
	pr := NewPageRank(0.85)
	accum := runToyGraph(t, pr)

	want := []float64{0.15, 0.15, 0.075, 0.075}
	for i, w := range want {
		got := F64(accum[i])
		if math.Abs(got-w) > 1e-4 {
			t.Errorf("tgt[%d] = %v, want %v", i, got, w)
		}
	}
}

func TestPageRank_RLEMatchesList(t *testing.T) {
	// Same graph, tgt expressed as runs [{2,0},{2,1},{1,2},{1,3}] decoded into
	// the same (src,tgt) pairs the list encoding produces.
	type run struct {
		count, id int
	}
	runs := []run{{2, 0}, {2, 1}, {1, 2}, {1, 3}}
	srcOrder := []uint64{0, 2, 0, 1, 1, 2}

	var rleTgt []uint64
	for _, r := range runs {
		for i := 0; i < r.count; i++ {
			rleTgt = append(rleTgt, uint64(r.id))
		}
	}

	pr := NewPageRank(0.85)
	srcVals := []uint64{U64(0.15), U64(0.15), U64(0.15)}
	srcDeg := Degree{Out: 2}
	accum := make([]uint64, 4)
	for i, s := range srcOrder {
		pr.PullGather(srcVals[s], &accum[rleTgt[i]], s, rleTgt[i], srcDeg, Degree{}, 1.0, nil, Config{})
	}

	listAccum := runToyGraph(t, pr)
	for i := range accum {
		if accum[i] != listAccum[i] {
			t.Errorf("rle tgt[%d] = %v, list tgt[%d] = %v", i, F64(accum[i]), i, F64(listAccum[i]))
		}
	}
}

func TestPageRank_FormatValue(t *testing.T) {
	pr := NewPageRank(0.85)
	got := pr.FormatValue(U64(0.15))
	if got != "0.15" {
		t.Errorf("FormatValue(U64(0.15)) = %q, want %q", got, "0.15")
	}
}
