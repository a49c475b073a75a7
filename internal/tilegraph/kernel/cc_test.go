package kernel

import "testing"

func TestCC_InitVerticesLabelsEachVertexWithItsOwnID(t *testing.T) {
	k := NewCC()
	current := make([]uint64, 4)
	k.InitVertices(current, Config{})

	for i, v := range current {
		if v != uint64(i) {
			t.Errorf("vertex %d = %d, want %d", i, v, i)
		}
	}
}

func TestCC_PullGatherAdoptsMinimumLabel(t *testing.T) {
	k := NewCC()
	tgt := uint64(5)
	var notified []uint64
	k.PullGather(2, &tgt, 0, 1, Degree{}, Degree{}, 1.0, func(id uint64) { notified = append(notified, id) }, Config{})

	if tgt != 2 {
		t.Errorf("tgt label = %d, want 2", tgt)
	}
	if len(notified) != 1 || notified[0] != 1 {
		t.Errorf("active-next callback = %v, want [1]", notified)
	}

	k.PullGather(9, &tgt, 0, 1, Degree{}, Degree{}, 1.0, nil, Config{})
	if tgt != 2 {
		t.Errorf("tgt label = %d, want unchanged 2 (9 is not smaller)", tgt)
	}
}

func TestCC_FormatValue(t *testing.T) {
	k := NewCC()
	if got := k.FormatValue(7); got != "7" {
		t.Errorf("FormatValue(7) = %q, want %q", got, "7")
	}
	if got := k.FormatValue(unreached); got != "unreached" {
		t.Errorf("FormatValue(unreached) = %q, want %q", got, "unreached")
	}
}
