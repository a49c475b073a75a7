package onfile

import (
	"bytes"
	"testing"
)

func TestTileIndex_RoundTrip(t *testing.T) {
	want := &TileIndex{
		BlockID: 7,
		SrcIDs:  []uint64{0, 1, 65535},
		TgtIDs:  []uint64{(1 << 32) | 1, 2, 3, 65536},
	}

	var buf bytes.Buffer
	if err := WriteTileIndex(&buf, want); err != nil {
		t.Fatalf("WriteTileIndex: %v", err)
	}

	got, err := ReadTileIndex(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadTileIndex: %v", err)
	}
	if got.BlockID != want.BlockID {
		t.Fatalf("BlockID = %d, want %d", got.BlockID, want.BlockID)
	}
	if !equalU64(got.SrcIDs, want.SrcIDs) {
		t.Fatalf("SrcIDs = %v, want %v", got.SrcIDs, want.SrcIDs)
	}
	if !equalU64(got.TgtIDs, want.TgtIDs) {
		t.Fatalf("TgtIDs = %v, want %v", got.TgtIDs, want.TgtIDs)
	}
}

// TestTileIndex_BitSplitDecoding is the file-format-level counterpart of the
// 33-bit id reconstruction scenario: a global id with the extension bit set
// must round trip through the on-disk lower-word-plus-bitmap representation.
func TestTileIndex_BitSplitDecoding(t *testing.T) {
	want := &TileIndex{
		BlockID: 1,
		SrcIDs:  []uint64{(1 << 32) | 1},
		TgtIDs:  []uint64{0},
	}

	var buf bytes.Buffer
	if err := WriteTileIndex(&buf, want); err != nil {
		t.Fatalf("WriteTileIndex: %v", err)
	}
	got, err := ReadTileIndex(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadTileIndex: %v", err)
	}
	if got.SrcIDs[0] != (1<<32)|1 {
		t.Fatalf("SrcIDs[0] = %#x, want %#x", got.SrcIDs[0], uint64((1<<32)|1))
	}
}

func equalU64(a, b []uint64) bool {
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
