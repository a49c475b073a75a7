package onfile

import (
	"bytes"
	"testing"
)

func TestTileStat_RoundTrip(t *testing.T) {
	want := &TileStat{
		BlockID:        42,
		CountEdges:     1000,
		CountVertexSrc: 256,
		CountVertexTgt: 300,
		UseRLE:         true,
	}

	var buf bytes.Buffer
	if err := WriteTileStat(&buf, want); err != nil {
		t.Fatalf("WriteTileStat: %v", err)
	}

	got, err := ReadTileStat(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadTileStat: %v", err)
	}
	if *got != *want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestTileStat_UseRLEFalseRoundTrips(t *testing.T) {
	want := &TileStat{BlockID: 1, CountEdges: 4, CountVertexSrc: 2, CountVertexTgt: 3, UseRLE: false}

	var buf bytes.Buffer
	if err := WriteTileStat(&buf, want); err != nil {
		t.Fatalf("WriteTileStat: %v", err)
	}
	got, err := ReadTileStat(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadTileStat: %v", err)
	}
	if got.UseRLE {
		t.Fatalf("UseRLE decoded true, want false")
	}
}
