// Package onfile implements the bit-exact on-disk tile format described in
// spec §6: per-tile edge blocks, tile-stat and tile-index side files, and
// the global metadata files a deployment reads once at startup.
package onfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sslab-gatech/tile-graph/internal/tilegraph"
)

// edgeBlockHeader mirrors the on-disk header: byte offsets of the src, tgt,
// and (optional) weight arrays within the file.
type edgeBlockHeader struct {
	OffsetSrc    uint64
	OffsetTgt    uint64
	OffsetWeight uint64
}

// EdgeBlock is the decoded in-memory form of one tile-<id>.dat file.
type EdgeBlock struct {
	Src      []uint16 // tile-local source ids, one per edge
	TgtList  []uint16 // valid when !UseRLE
	TgtRuns  []tilegraph.Run
	UseRLE   bool
	Weight   []float32 // nil for unweighted graphs
}

// CountEdges returns the number of edges this block encodes.
func (b *EdgeBlock) CountEdges() int { return len(b.Src) }

// WriteEdgeBlock serializes an EdgeBlock to w in the exact on-disk layout of
// spec §6: a fixed 24-byte offset header followed by the src array, the tgt
// array (list or RLE), and the optional weight array.
func WriteEdgeBlock(w io.Writer, b *EdgeBlock) error {
	srcBytes := len(b.Src) * 2
	var tgtBytes int
	if b.UseRLE {
		tgtBytes = len(b.TgtRuns) * 4 // {count:u16, id:u16}
	} else {
		tgtBytes = len(b.TgtList) * 2
	}

	hdr := edgeBlockHeader{
		OffsetSrc: 24,
	}
	hdr.OffsetTgt = hdr.OffsetSrc + uint64(srcBytes)
	hdr.OffsetWeight = hdr.OffsetTgt + uint64(tgtBytes)

	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("onfile: write edge block header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, b.Src); err != nil {
		return fmt.Errorf("onfile: write src array: %w", err)
	}
	if b.UseRLE {
		for _, r := range b.TgtRuns {
			if err := binary.Write(w, binary.LittleEndian, r.Count); err != nil {
				return fmt.Errorf("onfile: write rle run count: %w", err)
			}
			if err := binary.Write(w, binary.LittleEndian, r.ID); err != nil {
				return fmt.Errorf("onfile: write rle run id: %w", err)
			}
		}
	} else {
		if err := binary.Write(w, binary.LittleEndian, b.TgtList); err != nil {
			return fmt.Errorf("onfile: write tgt list: %w", err)
		}
	}
	if b.Weight != nil {
		if err := binary.Write(w, binary.LittleEndian, b.Weight); err != nil {
			return fmt.Errorf("onfile: write weight array: %w", err)
		}
	}
	return nil
}

// ReadEdgeBlock decodes an EdgeBlock from raw file bytes, given the edge
// count, whether this tile uses RLE (from its tile-stat side file), and
// whether the graph is weighted (from global-stats.dat).
func ReadEdgeBlock(data []byte, countEdges int, useRLE bool, weighted bool) (*EdgeBlock, error) {
	r := bytes.NewReader(data)
	var hdr edgeBlockHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("onfile: read edge block header: %w", err)
	}

	b := &EdgeBlock{UseRLE: useRLE}

	if int(hdr.OffsetSrc)+countEdges*2 > len(data) {
		return nil, fmt.Errorf("onfile: src array out of bounds")
	}
	b.Src = make([]uint16, countEdges)
	if err := binary.Read(bytes.NewReader(data[hdr.OffsetSrc:]), binary.LittleEndian, b.Src); err != nil {
		return nil, fmt.Errorf("onfile: decode src array: %w", err)
	}

	if useRLE {
		runs, err := decodeRLERuns(data[hdr.OffsetTgt:hdr.OffsetWeight], countEdges)
		if err != nil {
			return nil, err
		}
		b.TgtRuns = runs
	} else {
		b.TgtList = make([]uint16, countEdges)
		if err := binary.Read(bytes.NewReader(data[hdr.OffsetTgt:]), binary.LittleEndian, b.TgtList); err != nil {
			return nil, fmt.Errorf("onfile: decode tgt list: %w", err)
		}
	}

	if weighted {
		b.Weight = make([]float32, countEdges)
		if err := binary.Read(bytes.NewReader(data[hdr.OffsetWeight:]), binary.LittleEndian, b.Weight); err != nil {
			return nil, fmt.Errorf("onfile: decode weight array: %w", err)
		}
	}

	return b, nil
}

// decodeRLERuns reads {count:u16,id:u16} runs until the decoded edge total
// reaches countEdges (the run sequence has no explicit count prefix on
// disk; the tile-stat's count_edges is the terminator).
func decodeRLERuns(data []byte, countEdges int) ([]tilegraph.Run, error) {
	var runs []tilegraph.Run
	total := 0
	off := 0
	for total < countEdges {
		if off+4 > len(data) {
			return nil, fmt.Errorf("onfile: truncated rle run sequence")
		}
		count := binary.LittleEndian.Uint16(data[off:])
		id := binary.LittleEndian.Uint16(data[off+2:])
		run := tilegraph.Run{Count: count, ID: id}
		runs = append(runs, run)
		length := int(count)
		if count == 0 {
			length = 65536
		}
		total += length
		off += 4
	}
	return runs, nil
}
