package onfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sslab-gatech/tile-graph/internal/tilegraph"
)

// GlobalStats is the decoded global-stats.dat file.
type GlobalStats struct {
	CountVertices  uint64
	CountTiles     uint64
	IsWeighted     bool
	IsIndex32Bits  bool
}

// WriteGlobalStats serializes GlobalStats to its exact on-disk layout.
func WriteGlobalStats(w io.Writer, s *GlobalStats) error {
	var weighted, index32 uint8
	if s.IsWeighted {
		weighted = 1
	}
	if s.IsIndex32Bits {
		index32 = 1
	}
	for _, f := range []interface{}{s.CountVertices, s.CountTiles, weighted, index32} {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("onfile: write global stats: %w", err)
		}
	}
	return nil
}

// ReadGlobalStats decodes GlobalStats from raw file bytes.
func ReadGlobalStats(data []byte) (*GlobalStats, error) {
	r := bytes.NewReader(data)
	s := &GlobalStats{}
	if err := binary.Read(r, binary.LittleEndian, &s.CountVertices); err != nil {
		return nil, fmt.Errorf("onfile: read count_vertices: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &s.CountTiles); err != nil {
		return nil, fmt.Errorf("onfile: read count_tiles: %w", err)
	}
	var weighted, index32 uint8
	if err := binary.Read(r, binary.LittleEndian, &weighted); err != nil {
		return nil, fmt.Errorf("onfile: read is_weighted_graph: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &index32); err != nil {
		return nil, fmt.Errorf("onfile: read is_index_32_bits: %w", err)
	}
	s.IsWeighted = weighted != 0
	s.IsIndex32Bits = index32 != 0
	return s, nil
}

// WriteVertexDegrees serializes a degrees array, one {in_degree,out_degree}
// pair per vertex in ascending global id order.
func WriteVertexDegrees(w io.Writer, degrees []tilegraph.Degree) error {
	for _, d := range degrees {
		if err := binary.Write(w, binary.LittleEndian, d.In); err != nil {
			return fmt.Errorf("onfile: write in_degree: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, d.Out); err != nil {
			return fmt.Errorf("onfile: write out_degree: %w", err)
		}
	}
	return nil
}

// ReadVertexDegrees decodes a vertex-degrees.dat payload for countVertices
// vertices.
func ReadVertexDegrees(data []byte, countVertices int) ([]tilegraph.Degree, error) {
	r := bytes.NewReader(data)
	degrees := make([]tilegraph.Degree, countVertices)
	for i := range degrees {
		if err := binary.Read(r, binary.LittleEndian, &degrees[i].In); err != nil {
			return nil, fmt.Errorf("onfile: read in_degree[%d]: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &degrees[i].Out); err != nil {
			return nil, fmt.Errorf("onfile: read out_degree[%d]: %w", i, err)
		}
	}
	return degrees, nil
}

// GlobalToOrig is a decoded global-to-orig.dat mapping: global_id -> the
// original vertex id from the source graph, used only for --log output.
type GlobalToOrig struct {
	OriginalID []uint64 // indexed by global id
	index32    bool
}

// WriteGlobalToOrig serializes the packed {global_id, original_id} sequence.
// When index32 is true, both fields are written as u32; otherwise u64.
func WriteGlobalToOrig(w io.Writer, originalID []uint64, index32 bool) error {
	for globalID, orig := range originalID {
		if index32 {
			if err := binary.Write(w, binary.LittleEndian, uint32(globalID)); err != nil {
				return fmt.Errorf("onfile: write global_id: %w", err)
			}
			if err := binary.Write(w, binary.LittleEndian, uint32(orig)); err != nil {
				return fmt.Errorf("onfile: write original_id: %w", err)
			}
		} else {
			if err := binary.Write(w, binary.LittleEndian, uint64(globalID)); err != nil {
				return fmt.Errorf("onfile: write global_id: %w", err)
			}
			if err := binary.Write(w, binary.LittleEndian, orig); err != nil {
				return fmt.Errorf("onfile: write original_id: %w", err)
			}
		}
	}
	return nil
}

// ReadGlobalToOrig decodes a global-to-orig.dat payload for countVertices
// pairs into an array indexed by global id.
func ReadGlobalToOrig(data []byte, countVertices int, index32 bool) (*GlobalToOrig, error) {
	r := bytes.NewReader(data)
	result := &GlobalToOrig{OriginalID: make([]uint64, countVertices), index32: index32}
	for i := 0; i < countVertices; i++ {
		var globalID, orig uint64
		if index32 {
			var g, o uint32
			if err := binary.Read(r, binary.LittleEndian, &g); err != nil {
				return nil, fmt.Errorf("onfile: read global_id[%d]: %w", i, err)
			}
			if err := binary.Read(r, binary.LittleEndian, &o); err != nil {
				return nil, fmt.Errorf("onfile: read original_id[%d]: %w", i, err)
			}
			globalID, orig = uint64(g), uint64(o)
		} else {
			if err := binary.Read(r, binary.LittleEndian, &globalID); err != nil {
				return nil, fmt.Errorf("onfile: read global_id[%d]: %w", i, err)
			}
			if err := binary.Read(r, binary.LittleEndian, &orig); err != nil {
				return nil, fmt.Errorf("onfile: read original_id[%d]: %w", i, err)
			}
		}
		if int(globalID) < len(result.OriginalID) {
			result.OriginalID[globalID] = orig
		}
	}
	return result, nil
}

// VertexToTileIndex is the decoded inverted index used by selective
// scheduling: per vertex, which tiles it appears in.
type VertexToTileIndex struct {
	Count []uint32   // per vertex, number of tiles it appears in
	Tiles [][]uint64 // per vertex, the concatenated tile id list
}

// WriteVertexToTileIndex serializes the count file and the concatenated tile
// id list file.
func WriteVertexToTileIndex(countW, indexW io.Writer, vti *VertexToTileIndex) error {
	for _, c := range vti.Count {
		if err := binary.Write(countW, binary.LittleEndian, c); err != nil {
			return fmt.Errorf("onfile: write vertex-to-tile-count: %w", err)
		}
	}
	for _, tiles := range vti.Tiles {
		for _, tile := range tiles {
			if err := binary.Write(indexW, binary.LittleEndian, tile); err != nil {
				return fmt.Errorf("onfile: write vertex-to-tile-index: %w", err)
			}
		}
	}
	return nil
}

// ReadVertexToTileIndex decodes the count and tile-list files for
// countVertices vertices.
func ReadVertexToTileIndex(countData, indexData []byte, countVertices int) (*VertexToTileIndex, error) {
	countR := bytes.NewReader(countData)
	vti := &VertexToTileIndex{Count: make([]uint32, countVertices), Tiles: make([][]uint64, countVertices)}
	if err := binary.Read(countR, binary.LittleEndian, vti.Count); err != nil {
		return nil, fmt.Errorf("onfile: decode vertex-to-tile-count: %w", err)
	}

	indexR := bytes.NewReader(indexData)
	for i, c := range vti.Count {
		tiles := make([]uint64, c)
		if err := binary.Read(indexR, binary.LittleEndian, tiles); err != nil {
			return nil, fmt.Errorf("onfile: decode vertex-to-tile-index[%d]: %w", i, err)
		}
		vti.Tiles[i] = tiles
	}
	return vti, nil
}
