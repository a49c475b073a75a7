package onfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// TileStat is the decoded tile-stat-<id>.dat side file: the metadata needed
// to interpret the matching tile-<id>.dat payload without re-scanning it.
type TileStat struct {
	BlockID        uint64
	CountEdges     uint32
	CountVertexSrc uint16
	CountVertexTgt uint16
	UseRLE         bool
}

// WriteTileStat serializes a TileStat in its exact on-disk layout.
func WriteTileStat(w io.Writer, s *TileStat) error {
	var useRLE uint8
	if s.UseRLE {
		useRLE = 1
	}
	fields := []interface{}{s.BlockID, s.CountEdges, s.CountVertexSrc, s.CountVertexTgt, useRLE}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("onfile: write tile stat: %w", err)
		}
	}
	return nil
}

// ReadTileStat decodes a TileStat from raw file bytes.
func ReadTileStat(data []byte) (*TileStat, error) {
	r := bytes.NewReader(data)
	s := &TileStat{}
	if err := binary.Read(r, binary.LittleEndian, &s.BlockID); err != nil {
		return nil, fmt.Errorf("onfile: read tile stat block_id: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &s.CountEdges); err != nil {
		return nil, fmt.Errorf("onfile: read tile stat count_edges: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &s.CountVertexSrc); err != nil {
		return nil, fmt.Errorf("onfile: read tile stat count_vertex_src: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &s.CountVertexTgt); err != nil {
		return nil, fmt.Errorf("onfile: read tile stat count_vertex_tgt: %w", err)
	}
	var useRLE uint8
	if err := binary.Read(r, binary.LittleEndian, &useRLE); err != nil {
		return nil, fmt.Errorf("onfile: read tile stat use_rle: %w", err)
	}
	s.UseRLE = useRLE != 0
	return s, nil
}
