package onfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sslab-gatech/tile-graph/internal/tilegraph"
)

// tileIndexHeader mirrors the tile-index-<id>.dat fixed header.
type tileIndexHeader struct {
	BlockID                    uint64
	CountSrcVertices           uint32
	CountTgtVertices           uint32
	OffsetSrcIndex             uint64
	OffsetTgtIndex             uint64
	OffsetSrcIndexBitExtension uint64
	OffsetTgtIndexBitExtension uint64
}

// TileIndex is the decoded tile-index-<id>.dat file: the tile-local id ->
// global id mapping arrays for both sides of the tile, each a 33-bit id
// split into a 32-bit word plus a side bitmap extension bit (spec §6, §8 S4).
type TileIndex struct {
	BlockID  uint64
	SrcIDs   []uint64 // global ids, one per tile-local source id
	TgtIDs   []uint64
}

func bitmapBytes(count int) int { return (count + 7) / 8 }

func setBit(bitmap []byte, i int) { bitmap[i/8] |= 1 << (uint(i) % 8) }

func testBit(bitmap []byte, i int) bool { return bitmap[i/8]&(1<<(uint(i)%8)) != 0 }

// WriteTileIndex serializes a TileIndex to its exact on-disk layout: a fixed
// header, the lower-32-bit src/tgt arrays, then their bit-extension bitmaps.
func WriteTileIndex(w io.Writer, idx *TileIndex) error {
	srcCount := len(idx.SrcIDs)
	tgtCount := len(idx.TgtIDs)

	hdr := tileIndexHeader{
		BlockID:          idx.BlockID,
		CountSrcVertices: uint32(srcCount),
		CountTgtVertices: uint32(tgtCount),
	}
	hdr.OffsetSrcIndex = 48 // sizeof(tileIndexHeader)
	hdr.OffsetTgtIndex = hdr.OffsetSrcIndex + uint64(srcCount*4)
	hdr.OffsetSrcIndexBitExtension = hdr.OffsetTgtIndex + uint64(tgtCount*4)
	hdr.OffsetTgtIndexBitExtension = hdr.OffsetSrcIndexBitExtension + uint64(bitmapBytes(srcCount))

	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("onfile: write tile index header: %w", err)
	}

	srcLower := make([]uint32, srcCount)
	srcExt := make([]byte, bitmapBytes(srcCount))
	for i, id := range idx.SrcIDs {
		lower, ext := tilegraph.SplitGlobalID(id)
		srcLower[i] = lower
		if ext {
			setBit(srcExt, i)
		}
	}

	tgtLower := make([]uint32, tgtCount)
	tgtExt := make([]byte, bitmapBytes(tgtCount))
	for i, id := range idx.TgtIDs {
		lower, ext := tilegraph.SplitGlobalID(id)
		tgtLower[i] = lower
		if ext {
			setBit(tgtExt, i)
		}
	}

	for _, part := range []interface{}{srcLower, tgtLower, srcExt, tgtExt} {
		if err := binary.Write(w, binary.LittleEndian, part); err != nil {
			return fmt.Errorf("onfile: write tile index body: %w", err)
		}
	}
	return nil
}

// ReadTileIndex decodes a TileIndex from raw file bytes, reconstructing each
// 33-bit global id from its lower word and extension bit (spec §8 S4).
func ReadTileIndex(data []byte) (*TileIndex, error) {
	r := bytes.NewReader(data)
	var hdr tileIndexHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("onfile: read tile index header: %w", err)
	}

	srcCount := int(hdr.CountSrcVertices)
	tgtCount := int(hdr.CountTgtVertices)

	srcLower := make([]uint32, srcCount)
	if err := binary.Read(bytes.NewReader(data[hdr.OffsetSrcIndex:]), binary.LittleEndian, srcLower); err != nil {
		return nil, fmt.Errorf("onfile: decode src index: %w", err)
	}
	tgtLower := make([]uint32, tgtCount)
	if err := binary.Read(bytes.NewReader(data[hdr.OffsetTgtIndex:]), binary.LittleEndian, tgtLower); err != nil {
		return nil, fmt.Errorf("onfile: decode tgt index: %w", err)
	}

	srcExtLen := bitmapBytes(srcCount)
	srcExt := data[hdr.OffsetSrcIndexBitExtension : hdr.OffsetSrcIndexBitExtension+uint64(srcExtLen)]
	tgtExtLen := bitmapBytes(tgtCount)
	tgtExt := data[hdr.OffsetTgtIndexBitExtension : hdr.OffsetTgtIndexBitExtension+uint64(tgtExtLen)]

	idx := &TileIndex{
		BlockID: hdr.BlockID,
		SrcIDs:  make([]uint64, srcCount),
		TgtIDs:  make([]uint64, tgtCount),
	}
	for i, lower := range srcLower {
		idx.SrcIDs[i] = tilegraph.JoinGlobalID(lower, testBit(srcExt, i))
	}
	for i, lower := range tgtLower {
		idx.TgtIDs[i] = tilegraph.JoinGlobalID(lower, testBit(tgtExt, i))
	}
	return idx, nil
}
