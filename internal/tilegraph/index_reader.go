package tilegraph

import (
	"context"

	"github.com/sslab-gatech/tile-graph/internal/tilegraph/onfile"
)

// IndexReader loads a tile's stat and index side files ahead of its edge
// payload, so selective scheduling can skip an inactive tile without paying
// for the (usually much larger) edge read (spec §4.2).
type IndexReader struct {
	loader *Loader
}

// NewIndexReader constructs an IndexReader over loader.
func NewIndexReader(loader *Loader) *IndexReader {
	return &IndexReader{loader: loader}
}

// Peek returns the tile-stat and tile-index for blockID.
func (r *IndexReader) Peek(ctx context.Context, blockID uint64) (*onfile.TileStat, *onfile.TileIndex, error) {
	return r.loader.LoadIndex(ctx, blockID)
}

// IsActive reports whether any of the tile's source-side global ids are set
// in the current active bitmap; used in selective-scheduling mode to decide
// whether a tile is worth fetching this round (spec §4.3 step 2).
func IsActive(index *onfile.TileIndex, activeCurrent interface {
	Test(id int) bool
}) bool {
	for _, gid := range index.SrcIDs {
		if activeCurrent.Test(int(gid)) {
			return true
		}
	}
	return false
}
