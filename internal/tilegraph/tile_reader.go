package tilegraph

import (
	"context"
)

// FetchedTile is what a TileReader hands to a VertexFetcher: a fully decoded
// tile plus the engine-local id it occupies this round and the I/O-batch
// bundle it is pinned to (spec §3's Bundle; here each tile is its own
// single-member bundle, the simplest instance of the release-on-last-done
// rule — still exercised by ReleaseProcess/ReleaseVR below, just never
// shared across multiple tiles).
type FetchedTile struct {
	LocalID int
	BlockID uint64
	Tile    *RawTile
	Bundle  *Bundle
}

// TileReader streams decoded tiles from storage into a queue a VertexFetcher
// drains (spec §4.2). skip, when non-nil, lets selective scheduling omit a
// tile id from the round entirely.
type TileReader struct {
	loader *Loader
	queue  *Queue[*FetchedTile]
}

// NewTileReader constructs a TileReader over loader, publishing into queue.
func NewTileReader(loader *Loader, queue *Queue[*FetchedTile]) *TileReader {
	return &TileReader{loader: loader, queue: queue}
}

// Run loads, in order, every tile id in ids (skipping any for which skip
// returns true) and publishes each to the queue, closing it when done —
// the Go-channel equivalent of spec §4.2's per-downstream shutdown sentinel.
func (r *TileReader) Run(ctx context.Context, ids []uint64, localIDs []int, skip func(id uint64) bool) error {
	defer r.queue.Close()
	for i, id := range ids {
		localID := localIDs[i]
		if skip != nil && skip(id) {
			continue
		}
		tile, err := r.loader.LoadTile(ctx, id)
		if err != nil {
			return err
		}
		r.queue.Send(&FetchedTile{
			LocalID: localID,
			BlockID: id,
			Tile:    tile,
			Bundle:  NewBundle(1, nil),
		})
	}
	return nil
}
