package tilegraph

import "context"

// RemoteFetcher is what a VertexFetcher running in FetcherGlobalFetcher mode
// calls to resolve a source vertex's value (spec §4.8). GlobalFetcher
// satisfies it for the single-host, in-process case; internal/rpcfetch's
// Client satisfies it for the multi-host case where the GlobalFetcher lives
// on a remote shard.
type RemoteFetcher interface {
	Fetch(ctx context.Context, globalID uint64) uint64
	FetchBatch(ctx context.Context, ids []uint64) []uint64
}

// GlobalFetcher serves random-access reads of VertexState.Current on behalf
// of VertexFetchers that run in FetcherGlobalFetcher mode, modeling a
// remote-memory fetch topology over a single host (spec §4.8). Under
// FetcherDirectAccess it is never constructed.
type GlobalFetcher struct {
	vertices *VertexState
	mode     GlobalFetcherMode
}

// NewGlobalFetcher constructs a GlobalFetcher reading from vertices.
func NewGlobalFetcher(vertices *VertexState, mode GlobalFetcherMode) *GlobalFetcher {
	return &GlobalFetcher{vertices: vertices, mode: mode}
}

// Fetch answers a single-id request. It is what VertexFetcher calls, once per
// source id, in FetcherGlobalFetcher mode; FetchBatch below answers a
// multi-id request slot (spec §4.8's {response_ring_buffer, vertex_ids[]})
// and is what internal/rpcfetch's server calls.
func (g *GlobalFetcher) Fetch(ctx context.Context, globalID uint64) uint64 {
	switch g.mode {
	case GlobalFetcherConstantValue:
		return 0
	default: // GlobalFetcherActive
		if int(globalID) < len(g.vertices.Current) {
			return g.vertices.Current[globalID]
		}
		return 0
	}
}

// FetchBatch answers a request slot containing several vertex ids at once,
// the shape spec §4.8 actually describes.
func (g *GlobalFetcher) FetchBatch(ctx context.Context, ids []uint64) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = g.Fetch(ctx, id)
	}
	return out
}
