package tilegraph

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sslab-gatech/tile-graph/internal/storage"
	"github.com/sslab-gatech/tile-graph/internal/tilegraph/onfile"
)

// RawTile bundles one tile's three decoded on-disk parts: the edge payload,
// its side-file stat, and its local-to-global index (spec §6).
type RawTile struct {
	Stat  *onfile.TileStat
	Edges *onfile.EdgeBlock
	Index *onfile.TileIndex
}

// Loader fetches and decodes tiles for one storage shard. In in-memory mode
// Runtime.Preload fills every shard's cache once, waiting for all shards,
// before the first round starts (spec §4.2); in streaming mode each call re-reads from
// storage, bounding peak memory at the cost of repeated I/O.
type Loader struct {
	store      storage.Storage
	dir        string
	weighted   bool
	cacheMu    sync.RWMutex
	cache      map[uint64]*RawTile
	cacheFill  bool
}

// NewLoader constructs a Loader reading tile-*.dat files out of dir via store.
func NewLoader(store storage.Storage, dir string, weighted bool) *Loader {
	return &Loader{store: store, dir: dir, weighted: weighted, cache: make(map[uint64]*RawTile)}
}

// EnableCache turns on the in-memory-mode cache; once filled via Preload,
// LoadTile serves from it instead of re-reading storage.
func (l *Loader) EnableCache() { l.cacheFill = true }

// Preload reads and decodes every tile id in ids, populating the cache. Used
// once, behind the in-memory-mode barrier, before iteration 0 begins.
func (l *Loader) Preload(ctx context.Context, ids []uint64) error {
	for _, id := range ids {
		tile, err := l.readTile(ctx, id)
		if err != nil {
			return err
		}
		l.cacheMu.Lock()
		l.cache[id] = tile
		l.cacheMu.Unlock()
	}
	return nil
}

// LoadTile returns the decoded tile for blockID, from cache if enabled and
// populated, otherwise via a fresh storage read.
func (l *Loader) LoadTile(ctx context.Context, blockID uint64) (*RawTile, error) {
	if l.cacheFill {
		l.cacheMu.RLock()
		tile, ok := l.cache[blockID]
		l.cacheMu.RUnlock()
		if ok {
			return tile, nil
		}
	}
	return l.readTile(ctx, blockID)
}

func (l *Loader) readTile(ctx context.Context, blockID uint64) (*RawTile, error) {
	statBytes, err := l.readFile(ctx, fmt.Sprintf("%s/tile-stat-%d.dat", l.dir, blockID))
	if err != nil {
		return nil, fmt.Errorf("tilegraph: load tile-stat %d: %w", blockID, err)
	}
	stat, err := onfile.ReadTileStat(statBytes)
	if err != nil {
		return nil, fmt.Errorf("tilegraph: decode tile-stat %d: %w", blockID, err)
	}

	edgeBytes, err := l.readFile(ctx, fmt.Sprintf("%s/tile-%d.dat", l.dir, blockID))
	if err != nil {
		return nil, fmt.Errorf("tilegraph: load tile %d: %w", blockID, err)
	}
	edges, err := onfile.ReadEdgeBlock(edgeBytes, int(stat.CountEdges), stat.UseRLE, l.weighted)
	if err != nil {
		return nil, fmt.Errorf("tilegraph: decode tile %d: %w", blockID, err)
	}

	indexBytes, err := l.readFile(ctx, fmt.Sprintf("%s/tile-index-%d.dat", l.dir, blockID))
	if err != nil {
		return nil, fmt.Errorf("tilegraph: load tile-index %d: %w", blockID, err)
	}
	index, err := onfile.ReadTileIndex(indexBytes)
	if err != nil {
		return nil, fmt.Errorf("tilegraph: decode tile-index %d: %w", blockID, err)
	}

	return &RawTile{Stat: stat, Edges: edges, Index: index}, nil
}

// LoadIndex reads only the tile-stat and tile-index side files, skipping the
// (usually much larger) edge payload; IndexReader uses this to make a
// selective-scheduling skip decision before committing to the full load.
func (l *Loader) LoadIndex(ctx context.Context, blockID uint64) (*onfile.TileStat, *onfile.TileIndex, error) {
	statBytes, err := l.readFile(ctx, fmt.Sprintf("%s/tile-stat-%d.dat", l.dir, blockID))
	if err != nil {
		return nil, nil, fmt.Errorf("tilegraph: load tile-stat %d: %w", blockID, err)
	}
	stat, err := onfile.ReadTileStat(statBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("tilegraph: decode tile-stat %d: %w", blockID, err)
	}

	indexBytes, err := l.readFile(ctx, fmt.Sprintf("%s/tile-index-%d.dat", l.dir, blockID))
	if err != nil {
		return nil, nil, fmt.Errorf("tilegraph: load tile-index %d: %w", blockID, err)
	}
	index, err := onfile.ReadTileIndex(indexBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("tilegraph: decode tile-index %d: %w", blockID, err)
	}
	return stat, index, nil
}

func (l *Loader) readFile(ctx context.Context, key string) ([]byte, error) {
	rc, err := l.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
