package tilegraph

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sslab-gatech/tile-graph/internal/storage"
	"github.com/sslab-gatech/tile-graph/internal/tilegraph/kernel"
)

// EdgeProcessor wires one storage shard's fetch/process/reduce chain: a
// Loader backing an IndexReader and TileReader, a VertexFetcher, a pool of
// TileProcessors, and a VertexReducer (spec §2's per-engine pipeline
// diagram). One EdgeProcessor exists per --nmic shard. Each RunRound call
// builds a fresh fetcher/processor/reducer wiring over the shard's
// long-lived Loader and OffsetTable, since every component above the Loader
// owns a queue that is closed at the end of its round's shutdown sentinel.
type EdgeProcessor struct {
	ShardID int

	loader      *Loader
	indexReader *IndexReader
	table       *OffsetTable
	cfg         EdgeProcessorConfig
}

// EdgeProcessorConfig bundles the dependencies a Runtime assembles once per
// shard.
type EdgeProcessorConfig struct {
	ShardID          int
	Store            storage.Storage
	TileDir          string
	Weighted         bool
	Vertices         *VertexState
	Kernel           kernel.Kernel[uint64]
	KernelConfig     kernel.Config
	TilesPerEngine   int
	FetcherMode      LocalFetcherMode
	GlobalFetcher    RemoteFetcher
	SampleThreshold  float64
	TileBreakPoint   func() int
	ReducerMode      LocalReducerMode
	LockTable        *VertexLockTable
	GlobalReducerOut []*Queue[*ProcessedIndexBlock]
	ProcessorMode    TileProcessorMode
	CountProcessors  int
	CountFollowers   int
	StripeSize       int
	Rate             *RateTracker
	InMemoryMode     bool
}

// NewEdgeProcessor assembles one shard's pipeline.
func NewEdgeProcessor(cfg EdgeProcessorConfig) *EdgeProcessor {
	loader := NewLoader(cfg.Store, cfg.TileDir, cfg.Weighted)
	if cfg.InMemoryMode {
		loader.EnableCache()
	}
	return &EdgeProcessor{
		ShardID:     cfg.ShardID,
		loader:      loader,
		indexReader: NewIndexReader(loader),
		table:       NewOffsetTable(cfg.TilesPerEngine),
		cfg:         cfg,
	}
}

// Preload populates the in-memory-mode cache for every tile id this shard
// will serve across the whole run (spec §4.2's one-time loader).
func (e *EdgeProcessor) Preload(ctx context.Context, ids []uint64) error {
	return e.loader.Preload(ctx, ids)
}

// RunRound streams every tile id in ids through fetch -> process -> reduce
// for one iteration, returning how many tiles were actually processed (the
// rest skipped by selective scheduling). useSelective, when true, has the
// IndexReader peek each tile's source ids against the current active bitmap
// before committing to a full load (spec §4.3 step 2). localIDs gives each
// id's offset-table slot for this round.
func (e *EdgeProcessor) RunRound(ctx context.Context, ids []uint64, localIDs []int, useSelective bool) (int, error) {
	ctx, span := tracer.Start(ctx, "tilegraph.shard_round", trace.WithAttributes(
		attribute.Int("shard_id", e.ShardID),
		attribute.Int("tile_count", len(ids)),
	))
	defer span.End()

	for i := range localIDs {
		e.table.Entry(localIDs[i]).Reset()
	}

	localByBlock := make(map[uint64]int, len(ids))
	for i, id := range ids {
		localByBlock[id] = localIDs[i]
	}

	jobs := NewQueue[*PartitionJob](len(ids)*2 + 4)
	out := NewQueue[*ProcessedBlock](len(ids)*2 + 4)
	tiles := NewQueue[*FetchedTile](len(ids) + 1)

	fetcher := NewVertexFetcher(e.cfg.Vertices, e.cfg.FetcherMode, e.cfg.GlobalFetcher, e.cfg.SampleThreshold, e.cfg.TileBreakPoint, jobs)

	numProcessors := e.cfg.CountProcessors
	if numProcessors < 1 {
		numProcessors = 1
	}
	processors := make([]*TileProcessor, numProcessors)
	for i := range processors {
		processors[i] = NewTileProcessor(e.cfg.Kernel, e.cfg.KernelConfig, e.cfg.Vertices, e.cfg.ProcessorMode, e.cfg.CountFollowers, e.cfg.StripeSize, e.table, out, e.cfg.Rate)
	}
	reducer := NewVertexReducer(e.cfg.Kernel, e.cfg.KernelConfig, e.cfg.Vertices, e.cfg.ReducerMode, e.cfg.LockTable, e.table, e.cfg.GlobalReducerOut)

	reader := NewTileReader(e.loader, tiles)

	processed := 0
	skip := func(id uint64) bool {
		if !useSelective {
			processed++
			return false
		}
		_, index, err := e.indexReader.Peek(ctx, id)
		if err != nil || IsActive(index, e.cfg.Vertices.ActiveCurrent) {
			processed++
			return false
		}
		return true
	}

	readDone := make(chan error, 1)
	go func() {
		readDone <- reader.Run(ctx, ids, localIDs, skip)
	}()

	fetchDone := make(chan error, 1)
	go func() {
		defer fetcher.Shutdown(numProcessors)
		for {
			ft, ok := tiles.Recv()
			if !ok {
				fetchDone <- nil
				return
			}
			if err := fetcher.Dispatch(ctx, ft); err != nil {
				fetchDone <- fmt.Errorf("tilegraph: shard %d dispatch tile %d: %w", e.ShardID, ft.BlockID, err)
				return
			}
		}
	}()

	var bundleMu sync.Mutex
	bundleByBlock := make(map[uint64]*Bundle)
	bundleFor := func(job *PartitionJob) *Bundle {
		bundleMu.Lock()
		defer bundleMu.Unlock()
		bundle := bundleByBlock[job.Block.BlockID]
		if bundle == nil {
			bundle = NewBundle(job.Block.NumTilePartition, nil)
			bundleByBlock[job.Block.BlockID] = bundle
		}
		return bundle
	}

	var processWg sync.WaitGroup
	for _, processor := range processors {
		processWg.Add(1)
		go func(processor *TileProcessor) {
			defer processWg.Done()
			for {
				job, ok := jobs.Recv()
				if !ok {
					return
				}
				if job.Block.Shutdown {
					processor.Process(job, nil, 0)
					continue
				}
				localID := localByBlock[job.Block.BlockID]
				processor.Process(job, bundleFor(job), localID)
			}
		}(processor)
	}
	processDone := make(chan struct{})
	go func() {
		processWg.Wait()
		out.Close()
		close(processDone)
	}()

	shutdownSeen := false
	for {
		pb, ok := out.Recv()
		if !ok {
			break
		}
		if pb.Shutdown {
			// every processor emits its own shutdown echo; only the first
			// needs forwarding to the GlobalReducers (spec §4.6's single
			// shutdown sentinel per downstream).
			if shutdownSeen {
				continue
			}
			shutdownSeen = true
			reducer.Reduce(pb, 0)
			continue
		}
		reducer.Reduce(pb, localByBlock[pb.BlockID])
	}
	<-processDone

	if err := <-readDone; err != nil {
		return processed, err
	}
	if err := <-fetchDone; err != nil {
		return processed, err
	}
	return processed, nil
}
