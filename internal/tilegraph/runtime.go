package tilegraph

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/sslab-gatech/tile-graph/internal/rpcfetch"
	"github.com/sslab-gatech/tile-graph/internal/storage"
	"github.com/sslab-gatech/tile-graph/internal/tilegraph/kernel"
	"github.com/sslab-gatech/tile-graph/internal/tilegraph/onfile"
	"github.com/sslab-gatech/tile-graph/pkg/parallel"
	"github.com/sslab-gatech/tile-graph/pkg/utils"
)

// RuntimeConfig mirrors the combined engine's CLI surface (spec §6): one
// field per flag, already parsed into their Go types.
type RuntimeConfig struct {
	Algorithm     string
	SourceID      uint64
	Damping       float64
	MaxIterations int

	NMIC                int // --nmic, number of edge engines
	CountApplier        int
	CountGlobalReducer  int
	CountGlobalFetcher  int
	CountVertexReducer  int
	CountVertexFetcher  int
	CountTileProcessors int
	CountFollowers      int
	CountTileReader     int

	InMemoryMode             bool
	PathsMeta                []string // one per engine
	PathsTile                []string // one per engine
	PathGlobals              string
	UseSelectiveScheduling   bool
	EnableTilePartitioning   bool
	EnableFaultTolerance     bool
	PathFaultToleranceOutput string

	LocalFetcherMode  LocalFetcherMode
	GlobalFetcherMode GlobalFetcherMode
	LocalReducerMode  LocalReducerMode
	TileProcessorMode TileProcessorMode

	// RemoteFetcherAddr, when set, makes FetcherGlobalFetcher mode dial a
	// remote internal/rpcfetch server instead of constructing an in-process
	// GlobalFetcher over this host's own VertexState (spec §4.8's multi-host
	// topology).
	RemoteFetcherAddr string

	HostTilesRBSize int64
	ProcessedRBSize int64
	ReadTilesRBSize int64

	SampleThreshold     float64
	MinTileBreakPoint   int
	VertexLockTableSize int
	StripeSize          int

	LogDir string
	Logger utils.Logger
}

// Runtime is the root structure spec §9's "cyclic references" note asks for:
// the single owner of every component, with a fixed teardown order (appliers
// -> reducers -> processors -> fetchers -> readers -> buffers). Since this
// port expresses the pipeline's wiring as goroutines over channels rather
// than persistent pinned threads, "teardown" below means the order in which
// each round's components are allowed to finish draining, which RunIteration
// already enforces per EdgeProcessor. Runtime has no Close method: the shared
// GlobalReducer goroutines are started and joined inside every round, and the
// storage handle passed to NewRuntime stays the caller's.
type Runtime struct {
	cfg      RuntimeConfig
	kernel   kernel.Kernel[uint64]
	kernCfg  kernel.Config
	vertices *VertexState
	domain   *VertexDomain
	rate     *RateTracker

	lockTable *VertexLockTable

	engines       []*EdgeProcessor
	engineTileIDs [][]uint64
	engineLocal   [][]int

	globalReducers  []*GlobalReducer
	globalReducerIn []*Queue[*ProcessedIndexBlock]
	globalFetcher   RemoteFetcher
	globalToOrig    *onfile.GlobalToOrig

	applierStripes [][2]int

	checkpoint   *Checkpoint
	pendingFlush <-chan error

	logger utils.Logger
}

// NewRuntime resolves the algorithm kernel, loads global metadata, allocates
// vertex state, and wires one EdgeProcessor per --nmic shard plus the shared
// GlobalReducer pool (spec §4.6, §4.9).
func NewRuntime(ctx context.Context, cfg RuntimeConfig, store storage.Storage) (*Runtime, error) {
	if cfg.Logger == nil {
		cfg.Logger = &utils.NullLogger{}
	}
	if len(cfg.PathsTile) != cfg.NMIC || len(cfg.PathsMeta) != cfg.NMIC {
		return nil, fmt.Errorf("tilegraph: --paths-tile/--paths-meta must list exactly --nmic=%d entries", cfg.NMIC)
	}

	kern, err := kernel.Lookup(cfg.Algorithm, cfg.Damping)
	if err != nil {
		return nil, err
	}

	statsBytes, err := downloadAll(ctx, store, cfg.PathGlobals+"/global-stats.dat")
	if err != nil {
		return nil, fmt.Errorf("tilegraph: load global-stats.dat: %w", err)
	}
	stats, err := onfile.ReadGlobalStats(statsBytes)
	if err != nil {
		return nil, fmt.Errorf("tilegraph: decode global-stats.dat: %w", err)
	}

	degreeBytes, err := downloadAll(ctx, store, cfg.PathGlobals+"/vertex-degrees.dat")
	if err != nil {
		return nil, fmt.Errorf("tilegraph: load vertex-degrees.dat: %w", err)
	}
	degrees, err := onfile.ReadVertexDegrees(degreeBytes, int(stats.CountVertices))
	if err != nil {
		return nil, fmt.Errorf("tilegraph: decode vertex-degrees.dat: %w", err)
	}

	var globalToOrig *onfile.GlobalToOrig
	if cfg.LogDir != "" {
		origBytes, err := downloadAll(ctx, store, cfg.PathGlobals+"/global-to-orig.dat")
		if err != nil {
			return nil, fmt.Errorf("tilegraph: load global-to-orig.dat: %w", err)
		}
		globalToOrig, err = onfile.ReadGlobalToOrig(origBytes, int(stats.CountVertices), stats.IsIndex32Bits)
		if err != nil {
			return nil, fmt.Errorf("tilegraph: decode global-to-orig.dat: %w", err)
		}
	}

	kernCfg := kernel.Config{
		Algorithm:   cfg.Algorithm,
		SourceID:    cfg.SourceID,
		Damping:     cfg.Damping,
		VertexCount: stats.CountVertices,
	}

	vertices := NewVertexState(int(stats.CountVertices))
	copy(vertices.Degrees, degrees)

	rate := NewRateTracker()
	lockTable := NewVertexLockTable(cfg.VertexLockTableSize)

	var globalFetcher RemoteFetcher
	if cfg.LocalFetcherMode == FetcherGlobalFetcher {
		if cfg.RemoteFetcherAddr != "" {
			globalFetcher = rpcfetch.NewClient(cfg.RemoteFetcherAddr)
		} else {
			globalFetcher = NewGlobalFetcher(vertices, cfg.GlobalFetcherMode)
		}
	}

	numGR := cfg.CountGlobalReducer
	if numGR < 1 {
		numGR = 1
	}
	grIn := make([]*Queue[*ProcessedIndexBlock], numGR)
	globalReducers := make([]*GlobalReducer, numGR)
	for i := range grIn {
		grIn[i] = NewQueue[*ProcessedIndexBlock](64)
		globalReducers[i] = NewGlobalReducer(kern, kernCfg, vertices, grIn[i])
	}

	domain := NewVertexDomain(kern, kernCfg, vertices, VertexDomainConfig{
		MaxIterations:       cfg.MaxIterations,
		UseSelective:        cfg.UseSelectiveScheduling,
		TotalTiles:          int(stats.CountTiles),
		CountTileProcessors: cfg.CountTileProcessors,
		HostTilesBufferCap:  cfg.HostTilesRBSize,
		MinTileBreakPoint:   cfg.MinTileBreakPoint,
		Logger:              cfg.Logger,
	}, rate)

	tilesPerEngine := int(math.Ceil(float64(stats.CountTiles) / float64(cfg.NMIC)))
	engines := make([]*EdgeProcessor, cfg.NMIC)
	tileIDs := make([][]uint64, cfg.NMIC)
	localIDs := make([][]int, cfg.NMIC)

	for i := 0; i < cfg.NMIC; i++ {
		shardTiles := tilesPerEngine
		if i == cfg.NMIC-1 {
			shardTiles = int(stats.CountTiles) - tilesPerEngine*(cfg.NMIC-1)
			if shardTiles < 0 {
				shardTiles = 0
			}
		}
		ids := make([]uint64, shardTiles)
		locals := make([]int, shardTiles)
		for j := range ids {
			ids[j] = uint64(j)
			locals[j] = j
		}
		tileIDs[i] = ids
		localIDs[i] = locals

		engines[i] = NewEdgeProcessor(EdgeProcessorConfig{
			ShardID:          i,
			Store:            store,
			TileDir:          cfg.PathsTile[i],
			Weighted:         stats.IsWeighted,
			Vertices:         vertices,
			Kernel:           kern,
			KernelConfig:     kernCfg,
			TilesPerEngine:   shardTiles,
			FetcherMode:      cfg.LocalFetcherMode,
			GlobalFetcher:    globalFetcher,
			SampleThreshold:  cfg.SampleThreshold,
			TileBreakPoint:   domain.TileBreakPoint,
			ReducerMode:      cfg.LocalReducerMode,
			LockTable:        lockTable,
			GlobalReducerOut: grIn,
			ProcessorMode:    cfg.TileProcessorMode,
			CountProcessors:  cfg.CountTileProcessors,
			CountFollowers:   cfg.CountFollowers,
			StripeSize:       cfg.StripeSize,
			Rate:             rate,
			InMemoryMode:     cfg.InMemoryMode,
		})
	}

	var checkpoint *Checkpoint
	if cfg.EnableFaultTolerance {
		checkpoint = NewCheckpoint(cfg.PathFaultToleranceOutput)
	}

	return &Runtime{
		cfg: cfg, kernel: kern, kernCfg: kernCfg, vertices: vertices, domain: domain, rate: rate,
		lockTable: lockTable, engines: engines, engineTileIDs: tileIDs, engineLocal: localIDs,
		globalReducers: globalReducers, globalReducerIn: grIn, globalFetcher: globalFetcher,
		globalToOrig:   globalToOrig,
		applierStripes: ApplierStripes(int(stats.CountVertices), maxInt(1, cfg.CountApplier)),
		checkpoint:     checkpoint,
		logger:         cfg.Logger,
	}, nil
}

func downloadAll(ctx context.Context, store storage.Storage, key string) ([]byte, error) {
	rc, err := store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Iteration returns the number of the most recently completed iteration.
func (rt *Runtime) Iteration() int { return rt.domain.Iteration() }

// Preload populates every shard's in-memory cache, when --in-memory-mode is
// set, before iteration 0 (spec §4.2).
func (rt *Runtime) Preload(ctx context.Context) error {
	if !rt.cfg.InMemoryMode {
		return nil
	}
	var wg sync.WaitGroup
	errs := make([]error, len(rt.engines))
	for i, e := range rt.engines {
		wg.Add(1)
		go func(i int, e *EdgeProcessor) {
			defer wg.Done()
			errs[i] = e.Preload(ctx, rt.engineTileIDs[i])
		}(i, e)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

var tracer = otel.Tracer("github.com/sslab-gatech/tile-graph/internal/tilegraph")

// Run drives the engine to completion: one round per iteration across every
// EdgeProcessor, appliers, then VertexDomain's round-boundary bookkeeping,
// until VertexDomain's termination check fires. Each round runs inside its
// own "tilegraph.round" span.
func (rt *Runtime) Run(ctx context.Context) error {
	for {
		iterCtx, span := tracer.Start(ctx, "tilegraph.round")
		err := rt.runRound(iterCtx)
		span.End()
		if err != nil {
			return err
		}
		if rt.domain.Done() {
			return nil
		}
	}
}

// runRound drives a single iteration's fetch/process/reduce/apply round,
// wrapped by Run in its own "tilegraph.round" span.
func (rt *Runtime) runRound(ctx context.Context) error {
	rt.domain.BeginRound()

	var grWG sync.WaitGroup
	for _, gr := range rt.globalReducers {
		grWG.Add(1)
		go func(gr *GlobalReducer) {
			defer grWG.Done()
			gr.Run()
		}(gr)
	}

	var wg sync.WaitGroup
	processed := make([]int, len(rt.engines))
	errs := make([]error, len(rt.engines))
	for i, e := range rt.engines {
		wg.Add(1)
		go func(i int, e *EdgeProcessor) {
			defer wg.Done()
			n, err := e.RunRound(ctx, rt.engineTileIDs[i], rt.engineLocal[i], rt.domain.UseSelectiveScheduling())
			processed[i] = n
			errs[i] = err
		}(i, e)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	grWG.Wait()

	totalProcessed := 0
	for _, n := range processed {
		totalProcessed += n
	}

	iteration := rt.domain.Iteration()
	rt.runAppliers(ctx, iteration)

	if rt.pendingFlush != nil {
		if err := <-rt.pendingFlush; err != nil {
			return fmt.Errorf("tilegraph: checkpoint flush: %w", err)
		}
		rt.pendingFlush = nil
	}

	rt.domain.EndRound(totalProcessed)

	if rt.checkpoint != nil {
		rt.pendingFlush = rt.checkpoint.FlushAsync(iteration, rt.vertices.Current)
	}

	if rt.cfg.LogDir != "" {
		if err := rt.logIteration(iteration); err != nil {
			return err
		}
	}
	return nil
}

// runAppliers fans VertexApplier's stripes out across pkg/parallel's generic
// WorkerPool rather than a hand-rolled WaitGroup; MaxWorkers is pinned to the
// stripe count so every stripe still gets its own worker, matching the
// one-goroutine-per-stripe concurrency the stripes were sized for.
func (rt *Runtime) runAppliers(ctx context.Context, iteration int) {
	pool := parallel.NewWorkerPool[[2]int, struct{}](parallel.DefaultPoolConfig().WithWorkers(len(rt.applierStripes)))
	pool.ExecuteFunc(ctx, rt.applierStripes, func(ctx context.Context, stripe [2]int) (struct{}, error) {
		NewVertexApplier(rt.kernel, rt.kernCfg, rt.vertices, stripe[0], stripe[1]).Apply(iteration)
		return struct{}{}, nil
	})
}

// logIteration writes the "<original_id> <value>" lines spec §6's
// per-iteration output describes, one file per iteration under --log, in
// ascending global id order.
func (rt *Runtime) logIteration(iteration int) error {
	if err := os.MkdirAll(rt.cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("tilegraph: create log dir: %w", err)
	}
	path := filepath.Join(strings.TrimRight(rt.cfg.LogDir, "/"), fmt.Sprintf("iteration-%d.log", iteration))

	var b strings.Builder
	for id := 0; id < rt.vertices.Count; id++ {
		origID := uint64(id)
		if rt.globalToOrig != nil && id < len(rt.globalToOrig.OriginalID) {
			origID = rt.globalToOrig.OriginalID[id]
		}
		fmt.Fprintf(&b, "%d %s\n", origID, rt.kernel.FormatValue(rt.vertices.Current[id]))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
