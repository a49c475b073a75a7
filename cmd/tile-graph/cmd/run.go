package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sslab-gatech/tile-graph/internal/metastore"
	"github.com/sslab-gatech/tile-graph/internal/storage"
	"github.com/sslab-gatech/tile-graph/internal/tilegraph"
	pkgconfig "github.com/sslab-gatech/tile-graph/pkg/config"
	"github.com/sslab-gatech/tile-graph/pkg/telemetry"
)

var (
	algorithm     string
	sourceID      uint64
	damping       float64
	maxIterations int

	nmic                int
	countApplier        int
	countGlobalReducer  int
	countGlobalFetcher  int
	countIndexReader    int
	countVertexReducer  int
	countVertexFetcher  int
	countTileProcessors int
	countFollowers      int
	countTileReader     int

	inMemoryMode bool
	pathsMeta    string
	pathsTile    string
	pathGlobals  string

	useSelectiveScheduling   bool
	enableTilePartitioning   bool
	enableFaultTolerance     bool
	pathFaultToleranceOutput string

	localFetcherMode      string
	globalFetcherMode     string
	localReducerMode      string
	tileProcessorMode     string
	tileProcessorInMode   string
	tileProcessorOutMode  string
	remoteFetcherAddr     string

	metastorePath string

	hostTilesRBSize int64
	processedRBSize int64
	readTilesRBSize int64

	sampleThreshold     float64
	minTileBreakPoint   int
	vertexLockTableSize int
	stripeSize          int
	useSMT              bool

	logDir string
)

// runCmd represents the run command: one full execution of the combined
// engine over --nmic edge-engine shards (spec §6's CLI surface).
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a graph algorithm to completion over tile-encoded edge data",
	Long: `run drives the tile-graph engine's fetch -> process -> reduce -> apply
pipeline to completion: one round per iteration, across every --nmic edge
engine, until the algorithm's termination rule fires.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	binName := BinName()
	runCmd.Example = fmt.Sprintf(`  # PageRank, 4 shards, 20 iterations
  %s run --algorithm pagerank --nmic 4 --max-iterations 20 \
      --paths-tile a:b:c:d --paths-meta e:f:g:h --path-globals /data/globals

  # BFS with selective scheduling, logging every round's values
  %s run --algorithm bfs --source-id 100 --max-iterations 1 \
      --use-selective-scheduling 1 --nmic 1 \
      --paths-tile /data/tile/0 --paths-meta /data/meta/0 \
      --path-globals /data/globals --log ./out`, binName, binName)

	runCmd.Flags().StringVar(&algorithm, "algorithm", "", "Algorithm: pagerank, bfs, cc, sssp, spmv, tc, bp (required)")
	runCmd.Flags().Uint64Var(&sourceID, "source-id", 0, "Source vertex global id (bfs, sssp)")
	runCmd.Flags().Float64Var(&damping, "damping", 0.85, "Damping factor (pagerank)")
	runCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Maximum iteration count, >= 1 (required)")

	runCmd.Flags().IntVar(&nmic, "nmic", 1, "Number of edge engines")
	runCmd.Flags().IntVar(&countApplier, "count-applier", 1, "Number of VertexApplier stripes")
	runCmd.Flags().IntVar(&countGlobalReducer, "count-globalreducer", 1, "Number of GlobalReducer instances")
	runCmd.Flags().IntVar(&countGlobalFetcher, "count-globalfetcher", 1, "Number of GlobalFetcher instances")
	runCmd.Flags().IntVar(&countIndexReader, "count-indexreader", 1, "Number of IndexReader instances (reserved; one runs per shard)")
	runCmd.Flags().IntVar(&countVertexReducer, "count-vertex-reducer", 1, "Number of VertexReducer instances (reserved; one runs per shard)")
	runCmd.Flags().IntVar(&countVertexFetcher, "count-vertex-fetcher", 1, "Number of VertexFetcher instances (reserved; one runs per shard)")
	runCmd.Flags().IntVar(&countTileProcessors, "count-tile-processors", 1, "Number of TileProcessor workers per shard")
	runCmd.Flags().IntVar(&countFollowers, "count-followers", 0, "Number of follower threads per TileProcessor stripe (--use-smt)")
	runCmd.Flags().IntVar(&countTileReader, "count-tile-reader", 1, "Number of TileReader instances (reserved; one runs per shard)")

	runCmd.Flags().BoolVar(&inMemoryMode, "in-memory-mode", false, "Preload every shard's tiles into memory before iterating")
	runCmd.Flags().StringVar(&pathsMeta, "paths-meta", "", "Colon-separated per-engine metadata directories (required)")
	runCmd.Flags().StringVar(&pathsTile, "paths-tile", "", "Colon-separated per-engine tile directories (required)")
	runCmd.Flags().StringVar(&pathGlobals, "path-globals", "", "Directory holding global-stats.dat and friends (required)")

	runCmd.Flags().BoolVar(&useSelectiveScheduling, "use-selective-scheduling", false, "Skip tiles whose source vertices are all inactive")
	runCmd.Flags().BoolVar(&enableTilePartitioning, "enable-tile-partitioning", false, "Split oversized tiles into multiple partition jobs")
	runCmd.Flags().BoolVar(&enableFaultTolerance, "enable-fault-tolerance", false, "Write a restart checkpoint after every round")
	runCmd.Flags().StringVar(&pathFaultToleranceOutput, "path-fault-tolerance-output", "", "Checkpoint output directory (required with --enable-fault-tolerance)")

	runCmd.Flags().StringVar(&localFetcherMode, "local-fetcher-mode", "DirectAccess", "GlobalFetcher, DirectAccess, ConstantValue, or Fake")
	runCmd.Flags().StringVar(&globalFetcherMode, "global-fetcher-mode", "Active", "Active or ConstantValue")
	runCmd.Flags().StringVar(&localReducerMode, "local-reducer-mode", "GlobalReducer", "GlobalReducer, Locking, or Atomic")
	runCmd.Flags().StringVar(&tileProcessorMode, "tile-processor-mode", "Active", "Active or Noop")
	runCmd.Flags().StringVar(&tileProcessorInMode, "tile-processor-input-mode", "VertexFetcher", "VertexFetcher, FakeVertexFetcher, or ConstantValue")
	runCmd.Flags().StringVar(&tileProcessorOutMode, "tile-processor-output-mode", "VertexReducer", "VertexReducer, FakeVertexReducer, or Noop")
	runCmd.Flags().StringVar(&remoteFetcherAddr, "remote-fetcher-addr", "", "host:port of a remote rpcfetch server (--local-fetcher-mode GlobalFetcher only; empty: fetch from this host's own vertex state)")

	runCmd.Flags().StringVar(&metastorePath, "metastore", "", "SQLite file to record this run's lifecycle in (empty: skip run-history tracking)")

	runCmd.Flags().Int64Var(&hostTilesRBSize, "host-tiles-rb-size", 0, "Host-tiles ring buffer size in bytes (0: use deployment default)")
	runCmd.Flags().Int64Var(&processedRBSize, "processed-rb-size", 0, "Processed-block ring buffer size in bytes (0: use deployment default)")
	runCmd.Flags().Int64Var(&readTilesRBSize, "read-tiles-rb-size", 0, "Read-tiles ring buffer size in bytes (0: use deployment default)")

	runCmd.Flags().Float64Var(&sampleThreshold, "sample-threshold", 0, "Fraction of partitions whose execution time is sampled (0: use deployment default)")
	runCmd.Flags().IntVar(&minTileBreakPoint, "min-tile-break-point", 0, "Floor for the adaptive tile_break_point (0: use deployment default)")
	runCmd.Flags().IntVar(&vertexLockTableSize, "vertex-lock-table-size", 0, "Spinlock table size for Locking reducer mode (0: use deployment default)")
	runCmd.Flags().IntVar(&stripeSize, "edges-stripe-size", 0, "Stripe size for TileProcessor work partitioning (0: use deployment default)")
	runCmd.Flags().BoolVar(&useSMT, "use-smt", false, "Run follower threads alongside each TileProcessor stripe")

	runCmd.Flags().StringVar(&logDir, "log", "", "Directory to write one <original_id> <value> file per iteration")

	for _, name := range []string{"algorithm", "max-iterations", "paths-meta", "paths-tile", "path-globals"} {
		runCmd.MarkFlagRequired(name)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	fatal := tilegraph.NewFatalSink(log)

	if maxIterations < 1 {
		return fmt.Errorf("--max-iterations must be >= 1")
	}
	if enableFaultTolerance && pathFaultToleranceOutput == "" {
		return fmt.Errorf("--path-fault-tolerance-output is required with --enable-fault-tolerance")
	}

	fetcherMode, err := tilegraph.ParseLocalFetcherMode(localFetcherMode)
	if err != nil {
		return err
	}
	gFetcherMode, err := tilegraph.ParseGlobalFetcherMode(globalFetcherMode)
	if err != nil {
		return err
	}
	reducerMode, err := tilegraph.ParseLocalReducerMode(localReducerMode)
	if err != nil {
		return err
	}
	processorMode, err := tilegraph.ParseTileProcessorMode(tileProcessorMode)
	if err != nil {
		return err
	}
	if _, err := tilegraph.ParseTileProcessorInputMode(tileProcessorInMode); err != nil {
		return err
	}
	if _, err := tilegraph.ParseTileProcessorOutputMode(tileProcessorOutMode); err != nil {
		return err
	}

	deployCfg, err := pkgconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load deployment configuration: %w", err)
	}

	pathsTileList := splitPaths(pathsTile)
	pathsMetaList := splitPaths(pathsMeta)
	if len(pathsTileList) != nmic || len(pathsMetaList) != nmic {
		return fmt.Errorf("--paths-tile/--paths-meta must each list exactly --nmic=%d colon-separated entries", nmic)
	}

	store, err := storage.NewStorage(&deployCfg.Storage)
	if err != nil {
		return fmt.Errorf("create storage backend: %w", err)
	}

	rtCfg := tilegraph.RuntimeConfig{
		Algorithm:     algorithm,
		SourceID:      sourceID,
		Damping:       damping,
		MaxIterations: maxIterations,

		NMIC:                nmic,
		CountApplier:        countApplier,
		CountGlobalReducer:  countGlobalReducer,
		CountGlobalFetcher:  countGlobalFetcher,
		CountVertexReducer:  countVertexReducer,
		CountVertexFetcher:  countVertexFetcher,
		CountTileProcessors: countTileProcessors,
		CountFollowers:      followerCount(),
		CountTileReader:     countTileReader,

		InMemoryMode:             inMemoryMode,
		PathsMeta:                pathsMetaList,
		PathsTile:                pathsTileList,
		PathGlobals:              pathGlobals,
		UseSelectiveScheduling:   useSelectiveScheduling,
		EnableTilePartitioning:   enableTilePartitioning,
		EnableFaultTolerance:     enableFaultTolerance,
		PathFaultToleranceOutput: pathFaultToleranceOutput,

		LocalFetcherMode:  fetcherMode,
		GlobalFetcherMode: gFetcherMode,
		LocalReducerMode:  reducerMode,
		TileProcessorMode: processorMode,
		RemoteFetcherAddr: remoteFetcherAddr,

		HostTilesRBSize: orDefault(hostTilesRBSize, deployCfg.Engine.HostTilesRBSize),
		ProcessedRBSize: orDefault(processedRBSize, deployCfg.Engine.ProcessedRBSize),
		ReadTilesRBSize: orDefault(readTilesRBSize, deployCfg.Engine.ReadTilesRBSize),

		SampleThreshold:     orDefaultFloat(sampleThreshold, deployCfg.Engine.SampleThreshold),
		MinTileBreakPoint:   orDefaultInt(minTileBreakPoint, deployCfg.Engine.MinTileBreakPoint),
		VertexLockTableSize: orDefaultInt(vertexLockTableSize, deployCfg.Engine.VertexLockTableSize),
		StripeSize:          orDefaultInt(stripeSize, deployCfg.Engine.EdgesStripeSize),

		LogDir: logDir,
		Logger: log,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Init(ctx)
	if err != nil {
		log.Warn("telemetry init: %v", err)
	}
	defer shutdownTelemetry(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if sig, ok := <-sigChan; ok {
			log.Info("received signal %v, cancelling run", sig)
			cancel()
		}
	}()

	log.Info("=== tile-graph ===")
	log.Info("algorithm: %s, nmic: %d, max-iterations: %d", algorithm, nmic, maxIterations)

	var runID int64
	var history *metastore.Store
	if metastorePath != "" {
		history, err = metastore.Open(metastorePath)
		if err != nil {
			return fmt.Errorf("open metastore: %w", err)
		}
		defer history.Close()

		runID, err = history.StartRun(ctx, algorithm, nmic)
		if err != nil {
			return fmt.Errorf("record run start: %w", err)
		}
	}

	rt, err := tilegraph.NewRuntime(ctx, rtCfg, store)
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}

	if err := rt.Preload(ctx); err != nil {
		if history != nil {
			history.Failed(ctx, runID, rt.Iteration(), err)
		}
		fatal.Fatal("Preload", err)
	}

	if err := rt.Run(ctx); err != nil {
		if history != nil {
			history.Failed(ctx, runID, rt.Iteration(), err)
		}
		fatal.Fatal("Run", err)
	}

	if history != nil {
		if err := history.Converged(ctx, runID, rt.Iteration()); err != nil {
			log.Warn("record run outcome: %v", err)
		}
	}

	log.Info("run complete after %d iteration(s)", rt.Iteration())
	return nil
}

func splitPaths(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ":")
}

func followerCount() int {
	if !useSMT {
		return 0
	}
	return countFollowers
}

func orDefault(v, deflt int64) int64 {
	if v != 0 {
		return v
	}
	return deflt
}

func orDefaultInt(v, deflt int) int {
	if v != 0 {
		return v
	}
	return deflt
}

func orDefaultFloat(v, deflt float64) float64 {
	if v != 0 {
		return v
	}
	return deflt
}
