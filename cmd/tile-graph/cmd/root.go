// Package cmd implements the tile-graph command-line surface (spec §6).
package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sslab-gatech/tile-graph/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger utils.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "tile-graph",
	Short: "An out-of-core, tile-based vertex-centric graph engine",
	Long: `tile-graph runs out-of-core vertex-centric graph algorithms
(pagerank, bfs, cc, sssp) over edge tiles too large to fit in memory,
streaming each round through a fetch -> process -> reduce -> apply
pipeline of edge engines.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to deployment configuration file")

	binName := BinName()
	rootCmd.Example = `  # Run PageRank over 4 shards
  ` + binName + ` run --algorithm pagerank --nmic 4 --max-iterations 20 \
      --paths-tile /data/tile/0:/data/tile/1:/data/tile/2:/data/tile/3 \
      --paths-meta /data/meta/0:/data/meta/1:/data/meta/2:/data/meta/3 \
      --path-globals /data/globals

  # Run BFS from vertex 100 with selective scheduling and a log of every round
  ` + binName + ` run --algorithm bfs --source-id 100 --max-iterations 100 --use-selective-scheduling 1 \
      --nmic 1 --paths-tile /data/tile/0 --paths-meta /data/meta/0 \
      --path-globals /data/globals --log ./out`
}

// GetLogger returns the configured logger.
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}
