package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"TreeMPI/config"
	"TreeMPI/driver"
	"TreeMPI/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "treempi",
	Short: "Tree-structured message passing: parallel binary adder and tournament sort",
	Long: `treempi arranges a group of processes as an implicit binary heap.
Leaves hold one datum each, inner ranks combine their children.

  adder  carry-lookahead addition of two binary numbers, one bit per leaf
  sort   tournament selection sort, one value per leaf`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	addRunFlags(runCmd)
	runCmd.Flags().String("report", "", "Save the attested report to this file")
	runCmd.Flags().String("history", "", "Record the run in this SQLite database")

	historyCmd.Flags().String("algorithm", "", "Only list runs of this algorithm")
	historyCmd.Flags().Int("limit", 20, "Number of runs to list")
	historyCmd.Flags().Bool("summary", false, "Print timing aggregates instead of single runs")

	addRunFlags(workerCmd)
	workerCmd.Flags().Int("rank", 0, "Rank of this process (or TREEMPI_RANK)")
	workerCmd.Flags().StringSlice("peers", nil, "Peer addresses in rank order")
	workerCmd.Flags().String("peers-file", "", "File with one peer address per line")

	verifyCmd.Flags().Int("line", -1, "Also check the inclusion proof of this transcript line")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(historyCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("size", 0, "Number of processes, odd (or TREEMPI_SIZE)")
	cmd.Flags().String("algorithm", "", "adder or sort")
	cmd.Flags().String("carry", "", "Adder carry strategy: shift or direct")
	cmd.Flags().String("input", "", "Input file (default \"numbers\")")
	cmd.Flags().String("transport", "", "local or tcp")
	cmd.Flags().String("values", "", "Sort input format: bytes or decimal")
	cmd.Flags().Bool("benchmark", false, "Print the root's elapsed seconds to stderr instead of results")
	cmd.Flags().Bool("echo", true, "Sort: print the loaded values before the result")
}

// loadConfig reads the config file and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	strs := map[string]*string{
		"algorithm":  &cfg.Algorithm,
		"carry":      &cfg.Carry,
		"input":      &cfg.Input.Path,
		"transport":  &cfg.Transport,
		"values":     &cfg.Input.Values,
		"peers-file": &cfg.PeersFile,
		"history":    &cfg.History,
	}
	for name, dst := range strs {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if flags.Changed("size") {
		cfg.Size, _ = flags.GetInt("size")
	}
	if flags.Changed("rank") {
		cfg.Rank, _ = flags.GetInt("rank")
	}
	if flags.Changed("peers") {
		cfg.Peers, _ = flags.GetStringSlice("peers")
	}
	if flags.Changed("benchmark") {
		cfg.Benchmark, _ = flags.GetBool("benchmark")
	}
	if flags.Changed("echo") {
		cfg.Output.EchoInput, _ = flags.GetBool("echo")
	}
	return cfg, cfg.Validate()
}

func loadInput(cfg *config.Config) (driver.Input, error) {
	if cfg.Algorithm == config.AlgorithmSort {
		return driver.LoadValues(cfg.Input.Path, cfg.ValueMode())
	}
	return driver.LoadNumbers(cfg.Input.Path)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging, verbose)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
