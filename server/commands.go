package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"TreeMPI/cluster"
	"TreeMPI/driver"
	"TreeMPI/history"
	"TreeMPI/topology"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole process group inside this program",
	Long: `Starts one worker goroutine per rank over the in-process mesh (local) or
loopback TCP (tcp), feeds rank 0 the input file and prints the result.

With --benchmark nothing goes to stdout and the root's elapsed time in
seconds is printed to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		input, err := loadInput(cfg)
		if err != nil {
			return err
		}

		report, err := cluster.Run(cmd.Context(), cfg, input, logger)
		if err != nil {
			return err
		}

		if cfg.Benchmark {
			printElapsed(report.Elapsed)
		} else if _, err := report.WriteTo(cmd.OutOrStdout()); err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("report"); path != "" {
			if err := report.Save(path); err != nil {
				return err
			}
			logger.Info("report saved", zap.String("path", path), zap.String("run", report.ID))
		}

		if cfg.History != "" {
			store, err := history.Open(cfg.History)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Record(cmd.Context(), report); err != nil {
				return err
			}
		}
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run one rank of a group spread over several processes",
	Long: `Listens on its own peer address and talks to the other ranks over TCP.
Start one worker per rank, each with the same peer list. Every leaf prints
its own "rank:bit" line; rank 0 prints the overflow line or the sorted values.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		var input driver.Input
		if cfg.Rank == topology.Root {
			if input, err = loadInput(cfg); err != nil {
				return err
			}
		}

		_, elapsed, err := cluster.RunWorker(cmd.Context(), cfg, input, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}
		if cfg.Benchmark && cfg.Rank == topology.Root {
			printElapsed(elapsed)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <report.yaml>",
	Short: "Check the signature over a saved run report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := cluster.LoadReport(args[0])
		if err != nil {
			return err
		}
		if err := report.Verify(); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		if i, _ := cmd.Flags().GetInt("line"); i >= 0 {
			line, branch, err := report.Proof(i)
			if err != nil {
				return err
			}
			if !report.VerifyLine(line, branch, i) {
				return fmt.Errorf("line %d: inclusion proof failed", i)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "line %d: %s\n", i, line)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok %s (%s, size %d, %d lines)\n",
			report.ID, report.Algorithm, report.Size, report.Attestation.Lines)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <runs.db>",
	Short: "List recorded runs or their timing aggregates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		if summary, _ := cmd.Flags().GetBool("summary"); summary {
			sums, err := store.Summaries(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sums {
				fmt.Fprintf(out, "%-6s size=%-5d %-5s runs=%-4d mean=%.8f min=%.8f max=%.8f\n",
					s.Algorithm, s.Size, s.Transport, s.Runs, s.Mean.Seconds(), s.Min.Seconds(), s.Max.Seconds())
			}
			return nil
		}

		algorithm, _ := cmd.Flags().GetString("algorithm")
		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := store.List(cmd.Context(), algorithm, limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%s %s %-6s size=%-5d %-5s %.8f\n",
				e.CreatedAt.Format(time.RFC3339), e.ID, e.Algorithm, e.Size, e.Transport, e.Elapsed.Seconds())
		}
		return nil
	},
}

func printElapsed(d time.Duration) {
	fmt.Fprintf(os.Stderr, "%.8f\n", d.Seconds())
}
