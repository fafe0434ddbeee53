package cluster

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"TreeMPI/config"
	"TreeMPI/connector"
	"TreeMPI/driver"
	"TreeMPI/libnet"
	"TreeMPI/protocol"
	"TreeMPI/topology"
)

// RunWorker runs rank cfg.Rank of a group spread over separate processes,
// listening on its own peer address. Results are printed to out as they are
// produced; only rank 0 reads input. The returned duration is the time this
// rank spent in the protocol.
func RunWorker(ctx context.Context, cfg *config.Config, input driver.Input, out io.Writer, logger *zap.Logger) (protocol.Stats, time.Duration, error) {
	if err := cfg.Validate(); err != nil {
		return protocol.Stats{}, 0, err
	}
	addrs, err := cfg.PeerAddrs()
	if err != nil {
		return protocol.Stats{}, 0, err
	}

	run := follow(cfg)
	if cfg.Rank == topology.Root {
		j, err := prepare(cfg, input)
		if err != nil {
			return protocol.Stats{}, 0, err
		}
		run = j.run
	}

	rn := libnet.MakeNetwork(cfg.Rank, cfg.Size, addrs[cfg.Rank], logger)
	if err := rn.Start(); err != nil {
		return protocol.Stats{}, 0, err
	}
	defer rn.Close()
	rn.AddSender(connector.MakeConnectService(cfg.Rank, addrs, logger, connectorOptions(cfg)))

	w, err := protocol.MakeWorker(rn, logger, cfg.CarryStrategy())
	if err != nil {
		return protocol.Stats{}, 0, err
	}

	var sink protocol.Sink = protocol.Discard
	var pw *driver.Writer
	if !cfg.Benchmark {
		pw = driver.NewWriter(out)
		sink = pw
		if cfg.Rank == topology.Root && cfg.Algorithm == config.AlgorithmSort && cfg.Output.EchoInput {
			pw.Echo(input.Values)
		}
	}

	logger.Info("worker started", zap.Int("rank", cfg.Rank), zap.String("addr", rn.Addr()))
	start := time.Now()
	if err := run(ctx, w, sink); err != nil {
		return w.Stats(), time.Since(start), err
	}
	elapsed := time.Since(start)
	logger.Info("worker finished", zap.Int("rank", cfg.Rank), zap.Duration("elapsed", elapsed))

	if pw != nil {
		return w.Stats(), elapsed, pw.Err()
	}
	return w.Stats(), elapsed, nil
}
