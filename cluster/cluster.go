// Package cluster runs a whole process group inside one program, one
// goroutine per rank, over the in-process mesh or loopback TCP.
package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TreeMPI/config"
	"TreeMPI/connector"
	"TreeMPI/driver"
	"TreeMPI/libnet"
	"TreeMPI/message"
	"TreeMPI/protocol"
	"TreeMPI/topology"
)

// recorder gathers what the workers report.
type recorder struct {
	mu       sync.Mutex
	bits     map[int]Bit // Chain position -> bit.
	overflow bool
	values   []int
}

func (rc *recorder) Bit(rank, pos, bit int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.bits[pos] = Bit{Rank: rank, Bit: bit}
}

func (rc *recorder) Overflow() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.overflow = true
}

func (rc *recorder) Value(v int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.values = append(rc.values, v)
}

func (rc *recorder) ordered() []Bit {
	pos := make([]int, 0, len(rc.bits))
	for p := range rc.bits {
		pos = append(pos, p)
	}
	sort.Ints(pos)
	out := make([]Bit, 0, len(pos))
	for _, p := range pos {
		out = append(out, rc.bits[p])
	}
	return out
}

// job is the root's share of a run: the padded dataset and how to feed it to
// a worker.
type job struct {
	input []string
	run   func(ctx context.Context, w *protocol.Worker, sink protocol.Sink) error
}

func prepare(cfg *config.Config, input driver.Input) (job, error) {
	leaves := topology.LeafCount(cfg.Size)
	switch cfg.Algorithm {
	case config.AlgorithmAdder:
		n1, n2, err := input.Numbers(leaves)
		if err != nil {
			return job{}, err
		}
		return job{
			input: []string{digits(n1), digits(n2)},
			run: func(ctx context.Context, w *protocol.Worker, sink protocol.Sink) error {
				return w.Add(ctx, n1, n2, sink)
			},
		}, nil
	case config.AlgorithmSort:
		values, err := input.Padded(leaves)
		if err != nil {
			return job{}, err
		}
		return job{
			input: []string{driver.EchoLine(input.Values)},
			run: func(ctx context.Context, w *protocol.Worker, sink protocol.Sink) error {
				return w.Sort(ctx, values, sink)
			},
		}, nil
	}
	return job{}, fmt.Errorf("invalid algorithm: %s", cfg.Algorithm)
}

// follow runs a non-root rank, which never reads the dataset.
func follow(cfg *config.Config) func(ctx context.Context, w *protocol.Worker, sink protocol.Sink) error {
	if cfg.Algorithm == config.AlgorithmSort {
		return func(ctx context.Context, w *protocol.Worker, sink protocol.Sink) error {
			return w.Sort(ctx, nil, sink)
		}
	}
	return func(ctx context.Context, w *protocol.Worker, sink protocol.Sink) error {
		return w.Add(ctx, nil, nil, sink)
	}
}

func digits(number []int) string {
	var sb strings.Builder
	for _, d := range number {
		sb.WriteByte(byte('0' + d))
	}
	return sb.String()
}

// transports builds one endpoint per rank. The returned closer releases all
// of them.
func transports(cfg *config.Config, logger *zap.Logger) ([]libnet.Transport, func(), error) {
	trs := make([]libnet.Transport, cfg.Size)

	if cfg.Transport == config.TransportLocal {
		mesh := libnet.MakeMesh(cfg.Size)
		for r := range trs {
			trs[r] = mesh.Endpoint(r)
		}
		return trs, func() { mesh.Close() }, nil
	}

	nets := make([]*libnet.Network, 0, cfg.Size)
	closeAll := func() {
		for _, rn := range nets {
			rn.Close()
		}
	}
	addrs := make([]string, cfg.Size)
	for r := range trs {
		rn := libnet.MakeNetwork(r, cfg.Size, "127.0.0.1:0", logger)
		if err := rn.Start(); err != nil {
			closeAll()
			return nil, nil, err
		}
		nets = append(nets, rn)
		addrs[r] = rn.Addr()
		trs[r] = rn
	}
	for r, rn := range nets {
		rn.AddSender(connector.MakeConnectService(r, addrs, logger, connectorOptions(cfg)))
	}
	return trs, closeAll, nil
}

func connectorOptions(cfg *config.Config) connector.Options {
	lo, hi := cfg.GetDelay()
	return connector.Options{DelayMin: lo, DelayMax: hi, DialTimeout: cfg.GetDialTimeout()}
}

// Run executes one computation over cfg.Size ranks and returns the attested
// report. Rank 0 consumes input.
func Run(ctx context.Context, cfg *config.Config, input driver.Input, logger *zap.Logger) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := prepare(cfg, input)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:        uuid.NewString(),
		Algorithm: cfg.Algorithm,
		Size:      cfg.Size,
		Transport: cfg.Transport,
		Input:     root.input,
		Echo:      cfg.Output.EchoInput,
		Stats:     make([]protocol.Stats, cfg.Size),
	}
	if cfg.Algorithm == config.AlgorithmAdder {
		report.Carry = cfg.Carry
	}
	logger = logger.With(zap.String("run", report.ID))

	trs, closeAll, err := transports(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeAll()

	workers := make([]*protocol.Worker, cfg.Size)
	for r, tr := range trs {
		if workers[r], err = protocol.MakeWorker(tr, logger, cfg.CarryStrategy()); err != nil {
			return nil, err
		}
	}

	logger.Info("run started",
		zap.String("algorithm", cfg.Algorithm),
		zap.Int("size", cfg.Size),
		zap.String("transport", cfg.Transport))

	rec := &recorder{bits: make(map[int]Bit)}
	rest := follow(cfg)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for r, w := range workers {
		r, w := r, w
		g.Go(func() error {
			var err error
			if r == topology.Root {
				err = root.run(gctx, w, rec)
				report.Elapsed = time.Since(start)
			} else {
				err = rest(gctx, w, rec)
			}
			report.Stats[r] = w.Stats()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Bits = rec.ordered()
	report.Overflow = rec.overflow
	report.Values = rec.values
	logger.Info("run finished", zap.Duration("elapsed", report.Elapsed))

	if err := report.Attest(message.MakeSigner()); err != nil {
		return nil, err
	}
	return report, nil
}
