package bench

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TreeMPI/cluster"
	"TreeMPI/config"
	"TreeMPI/driver"
	"TreeMPI/protocol"
)

// Client drives a group of TCP workers listening on fixed addresses, the way
// separately launched processes would run, and collects what each prints.
type Client struct {
	addrs  []string       // Peer addresses in rank order.
	logger *zap.Logger    // Log info.
	outs   []bytes.Buffer // Stdout of every rank.
	stats  []protocol.Stats
}

func NewClient(addrs []string, logger *zap.Logger) *Client {
	c := &Client{}
	c.addrs = addrs
	c.logger = logger
	return c
}

// ReadAddress loads n peer addresses from path.
func ReadAddress(path string, n int) ([]string, error) {
	addrs, err := config.ReadAddress(path, n)
	if err != nil {
		return nil, err
	}
	if len(addrs) < n {
		return nil, fmt.Errorf("%s: need %d addresses, have %d", path, n, len(addrs))
	}
	return addrs, nil
}

// Run starts one worker per address with cfg and feeds input to rank 0.
func (c *Client) Run(ctx context.Context, cfg config.Config, input driver.Input) error {
	size := len(c.addrs)
	c.outs = make([]bytes.Buffer, size)
	c.stats = make([]protocol.Stats, size)

	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		peer := cfg
		peer.Size = size
		peer.Rank = r
		peer.Transport = config.TransportTCP
		peer.Peers = c.addrs
		var in driver.Input
		if r == 0 {
			in = input
		}
		r := r
		g.Go(func() error {
			s, _, err := cluster.RunWorker(gctx, &peer, in, &c.outs[r], c.logger)
			c.stats[r] = s
			return err
		})
	}
	return g.Wait()
}

// Output returns what rank r printed during the last run.
func (c *Client) Output(r int) string { return c.outs[r].String() }

// Stats returns the traffic counters of rank r during the last run.
func (c *Client) Stats(r int) protocol.Stats { return c.stats[r] }
