package protocol

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"TreeMPI/libnet"
	"TreeMPI/message"
	"TreeMPI/topology"
)

// Stats counts one worker's protocol traffic.
type Stats struct {
	Sent     int `yaml:"sent"`
	Received int `yaml:"received"`
	Steps    int `yaml:"steps"` // Tournament loop iterations.
}

// Worker is the state of one process. It is owned by a single goroutine.
type Worker struct {
	node   topology.Node    // Position in the tree.
	tr     libnet.Transport // Messaging with the other ranks.
	logger *zap.Logger      // Log info, tagged with the rank.
	carry  CarryStrategy    // Leaf carry resolution.
	stats  Stats            // Traffic counters.
}

func MakeWorker(tr libnet.Transport, logger *zap.Logger, carry CarryStrategy) (*Worker, error) {
	node, err := topology.MakeNode(tr.Rank(), tr.Size())
	if err != nil {
		return nil, err
	}
	w := &Worker{}
	w.node = node
	w.tr = tr
	w.logger = logger.With(zap.Int("rank", node.Rank))
	w.carry = carry
	return w, nil
}

func (w *Worker) Node() topology.Node { return w.node }

func (w *Worker) Stats() Stats { return w.stats }

func (w *Worker) send(ctx context.Context, to, v int) error {
	if err := w.tr.Send(ctx, to, message.TagValue, v); err != nil {
		return fmt.Errorf("[Peer:%d] send to [%d]: %w", w.node.Rank, to, err)
	}
	w.stats.Sent++
	return nil
}

func (w *Worker) recv(ctx context.Context, from int) (int, error) {
	v, err := w.tr.Recv(ctx, from, message.TagValue)
	if err != nil {
		return 0, fmt.Errorf("[Peer:%d] receive from [%d]: %w", w.node.Rank, from, err)
	}
	w.stats.Received++
	return v, nil
}

// distribute sends one datum per chain position, in chain order. Only the
// root calls it.
func (w *Worker) distribute(ctx context.Context, data ...[]int) error {
	for pos := 0; pos < topology.LeafCount(w.node.Size); pos++ {
		rank := topology.LeafRank(pos, w.node.Size)
		for _, d := range data {
			if err := w.send(ctx, rank, d[pos]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Barrier waits for every rank of the group.
func (w *Worker) Barrier(ctx context.Context) error {
	return libnet.Barrier(ctx, w.tr)
}
