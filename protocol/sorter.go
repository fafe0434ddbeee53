package protocol

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"TreeMPI/topology"
)

// Sort runs the tournament selection sort. Every rank of the group calls it;
// only the root's values are read, padded with Padding to the leaf count and
// listed in chain order. The root reports each real value to sink in
// ascending order, stable with respect to the input order.
func (w *Worker) Sort(ctx context.Context, values []int, sink Sink) error {
	n := w.node
	if n.IsRoot && len(values) != topology.LeafCount(n.Size) {
		return fmt.Errorf("values must hold %d entries, got %d", topology.LeafCount(n.Size), len(values))
	}

	// Edge case
	if n.Size == 1 {
		if values[0] != Padding {
			sink.Value(values[0])
		}
		return nil
	}

	value := Empty
	left, right := Empty, Empty
	extract := true
	quit := false

	if n.IsRoot {
		if err := w.distribute(ctx, values); err != nil {
			return err
		}
	} else if n.IsLeaf {
		var err error
		if value, err = w.recv(ctx, topology.Root); err != nil {
			return err
		}
	}

	for !quit {
		w.stats.Steps++

		switch {
		case n.IsRoot && value != Empty:
			if value != Padding {
				sink.Value(value)
			}
			value = Empty

		case !n.IsLeaf && extract:
			var err error
			if left, right, err = w.poll(ctx, left, right); err != nil {
				return err
			}
			value, left, right = pick(left, right)
			if err := w.reply(ctx, left, right); err != nil {
				return err
			}

		case !n.IsRoot && value != Quit:
			// Keep offering our value until the parent takes it or retires us.
			if err := w.send(ctx, n.Parent, value); err != nil {
				return err
			}
			var err error
			if value, err = w.recv(ctx, n.Parent); err != nil {
				return err
			}
		}

		if n.IsRoot {
			quit = value == Empty && left == Quit && right == Quit
		} else {
			quit = value == Quit
		}

		// Hold extraction while our own slot is occupied so an unconsumed
		// value is never overwritten.
		if !n.IsLeaf {
			extract = value == Empty && left != Quit && right != Quit
		}
	}

	w.logger.Debug("tournament done", zap.Int("steps", w.stats.Steps))
	return nil
}

// poll collects the current candidate of both children, right first.
func (w *Worker) poll(ctx context.Context, left, right int) (int, int, error) {
	var err error
	if right, err = w.recv(ctx, w.node.RightChild); err != nil {
		return left, right, err
	}
	if left, err = w.recv(ctx, w.node.LeftChild); err != nil {
		return left, right, err
	}
	return left, right, nil
}

// reply answers both children with their slot after the match. Both always
// get a reply, sentinel or not, otherwise the one left out blocks forever.
func (w *Worker) reply(ctx context.Context, left, right int) error {
	if err := w.send(ctx, w.node.RightChild, right); err != nil {
		return err
	}
	return w.send(ctx, w.node.LeftChild, left)
}
