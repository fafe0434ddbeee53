package protocol

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"TreeMPI/topology"
)

// Add runs the carry-lookahead adder. Every rank of the group calls it; only
// the root's number1 and number2 are read, both already padded to the leaf
// count with the most significant bit first.
//
// Leaves report their sum bit to sink, and the root reports overflow after
// the trailing barrier.
func (w *Worker) Add(ctx context.Context, number1, number2 []int, sink Sink) error {
	n := w.node
	if n.IsRoot && (len(number1) != topology.LeafCount(n.Size) || len(number2) != topology.LeafCount(n.Size)) {
		return fmt.Errorf("numbers must hold %d digits, got %d and %d",
			topology.LeafCount(n.Size), len(number1), len(number2))
	}

	if n.Size == 1 {
		digit1, digit2 := number1[0], number2[0]
		sink.Bit(n.Rank, 0, (digit1+digit2)%2)
		if digit1 == 1 && digit2 == 1 {
			sink.Overflow()
		}
		return w.Barrier(ctx)
	}

	var digit1, digit2 int
	var flag, reduced Flag

	// Initialize
	if n.IsRoot {
		if err := w.distribute(ctx, number1, number2); err != nil {
			return err
		}
	} else if n.IsLeaf {
		var err error
		if digit1, err = w.recv(ctx, topology.Root); err != nil {
			return err
		}
		if digit2, err = w.recv(ctx, topology.Root); err != nil {
			return err
		}
		flag = InitFlag(digit1, digit2)
	}

	up, err := w.upSweep(ctx, flag)
	if err != nil {
		return err
	}
	if n.IsRoot {
		// Result of reduce
		reduced = up.total
	}

	if flag, err = w.downSweep(ctx, up.right); err != nil {
		return err
	}

	var carry int
	switch {
	case w.carry == CarryShift && (n.IsLeaf || n.IsRoot):
		if carry, err = w.shiftCarry(ctx, flag, reduced); err != nil {
			return err
		}
	case w.carry == CarryDirect && n.IsLeaf:
		// The down-sweep flag already is the carry-in, the tail has none.
		if !n.IsChainTail() && flag == Generate {
			carry = 1
		}
	}

	// Calculate value
	if n.IsLeaf {
		result := (digit1 + digit2 + carry) % 2
		w.logger.Debug("sum bit", zap.Int("pos", n.LeafPos), zap.Int("carry", carry), zap.Int("bit", result))
		sink.Bit(n.Rank, n.LeafPos, result)
	}

	if err := w.Barrier(ctx); err != nil {
		return err
	}
	if n.IsRoot && reduced == Generate {
		sink.Overflow()
	}
	return nil
}

type sweep struct {
	right Flag // Flag received from the right child.
	total Flag // Combined flag of this subtree.
}

// upSweep reduces flags toward the root. Leaves send their own flag; every
// other rank combines its children and forwards the result, except the root
// which keeps it.
func (w *Worker) upSweep(ctx context.Context, flag Flag) (sweep, error) {
	n := w.node
	if n.IsLeaf {
		return sweep{total: flag}, w.send(ctx, n.Parent, int(flag))
	}

	l, err := w.recv(ctx, n.LeftChild)
	if err != nil {
		return sweep{}, err
	}
	r, err := w.recv(ctx, n.RightChild)
	if err != nil {
		return sweep{}, err
	}
	s := sweep{right: Flag(r), total: Combine(Flag(l), Flag(r))}
	w.logger.Debug("up-sweep", zap.Stringer("left", Flag(l)), zap.Stringer("right", Flag(r)), zap.Stringer("flag", s.total))

	if !n.IsRoot {
		return s, w.send(ctx, n.Parent, int(s.total))
	}
	return s, nil
}

// downSweep hands every subtree the flag of everything less significant than
// it. The right subtree inherits the node's own incoming flag, the left one
// also has the right subtree in front of it.
func (w *Worker) downSweep(ctx context.Context, right Flag) (Flag, error) {
	n := w.node
	if n.IsLeaf {
		f, err := w.recv(ctx, n.Parent)
		return Flag(f), err
	}

	flag := Propagate
	if !n.IsRoot {
		f, err := w.recv(ctx, n.Parent)
		if err != nil {
			return 0, err
		}
		flag = Flag(f)
	}

	left := Combine(right, flag)
	w.logger.Debug("down-sweep", zap.Stringer("flag", flag), zap.Stringer("left", left))
	if err := w.send(ctx, n.LeftChild, int(left)); err != nil {
		return 0, err
	}
	return flag, w.send(ctx, n.RightChild, int(flag))
}

// shiftCarry completes the flag scan along the leaf chain.
//
//  1. MSB -> LSB: the root hands its reduced flag to the chain head, every
//     leaf forwards its own flag to its less significant neighbour.
//  2. LSB -> MSB: every leaf hands the flag it received back up the chain.
//     The tail has no carry input and takes Stop.
//
// A leaf carries 1 iff the flag it ends with is Generate. The root only takes
// part in the first pass and always returns 0.
func (w *Worker) shiftCarry(ctx context.Context, flag, reduced Flag) (int, error) {
	n := w.node
	head := topology.LeafRank(0, n.Size)

	if n.IsRoot {
		return 0, w.send(ctx, head, int(reduced))
	}

	// MSB -> LSB shift
	if n.LSBNeighbor != topology.None {
		if err := w.send(ctx, n.LSBNeighbor, int(flag)); err != nil {
			return 0, err
		}
	}
	from := n.MSBNeighbor
	if n.IsChainHead() {
		from = topology.Root
	}
	f, err := w.recv(ctx, from)
	if err != nil {
		return 0, err
	}
	flag = Flag(f)

	// LSB -> MSB shift
	if n.MSBNeighbor != topology.None {
		if err := w.send(ctx, n.MSBNeighbor, int(flag)); err != nil {
			return 0, err
		}
	}
	if n.LSBNeighbor != topology.None {
		if f, err = w.recv(ctx, n.LSBNeighbor); err != nil {
			return 0, err
		}
		flag = Flag(f)
	} else {
		flag = Stop
	}

	if flag == Generate {
		return 1, nil
	}
	return 0, nil
}
