package libnet

import (
	"context"
	"errors"
	"fmt"

	"TreeMPI/message"
)

var ErrClosed = errors.New("libnet: transport closed")

// Transport is blocking point-to-point messaging between the ranks of a fixed
// group. Messages between one (sender, receiver, tag) triple arrive in the
// order they were sent, and every Send is matched by exactly one Recv.
type Transport interface {
	Rank() int
	Size() int
	Send(ctx context.Context, to, tag, v int) error
	Recv(ctx context.Context, from, tag int) (int, error)
	Close() error
}

// Barrier blocks until every rank of tr's group has entered it. Rank 0 gathers
// one token from every other rank, then releases them.
func Barrier(ctx context.Context, tr Transport) error {
	if tr.Size() == 1 {
		return nil
	}
	if tr.Rank() != 0 {
		if err := tr.Send(ctx, 0, message.TagBarrier, tr.Rank()); err != nil {
			return fmt.Errorf("barrier enter: %w", err)
		}
		if _, err := tr.Recv(ctx, 0, message.TagBarrier); err != nil {
			return fmt.Errorf("barrier release: %w", err)
		}
		return nil
	}
	for r := 1; r < tr.Size(); r++ {
		if _, err := tr.Recv(ctx, r, message.TagBarrier); err != nil {
			return fmt.Errorf("barrier gather [%d]: %w", r, err)
		}
	}
	for r := 1; r < tr.Size(); r++ {
		if err := tr.Send(ctx, r, message.TagBarrier, 0); err != nil {
			return fmt.Errorf("barrier release [%d]: %w", r, err)
		}
	}
	return nil
}
