package libnet

import (
	"context"
	"sync"
)

type pairKey struct {
	from, to, tag int
}

// Mesh connects size in-process endpoints with one unbuffered channel per
// (from, to, tag), so every Send is a rendezvous with its Recv.
type Mesh struct {
	mu    sync.Mutex
	size  int
	chans map[pairKey]chan int
	done  chan struct{}
	once  sync.Once
}

func MakeMesh(size int) *Mesh {
	return &Mesh{
		size:  size,
		chans: make(map[pairKey]chan int),
		done:  make(chan struct{}),
	}
}

func (m *Mesh) channel(from, to, tag int) chan int {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pairKey{from, to, tag}
	c, ok := m.chans[k]
	if !ok {
		c = make(chan int)
		m.chans[k] = c
	}
	return c
}

// Endpoint returns the transport seen by rank.
func (m *Mesh) Endpoint(rank int) Transport {
	return &endpoint{mesh: m, rank: rank}
}

// Close unblocks every pending Send and Recv with ErrClosed.
func (m *Mesh) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

type endpoint struct {
	mesh *Mesh
	rank int
}

func (e *endpoint) Rank() int { return e.rank }

func (e *endpoint) Size() int { return e.mesh.size }

func (e *endpoint) Send(ctx context.Context, to, tag, v int) error {
	select {
	case e.mesh.channel(e.rank, to, tag) <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.mesh.done:
		return ErrClosed
	}
}

func (e *endpoint) Recv(ctx context.Context, from, tag int) (int, error) {
	select {
	case v := <-e.mesh.channel(from, e.rank, tag):
		return v, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-e.mesh.done:
		return 0, ErrClosed
	}
}

// Close is a no-op for one endpoint, the mesh owns the channels.
func (e *endpoint) Close() error { return nil }
