package protocol

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TreeMPI/libnet"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type collector struct {
	mu       sync.Mutex
	bits     map[int]int // Chain position -> bit.
	ranks    map[int]int // Chain position -> reporting rank.
	overflow int
	values   []int
}

func newCollector() *collector {
	return &collector{bits: make(map[int]int), ranks: make(map[int]int)}
}

func (c *collector) Bit(rank, pos, bit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bits[pos] = bit
	c.ranks[pos] = rank
}

func (c *collector) Overflow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overflow++
}

func (c *collector) Value(v int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
}

// sum returns the reported bits, most significant first.
func (c *collector) sum() []int {
	pos := make([]int, 0, len(c.bits))
	for p := range c.bits {
		pos = append(pos, p)
	}
	sort.Ints(pos)
	out := make([]int, 0, len(pos))
	for _, p := range pos {
		out = append(out, c.bits[p])
	}
	return out
}

// runGroup runs fn on every rank of a fresh in-process mesh and returns the
// per-rank stats.
func runGroup(t *testing.T, size int, carry CarryStrategy, fn func(ctx context.Context, w *Worker) error) []Stats {
	t.Helper()
	mesh := libnet.MakeMesh(size)
	defer mesh.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats := make([]Stats, size)
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		w, err := MakeWorker(mesh.Endpoint(r), zap.NewNop(), carry)
		require.NoError(t, err)
		g.Go(func() error {
			err := fn(gctx, w)
			stats[w.Node().Rank] = w.Stats()
			return err
		})
	}
	require.NoError(t, g.Wait())
	return stats
}

// toBits renders x as width bits, most significant first.
func toBits(x, width int) []int {
	out := make([]int, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = x & 1
		x >>= 1
	}
	return out
}
