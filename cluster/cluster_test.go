package cluster

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TreeMPI/config"
	"TreeMPI/driver"
	"TreeMPI/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(size int, algorithm, transport string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Size = size
	cfg.Algorithm = algorithm
	cfg.Transport = transport
	return cfg
}

func run(t *testing.T, cfg *config.Config, input driver.Input) *Report {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	report, err := Run(ctx, cfg, input, zap.NewNop())
	require.NoError(t, err)
	return report
}

func TestRunAdder(t *testing.T) {
	for _, transport := range []string{config.TransportLocal, config.TransportTCP} {
		for _, carry := range []string{"shift", "direct"} {
			t.Run(transport+"/"+carry, func(t *testing.T) {
				cfg := testConfig(7, config.AlgorithmAdder, transport)
				cfg.Carry = carry
				report := run(t, cfg, driver.Input{Number1: []int{0, 0, 1, 1}, Number2: []int{1}})

				assert.Equal(t, "0100", report.Sum())
				assert.False(t, report.Overflow)
				assert.Equal(t, []string{"3:0", "4:1", "5:0", "6:0"}, report.Lines())
				assert.Equal(t, []string{"0011", "0001"}, report.Input)
				assert.Equal(t, carry, report.Carry)
				assert.NotEmpty(t, report.ID)
				assert.Len(t, report.Stats, 7)
				require.NoError(t, report.Verify())
			})
		}
	}
}

func TestRunAdderOverflow(t *testing.T) {
	report := run(t, testConfig(1, config.AlgorithmAdder, config.TransportLocal),
		driver.Input{Number1: []int{1}, Number2: []int{1}})
	assert.Equal(t, []string{"0:0", "overflow"}, report.Lines())
}

func TestRunSort(t *testing.T) {
	for _, transport := range []string{config.TransportLocal, config.TransportTCP} {
		t.Run(transport, func(t *testing.T) {
			cfg := testConfig(9, config.AlgorithmSort, transport)
			report := run(t, cfg, driver.Input{Values: []int{3, 1, 4, 1, 5}})

			want := []string{"3 1 4 1 5", "1", "1", "3", "4", "5"}
			if diff := cmp.Diff(want, report.Lines()); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
			require.NoError(t, report.Verify())
		})
	}
}

func TestRunSortWithoutEcho(t *testing.T) {
	cfg := testConfig(5, config.AlgorithmSort, config.TransportLocal)
	cfg.Output.EchoInput = false
	report := run(t, cfg, driver.Input{Values: []int{'7', '\n'}})
	assert.Equal(t, []string{"10", "55"}, report.Lines())
}

func TestRunRejects(t *testing.T) {
	ctx := context.Background()

	_, err := Run(ctx, testConfig(3, config.AlgorithmAdder, config.TransportLocal),
		driver.Input{Number1: []int{1, 1, 1}}, zap.NewNop())
	assert.ErrorIs(t, err, driver.ErrTooWide)

	_, err = Run(ctx, testConfig(3, config.AlgorithmSort, config.TransportLocal),
		driver.Input{Values: []int{1, 2, 3}}, zap.NewNop())
	assert.ErrorIs(t, err, driver.ErrTooManyValues)

	_, err = Run(ctx, testConfig(4, config.AlgorithmSort, config.TransportLocal), driver.Input{}, zap.NewNop())
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, testConfig(7, config.AlgorithmSort, config.TransportLocal),
		driver.Input{Values: []int{2, 1}}, zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReportSaveLoadVerify(t *testing.T) {
	report := run(t, testConfig(5, config.AlgorithmAdder, config.TransportLocal),
		driver.Input{Number1: []int{1, 0, 0}, Number2: []int{1, 0, 0}})
	assert.Equal(t, "000", report.Sum())
	assert.True(t, report.Overflow)

	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, report.Save(path))
	loaded, err := LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report, loaded)
	require.NoError(t, loaded.Verify())

	// Every transcript line proves inclusion on its own.
	for i := 0; i < loaded.Attestation.Lines; i++ {
		line, branch, err := loaded.Proof(i)
		require.NoError(t, err)
		assert.True(t, loaded.VerifyLine(line, branch, i))
	}

	loaded.Overflow = false
	assert.Error(t, loaded.Verify())

	loaded.Attestation = nil
	assert.ErrorIs(t, loaded.Verify(), ErrNotAttested)
}

func TestReportForeignSignature(t *testing.T) {
	a := run(t, testConfig(3, config.AlgorithmAdder, config.TransportLocal), driver.Input{Number1: []int{1}, Number2: []int{1}})
	b := run(t, testConfig(3, config.AlgorithmAdder, config.TransportLocal), driver.Input{Number1: []int{1}, Number2: []int{1}})
	a.Attestation.PublicKey = b.Attestation.PublicKey
	assert.Error(t, a.Verify())
}

func TestWriteTo(t *testing.T) {
	r := &Report{Algorithm: config.AlgorithmAdder, Bits: []Bit{{Rank: 1, Bit: 1}, {Rank: 2, Bit: 0}}, Overflow: true}
	var buf bytes.Buffer
	n, err := r.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "1:1\n2:0\noverflow\n", buf.String())
	assert.EqualValues(t, buf.Len(), n)
}

// freeAddrs reserves n loopback ports and releases them for the workers.
func freeAddrs(t *testing.T, n int) []string {
	t.Helper()
	addrs := make([]string, n)
	for i := range addrs {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addrs[i] = l.Addr().String()
		require.NoError(t, l.Close())
	}
	return addrs
}

func TestRunWorkerGroup(t *testing.T) {
	const size = 3
	addrs := freeAddrs(t, size)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	outs := make([]*bytes.Buffer, size)
	stats := make([]protocol.Stats, size)
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		cfg := testConfig(size, config.AlgorithmAdder, config.TransportTCP)
		cfg.Rank = r
		cfg.Peers = addrs
		var input driver.Input
		if r == 0 {
			input = driver.Input{Number1: []int{1, 1}, Number2: []int{0, 1}}
		}
		outs[r] = &bytes.Buffer{}
		r := r
		g.Go(func() error {
			s, _, err := RunWorker(gctx, cfg, input, outs[r], zap.NewNop())
			stats[r] = s
			return err
		})
	}
	require.NoError(t, g.Wait())

	// 3 + 1 = 4 does not fit in two bits.
	assert.Equal(t, "overflow\n", outs[0].String())
	assert.Equal(t, "1:0\n", outs[1].String())
	assert.Equal(t, "2:0\n", outs[2].String())
	for r, s := range stats {
		assert.Positive(t, s.Sent, fmt.Sprintf("rank %d", r))
	}
}

func TestRunWorkerBenchmarkIsSilent(t *testing.T) {
	const size = 3
	addrs := freeAddrs(t, size)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out strings.Builder
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		cfg := testConfig(size, config.AlgorithmSort, config.TransportTCP)
		cfg.Rank = r
		cfg.Peers = addrs
		cfg.Benchmark = true
		input := driver.Input{Values: []int{2, 1}}
		g.Go(func() error {
			_, _, err := RunWorker(gctx, cfg, input, &out, zap.NewNop())
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Empty(t, out.String())
}
