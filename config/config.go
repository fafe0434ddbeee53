// Package config holds the settings of a run or a single worker.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"TreeMPI/driver"
	"TreeMPI/protocol"
	"TreeMPI/topology"
)

const (
	AlgorithmAdder = "adder"
	AlgorithmSort  = "sort"

	TransportLocal = "local"
	TransportTCP   = "tcp"
)

// Config is the root configuration.
type Config struct {
	Size      int      `yaml:"size"`                 // Number of processes, odd.
	Algorithm string   `yaml:"algorithm"`            // adder, sort
	Carry     string   `yaml:"carry"`                // shift, direct
	Transport string   `yaml:"transport"`            // local, tcp
	Peers     []string `yaml:"peers,omitempty"`      // Addresses in rank order.
	PeersFile string   `yaml:"peers_file,omitempty"` // One address per line.
	Rank      int      `yaml:"rank"`                 // Worker mode only.
	Benchmark bool     `yaml:"benchmark"`            // Time the root instead of printing.
	History   string   `yaml:"history,omitempty"`    // SQLite run log, empty disables.

	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Network NetworkConfig `yaml:"network"`
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	Path   string `yaml:"path"`
	Values string `yaml:"values"` // bytes, decimal
}

type OutputConfig struct {
	EchoInput bool `yaml:"echo_input"` // Print the loaded values before sorting.
}

// NetworkConfig tunes the tcp transport.
type NetworkConfig struct {
	DelayMinMs  int    `yaml:"delay_min_ms"`
	DelayMaxMs  int    `yaml:"delay_max_ms"`
	DialTimeout string `yaml:"dial_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`   // Empty means stderr.
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Size:      7,
		Algorithm: AlgorithmAdder,
		Carry:     protocol.CarryShift.String(),
		Transport: TransportLocal,
		Input: InputConfig{
			Path:   "numbers",
			Values: driver.ValuesBytes.String(),
		},
		Output: OutputConfig{EchoInput: true},
		Network: NetworkConfig{
			DialTimeout: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies the process count and rank handed out by the
// launcher, plus a few conveniences.
func (c *Config) applyEnvOverrides() error {
	ints := []struct {
		env string
		dst *int
	}{
		{"TREEMPI_SIZE", &c.Size},
		{"TREEMPI_RANK", &c.Rank},
	}
	for _, o := range ints {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", o.env, v, err)
		}
		*o.dst = n
	}

	if path := os.Getenv("TREEMPI_INPUT"); path != "" {
		c.Input.Path = path
	}
	if v := os.Getenv("TREEMPI_BENCHMARK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TREEMPI_BENCHMARK=%q: %w", v, err)
		}
		c.Benchmark = b
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := topology.Validate(c.Size); err != nil {
		return fmt.Errorf("size: %w", err)
	}
	if c.Algorithm != AlgorithmAdder && c.Algorithm != AlgorithmSort {
		return fmt.Errorf("invalid algorithm: %s (valid: %s, %s)", c.Algorithm, AlgorithmAdder, AlgorithmSort)
	}
	if _, err := protocol.ParseCarryStrategy(c.Carry); err != nil {
		return err
	}
	if _, err := driver.ParseValueMode(c.Input.Values); err != nil {
		return err
	}
	if c.Transport != TransportLocal && c.Transport != TransportTCP {
		return fmt.Errorf("invalid transport: %s (valid: %s, %s)", c.Transport, TransportLocal, TransportTCP)
	}
	if c.Rank < 0 || c.Rank >= c.Size {
		return fmt.Errorf("rank %d out of range [0, %d)", c.Rank, c.Size)
	}
	if c.Network.DelayMinMs < 0 || c.Network.DelayMaxMs < c.Network.DelayMinMs {
		return fmt.Errorf("invalid delay range [%d, %d] ms", c.Network.DelayMinMs, c.Network.DelayMaxMs)
	}
	if c.Network.DialTimeout != "" {
		if _, err := time.ParseDuration(c.Network.DialTimeout); err != nil {
			return fmt.Errorf("dial_timeout: %w", err)
		}
	}
	return nil
}

// CarryStrategy returns the parsed carry setting.
func (c *Config) CarryStrategy() protocol.CarryStrategy {
	s, err := protocol.ParseCarryStrategy(c.Carry)
	if err != nil {
		return protocol.CarryShift
	}
	return s
}

// ValueMode returns the parsed input.values setting.
func (c *Config) ValueMode() driver.ValueMode {
	m, err := driver.ParseValueMode(c.Input.Values)
	if err != nil {
		return driver.ValuesBytes
	}
	return m
}

// GetDialTimeout returns the dial timeout as a duration.
func (c *Config) GetDialTimeout() time.Duration {
	d, err := time.ParseDuration(c.Network.DialTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetDelay returns the simulated network delay range.
func (c *Config) GetDelay() (time.Duration, time.Duration) {
	return time.Duration(c.Network.DelayMinMs) * time.Millisecond,
		time.Duration(c.Network.DelayMaxMs) * time.Millisecond
}

// PeerAddrs returns one address per rank, from peers or else peers_file.
func (c *Config) PeerAddrs() ([]string, error) {
	addrs := c.Peers
	if len(addrs) == 0 && c.PeersFile != "" {
		var err error
		if addrs, err = ReadAddress(c.PeersFile, c.Size); err != nil {
			return nil, err
		}
	}
	if len(addrs) < c.Size {
		return nil, fmt.Errorf("need %d peer addresses, have %d", c.Size, len(addrs))
	}
	return addrs[:c.Size], nil
}

// ReadAddress reads up to n addresses, one per line. Blank lines and lines
// starting with # are skipped.
func ReadAddress(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() && len(lines) < n {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
