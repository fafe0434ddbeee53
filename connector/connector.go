package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"TreeMPI/message"
)

type Options struct {
	DelayMin    time.Duration // Network delay simulation (lowest bound).
	DelayMax    time.Duration // Network delay simulation (highest bound).
	DialTimeout time.Duration // Give up dialing a peer after this long.
	RetryEvery  time.Duration // Pause between dial attempts.
}

type peer struct {
	mu   sync.Mutex    // One message on the wire at a time.
	conn net.Conn      // Outgoing connection.
	enc  *json.Encoder // Frames messages on conn.
}

type ConnectService struct {
	logger *zap.Logger   // Log info.
	mu     sync.Mutex    // Lock to prevent race condition.
	rank   int           // Local rank.
	addrs  []string      // Peer addresses indexed by rank.
	peers  map[int]*peer // All connection pool.
	opts   Options       // Delay simulation and dial policy.
}

func MakeConnectService(rank int, addrs []string, logger *zap.Logger, opts Options) *ConnectService {
	cs := &ConnectService{}
	cs.logger = logger
	cs.rank = rank
	cs.addrs = addrs
	cs.peers = make(map[int]*peer)
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.RetryEvery <= 0 {
		opts.RetryEvery = 20 * time.Millisecond
	}
	cs.opts = opts
	return cs
}

// Connect to other peer. Peers start independently, so a refused dial is
// retried until the dial timeout or ctx expires.
func (cs *ConnectService) connectOtherPeer(ctx context.Context, peerId int) (*peer, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if p, ok := cs.peers[peerId]; ok {
		return p, nil
	}
	if peerId < 0 || peerId >= len(cs.addrs) {
		return nil, fmt.Errorf("no address for [Peer:%d]", peerId)
	}

	ctx, cancel := context.WithTimeout(ctx, cs.opts.DialTimeout)
	defer cancel()

	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", cs.addrs[peerId])
		if err == nil {
			cs.logger.Debug("connected to peer", zap.Int("peer", peerId), zap.String("addr", cs.addrs[peerId]))
			p := &peer{conn: conn, enc: json.NewEncoder(conn)}
			cs.peers[peerId] = p
			return p, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial [Peer:%d] %s: %w", peerId, cs.addrs[peerId], err)
		case <-time.After(cs.opts.RetryEvery):
		}
	}
}

// Send message to one peer.
func (cs *ConnectService) SendToPeer(ctx context.Context, peerId int, msg message.ReqMsg) error {
	// Network delay simulation (local server network delay is so low. e.g. under 2 ms)
	if cs.opts.DelayMax > cs.opts.DelayMin {
		delay := cs.opts.DelayMin + time.Duration(rand.Int63n(int64(cs.opts.DelayMax-cs.opts.DelayMin)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p, err := cs.connectOtherPeer(ctx, peerId)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(msg); err != nil {
		return fmt.Errorf("write to [Peer:%d]: %w", peerId, err)
	}
	return nil
}

func (cs *ConnectService) Close() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var first error
	for id, p := range cs.peers {
		if err := p.conn.Close(); err != nil && first == nil {
			first = err
		}
		delete(cs.peers, id)
	}
	return first
}
