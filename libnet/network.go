package libnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"TreeMPI/message"
)

// Sender delivers an encoded message to one peer, in call order.
type Sender interface {
	SendToPeer(ctx context.Context, peerId int, msg message.ReqMsg) error
	Close() error
}

type inboxKey struct {
	from, tag int
}

// Network is the TCP side of one rank: it accepts connections from peers,
// decodes their json framed messages and queues them per (sender, tag).
type Network struct {
	logger   *zap.Logger                      // Global log.
	mu       sync.Mutex                       // Lock to prevent race condition.
	rank     int                              // Local rank.
	size     int                              // Group size.
	addr     string                           // Listen address.
	listener net.Listener                     // Nil until Start.
	conns    map[string]net.Conn              // Cache all remote connection. e.g. {'RemoteAddr': net.conn}.
	inbox    map[inboxKey]chan message.ReqMsg // Ordered queue per sender and tag.
	sender   Sender                           // Outgoing side.
	done     chan struct{}                    // Closed by Close.
	once     sync.Once                        // Guards done.
	wg       sync.WaitGroup                   // Accept loop and connection handlers.
}

func MakeNetwork(rank, size int, addr string, logger *zap.Logger) *Network {
	rn := &Network{}
	rn.logger = logger
	rn.rank = rank
	rn.size = size
	rn.addr = addr
	rn.conns = make(map[string]net.Conn)
	rn.inbox = make(map[inboxKey]chan message.ReqMsg)
	rn.done = make(chan struct{})
	return rn
}

// Start binds the listen address and serves peers in the background.
func (rn *Network) Start() error {
	listen, err := net.Listen("tcp", rn.addr)
	if err != nil {
		return fmt.Errorf("socket listen %s: %w", rn.addr, err)
	}
	rn.listener = listen
	rn.addr = listen.Addr().String()
	rn.logger.Info("network listening", zap.String("addr", rn.addr))

	rn.wg.Add(1)
	go rn.acceptLoop()
	return nil
}

// Addr is the bound address once Start has returned.
func (rn *Network) Addr() string {
	return rn.addr
}

// AddSender registers the outgoing side of this rank.
func (rn *Network) AddSender(s Sender) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	rn.sender = s
}

func (rn *Network) acceptLoop() {
	defer rn.wg.Done()
	for {
		conn, err := rn.listener.Accept()
		if err != nil {
			select {
			case <-rn.done:
			default:
				rn.logger.Error("accept failed", zap.Error(err))
			}
			return
		}
		rn.mu.Lock()
		select {
		case <-rn.done:
			rn.mu.Unlock()
			conn.Close()
			return
		default:
		}
		rn.conns[conn.RemoteAddr().String()] = conn
		rn.mu.Unlock()

		rn.wg.Add(1)
		go rn.handleConn(conn)
	}
}

func (rn *Network) handleConn(conn net.Conn) {
	defer func() {
		rn.logger.Debug("remote closed connection", zap.String("remote", conn.RemoteAddr().String()))
		rn.mu.Lock()
		delete(rn.conns, conn.RemoteAddr().String())
		rn.mu.Unlock()
		conn.Close()
		rn.wg.Done()
	}()

	dec := json.NewDecoder(conn)

	for {
		var req message.ReqMsg
		if err := dec.Decode(&req); err == io.EOF {
			// remote machine close connection.
			return
		} else if err != nil {
			select {
			case <-rn.done:
			default:
				rn.logger.Warn("decode failed", zap.Error(err))
			}
			return
		}
		select {
		case rn.queue(req.Sender, req.Tag) <- req:
		case <-rn.done:
			return
		}
	}
}

func (rn *Network) queue(from, tag int) chan message.ReqMsg {
	rn.mu.Lock()
	defer rn.mu.Unlock()

	k := inboxKey{from, tag}
	q, ok := rn.inbox[k]
	if !ok {
		q = make(chan message.ReqMsg, 16)
		rn.inbox[k] = q
	}
	return q
}

func (rn *Network) Rank() int { return rn.rank }

func (rn *Network) Size() int { return rn.size }

func (rn *Network) Send(ctx context.Context, to, tag, v int) error {
	rn.mu.Lock()
	sender := rn.sender
	rn.mu.Unlock()
	if sender == nil {
		return errors.New("libnet: no sender registered")
	}

	msg, err := message.MessageEncode(rn.rank, tag, v)
	if err != nil {
		return err
	}
	return sender.SendToPeer(ctx, to, msg)
}

func (rn *Network) Recv(ctx context.Context, from, tag int) (int, error) {
	select {
	case req := <-rn.queue(from, tag):
		return message.MessageDecode(req)
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-rn.done:
		return 0, ErrClosed
	}
}

// Close stops the listener, drops every connection and closes the sender.
func (rn *Network) Close() error {
	var err error
	rn.once.Do(func() { err = rn.shutdown() })
	return err
}

func (rn *Network) shutdown() error {
	close(rn.done)

	var err error
	if rn.listener != nil {
		err = rn.listener.Close()
	}
	rn.mu.Lock()
	for _, conn := range rn.conns {
		conn.Close()
	}
	sender := rn.sender
	rn.mu.Unlock()
	if sender != nil {
		if serr := sender.Close(); serr != nil && err == nil {
			err = serr
		}
	}
	rn.wg.Wait()
	return err
}
