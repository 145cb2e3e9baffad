package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-arena/pkg/protocol"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
)

// DefaultSendQueue is the per-connection outbound buffer.
const DefaultSendQueue = 64

// Connection represents a client connection with a send queue.
type Connection struct {
	ID        uuid.UUID
	transport Transport
	sendCh    chan []byte
	done      chan struct{}
	mu        sync.Mutex
	closed    bool
	logger    zerolog.Logger
}

// NewConnection wraps a transport. queueSize <= 0 uses DefaultSendQueue.
func NewConnection(transport Transport, queueSize int, logger zerolog.Logger) *Connection {
	if queueSize <= 0 {
		queueSize = DefaultSendQueue
	}
	id := uuid.New()
	return &Connection{
		ID:        id,
		transport: transport,
		sendCh:    make(chan []byte, queueSize),
		done:      make(chan struct{}),
		logger:    logger.With().Str("conn_id", id.String()).Str("remote", transport.RemoteAddr()).Logger(),
	}
}

// Send encodes msg and queues it for delivery.
func (c *Connection) Send(msg protocol.Message) error {
	line, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.SendRaw(line)
}

// SendRaw queues an already encoded line. A full queue closes the connection:
// a client that cannot keep up is treated as disconnected.
func (c *Connection) SendRaw(line []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- line:
		return nil
	default:
		c.closeLocked()
		return ErrSendQueueFull
	}
}

// Close shuts down the connection. Safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Connection) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
}

// Done is closed once the write pump has exited and the transport is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// WritePump sends queued lines until the connection is closed, then closes the
// transport.
func (c *Connection) WritePump() {
	defer close(c.done)
	defer c.transport.Close()

	for line := range c.sendCh {
		if err := c.transport.WriteLine(line); err != nil {
			c.logger.Warn().Err(err).Msg("write error")
			c.Close()
			// drain so senders never block on a dead writer
			for range c.sendCh {
			}
			return
		}
	}
}

// ReadLine reads the next inbound line. idle <= 0 waits without a deadline.
func (c *Connection) ReadLine(idle time.Duration) ([]byte, error) {
	deadline := time.Time{}
	if idle > 0 {
		deadline = time.Now().Add(idle)
	}
	_ = c.transport.SetReadDeadline(deadline)
	return c.transport.ReadLine()
}

// ReadPump reads lines and hands them to handler until the transport fails or
// the handler returns an error.
func (c *Connection) ReadPump(idle time.Duration, handler func(line []byte) error) {
	for {
		line, err := c.ReadLine(idle)
		if err != nil {
			c.logger.Debug().Err(err).Msg("read loop ended")
			return
		}
		if len(line) == 0 {
			continue
		}
		if err := handler(line); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
			return
		}
	}
}

// Logger returns the connection-scoped logger.
func (c *Connection) Logger() zerolog.Logger {
	return c.logger
}
