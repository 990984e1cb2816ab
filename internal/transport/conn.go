package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"KoordeDHT/internal/logger"
	"KoordeDHT/internal/protocol"
)

// Handler processes an inbound message that did not correlate to a
// pending request; the protocol engine's entry point.
type Handler func(msg protocol.Message, from *net.UDPAddr)

// Conn wraps the node's single UDP socket: the listener goroutine decodes
// every datagram and either delivers it to a pending correlated request
// (see Request) or passes it to the registered Handler. This replaces the
// source's fixed 0.5s sleep for the stabilize reply with a request-id
// keyed wait table, removing the race the spec flags while keeping the
// same observable contract: no reply within the deadline leaves the
// caller's state untouched.
type Conn struct {
	udp     *net.UDPConn
	lgr     logger.Logger
	nextID  uint64
	mu      sync.Mutex
	pending map[uint64]chan protocol.Message
}

// Option configures a Conn at construction time.
type Option func(*Conn)

// WithLogger sets the logger used for decode-failure and drop diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.lgr = l
		}
	}
}

// New wraps an already-bound UDP socket.
func New(udp *net.UDPConn, opts ...Option) *Conn {
	c := &Conn{
		udp:     udp,
		lgr:     &logger.NopLogger{},
		pending: make(map[uint64]chan protocol.Message),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NextReqID hands out a process-unique request id for correlation.
func (c *Conn) NextReqID() uint64 {
	return atomic.AddUint64(&c.nextID, 1)
}

// Send encodes and writes msg to addr without waiting for any reply.
func (c *Conn) Send(msg protocol.Message, addr *net.UDPAddr) error {
	line, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("transport: encode: %w", err)
	}
	_, err = c.udp.WriteToUDP([]byte(line), addr)
	return err
}

// SendTo resolves addr and sends msg there.
func (c *Conn) SendTo(msg protocol.Message, addr string) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("transport: resolve %q: %w", addr, err)
	}
	return c.Send(msg, raddr)
}

// Request sends msg to addr and blocks until a message carrying reqID is
// delivered by the listener loop or timeout elapses. Returns
// context.DeadlineExceeded-compatible errors on timeout; callers treat
// that as a transport failure.
func (c *Conn) Request(ctx context.Context, reqID uint64, msg protocol.Message, addr string, timeout time.Duration) (protocol.Message, error) {
	ch := make(chan protocol.Message, 1)
	c.mu.Lock()
	c.pending[reqID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}()

	if err := c.SendTo(msg, addr); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("transport: request %d to %s: %w", reqID, addr, ctx.Err())
	}
}

// reqIDOf extracts the correlation id carried by reply-shaped messages.
// Oneway messages (NOTIFY, STORE, REPLICATE, UPDATE_*) have no id and
// never correlate to a pending request.
func reqIDOf(msg protocol.Message) (uint64, bool) {
	switch v := msg.(type) {
	case protocol.Successor:
		return v.ReqID, true
	case protocol.Predecessor:
		return v.ReqID, true
	case protocol.SuccessorList:
		return v.ReqID, true
	case protocol.Result:
		return v.ReqID, true
	case protocol.Pong:
		return v.ReqID, true
	default:
		return 0, false
	}
}

// Serve runs the read loop until ctx is canceled or the socket errors.
// Every decoded message either completes a pending Request or is handed
// to handler. Malformed datagrams are logged and dropped, never fatal.
func (c *Conn) Serve(ctx context.Context, handler Handler) error {
	buf := make([]byte, protocol.MaxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_ = c.udp.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, from, err := c.udp.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("transport: read: %w", err)
		}

		msg, err := protocol.Decode(string(buf[:n]))
		if err != nil {
			c.lgr.Debug("dropped malformed datagram", logger.F("from", from.String()), logger.F("err", err))
			continue
		}

		if reqID, ok := reqIDOf(msg); ok {
			c.mu.Lock()
			ch, pending := c.pending[reqID]
			c.mu.Unlock()
			if pending {
				select {
				case ch <- msg:
				default:
				}
				continue
			}
			// No one is waiting: either a stale reply after the caller
			// moved on, or an unsolicited reply-shaped message. Neither
			// is fatal; surface it to the handler, which decides
			// whether to react or drop it.
		}

		handler(msg, from)
	}
}

// Close closes the underlying socket.
func (c *Conn) Close() error { return c.udp.Close() }

// LocalAddr returns the socket's bound address.
func (c *Conn) LocalAddr() *net.UDPAddr { return c.udp.LocalAddr().(*net.UDPAddr) }
