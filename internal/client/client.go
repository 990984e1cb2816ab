// Package client implements the application-facing UDP client used by
// the interactive REPL and the churn-test harness: PUT/LOOKUP/PING and
// a routing-snapshot query against a ring node. PUT is a single
// fire-and-forget STORE datagram; the others are each a single
// request/reply round trip correlated through the same request-id wait
// table the node itself uses internally.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"KoordeDHT/internal/logger"
	"KoordeDHT/internal/protocol"
	"KoordeDHT/internal/transport"
)

var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnavailable      = errors.New("node unavailable")
	ErrDeadlineExceeded = errors.New("request timeout exceeded")
)

// Client is a single UDP socket shared across requests to any number of
// ring nodes: unlike a gRPC connection pool there is no per-peer
// handle to keep warm, so one socket serves the whole session.
type Client struct {
	conn *transport.Conn
	lgr  logger.Logger
}

// New opens an ephemeral UDP socket for issuing requests.
func New(lgr logger.Logger) (*Client, error) {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	udp, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("client: open socket: %w", err)
	}
	return &Client{conn: transport.New(udp, transport.WithLogger(lgr)), lgr: lgr}, nil
}

// Close releases the underlying socket.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) request(ctx context.Context, addr string, build func(reqID uint64) protocol.Message, timeout time.Duration) (protocol.Message, time.Duration, error) {
	start := time.Now()
	reqID := c.conn.NextReqID()
	reply, err := c.conn.Request(ctx, reqID, build(reqID), addr, timeout)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, elapsed, ErrDeadlineExceeded
		}
		return nil, elapsed, ErrUnavailable
	}
	return reply, elapsed, nil
}

// Put stores key/value on addr, which forwards to the owning node if
// addr does not itself own key.
func (c *Client) Put(ctx context.Context, addr, key, value string, timeout time.Duration) (time.Duration, error) {
	start := time.Now()
	if err := c.conn.SendTo(protocol.Store{Key: key, Value: value}, addr); err != nil {
		return time.Since(start), fmt.Errorf("client: put %q to %s: %w", key, addr, err)
	}
	return time.Since(start), nil
}

// Lookup retrieves key's value via addr, following one relay hop if
// addr is not the owner.
func (c *Client) Lookup(ctx context.Context, addr, key string, timeout time.Duration) (string, time.Duration, error) {
	reply, elapsed, err := c.request(ctx, addr, func(reqID uint64) protocol.Message {
		return protocol.Lookup{ReqID: reqID, Key: key}
	}, timeout)
	if err != nil {
		return "", elapsed, err
	}
	res, ok := reply.(protocol.Result)
	if !ok {
		return "", elapsed, ErrUnavailable
	}
	if !res.Found {
		return "", elapsed, ErrNotFound
	}
	return res.Value, elapsed, nil
}

// Ping probes addr for liveness, returning round-trip latency.
func (c *Client) Ping(ctx context.Context, addr string, timeout time.Duration) (time.Duration, error) {
	_, elapsed, err := c.request(ctx, addr, func(reqID uint64) protocol.Message {
		return protocol.Ping{ReqID: reqID}
	}, timeout)
	return elapsed, err
}

// RoutingSnapshot fetches addr's successor list, useful for CLI
// inspection of ring state.
func (c *Client) RoutingSnapshot(ctx context.Context, addr string, timeout time.Duration) ([]string, time.Duration, error) {
	reply, elapsed, err := c.request(ctx, addr, func(reqID uint64) protocol.Message {
		return protocol.GetSuccessorList{ReqID: reqID}
	}, timeout)
	if err != nil {
		return nil, elapsed, err
	}
	list, ok := reply.(protocol.SuccessorList)
	if !ok {
		return nil, elapsed, ErrUnavailable
	}
	out := make([]string, 0, len(list.Peers))
	for _, p := range list.Peers {
		out = append(out, p.Addr())
	}
	return out, elapsed, nil
}
