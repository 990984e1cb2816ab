// Package node implements the Chord protocol engine and maintenance
// loops: the dispatcher that answers inbound wire messages, the
// synchronous application-facing operations (join, store, lookup,
// leave), and the periodic stabilize/fix_fingers/check_predecessor/
// prune_successor_list tasks that keep the ring converged.
package node

import (
	"context"
	"net"
	"sync"
	"time"

	"KoordeDHT/internal/domain"
	"KoordeDHT/internal/logger"
	"KoordeDHT/internal/protocol"
	"KoordeDHT/internal/routingtable"
	"KoordeDHT/internal/storage"
	"KoordeDHT/internal/transport"
)

// State is a node's lifecycle stage, per the state machine in the ring
// membership design.
type State int

const (
	StateUnjoined State = iota
	StateJoining
	StateStable
	StateLeaving
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "UNJOINED"
	case StateJoining:
		return "JOINING"
	case StateStable:
		return "STABLE"
	case StateLeaving:
		return "LEAVING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Node is one Chord ring participant: routing table, transport, the two
// key-value shards, and the timers governing RPCs and predecessor
// liveness.
type Node struct {
	space *domain.Space
	rt    *routingtable.RoutingTable
	conn  *transport.Conn
	primary *storage.Storage
	replica *storage.Storage
	lgr   logger.Logger

	rpcTimeout         time.Duration
	predecessorTimeout time.Duration

	mu                       sync.Mutex
	state                    State
	lastPredecessorHeartbeat time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithLogger sets the node's own logger. The routing table, transport,
// and storage shards keep the loggers they were built with; this
// affects the node's own log lines only.
func WithLogger(l logger.Logger) Option {
	return func(n *Node) {
		if l != nil {
			n.lgr = l
		}
	}
}

// WithRPCTimeout overrides the default 2s RPC reply wait.
func WithRPCTimeout(d time.Duration) Option {
	return func(n *Node) {
		if d > 0 {
			n.rpcTimeout = d
		}
	}
}

// WithPredecessorTimeout overrides the default 15s predecessor-liveness
// threshold.
func WithPredecessorTimeout(d time.Duration) Option {
	return func(n *Node) {
		if d > 0 {
			n.predecessorTimeout = d
		}
	}
}

// New builds a Node around an already-constructed routing table,
// transport connection, and storage shards.
func New(rt *routingtable.RoutingTable, conn *transport.Conn, primary, replica *storage.Storage, opts ...Option) *Node {
	n := &Node{
		space:              rt.Space(),
		rt:                 rt,
		conn:               conn,
		primary:            primary,
		replica:            replica,
		lgr:                &logger.NopLogger{},
		rpcTimeout:         2 * time.Second,
		predecessorTimeout: 15 * time.Second,
		state:              StateUnjoined,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Node) Self() domain.Peer { return n.rt.Self() }

func (n *Node) state_() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Node) setState(s State) {
	n.mu.Lock()
	old := n.state
	n.state = s
	n.mu.Unlock()
	if old != s {
		n.lgr.Debug("state transition", logger.F("from", old.String()), logger.F("to", s.String()))
	}
}

// State reports the node's current lifecycle stage.
func (n *Node) State() State { return n.state_() }

// Serve runs the protocol engine's datagram dispatch loop until ctx is
// canceled or the socket fails (for example because Stop closed it).
func (n *Node) Serve(ctx context.Context) error {
	return n.conn.Serve(ctx, func(msg protocol.Message, from *net.UDPAddr) {
		n.dispatch(ctx, msg, from)
	})
}

// Stop terminates the maintenance loops (if started) and closes the
// transport, without performing the graceful-leave handshake; callers
// that want a clean departure must call Leave first.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	n.setState(StateStopped)
	_ = n.conn.Close()
}

func (n *Node) logErr(op string, err error) {
	if err != nil {
		n.lgr.Debug(op+" failed", logger.F("err", err))
	}
}
