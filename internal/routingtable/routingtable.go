// Package routingtable holds the per-node finger table and successor
// list: pure data plus a small set of repair operations, mutated under
// per-field-family locks rather than one coarse node mutex.
package routingtable

import (
	"fmt"
	"sync"

	"KoordeDHT/internal/domain"
	"KoordeDHT/internal/logger"
)

// routingEntry is a single mutable peer slot, safe for concurrent
// readers and a single writer at a time. A nil peer pointer means unset.
type routingEntry struct {
	peer *domain.Peer
	mu   sync.RWMutex
}

func (e *routingEntry) Set(p *domain.Peer) {
	e.mu.Lock()
	e.peer = p
	e.mu.Unlock()
}

func (e *routingEntry) Get() *domain.Peer {
	e.mu.RLock()
	p := e.peer
	e.mu.RUnlock()
	return p
}

// RoutingTable is the routing state of one Chord node: its finger table
// (O(log n) shortcut successors) and its successor list (the next r
// live successors, used for replication and failover). It is owned by a
// single node and mutated by the stabilization loops and protocol
// handlers.
type RoutingTable struct {
	logger        logger.Logger
	space         *domain.Space
	self          domain.Peer
	successorList []*routingEntry
	predecessor   *routingEntry
	fingers       []*routingEntry
}

// Option configures a RoutingTable at construction time.
type Option func(*RoutingTable)

// WithLogger sets the logger used for routing table diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(rt *RoutingTable) {
		if l != nil {
			rt.logger = l
		}
	}
}

// New creates a routing table for self. All entries start unset; callers
// typically follow with either InitSingleNode (ring origin) or let join
// and stabilize populate it.
func New(self domain.Peer, space *domain.Space, opts ...Option) *RoutingTable {
	rt := &RoutingTable{
		self:          self,
		space:         space,
		successorList: make([]*routingEntry, space.SuccListSize),
		predecessor:   &routingEntry{},
		fingers:       make([]*routingEntry, space.Bits),
		logger:        &logger.NopLogger{},
	}
	for i := range rt.successorList {
		rt.successorList[i] = &routingEntry{}
	}
	for i := range rt.fingers {
		rt.fingers[i] = &routingEntry{}
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// InitSingleNode configures the table for a freshly bootstrapped, lone
// ring: successor and every finger point at self, predecessor is unset.
func (rt *RoutingTable) InitSingleNode() {
	self := rt.self
	rt.SetSuccessor(0, &self)
	for i := range rt.fingers {
		rt.fingers[i].Set(&self)
	}
	rt.predecessor.Set(nil)
}

// Space returns the identifier space this table was built against.
func (rt *RoutingTable) Space() *domain.Space { return rt.space }

// Self returns the local peer descriptor owning this table.
func (rt *RoutingTable) Self() domain.Peer { return rt.self }

// GetSuccessor returns the i-th successor list entry, or nil if unset or
// out of range.
func (rt *RoutingTable) GetSuccessor(i int) *domain.Peer {
	if i < 0 || i >= len(rt.successorList) {
		rt.logger.Warn("GetSuccessor: index out of range",
			logger.F("requested", i), logger.F("valid_range", fmt.Sprintf("[0..%d]", len(rt.successorList)-1)))
		return nil
	}
	return rt.successorList[i].Get()
}

// FirstSuccessor is GetSuccessor(0): the node's immediate ring successor.
func (rt *RoutingTable) FirstSuccessor() *domain.Peer { return rt.GetSuccessor(0) }

// SetSuccessor sets the i-th successor list entry.
func (rt *RoutingTable) SetSuccessor(i int, p *domain.Peer) {
	if i < 0 || i >= len(rt.successorList) {
		rt.logger.Warn("SetSuccessor: index out of range",
			logger.F("requested", i), logger.F("valid_range", fmt.Sprintf("[0..%d]", len(rt.successorList)-1)))
		return
	}
	rt.successorList[i].Set(p)
}

// SuccessorList returns a shallow copy of every non-nil successor, in
// order. Callers may freely mutate the returned slice.
func (rt *RoutingTable) SuccessorList() []domain.Peer {
	out := make([]domain.Peer, 0, len(rt.successorList))
	for _, e := range rt.successorList {
		if p := e.Get(); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// SetSuccessorList replaces the successor list wholesale. Extra entries
// are truncated; missing entries are padded with nil.
func (rt *RoutingTable) SetSuccessorList(peers []domain.Peer) {
	expected := len(rt.successorList)
	if len(peers) > expected {
		rt.logger.Warn("SetSuccessorList: truncating input",
			logger.F("expected", expected), logger.F("got", len(peers)))
		peers = peers[:expected]
	}
	for i := range peers {
		p := peers[i]
		rt.SetSuccessor(i, &p)
	}
	for i := len(peers); i < expected; i++ {
		rt.SetSuccessor(i, nil)
	}
}

// PromoteCandidate promotes the successor at index i to the head of the
// list, shifting the tail forward and discarding everything before i;
// used when the current successor is found dead and the next live entry
// in the list must become the new successor.
func (rt *RoutingTable) PromoteCandidate(i int) {
	expected := len(rt.successorList)
	if i <= 0 || i >= expected {
		rt.logger.Warn("PromoteCandidate: invalid index",
			logger.F("requested", i), logger.F("valid_range", fmt.Sprintf("[1..%d]", expected-1)))
		return
	}
	candidate := rt.successorList[i].Get()
	if candidate == nil {
		rt.logger.Warn("PromoteCandidate: candidate is nil", logger.F("index", i))
		return
	}
	newList := make([]domain.Peer, 0, expected)
	newList = append(newList, *candidate)
	for j := i + 1; j < expected; j++ {
		if p := rt.successorList[j].Get(); p != nil {
			newList = append(newList, *p)
		}
	}
	rt.SetSuccessorList(newList)
	rt.logger.Debug("PromoteCandidate: successor promoted",
		logger.F("from_index", i), logger.F("candidate", candidate.Addr()))
}

// GetPredecessor returns the current predecessor, or nil if unset.
func (rt *RoutingTable) GetPredecessor() *domain.Peer { return rt.predecessor.Get() }

// SetPredecessor overwrites the predecessor pointer.
func (rt *RoutingTable) SetPredecessor(p *domain.Peer) { rt.predecessor.Set(p) }

// GetFinger returns finger table slot i, or nil if unset or out of range.
func (rt *RoutingTable) GetFinger(i int) *domain.Peer {
	if i < 0 || i >= len(rt.fingers) {
		rt.logger.Warn("GetFinger: index out of range",
			logger.F("requested", i), logger.F("valid_range", fmt.Sprintf("[0..%d]", len(rt.fingers)-1)))
		return nil
	}
	return rt.fingers[i].Get()
}

// SetFinger sets finger table slot i.
func (rt *RoutingTable) SetFinger(i int, p *domain.Peer) {
	if i < 0 || i >= len(rt.fingers) {
		rt.logger.Warn("SetFinger: index out of range",
			logger.F("requested", i), logger.F("valid_range", fmt.Sprintf("[0..%d]", len(rt.fingers)-1)))
		return
	}
	rt.fingers[i].Set(p)
}

// NumFingers is the finger table width (the identifier space's bit count).
func (rt *RoutingTable) NumFingers() int { return len(rt.fingers) }

// ClosestPrecedingNode scans the finger table from the highest index
// downward and returns the first finger strictly between self and
// target on the ring; falls back to self if none qualifies.
func (rt *RoutingTable) ClosestPrecedingNode(target domain.ID) domain.Peer {
	for i := len(rt.fingers) - 1; i >= 0; i-- {
		f := rt.GetFinger(i)
		if f == nil {
			continue
		}
		if rt.space.InRange(f.ID, rt.self.ID, target, false) {
			return *f
		}
	}
	return rt.self
}

// DebugLog emits a single structured snapshot of the table's state.
func (rt *RoutingTable) DebugLog() {
	pred := rt.GetPredecessor()
	successors := make([]map[string]any, 0, len(rt.successorList))
	for i := range rt.successorList {
		if p := rt.GetSuccessor(i); p == nil {
			successors = append(successors, map[string]any{"index": i, "peer": nil})
		} else {
			successors = append(successors, map[string]any{"index": i, "id": p.ID, "addr": p.Addr()})
		}
	}
	fingers := make([]map[string]any, 0, len(rt.fingers))
	for i := range rt.fingers {
		if p := rt.GetFinger(i); p == nil {
			fingers = append(fingers, map[string]any{"index": i, "peer": nil})
		} else {
			fingers = append(fingers, map[string]any{"index": i, "id": p.ID, "addr": p.Addr()})
		}
	}
	var predLog any
	if pred != nil {
		predLog = pred.Addr()
	}
	rt.logger.Debug("routing table snapshot",
		logger.F("self", rt.self.Addr()),
		logger.F("predecessor", predLog),
		logger.F("successors", successors),
		logger.F("fingers", fingers),
	)
}
