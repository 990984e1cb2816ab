package node

import (
	"context"
	"net"
	"time"

	"KoordeDHT/internal/ctxutil"
	"KoordeDHT/internal/domain"
	"KoordeDHT/internal/logger"
	"KoordeDHT/internal/protocol"
	"KoordeDHT/internal/telemetry/lookuptrace"
)

// dispatch answers one inbound datagram already decoded into a
// protocol.Message. Reply-shaped messages (SUCCESSOR, PREDECESSOR,
// SUCCESSOR_LIST, RESULT, PONG) never reach here when they correlate to
// a pending Request call; transport.Conn.Serve delivers those to the
// waiting channel directly. A reply arriving here has no matching
// request (late, duplicated, or post-timeout) and is logged and
// dropped.
func (n *Node) dispatch(ctx context.Context, msg protocol.Message, from *net.UDPAddr) {
	switch m := msg.(type) {
	case protocol.FindSuccessor:
		n.handleFindSuccessor(ctx, m, from)
	case protocol.Notify:
		n.handleNotify(m, from)
	case protocol.GetPredecessor:
		n.handleGetPredecessor(m, from)
	case protocol.GetSuccessorList:
		n.handleGetSuccessorList(ctx, m, from)
	case protocol.UpdatePredecessorTo:
		n.handleUpdatePredecessorTo(m)
	case protocol.UpdateSuccessorTo:
		n.handleUpdateSuccessorTo(m)
	case protocol.UpdateFinger:
		n.handleUpdateFinger(ctx, m)
	case protocol.Store:
		n.handleStore(ctx, m, from)
	case protocol.Replicate:
		n.handleReplicate(m)
	case protocol.Lookup:
		n.handleLookup(ctx, m, from)
	case protocol.Ping:
		n.handlePing(m, from)
	default:
		n.lgr.Debug("dropped unsolicited reply", logger.F("from", from.String()))
	}
}

func (n *Node) handleFindSuccessor(ctx context.Context, m protocol.FindSuccessor, from *net.UDPAddr) {
	succ, err := n.FindSuccessor(ctx, m.Target)
	if err != nil {
		n.logErr("handleFindSuccessor", err)
		return
	}
	n.reply(protocol.Successor{ReqID: m.ReqID, Peer: succ}, from)
}

// handleNotify implements Chord's notify(n'): n' thinks it might be our
// predecessor. Accept it if we have none, or if it falls strictly
// between our current predecessor and us.
func (n *Node) handleNotify(m protocol.Notify, from *net.UDPAddr) {
	candidate := domain.Peer{IP: from.IP.String(), Port: from.Port, ID: m.CandidateID}
	pred := n.rt.GetPredecessor()
	self := n.rt.Self()
	if pred == nil || n.space.InRange(candidate.ID, pred.ID, self.ID, false) {
		n.rt.SetPredecessor(&candidate)
		n.mu.Lock()
		n.lastPredecessorHeartbeat = monotonicNow()
		n.mu.Unlock()
		n.lgr.Debug("predecessor updated via notify", logger.FPeer("predecessor", candidate))
	}
}

func (n *Node) handleGetPredecessor(m protocol.GetPredecessor, from *net.UDPAddr) {
	pred := n.rt.GetPredecessor()
	if pred == nil {
		n.reply(protocol.Predecessor{ReqID: m.ReqID, Has: false}, from)
		return
	}
	n.reply(protocol.Predecessor{ReqID: m.ReqID, Has: true, Peer: *pred}, from)
}

// handleGetSuccessorList prunes dead entries from the successor list
// before answering, so a requester never inherits a stale dead peer.
func (n *Node) handleGetSuccessorList(ctx context.Context, m protocol.GetSuccessorList, from *net.UDPAddr) {
	n.pruneDeadSuccessors(ctx)
	n.reply(protocol.SuccessorList{ReqID: m.ReqID, Peers: n.rt.SuccessorList()}, from)
}

func (n *Node) handleUpdatePredecessorTo(m protocol.UpdatePredecessorTo) {
	p := m.Peer
	n.rt.SetPredecessor(&p)
	n.mu.Lock()
	n.lastPredecessorHeartbeat = monotonicNow()
	n.mu.Unlock()
}

func (n *Node) handleUpdateSuccessorTo(m protocol.UpdateSuccessorTo) {
	p := m.Peer
	n.rt.SetSuccessor(0, &p)
}

// handleUpdateFinger applies an UPDATE_FINGER propagated along the
// predecessor chain (the resolved alternative to the paper's
// find_predecessor(n-2^i) broadcast): update the named slot if this
// peer still belongs there (it lies in [start, current finger) on the
// ring), and forward unchanged further down the chain only when the
// update actually changed the slot.
func (n *Node) handleUpdateFinger(ctx context.Context, m protocol.UpdateFinger) {
	self := n.rt.Self()
	start := n.space.FingerStart(self.ID, m.Index)
	cur := n.rt.GetFinger(m.Index)
	if cur != nil && !n.space.InRange(m.Peer.ID, n.space.Sub(start, 1), cur.ID, false) {
		return
	}
	if cur != nil && cur.Equal(m.Peer) {
		return
	}
	p := m.Peer
	n.rt.SetFinger(m.Index, &p)
	pred := n.rt.GetPredecessor()
	if pred == nil || pred.Equal(self) {
		return
	}
	n.forwardUpdateFinger(ctx, *pred, m)
}

func (n *Node) forwardUpdateFinger(ctx context.Context, to domain.Peer, m protocol.UpdateFinger) {
	if err := n.conn.SendTo(m, to.Addr()); err != nil {
		n.logErr("forwardUpdateFinger", err)
	}
}

// handleStore writes a key locally when this node owns it, replicating
// to the live successor list, or forwards toward the owner when it
// does not, the defensive fallback for a stale sender's routing
// table.
func (n *Node) handleStore(ctx context.Context, m protocol.Store, from *net.UDPAddr) {
	self := n.rt.Self()
	ctx = ctxutil.EnsureTraceID(ctx, self.ID)
	ctx = ctxutil.StartHops(ctx)
	key := n.space.HashString(m.Key)
	pred := n.rt.GetPredecessor()
	owns := pred == nil || n.space.InRange(key, pred.ID, self.ID, true)
	if !owns {
		n.forwardStore(ctx, m)
		return
	}
	res := domain.Resource{Key: key, RawKey: m.Key, Value: m.Value}
	n.primary.Put(res)
	n.replicateToSuccessors(res)
}

func (n *Node) forwardStore(ctx context.Context, m protocol.Store) {
	key := n.space.HashString(m.Key)
	owner, err := n.FindSuccessor(ctx, key)
	if err != nil {
		n.logErr("forwardStore", err)
		return
	}
	if err := n.conn.SendTo(m, owner.Addr()); err != nil {
		n.logErr("forwardStore", err)
	}
}

func (n *Node) replicateToSuccessors(res domain.Resource) {
	for _, p := range n.rt.SuccessorList() {
		if p.IsZero() || p.Equal(n.rt.Self()) {
			continue
		}
		if err := n.conn.SendTo(protocol.Replicate{Key: res.RawKey, Value: res.Value}, p.Addr()); err != nil {
			n.logErr("replicateToSuccessors", err)
		}
	}
}

func (n *Node) handleReplicate(m protocol.Replicate) {
	key := n.space.HashString(m.Key)
	n.replica.Put(domain.Resource{Key: key, RawKey: m.Key, Value: m.Value})
}

// handleLookup answers locally-owned keys with RESULT, and for keys
// this node does not own, resolves the owner and relays the owner's
// answer back to the original requester; UDP gives the owner no way
// to address from directly, so this node stays in the loop as a relay.
func (n *Node) handleLookup(ctx context.Context, m protocol.Lookup, from *net.UDPAddr) {
	self := n.rt.Self()
	ctx = ctxutil.EnsureTraceID(ctx, self.ID)
	ctx = ctxutil.StartHops(ctx)
	ctx, end := lookuptrace.StartServerSpan(ctx, "Lookup", true)
	defer end()
	key := n.space.HashString(m.Key)
	pred := n.rt.GetPredecessor()
	owns := pred == nil || n.space.InRange(key, pred.ID, self.ID, true)
	if owns {
		res, err := n.primary.Get(key)
		if err != nil {
			res, err = n.replica.Get(key)
		}
		if err != nil {
			n.reply(protocol.Result{ReqID: m.ReqID, Key: m.Key, Found: false}, from)
			return
		}
		n.reply(protocol.Result{ReqID: m.ReqID, Key: m.Key, Value: res.Value, Found: true}, from)
		return
	}
	owner, err := n.FindSuccessor(ctx, key)
	if err != nil {
		n.logErr("handleLookup", err)
		n.reply(protocol.Result{ReqID: m.ReqID, Key: m.Key, Found: false}, from)
		return
	}
	reqID := n.conn.NextReqID()
	reply, err := n.conn.Request(ctx, reqID, protocol.Lookup{ReqID: reqID, Key: m.Key}, owner.Addr(), n.rpcTimeout)
	if err != nil {
		n.logErr("handleLookup relay", err)
		n.reply(protocol.Result{ReqID: m.ReqID, Key: m.Key, Found: false}, from)
		return
	}
	res, ok := reply.(protocol.Result)
	if !ok {
		n.reply(protocol.Result{ReqID: m.ReqID, Key: m.Key, Found: false}, from)
		return
	}
	n.reply(protocol.Result{ReqID: m.ReqID, Key: m.Key, Value: res.Value, Found: res.Found}, from)
}

func (n *Node) handlePing(m protocol.Ping, from *net.UDPAddr) {
	n.reply(protocol.Pong{ReqID: m.ReqID}, from)
	pred := n.rt.GetPredecessor()
	if pred != nil && pred.IP == from.IP.String() && pred.Port == from.Port {
		n.mu.Lock()
		n.lastPredecessorHeartbeat = monotonicNow()
		n.mu.Unlock()
	}
}

func (n *Node) reply(msg protocol.Message, to *net.UDPAddr) {
	if err := n.conn.Send(msg, to); err != nil {
		n.logErr("reply", err)
	}
}

func monotonicNow() time.Time { return time.Now() }
