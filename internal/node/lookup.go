package node

import (
	"context"
	"time"

	"KoordeDHT/internal/ctxutil"
	"KoordeDHT/internal/domain"
	"KoordeDHT/internal/logger"
	"KoordeDHT/internal/protocol"
	"KoordeDHT/internal/telemetry/lookuptrace"
)

// FindSuccessor resolves the live node responsible for target: the node
// N such that target falls in (N.predecessor.id, N.id]. If self is
// alone on the ring, or target already falls within (self, successor],
// it resolves locally; otherwise it forwards to the closest preceding
// finger and awaits that peer's answer, recursing across the network
// rather than in this call stack.
func (n *Node) FindSuccessor(ctx context.Context, target domain.ID) (domain.Peer, error) {
	self := n.rt.Self()
	succ := n.rt.FirstSuccessor()
	if succ == nil || succ.Equal(self) {
		return self, nil
	}
	if n.space.InRange(target, self.ID, succ.ID, true) {
		return *succ, nil
	}
	cp := n.rt.ClosestPrecedingNode(target)
	if cp.Equal(self) {
		// No finger is closer than we already are; our successor is
		// the best-known live answer until the next stabilize round.
		return *succ, nil
	}
	return n.rpcFindSuccessor(ctx, cp, target)
}

// rpcFindSuccessor asks peer to resolve target and blocks for its
// SUCCESSOR reply. On transport failure it degrades to returning peer
// itself: a live but possibly-stale answer, refined by the next
// stabilize cycle.
func (n *Node) rpcFindSuccessor(ctx context.Context, peer domain.Peer, target domain.ID) (domain.Peer, error) {
	ctx, end := lookuptrace.StartClientSpan(ctx, "FindSuccessor")
	defer end()
	ctx = ctxutil.IncHops(ctx)
	if hops := ctxutil.HopsFromContext(ctx); hops >= 0 {
		n.lgr.Debug("forwarding find_successor", logger.FPeer("to", peer), logger.F("hops", hops))
	}
	reqID := n.conn.NextReqID()
	reply, err := n.conn.Request(ctx, reqID, protocol.FindSuccessor{ReqID: reqID, Target: target}, peer.Addr(), n.rpcTimeout)
	if err != nil {
		n.logErr("rpcFindSuccessor", err)
		return peer, nil
	}
	succ, ok := reply.(protocol.Successor)
	if !ok {
		return peer, nil
	}
	return succ.Peer, nil
}

// closestPrecedingNode is the routing table operation exposed at node
// level; FindSuccessor calls the routing table's ClosestPrecedingNode
// directly, and nothing in this package calls this wrapper.
func (n *Node) closestPrecedingNode(target domain.ID) domain.Peer {
	return n.rt.ClosestPrecedingNode(target)
}

// ping sends PING to peer and waits for PONG, reporting liveness.
func (n *Node) ping(ctx context.Context, peer domain.Peer, timeout time.Duration) bool {
	reqID := n.conn.NextReqID()
	_, err := n.conn.Request(ctx, reqID, protocol.Ping{ReqID: reqID}, peer.Addr(), timeout)
	return err == nil
}
