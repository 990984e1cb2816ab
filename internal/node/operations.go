package node

import (
	"context"
	"fmt"

	"KoordeDHT/internal/domain"
	"KoordeDHT/internal/logger"
	"KoordeDHT/internal/protocol"
)

// CreateNewDHT starts a brand-new single-node ring: self is its own
// successor and predecessor is unset.
func (n *Node) CreateNewDHT() {
	n.rt.InitSingleNode()
	n.setState(StateStable)
	n.lgr.Info("created new ring", logger.FPeer("self", n.rt.Self()))
}

// Join contacts seed and attaches this node to seed's ring: resolve our
// own successor via FIND_SUCCESSOR, then populate the finger table from
// that single fact (fix_fingers converges the rest) and fetch the
// initial successor list from the new successor.
func (n *Node) Join(ctx context.Context, seed domain.Peer) error {
	n.setState(StateJoining)
	self := n.rt.Self()

	succ, err := n.rpcFindSuccessor(ctx, seed, self.ID)
	if err != nil {
		return fmt.Errorf("node: join via %s: %w", seed.Addr(), err)
	}
	n.rt.SetSuccessor(0, &succ)
	for i := 0; i < n.rt.NumFingers(); i++ {
		n.rt.SetFinger(i, &succ)
	}

	if err := n.fetchSuccessorList(ctx, succ); err != nil {
		n.logErr("join: fetchSuccessorList", err)
	}

	n.setState(StateStable)
	n.updateOthers(ctx)
	n.lgr.Info("joined ring", logger.FPeer("self", self), logger.FPeer("successor", succ))
	return nil
}

// fetchSuccessorList asks peer for its successor list and adopts it,
// shifted by one and with self skipped, as our own starting point,
// standard Chord bootstrapping for the replication list.
func (n *Node) fetchSuccessorList(ctx context.Context, peer domain.Peer) error {
	reqID := n.conn.NextReqID()
	reply, err := n.conn.Request(ctx, reqID, protocol.GetSuccessorList{ReqID: reqID}, peer.Addr(), n.rpcTimeout)
	if err != nil {
		return err
	}
	list, ok := reply.(protocol.SuccessorList)
	if !ok {
		return fmt.Errorf("node: unexpected reply to GET_SUCCESSOR_LIST")
	}
	self := n.rt.Self()
	combined := []domain.Peer{peer}
	for _, p := range list.Peers {
		if !p.Equal(self) {
			combined = append(combined, p)
		}
	}
	n.rt.SetSuccessorList(combined)
	return nil
}

// updateOthers notifies every node that might have us in its finger
// table that it should. Run once, right after a successful join,
// stabilize and fix_fingers keep the table converged afterward, so this
// is a convergence accelerant rather than a correctness requirement.
func (n *Node) updateOthers(ctx context.Context) {
	self := n.rt.Self()
	for i := 0; i < n.rt.NumFingers(); i++ {
		start := n.space.Sub(self.ID, uint64(1)<<uint(i))
		p, err := n.FindSuccessor(ctx, start)
		if err != nil {
			n.logErr("updateOthers", err)
			continue
		}
		if p.Equal(self) {
			continue
		}
		if err := n.conn.SendTo(protocol.UpdateFinger{Peer: self, Index: i}, p.Addr()); err != nil {
			n.logErr("updateOthers", err)
		}
	}
}

// Store resolves the owner of key and writes value there, replicating
// via the owner's own handler, a single hop when this node's routing
// table is accurate, more when it is stale.
func (n *Node) Store(ctx context.Context, key, value string) error {
	id := n.space.HashString(key)
	owner, err := n.FindSuccessor(ctx, id)
	if err != nil {
		return fmt.Errorf("node: store %q: %w", key, err)
	}
	if owner.Equal(n.rt.Self()) {
		res := domain.Resource{Key: id, RawKey: key, Value: value}
		n.primary.Put(res)
		n.replicateToSuccessors(res)
		return nil
	}
	if err := n.conn.SendTo(protocol.Store{Key: key, Value: value}, owner.Addr()); err != nil {
		return fmt.Errorf("node: store %q to %s: %w", key, owner.Addr(), err)
	}
	return nil
}

// Lookup resolves key's owner and reads the value, either locally or
// via a single LOOKUP/RESULT round trip.
func (n *Node) Lookup(ctx context.Context, key string) (string, bool, error) {
	id := n.space.HashString(key)
	owner, err := n.FindSuccessor(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("node: lookup %q: %w", key, err)
	}
	if owner.Equal(n.rt.Self()) {
		res, err := n.primary.Get(id)
		if err != nil {
			res, err = n.replica.Get(id)
		}
		if err != nil {
			return "", false, nil
		}
		return res.Value, true, nil
	}
	reqID := n.conn.NextReqID()
	reply, err := n.conn.Request(ctx, reqID, protocol.Lookup{ReqID: reqID, Key: key}, owner.Addr(), n.rpcTimeout)
	if err != nil {
		return "", false, fmt.Errorf("node: lookup %q from %s: %w", key, owner.Addr(), err)
	}
	res, ok := reply.(protocol.Result)
	if !ok {
		return "", false, fmt.Errorf("node: lookup %q: unexpected reply", key)
	}
	return res.Value, res.Found, nil
}

// Leave performs the graceful departure handshake: hand primary_store
// to the successor as new primary data, hand replica_store to the
// successor as its new replica of the predecessor's data, and splice
// predecessor and successor together. The node stays in StateLeaving
// and keeps serving; Stop ends the loops and closes the transport.
func (n *Node) Leave(ctx context.Context) error {
	n.setState(StateLeaving)
	self := n.rt.Self()
	succ := n.rt.FirstSuccessor()
	pred := n.rt.GetPredecessor()

	if succ != nil && !succ.Equal(self) {
		for _, res := range n.primary.All() {
			if err := n.conn.SendTo(protocol.Store{Key: res.RawKey, Value: res.Value}, succ.Addr()); err != nil {
				n.logErr("leave: transfer primary", err)
			}
		}
		for _, res := range n.replica.All() {
			if err := n.conn.SendTo(protocol.Replicate{Key: res.RawKey, Value: res.Value}, succ.Addr()); err != nil {
				n.logErr("leave: transfer replica", err)
			}
		}
		if pred != nil {
			if err := n.conn.SendTo(protocol.UpdatePredecessorTo{Peer: *pred}, succ.Addr()); err != nil {
				n.logErr("leave: notify successor", err)
			}
		}
	}
	if pred != nil && succ != nil && !succ.Equal(self) {
		if err := n.conn.SendTo(protocol.UpdateSuccessorTo{Peer: *succ}, pred.Addr()); err != nil {
			n.logErr("leave: notify predecessor", err)
		}
	}

	n.lgr.Info("left ring", logger.FPeer("self", self))
	return nil
}
