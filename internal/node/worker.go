package node

import (
	"context"
	"time"

	"KoordeDHT/internal/domain"
	"KoordeDHT/internal/logger"
	"KoordeDHT/internal/protocol"
)

// StartStabilizers launches the periodic maintenance loops that keep
// the ring converged after transient churn: stabilize (successor
// pointer + successor list repair, folding in prune_successor_list),
// fix_fingers (one finger slot refreshed per tick, round-robin), and
// check_predecessor (liveness probe against the current predecessor).
// All three stop when ctx is canceled.
func (n *Node) StartStabilizers(ctx context.Context, stabilizeInterval, fixFingersInterval, checkPredecessorInterval time.Duration) {
	n.wg.Add(3)

	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(stabilizeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				n.lgr.Debug("stabilize loop stopped")
				return
			case <-ticker.C:
				n.stabilize(ctx)
			}
		}
	}()

	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(fixFingersInterval)
		defer ticker.Stop()
		next := 0
		for {
			select {
			case <-ctx.Done():
				n.lgr.Debug("fix_fingers loop stopped")
				return
			case <-ticker.C:
				next = n.fixFingers(ctx, next)
			}
		}
	}()

	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(checkPredecessorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				n.lgr.Debug("check_predecessor loop stopped")
				return
			case <-ticker.C:
				n.checkPredecessor(ctx)
			}
		}
	}()
}

// stabilize asks the current successor for its predecessor, adopts it
// as our own successor if it falls strictly between us and our current
// successor, then notifies whoever is our successor now that we might
// be its predecessor. Reply-shaped messages in this exchange are
// awaited through the transport's correlated Request call rather than
// a fixed sleep.
func (n *Node) stabilize(ctx context.Context) {
	succ := n.rt.FirstSuccessor()
	if succ == nil {
		return
	}
	self := n.rt.Self()
	if succ.Equal(self) {
		if pred := n.rt.GetPredecessor(); pred != nil && !pred.Equal(self) {
			adopted := *pred
			n.rt.SetSuccessor(0, &adopted)
			succ = &adopted
			n.lgr.Debug("stabilize: adopted predecessor as successor", logger.FPeer("predecessor", adopted))
		}
	}
	if !succ.Equal(self) {
		reqID := n.conn.NextReqID()
		reply, err := n.conn.Request(ctx, reqID, protocol.GetPredecessor{ReqID: reqID}, succ.Addr(), n.rpcTimeout)
		if err != nil {
			n.logErr("stabilize: get_predecessor", err)
			n.pruneSuccessorList(ctx)
			return
		}
		pred, ok := reply.(protocol.Predecessor)
		if ok && pred.Has {
			candidate := pred.Peer
			if n.space.InRange(candidate.ID, self.ID, succ.ID, false) {
				succCopy := candidate
				n.rt.SetSuccessor(0, &succCopy)
				succ = &succCopy
			}
		}
	}
	if err := n.conn.SendTo(protocol.Notify{CandidateID: self.ID}, succ.Addr()); err != nil {
		n.logErr("stabilize: notify", err)
	}
	n.fetchAndMergeSuccessorList(ctx, *succ)
}

// fetchAndMergeSuccessorList refreshes the full successor list from the
// current successor, prepending it to the list and skipping self.
func (n *Node) fetchAndMergeSuccessorList(ctx context.Context, succ domain.Peer) {
	self := n.rt.Self()
	if succ.Equal(self) {
		return
	}
	reqID := n.conn.NextReqID()
	reply, err := n.conn.Request(ctx, reqID, protocol.GetSuccessorList{ReqID: reqID}, succ.Addr(), n.rpcTimeout)
	if err != nil {
		n.logErr("stabilize: get_successor_list", err)
		return
	}
	list, ok := reply.(protocol.SuccessorList)
	if !ok {
		return
	}
	merged := []domain.Peer{succ}
	for _, p := range list.Peers {
		if !p.Equal(self) {
			merged = append(merged, p)
		}
	}
	n.rt.SetSuccessorList(merged)
}

// pruneSuccessorList is invoked when the current successor failed to
// answer: promote the next live candidate from the successor list to
// take its place.
func (n *Node) pruneSuccessorList(ctx context.Context) {
	list := n.rt.SuccessorList()
	self := n.rt.Self()
	for i := 1; i < len(list); i++ {
		candidate := list[i]
		if candidate.Equal(self) {
			continue
		}
		if n.ping(ctx, candidate, n.rpcTimeout) {
			n.rt.PromoteCandidate(i)
			n.lgr.Warn("successor unresponsive, promoted candidate",
				logger.FPeer("candidate", candidate))
			return
		}
	}
	n.rt.SetSuccessorList([]domain.Peer{self})
	n.lgr.Warn("successor unresponsive, no live candidate in successor list, rebuilt to self")
}

// pruneDeadSuccessors pings every entry in the successor list and drops
// whichever ones don't answer, preserving the order of the survivors;
// used to answer GET_SUCCESSOR_LIST with a list a requester can safely
// adopt wholesale, rather than the raw, possibly-stale one.
func (n *Node) pruneDeadSuccessors(ctx context.Context) {
	list := n.rt.SuccessorList()
	self := n.rt.Self()
	live := make([]domain.Peer, 0, len(list))
	for _, p := range list {
		if p.Equal(self) || n.ping(ctx, p, n.rpcTimeout) {
			live = append(live, p)
		}
	}
	if len(live) == 0 {
		live = []domain.Peer{self}
	}
	n.rt.SetSuccessorList(live)
}

// fixFingers refreshes one finger table entry per call, round-robining
// across slots rather than recomputing all of them every tick. Returns
// the next slot to refresh.
func (n *Node) fixFingers(ctx context.Context, i int) int {
	count := n.rt.NumFingers()
	if count == 0 {
		return 0
	}
	self := n.rt.Self()
	start := n.space.FingerStart(self.ID, i)
	p, err := n.FindSuccessor(ctx, start)
	if err != nil {
		n.logErr("fix_fingers", err)
	} else {
		n.rt.SetFinger(i, &p)
	}
	return (i + 1) % count
}

// checkPredecessor sends PING to the current predecessor and waits for
// PONG; a successful reply refreshes lastPredecessorHeartbeat. A failed
// ping only clears the predecessor once predecessorTimeout has elapsed
// since the last successful one, opening the slot for the next NOTIFY
// to claim.
func (n *Node) checkPredecessor(ctx context.Context) {
	pred := n.rt.GetPredecessor()
	if pred == nil {
		return
	}
	if n.ping(ctx, *pred, n.rpcTimeout) {
		n.mu.Lock()
		n.lastPredecessorHeartbeat = monotonicNow()
		n.mu.Unlock()
		return
	}
	n.mu.Lock()
	last := n.lastPredecessorHeartbeat
	n.mu.Unlock()
	if last.IsZero() || time.Since(last) > n.predecessorTimeout {
		n.rt.SetPredecessor(nil)
		n.lgr.Warn("predecessor timed out, cleared", logger.FPeer("predecessor", *pred))
	}
}
