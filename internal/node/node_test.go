package node

import (
	"context"
	"net"
	"testing"
	"time"

	"KoordeDHT/internal/domain"
	"KoordeDHT/internal/routingtable"
	"KoordeDHT/internal/storage"
	"KoordeDHT/internal/transport"
)

// newTestNode binds a loopback UDP socket and wires up a Node around it,
// starting its dispatch loop. Callers must call the returned stop func.
func newTestNode(t *testing.T, space *domain.Space) (*Node, func()) {
	t.Helper()
	udp, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	addr := udp.LocalAddr().(*net.UDPAddr)
	self := domain.Peer{IP: "127.0.0.1", Port: addr.Port, ID: space.HashString(addr.String())}

	rt := routingtable.New(self, space)
	conn := transport.New(udp)
	primary := storage.NewMemoryStorage(nil)
	replica := storage.NewMemoryStorage(nil)
	n := New(rt, conn, primary, replica, WithRPCTimeout(2*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- n.Serve(ctx) }()

	stop := func() {
		cancel()
		n.Stop()
	}
	return n, stop
}

func TestCreateNewDHTIsSelfLoop(t *testing.T) {
	space, err := domain.NewSpace(16, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	n, stop := newTestNode(t, space)
	defer stop()

	n.CreateNewDHT()

	if n.State() != StateStable {
		t.Fatalf("State = %v, want STABLE", n.State())
	}
	succ, err := n.FindSuccessor(context.Background(), n.Self().ID)
	if err != nil {
		t.Fatalf("FindSuccessor: %v", err)
	}
	if !succ.Equal(n.Self()) {
		t.Fatalf("FindSuccessor(self) = %v, want self", succ)
	}
}

func TestJoinAttachesToExistingRing(t *testing.T) {
	space, err := domain.NewSpace(16, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	origin, stopOrigin := newTestNode(t, space)
	defer stopOrigin()
	origin.CreateNewDHT()

	joiner, stopJoiner := newTestNode(t, space)
	defer stopJoiner()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := joiner.Join(ctx, origin.Self()); err != nil {
		t.Fatalf("Join: %v", err)
	}

	if joiner.State() != StateStable {
		t.Fatalf("joiner state = %v, want STABLE", joiner.State())
	}
	succ := joiner.rt.FirstSuccessor()
	if succ == nil {
		t.Fatalf("joiner has no successor after join")
	}
}

func TestStoreAndLookupRoundTripSingleNode(t *testing.T) {
	space, err := domain.NewSpace(16, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	n, stop := newTestNode(t, space)
	defer stop()
	n.CreateNewDHT()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.Store(ctx, "hello", "world"); err != nil {
		t.Fatalf("Store: %v", err)
	}

	val, found, err := n.Lookup(ctx, "hello")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found || val != "world" {
		t.Fatalf("Lookup = (%q, %v), want (world, true)", val, found)
	}
}

func TestLookupMissingKeyNotFound(t *testing.T) {
	space, err := domain.NewSpace(16, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	n, stop := newTestNode(t, space)
	defer stop()
	n.CreateNewDHT()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, found, err := n.Lookup(ctx, "missing")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatalf("Lookup(missing) found = true, want false")
	}
}

func TestStabilizeConvergesTwoNodeRing(t *testing.T) {
	space, err := domain.NewSpace(16, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	origin, stopOrigin := newTestNode(t, space)
	defer stopOrigin()
	origin.CreateNewDHT()

	joiner, stopJoiner := newTestNode(t, space)
	defer stopJoiner()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := joiner.Join(ctx, origin.Self()); err != nil {
		t.Fatalf("Join: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		origin.stabilize(context.Background())
		joiner.stabilize(context.Background())

		originPred := origin.rt.GetPredecessor()
		joinerSucc := joiner.rt.FirstSuccessor()
		if originPred != nil && originPred.Equal(joiner.Self()) &&
			joinerSucc != nil && joinerSucc.Equal(origin.Self()) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("ring did not converge: origin.pred=%v joiner.succ=%v",
		origin.rt.GetPredecessor(), joiner.rt.FirstSuccessor())
}

func TestLeaveEntersLeavingState(t *testing.T) {
	space, err := domain.NewSpace(16, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	origin, stopOrigin := newTestNode(t, space)
	defer stopOrigin()
	origin.CreateNewDHT()

	joiner, stopJoiner := newTestNode(t, space)
	defer stopJoiner()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := joiner.Join(ctx, origin.Self()); err != nil {
		t.Fatalf("Join: %v", err)
	}
	origin.stabilize(context.Background())
	time.Sleep(100 * time.Millisecond)

	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer leaveCancel()
	if err := joiner.Leave(leaveCtx); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if joiner.State() != StateLeaving {
		t.Fatalf("joiner state after Leave = %v, want LEAVING", joiner.State())
	}
}

func TestCheckPredecessorRefreshesHeartbeatWhenAlive(t *testing.T) {
	space, err := domain.NewSpace(16, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	origin, stopOrigin := newTestNode(t, space)
	defer stopOrigin()
	origin.CreateNewDHT()

	joiner, stopJoiner := newTestNode(t, space)
	defer stopJoiner()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := joiner.Join(ctx, origin.Self()); err != nil {
		t.Fatalf("Join: %v", err)
	}
	origin.stabilize(context.Background())
	time.Sleep(100 * time.Millisecond)

	origin.mu.Lock()
	origin.predecessorTimeout = 200 * time.Millisecond
	origin.mu.Unlock()

	if origin.rt.GetPredecessor() == nil {
		t.Fatalf("origin has no predecessor after stabilize")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		origin.checkPredecessor(context.Background())
		time.Sleep(80 * time.Millisecond)
	}

	if pred := origin.rt.GetPredecessor(); pred == nil {
		t.Fatalf("predecessor was cleared despite staying alive and answering PING")
	}
}

func TestPruneSuccessorListRebuildsToSelfWhenAllDead(t *testing.T) {
	space, err := domain.NewSpace(16, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	n, stop := newTestNode(t, space)
	defer stop()
	n.CreateNewDHT()

	dead1 := domain.Peer{IP: "127.0.0.1", Port: 1, ID: n.Self().ID + 1}
	dead2 := domain.Peer{IP: "127.0.0.1", Port: 2, ID: n.Self().ID + 2}
	n.rt.SetSuccessorList([]domain.Peer{dead1, dead2})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n.pruneSuccessorList(ctx)

	succ := n.rt.FirstSuccessor()
	if succ == nil || !succ.Equal(n.Self()) {
		t.Fatalf("FirstSuccessor = %v, want self after all candidates died", succ)
	}
	if list := n.rt.SuccessorList(); len(list) != 1 || !list[0].Equal(n.Self()) {
		t.Fatalf("SuccessorList = %v, want [self]", list)
	}
}
