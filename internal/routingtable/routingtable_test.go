package routingtable

import (
	"testing"

	"KoordeDHT/internal/domain"
)

func newTestSpace(t *testing.T) *domain.Space {
	t.Helper()
	s, err := domain.NewSpace(8, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return s
}

func peer(ip string, port int, id domain.ID) domain.Peer {
	return domain.Peer{IP: ip, Port: port, ID: id}
}

func TestInitSingleNode(t *testing.T) {
	space := newTestSpace(t)
	self := peer("127.0.0.1", 5000, 10)
	rt := New(self, space)
	rt.InitSingleNode()

	succ := rt.FirstSuccessor()
	if succ == nil || !succ.Equal(self) {
		t.Fatalf("FirstSuccessor = %v, want self", succ)
	}
	if pred := rt.GetPredecessor(); pred != nil {
		t.Fatalf("GetPredecessor = %v, want nil", pred)
	}
	for i := 0; i < rt.NumFingers(); i++ {
		if f := rt.GetFinger(i); f == nil || !f.Equal(self) {
			t.Fatalf("finger[%d] = %v, want self", i, f)
		}
	}
}

func TestSetSuccessorListTruncatesAndPads(t *testing.T) {
	space := newTestSpace(t)
	self := peer("127.0.0.1", 5000, 10)
	rt := New(self, space)

	rt.SetSuccessorList([]domain.Peer{
		peer("10.0.0.1", 1, 20),
		peer("10.0.0.2", 1, 30),
		peer("10.0.0.3", 1, 40),
		peer("10.0.0.4", 1, 50), // beyond the 3-entry list, must be dropped
	})

	list := rt.SuccessorList()
	if len(list) != 3 {
		t.Fatalf("SuccessorList length = %d, want 3", len(list))
	}
	if list[0].ID != 20 || list[1].ID != 30 || list[2].ID != 40 {
		t.Fatalf("unexpected successor list: %+v", list)
	}

	// A shorter input pads the remaining slots with nil, which
	// SuccessorList omits.
	rt.SetSuccessorList([]domain.Peer{peer("10.0.0.9", 1, 90)})
	list = rt.SuccessorList()
	if len(list) != 1 || list[0].ID != 90 {
		t.Fatalf("unexpected successor list after padding: %+v", list)
	}
}

func TestPromoteCandidateShiftsListForward(t *testing.T) {
	space := newTestSpace(t)
	self := peer("127.0.0.1", 5000, 10)
	rt := New(self, space)
	rt.SetSuccessorList([]domain.Peer{
		peer("10.0.0.1", 1, 20),
		peer("10.0.0.2", 1, 30),
		peer("10.0.0.3", 1, 40),
	})

	rt.PromoteCandidate(1)

	list := rt.SuccessorList()
	if len(list) != 2 || list[0].ID != 30 || list[1].ID != 40 {
		t.Fatalf("unexpected successor list after promote: %+v", list)
	}
}

func TestClosestPrecedingNodeFallsBackToSelf(t *testing.T) {
	space := newTestSpace(t)
	self := peer("127.0.0.1", 5000, 10)
	rt := New(self, space)

	got := rt.ClosestPrecedingNode(200)
	if !got.Equal(self) {
		t.Fatalf("ClosestPrecedingNode = %v, want self", got)
	}
}

func TestClosestPrecedingNodePrefersHighestQualifyingFinger(t *testing.T) {
	space := newTestSpace(t)
	self := peer("127.0.0.1", 5000, 10)
	rt := New(self, space)

	low := peer("10.0.0.1", 1, 20)
	high := peer("10.0.0.2", 1, 100)
	rt.SetFinger(0, &low)
	rt.SetFinger(5, &high)

	got := rt.ClosestPrecedingNode(150)
	if !got.Equal(high) {
		t.Fatalf("ClosestPrecedingNode = %v, want %v", got, high)
	}
}

func TestSetSuccessorOutOfRangeIsNoop(t *testing.T) {
	space := newTestSpace(t)
	self := peer("127.0.0.1", 5000, 10)
	rt := New(self, space)

	other := peer("10.0.0.1", 1, 20)
	rt.SetSuccessor(-1, &other)
	rt.SetSuccessor(99, &other)

	if list := rt.SuccessorList(); len(list) != 0 {
		t.Fatalf("out-of-range SetSuccessor mutated table: %+v", list)
	}
}
