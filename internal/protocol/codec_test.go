package protocol

import (
	"testing"

	"KoordeDHT/internal/domain"
)

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	line, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode(%v): %v", m, err)
	}
	got, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode(%q): %v", line, err)
	}
	return got
}

func TestRoundTripFindSuccessor(t *testing.T) {
	in := FindSuccessor{ReqID: 7, Target: 42}
	got := roundTrip(t, in)
	if got != Message(in) {
		t.Errorf("got %#v, want %#v", got, in)
	}
}

func TestRoundTripSuccessorAndPredecessorNone(t *testing.T) {
	peer := domain.Peer{IP: "127.0.0.1", Port: 5000, ID: 7}
	s := Successor{ReqID: 1, Peer: peer}
	if got := roundTrip(t, s); got != Message(s) {
		t.Errorf("got %#v, want %#v", got, s)
	}

	p := Predecessor{ReqID: 2, Has: false}
	got := roundTrip(t, p)
	gp, ok := got.(Predecessor)
	if !ok || gp.Has {
		t.Errorf("got %#v, want NONE predecessor", got)
	}
}

func TestRoundTripStoreWithSpacesInValue(t *testing.T) {
	in := Store{Key: "username", Value: "alice smith"}
	got := roundTrip(t, in)
	s, ok := got.(Store)
	if !ok || s.Value != "alice smith" {
		t.Errorf("got %#v, want value %q", got, in.Value)
	}
}

func TestRoundTripResultNotFound(t *testing.T) {
	in := Result{ReqID: 9, Key: "missing", Found: false}
	got := roundTrip(t, in)
	r, ok := got.(Result)
	if !ok || r.Found {
		t.Errorf("got %#v, want not-found result", got)
	}
}

func TestDecodeMalformedDropped(t *testing.T) {
	if _, err := Decode("FIND_SUCCESSOR onlyonearg"); err == nil {
		t.Error("expected error for malformed FIND_SUCCESSOR")
	}
	if _, err := Decode("NOT_A_COMMAND foo"); err == nil {
		t.Error("expected error for unknown command")
	}
	if _, err := Decode(""); err == nil {
		t.Error("expected error for empty datagram")
	}
}

func TestRoundTripSuccessorList(t *testing.T) {
	in := SuccessorList{ReqID: 3, Peers: []domain.Peer{
		{IP: "10.0.0.1", Port: 1, ID: 1},
		{IP: "10.0.0.2", Port: 2, ID: 2},
	}}
	got := roundTrip(t, in)
	sl, ok := got.(SuccessorList)
	if !ok || len(sl.Peers) != 2 {
		t.Fatalf("got %#v", got)
	}
}
