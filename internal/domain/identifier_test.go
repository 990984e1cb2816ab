package domain

import "testing"

func TestInRangeNoWrap(t *testing.T) {
	s, err := NewSpace(8, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	cases := []struct {
		x, start, end ID
		includeEnd    bool
		want          bool
	}{
		{x: 5, start: 1, end: 10, includeEnd: false, want: true},
		{x: 10, start: 1, end: 10, includeEnd: false, want: false},
		{x: 10, start: 1, end: 10, includeEnd: true, want: true},
		{x: 1, start: 1, end: 10, includeEnd: true, want: false},
	}
	for _, c := range cases {
		if got := s.InRange(c.x, c.start, c.end, c.includeEnd); got != c.want {
			t.Errorf("InRange(%d,%d,%d,%v) = %v, want %v", c.x, c.start, c.end, c.includeEnd, got, c.want)
		}
	}
}

func TestInRangeWrap(t *testing.T) {
	s, err := NewSpace(8, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	cases := []struct {
		x, start, end ID
		includeEnd    bool
		want          bool
	}{
		{x: 250, start: 200, end: 50, includeEnd: false, want: true},
		{x: 30, start: 200, end: 50, includeEnd: false, want: true},
		{x: 50, start: 200, end: 50, includeEnd: false, want: false},
		{x: 50, start: 200, end: 50, includeEnd: true, want: true},
		{x: 100, start: 200, end: 50, includeEnd: false, want: false},
	}
	for _, c := range cases {
		if got := s.InRange(c.x, c.start, c.end, c.includeEnd); got != c.want {
			t.Errorf("InRange(%d,%d,%d,%v) = %v, want %v", c.x, c.start, c.end, c.includeEnd, got, c.want)
		}
	}
}

func TestFingerStartWraps(t *testing.T) {
	s, err := NewSpace(8, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	if got := s.FingerStart(250, 3); got != ID((250+8)%256) {
		t.Errorf("FingerStart(250,3) = %d, want %d", got, (250+8)%256)
	}
}

func TestHashStringDeterministic(t *testing.T) {
	s, err := NewSpace(8, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	a := s.HashString("127.0.0.1:5000")
	b := s.HashString("127.0.0.1:5000")
	if a != b {
		t.Errorf("HashString not deterministic: %d != %d", a, b)
	}
	if uint64(a) >= s.Modulus() {
		t.Errorf("HashString produced out-of-range id %d", a)
	}
}

func TestNewSpaceRejectsBadInput(t *testing.T) {
	if _, err := NewSpace(0, 3); err == nil {
		t.Error("expected error for bits=0")
	}
	if _, err := NewSpace(8, 0); err == nil {
		t.Error("expected error for succListSize=0")
	}
}
