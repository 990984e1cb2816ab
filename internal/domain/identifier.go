package domain

import (
	"crypto/sha1"
	"fmt"
	"strconv"
)

// ID is a ring identifier, always held reduced modulo 2^Bits.
type ID uint64

// Space describes the parameters of the identifier ring shared by every
// node in the DHT: the bit width m and the size of each node's successor
// list (the replication/failover anchor set).
type Space struct {
	Bits         int
	SuccListSize int
	mod          uint64
}

// NewSpace validates and constructs an identifier space. Bits must fit in a
// machine word (at most 63, so 1<<Bits never overflows uint64) and
// succListSize must be positive.
func NewSpace(bits, succListSize int) (*Space, error) {
	if bits <= 0 || bits > 63 {
		return nil, fmt.Errorf("domain: bits must be in [1,63], got %d", bits)
	}
	if succListSize <= 0 {
		return nil, fmt.Errorf("domain: successor list size must be > 0, got %d", succListSize)
	}
	return &Space{
		Bits:         bits,
		SuccListSize: succListSize,
		mod:          uint64(1) << uint(bits),
	}, nil
}

// Modulus returns 2^Bits.
func (s *Space) Modulus() uint64 { return s.mod }

// HashString derives an identifier from an arbitrary byte string (typically
// "address:port") by SHA-1 hashing it and folding the digest down to the
// low Bits bits.
func (s *Space) HashString(str string) ID {
	sum := sha1.Sum([]byte(str))
	var v uint64
	for _, b := range sum[:8] {
		v = (v << 8) | uint64(b)
	}
	return ID(v % s.mod)
}

// FromUint64 reduces an arbitrary integer into the ring.
func (s *Space) FromUint64(v uint64) ID {
	return ID(v % s.mod)
}

// Add returns (id + delta) mod 2^Bits.
func (s *Space) Add(id ID, delta uint64) ID {
	return ID((uint64(id) + delta) % s.mod)
}

// Sub returns (id - delta) mod 2^Bits.
func (s *Space) Sub(id ID, delta uint64) ID {
	d := delta % s.mod
	return ID((uint64(id) + s.mod - d) % s.mod)
}

// FingerStart returns (id + 2^i) mod 2^Bits, the start of finger table slot i.
func (s *Space) FingerStart(id ID, i int) ID {
	return s.Add(id, uint64(1)<<uint(i))
}

// InRange reports whether x lies on the clockwise arc starting strictly
// after start and ending at end, inclusive of end when includeEnd is true
// and exclusive otherwise. This is the half-open circular interval
// predicate the routing table and ownership checks are built on: for
// start < end the arc is the ordinary range (start, end] or (start, end);
// for start >= end it wraps through zero.
func (s *Space) InRange(x, start, end ID, includeEnd bool) bool {
	xi, si, ei := uint64(x), uint64(start), uint64(end)
	if si < ei {
		if includeEnd {
			return xi > si && xi <= ei
		}
		return xi > si && xi < ei
	}
	// start >= end: arc wraps around zero.
	if includeEnd {
		return xi > si || xi <= ei
	}
	return xi > si || xi < ei
}

// ParseID parses a decimal identifier string, the inverse of ID.String,
// reducing it into the ring.
func (s *Space) ParseID(str string) (ID, error) {
	v, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("domain: invalid id %q: %w", str, err)
	}
	return s.FromUint64(v), nil
}

// String renders an identifier in decimal, matching the end-to-end
// scenarios in the routing table's debug log.
func (id ID) String() string {
	return fmt.Sprintf("%d", uint64(id))
}
