package domain

import "fmt"

// Peer is the value-type descriptor of a ring participant: its network
// address, transport port, and ring identifier. Peers are passed and
// stored by value everywhere in this codebase. The ring is cyclic across
// nodes, but within one node a successor or predecessor is data, never an
// owning reference to another node's goroutines.
type Peer struct {
	IP   string
	Port int
	ID   ID
}

// Addr renders the peer's "ip:port" dial string.
func (p Peer) Addr() string {
	return fmt.Sprintf("%s:%d", p.IP, p.Port)
}

// Equal compares peers by identifier, which is sufficient given a sane
// hash: two distinct addresses colliding on id would break the ring
// invariant regardless of how Equal is defined.
func (p Peer) Equal(o Peer) bool {
	return p.ID == o.ID
}

// IsZero reports whether p is the unset peer value.
func (p Peer) IsZero() bool {
	return p.IP == "" && p.Port == 0
}
