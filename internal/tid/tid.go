// Package tid implements the transaction-identifier codec: parsing,
// rendering, and the domain-scoped ordering used by resume logic.
package tid

import (
	"fmt"
	"strconv"
	"strings"
)

// TID is a MariaDB-style GTID triple (domain, server, sequence).
type TID struct {
	Domain   uint32
	Server   uint32
	Sequence uint64
}

// Zero reports whether t is the zero-value TID, used to represent "no TID".
func (t TID) Zero() bool {
	return t == TID{}
}

// String renders t as "domain-server-sequence".
func (t TID) String() string {
	return fmt.Sprintf("%d-%d-%d", t.Domain, t.Server, t.Sequence)
}

// Parse splits s on '-' into exactly three numeric parts. Malformed input
// (wrong part count, non-numeric part, or negative value) returns an error.
func Parse(s string) (TID, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return TID{}, fmt.Errorf("malformed tid %q: want 3 dash-separated parts, got %d", s, len(parts))
	}

	domain, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return TID{}, fmt.Errorf("malformed tid %q: bad domain: %w", s, err)
	}
	server, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return TID{}, fmt.Errorf("malformed tid %q: bad server: %w", s, err)
	}
	seq, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return TID{}, fmt.Errorf("malformed tid %q: bad sequence: %w", s, err)
	}

	return TID{Domain: uint32(domain), Server: uint32(server), Sequence: seq}, nil
}

// Comparable reports whether a and b share a domain and are therefore
// orderable by sequence.
func Comparable(a, b TID) bool {
	return a.Domain == b.Domain
}

// IsStrictlyNewer reports whether candidates contains a TID sharing target's
// domain with a strictly greater sequence number. TIDs in a different domain
// are ignored; they are neither newer nor older than target.
func IsStrictlyNewer(target TID, candidates []TID) bool {
	for _, c := range candidates {
		if c.Domain == target.Domain && c.Sequence > target.Sequence {
			return true
		}
	}
	return false
}
