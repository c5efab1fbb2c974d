package asn

import (
	"fmt"
)

// OverlapPolicy decides how Build treats input ranges which cover the same
// addresses
type OverlapPolicy int

const (
	// KeepFirst lets the first listed range own every address it covers.
	// Later ranges keep only the addresses nobody else claimed.
	KeepFirst OverlapPolicy = iota
	// Reject fails the build on any overlap
	Reject
)

// ParseOverlapPolicy maps the config names "first" and "reject" onto an
// OverlapPolicy
func ParseOverlapPolicy(name string) (OverlapPolicy, error) {
	switch name {
	case "", "first":
		return KeepFirst, nil
	case "reject":
		return Reject, nil
	}
	return KeepFirst, fmt.Errorf("unknown overlap policy %q", name)
}

type (
	// Row is a single unvalidated line of the ASN range file
	Row struct {
		Line int
		Low  uint32
		High uint32
		Tag  string
		Name string
	}

	// Range is one contiguous block of IPv4 space owned by an autonomous system
	Range struct {
		Low    uint32
		High   uint32
		Number uint32
		Name   string
	}

	// Lookuper resolves an IPv4 address (as an integer) to its owning AS
	Lookuper interface {
		Lookup(ip uint32) (Range, bool)
	}
)

// Contains reports whether ip falls within [Low, High]
func (r Range) Contains(ip uint32) bool {
	return r.Low <= ip && ip <= r.High
}

// MalformedRangeError is returned when a row of the range file cannot be
// turned into a Range
type MalformedRangeError struct {
	Line   int
	Reason string
}

func (e *MalformedRangeError) Error() string {
	return fmt.Sprintf("malformed ASN range on line %d: %s", e.Line, e.Reason)
}

// OverlapError is returned by Build under the Reject policy
type OverlapError struct {
	First  Row
	Second Row
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf(
		"ASN range %d-%d (line %d) overlaps %d-%d (line %d)",
		e.Second.Low, e.Second.High, e.Second.Line,
		e.First.Low, e.First.High, e.First.Line,
	)
}
