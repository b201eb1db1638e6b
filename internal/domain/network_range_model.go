package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NetworkRange is a base address plus prefix length denoting a contiguous
// IPv4 block.
type NetworkRange struct {
	Base   Address
	Prefix uint8
}

// ParseNetworkRange parses "a.b.c.d/n". A bare address is treated as /32.
func ParseNetworkRange(raw string) (NetworkRange, error) {
	raw = strings.TrimSpace(raw)
	base, bits, found := strings.Cut(raw, "/")
	prefix := uint64(32)
	if found {
		var err error
		prefix, err = strconv.ParseUint(bits, 10, 8)
		if err != nil || prefix > 32 {
			return NetworkRange{}, fmt.Errorf("invalid prefix length in %q", raw)
		}
	}

	r := NetworkRange{Base: Address(base), Prefix: uint8(prefix)}
	if _, err := ParseUint32(r.Base); err != nil {
		return NetworkRange{}, fmt.Errorf("invalid range %q: %w", raw, err)
	}
	return r, nil
}

// MustParseNetworkRange is like ParseNetworkRange but panics on error.
func MustParseNetworkRange(raw string) NetworkRange {
	r, err := ParseNetworkRange(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// Mask returns a value with the top Prefix bits set. A zero prefix yields an
// all-zero mask.
func (r NetworkRange) Mask() uint32 {
	switch {
	case r.Prefix == 0:
		return 0
	case r.Prefix >= 32:
		return ^uint32(0)
	default:
		return ^uint32(0) << (32 - uint32(r.Prefix))
	}
}

// Contains reports whether addr falls inside r. The error is non-nil when
// either addr or the range base cannot be converted.
func (r NetworkRange) Contains(addr Address) (bool, error) {
	a, err := ParseUint32(addr)
	if err != nil {
		return false, err
	}
	b, err := ParseUint32(r.Base)
	if err != nil {
		return false, fmt.Errorf("range base: %w", err)
	}
	mask := r.Mask()
	return a&mask == b&mask, nil
}

func (r NetworkRange) String() string {
	return string(r.Base) + "/" + strconv.Itoa(int(r.Prefix))
}

// RangeList is an immutable ordered list of ranges. The zero value is empty.
type RangeList struct {
	ranges []NetworkRange
}

// NewRangeList copies ranges into a new list.
func NewRangeList(ranges ...NetworkRange) RangeList {
	cp := make([]NetworkRange, len(ranges))
	copy(cp, ranges)
	return RangeList{ranges: cp}
}

func (l RangeList) Len() int { return len(l.ranges) }

func (l RangeList) At(i int) NetworkRange { return l.ranges[i] }

// All returns a copy of the ranges in list order.
func (l RangeList) All() []NetworkRange {
	cp := make([]NetworkRange, len(l.ranges))
	copy(cp, l.ranges)
	return cp
}
