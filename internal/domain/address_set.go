package domain

import "sort"

// AddressSet holds each distinct Address once. Add and Has are O(1)
// amortized map operations.
type AddressSet struct {
	m map[Address]struct{}
}

func NewAddressSet() *AddressSet {
	return &AddressSet{m: make(map[Address]struct{})}
}

// Add inserts addr and reports whether it was not already present.
func (s *AddressSet) Add(addr Address) bool {
	if _, found := s.m[addr]; found {
		return false
	}
	s.m[addr] = struct{}{}
	return true
}

func (s *AddressSet) Has(addr Address) bool {
	_, found := s.m[addr]
	return found
}

func (s *AddressSet) Len() int {
	return len(s.m)
}

// Sorted exports the members in lexical order.
func (s *AddressSet) Sorted() []Address {
	out := make([]Address, 0, len(s.m))
	for addr := range s.m {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
