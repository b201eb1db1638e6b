// Package cidrfilter removes addresses that fall inside excluded IPv4 ranges.
package cidrfilter

import (
	"github.com/charmbracelet/log"

	"ipsift/internal/domain"
)

// Stats summarizes one filter pass.
type Stats struct {
	Input        int
	Kept         int
	Excluded     int            // matched a range
	Unverifiable int            // excluded because membership could not be evaluated
	ByRange      map[string]int // matches per range, keyed by CIDR
}

// Filter returns the addresses in addrs that match none of ranges, in input
// order. Ranges are tried in list order and the first match wins. If the
// membership test fails for any (address, range) pair the address is dropped
// without checking the remaining ranges.
func Filter(addrs []domain.Address, ranges domain.RangeList) ([]domain.Address, Stats) {
	stats := Stats{
		Input:   len(addrs),
		ByRange: make(map[string]int, ranges.Len()),
	}
	kept := make([]domain.Address, 0, len(addrs))

	for _, addr := range addrs {
		switch r, matched, err := firstMatch(addr, ranges); {
		case err != nil:
			stats.Unverifiable++
			log.Debug("Address excluded, membership not verifiable", "address", addr, "range", r, "error", err)
		case matched:
			stats.Excluded++
			stats.ByRange[r.String()]++
		default:
			kept = append(kept, addr)
		}
	}

	stats.Kept = len(kept)
	return kept, stats
}

// FilterSet filters the members of set in sorted order.
func FilterSet(set *domain.AddressSet, ranges domain.RangeList) ([]domain.Address, Stats) {
	return Filter(set.Sorted(), ranges)
}

func firstMatch(addr domain.Address, ranges domain.RangeList) (domain.NetworkRange, bool, error) {
	for i := 0; i < ranges.Len(); i++ {
		r := ranges.At(i)
		ok, err := r.Contains(addr)
		if err != nil {
			return r, false, err
		}
		if ok {
			return r, true, nil
		}
	}
	return domain.NetworkRange{}, false, nil
}
