package geolite

import (
	"fmt"
	"net"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"

	"ipsift/internal/domain"
)

// UnknownCountry buckets addresses the database cannot place.
const UnknownCountry = "??"

// CountryLookup is satisfied by *geoip2.Reader.
type CountryLookup interface {
	Country(ip net.IP) (*geoip2.Country, error)
}

// Open loads a GeoLite2-Country database from disk.
func Open(path string) (*geoip2.Reader, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geolite database: %w", err)
	}
	if dbType := reader.Metadata().DatabaseType; dbType != "" && dbType != "GeoLite2-Country" && dbType != "GeoIP2-Country" {
		log.Warn("GeoLite database is not a country edition", "type", dbType)
	}
	return reader, nil
}

// Summarize counts the ISO country of each address and returns the topN
// largest buckets, ties broken by country code. topN <= 0 returns every
// bucket.
func Summarize(lookup CountryLookup, addrs []domain.Address, topN int) domain.CountryCounts {
	counts := make(map[string]int)
	for _, addr := range addrs {
		counts[countryOf(lookup, addr)]++
	}

	out := make(domain.CountryCounts, 0, len(counts))
	for country, n := range counts {
		out = append(out, domain.CountryCount{Country: country, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Country < out[j].Country
	})

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func countryOf(lookup CountryLookup, addr domain.Address) string {
	ip := net.ParseIP(string(addr))
	if ip == nil {
		return UnknownCountry
	}
	record, err := lookup.Country(ip)
	if err != nil || record == nil || record.Country.IsoCode == "" {
		return UnknownCountry
	}
	return record.Country.IsoCode
}
