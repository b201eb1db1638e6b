package geolite

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"

	"ipsift/internal/domain"
)

type fakeLookup map[string]string

func (f fakeLookup) Country(ip net.IP) (*geoip2.Country, error) {
	code, ok := f[ip.String()]
	if !ok {
		return nil, errors.New("not found")
	}
	record := &geoip2.Country{}
	record.Country.IsoCode = code
	return record, nil
}

func TestSummarize(t *testing.T) {
	lookup := fakeLookup{
		"1.1.1.1": "AU",
		"8.8.8.8": "US",
		"8.8.4.4": "US",
		"9.9.9.9": "CH",
		"5.5.5.5": "",
	}
	addrs := []domain.Address{"1.1.1.1", "8.8.8.8", "8.8.4.4", "9.9.9.9", "5.5.5.5", "203.0.113.9", "not-an-ip"}

	got := Summarize(lookup, addrs, 0)
	assert.Equal(t, domain.CountryCounts{
		{Country: UnknownCountry, Count: 3},
		{Country: "US", Count: 2},
		{Country: "AU", Count: 1},
		{Country: "CH", Count: 1},
	}, got)

	top := Summarize(lookup, addrs, 2)
	assert.Equal(t, domain.CountryCounts{
		{Country: UnknownCountry, Count: 3},
		{Country: "US", Count: 2},
	}, top)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Empty(t, Summarize(fakeLookup{}, nil, 5))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open("/nonexistent/GeoLite2-Country.mmdb")
	assert.Error(t, err)
}
