package config

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"ipsift/internal/domain"
)

//go:embed excluded_ranges.yaml
var excludedRangesYAML []byte

type rangeDocument struct {
	ExcludedRanges []string `yaml:"excluded_ranges"`
}

var defaultRanges = sync.OnceValues(func() (domain.RangeList, error) {
	return ParseRanges(excludedRangesYAML)
})

// DefaultExcludedRanges returns the embedded excluded-range list, decoded
// once per process.
func DefaultExcludedRanges() (domain.RangeList, error) {
	return defaultRanges()
}

// ParseRanges decodes a YAML range document. Every entry must parse; a
// single bad entry rejects the whole document.
func ParseRanges(data []byte) (domain.RangeList, error) {
	var doc rangeDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.RangeList{}, fmt.Errorf("decode range document: %w", err)
	}

	ranges := make([]domain.NetworkRange, 0, len(doc.ExcludedRanges))
	for i, raw := range doc.ExcludedRanges {
		r, err := domain.ParseNetworkRange(raw)
		if err != nil {
			return domain.RangeList{}, fmt.Errorf("excluded_ranges[%d]: %w", i, err)
		}
		ranges = append(ranges, r)
	}

	return domain.NewRangeList(ranges...), nil
}
