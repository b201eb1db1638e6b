package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddressSet(t *testing.T) {
	s := NewAddressSet()
	assert.Equal(t, 0, s.Len())

	assert.True(t, s.Add("8.8.8.8"))
	assert.True(t, s.Add("1.2.3.4"))
	assert.False(t, s.Add("8.8.8.8"))

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("1.2.3.4"))
	assert.False(t, s.Has("1.2.3.5"))
	assert.Equal(t, []Address{"1.2.3.4", "8.8.8.8"}, s.Sorted())
}

func TestNewArtifact(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	a := NewArtifact([]Address{"1.2.3.4", "8.8.8.8"}, now)
	assert.Equal(t, "1.2.3.4\n8.8.8.8\n", string(a.Content))
	assert.Equal(t, 2, a.Count)
	assert.Equal(t, now, a.GeneratedAt)

	empty := NewArtifact(nil, now)
	assert.Empty(t, empty.Content)
	assert.Equal(t, 0, empty.Count)
}

func TestCountryCountsRoundTrip(t *testing.T) {
	in := CountryCounts{{Country: "US", Count: 3}, {Country: "??", Count: 1}}
	v, err := in.Value()
	assert.NoError(t, err)

	var out CountryCounts
	assert.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	assert.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
	assert.Error(t, out.Scan(42))
}
