package collector

import (
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipsift/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "1.2.3.4\n8.8.8.8\n1.2.3.4\n")
	b := writeFile(t, dir, "b.txt", "104.16.0.1\n")

	set, stats := Collect([]string{a, b})
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []domain.Address{"1.2.3.4", "104.16.0.1", "8.8.8.8"}, set.Sorted())
	assert.Equal(t, Stats{FilesRead: 2, Lines: 4, Duplicates: 1}, stats)
}

func TestCollectLineHandling(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []domain.Address
		blank int
	}{
		{
			name:  "CRLF endings",
			input: "1.1.1.1\r\n2.2.2.2\r\n",
			want:  []domain.Address{"1.1.1.1", "2.2.2.2"},
		},
		{
			name:  "mixed endings and no final newline",
			input: "1.1.1.1\n2.2.2.2\r\n3.3.3.3",
			want:  []domain.Address{"1.1.1.1", "2.2.2.2", "3.3.3.3"},
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  1.1.1.1\t\n\t2.2.2.2  \n",
			want:  []domain.Address{"1.1.1.1", "2.2.2.2"},
		},
		{
			name:  "blank and whitespace-only lines dropped",
			input: "\n   \n\t\r\n1.1.1.1\n\n",
			want:  []domain.Address{"1.1.1.1"},
			blank: 4,
		},
		{
			name:  "malformed lines are not validated here",
			input: "not-an-ip\n1.2.3.999\n",
			want:  []domain.Address{"1.2.3.999", "not-an-ip"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []domain.Address{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, stats := CollectReaders(map[string]io.Reader{"list": strings.NewReader(tt.input)})
			assert.Equal(t, tt.want, set.Sorted())
			assert.Equal(t, tt.blank, stats.Blank)
		})
	}
}

func TestCollectSkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "1.2.3.4\n")
	missing := filepath.Join(dir, "missing.txt")

	set, stats := Collect([]string{missing, good})
	assert.Equal(t, []domain.Address{"1.2.3.4"}, set.Sorted())
	assert.Equal(t, 1, stats.FilesRead)
	assert.Equal(t, 1, stats.FilesSkipped)
}

type failingReader struct{ data io.Reader }

func (f failingReader) Read(p []byte) (int, error) {
	n, err := f.data.Read(p)
	if err == io.EOF {
		return n, errors.New("disk on fire")
	}
	return n, err
}

func TestCollectReadErrorDropsWholeBlob(t *testing.T) {
	set, stats := CollectReaders(map[string]io.Reader{
		"a-broken": failingReader{strings.NewReader("9.9.9.9\n")},
		"b-good":   strings.NewReader("1.1.1.1\n"),
	})
	assert.Equal(t, []domain.Address{"1.1.1.1"}, set.Sorted())
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, 1, stats.Lines)
}

func TestCollectDedupProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	pool := []string{"1.1.1.1", "2.2.2.2", "3.3.3.3", "4.4.4.4", " 1.1.1.1 ", "", "  ", "5.5.5.5\r"}

	for round := 0; round < 25; round++ {
		blobs := map[string]io.Reader{}
		distinct := map[string]struct{}{}
		for f := 0; f < 1+rng.IntN(4); f++ {
			var sb strings.Builder
			for l := 0; l < rng.IntN(30); l++ {
				line := pool[rng.IntN(len(pool))]
				sb.WriteString(line + "\n")
				if trimmed := strings.TrimSpace(line); trimmed != "" {
					distinct[trimmed] = struct{}{}
				}
			}
			blobs[string(rune('a'+f))] = strings.NewReader(sb.String())
		}

		set, _ := CollectReaders(blobs)
		assert.Equal(t, len(distinct), set.Len())
	}
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "")
	writeFile(t, dir, "nested/deeper/a.txt", "")
	writeFile(t, dir, "README.md", "")
	writeFile(t, dir, "nested/c.csv", "")

	files, err := ListFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "nested/deeper/a.txt"),
	}, files)

	files, err = ListFiles(dir, "*.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "nested/c.csv")}, files)
}

func TestListFilesErrors(t *testing.T) {
	_, err := ListFiles(filepath.Join(t.TempDir(), "nope"), "")
	assert.Error(t, err)

	_, err = ListFiles(t.TempDir(), "[")
	assert.Error(t, err)
}
