// Package collector folds line-oriented address-list files into a
// deduplicated address set.
package collector

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"ipsift/internal/domain"
)

// DefaultPattern matches address-list files by base name.
const DefaultPattern = "*.txt"

const maxLineBytes = 1024 * 1024

// Stats summarizes one collection pass.
type Stats struct {
	FilesRead    int
	FilesSkipped int
	Lines        int
	Blank        int
	Duplicates   int
}

// ListFiles walks root and returns the regular files whose base name matches
// pattern, sorted by path.
func ListFiles(root, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid list pattern %q: %w", pattern, err)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Collect reads every file in paths into one set. Files that cannot be read
// are logged and skipped.
func Collect(paths []string) (*domain.AddressSet, Stats) {
	set := domain.NewAddressSet()
	var stats Stats

	for _, path := range paths {
		if err := collectFile(set, &stats, path); err != nil {
			stats.FilesSkipped++
			log.Warn("Skipping address list", "path", path, "error", err)
			continue
		}
		stats.FilesRead++
	}

	return set, stats
}

// CollectReaders is Collect over named in-memory blobs. Names are visited in
// sorted order.
func CollectReaders(blobs map[string]io.Reader) (*domain.AddressSet, Stats) {
	names := make([]string, 0, len(blobs))
	for name := range blobs {
		names = append(names, name)
	}
	sort.Strings(names)

	set := domain.NewAddressSet()
	var stats Stats
	for _, name := range names {
		if err := fold(set, &stats, blobs[name]); err != nil {
			stats.FilesSkipped++
			log.Warn("Skipping address list", "name", name, "error", err)
			continue
		}
		stats.FilesRead++
	}
	return set, stats
}

func collectFile(set *domain.AddressSet, stats *Stats, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return fold(set, stats, f)
}

// fold scans r fully before touching set, so a read error leaves set and
// stats unchanged.
func fold(set *domain.AddressSet, stats *Stats, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		lines []domain.Address
		local Stats
	)
	for scanner.Scan() {
		local.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			local.Blank++
			continue
		}
		lines = append(lines, domain.Address(line))
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	for _, addr := range lines {
		if !set.Add(addr) {
			local.Duplicates++
		}
	}
	stats.Lines += local.Lines
	stats.Blank += local.Blank
	stats.Duplicates += local.Duplicates
	return nil
}
