// Package archive unpacks downloaded list archives into a working directory.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Format is an archive container detected from its leading bytes.
type Format int

const (
	FormatTar Format = iota
	FormatGzipTar
	FormatZip
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatGzipTar:
		return "tar.gz"
	default:
		return "tar"
	}
}

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

// ErrUnsafePath is returned for entries that would land outside destDir.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Detect classifies a header sniffed from the start of an archive.
func Detect(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, zipMagic):
		return FormatZip
	case bytes.HasPrefix(header, gzipMagic):
		return FormatGzipTar
	default:
		return FormatTar
	}
}

// Extract unpacks archivePath into destDir and returns the number of regular
// files written. Existing files with the same name are replaced. Symlinks
// and special entries are skipped.
func Extract(ctx context.Context, archivePath, destDir string) (int, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("create dir: %w", err)
	}

	br := bufio.NewReader(f)
	header, err := br.Peek(len(zipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read archive header: %w", err)
	}

	format := Detect(header)
	log.Debug("Extracting archive", "format", format, "path", archivePath)

	var n int
	switch format {
	case FormatZip:
		n, err = extractZip(ctx, f, destDir)
	case FormatGzipTar:
		gz, gzErr := gzip.NewReader(br)
		if gzErr != nil {
			return 0, fmt.Errorf("open gzip: %w", gzErr)
		}
		defer gz.Close()
		n, err = extractTar(ctx, tar.NewReader(gz), destDir)
	default:
		n, err = extractTar(ctx, tar.NewReader(br), destDir)
	}
	if err != nil {
		return n, fmt.Errorf("extract %s: %w", format, err)
	}
	return n, nil
}

func extractZip(ctx context.Context, f *os.File, destDir string) (int, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return 0, fmt.Errorf("open zip: %w", err)
	}

	var n int
	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		dest, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return n, err
		}

		mode := entry.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return n, fmt.Errorf("create dir: %w", err)
			}
		case mode.IsRegular():
			rc, err := entry.Open()
			if err != nil {
				return n, fmt.Errorf("open %s: %w", entry.Name, err)
			}
			err = writeToFile(dest, rc)
			rc.Close()
			if err != nil {
				return n, fmt.Errorf("%s: %w", entry.Name, err)
			}
			n++
		default:
			log.Debug("Skipping archive entry", "name", entry.Name, "mode", mode)
		}
	}
	return n, nil
}

func extractTar(ctx context.Context, tr *tar.Reader, destDir string) (int, error) {
	var n int
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("read tar: %w", err)
		}

		dest, err := safeJoin(destDir, header.Name)
		if err != nil {
			return n, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return n, fmt.Errorf("create dir: %w", err)
			}
		case tar.TypeReg:
			if err := writeToFile(dest, tr); err != nil {
				return n, fmt.Errorf("%s: %w", header.Name, err)
			}
			n++
		default:
			log.Debug("Skipping archive entry", "name", header.Name, "type", string(header.Typeflag))
		}
	}
}

func safeJoin(destDir, name string) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(destDir, rel), nil
}

func writeToFile(destPath string, data io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".extract-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()

	if _, err := io.Copy(tmpFile, data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("copy data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), destPath); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}

	return nil
}
