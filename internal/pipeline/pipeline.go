// Package pipeline runs one fetch, filter and publish pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"ipsift/internal/archive"
	"ipsift/internal/cidrfilter"
	"ipsift/internal/collector"
	"ipsift/internal/domain"
	"ipsift/internal/geolite"
	"ipsift/internal/publisher"
	"ipsift/internal/shuffle"
)

var (
	ErrTransport  = errors.New("transport failure")
	ErrLocalWrite = errors.New("local write failure")
	ErrPublish    = errors.New("publish failure")
)

type Fetcher interface {
	Fetch(ctx context.Context, url, destDir string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, seq []domain.Address, now time.Time) (publisher.Result, error)
}

// Pipeline wires the stages of a run. Publisher may be nil for a dry run;
// Countries may be nil to skip the country summary.
type Pipeline struct {
	SourceURL   string
	OutputPath  string
	ListPattern string
	Ranges      domain.RangeList
	// WorkDir is the parent of the per-run scratch directory. Empty means
	// the system temp dir.
	WorkDir string

	Fetcher     Fetcher
	Publisher   Publisher
	Shuffle     shuffle.Source
	Countries   geolite.CountryLookup
	CountryTopN int
	Now         func() time.Time
}

// Report summarizes a run, including a failed one up to the failing stage.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time

	Extracted int
	Files     collector.Stats
	Filter    cidrfilter.Stats
	Collected int
	Published int

	Countries domain.CountryCounts
	// Publish is nil when the remote write was skipped.
	Publish *publisher.Result
}

// Run executes the stages in order. The first fatal error stops the run and
// is wrapped in ErrTransport, ErrLocalWrite or ErrPublish.
func (p *Pipeline) Run(ctx context.Context) (report Report, err error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	report.StartedAt = now()
	defer func() { report.FinishedAt = now() }()

	scratch, err := os.MkdirTemp(p.WorkDir, "ipsift-*")
	if err != nil {
		return report, fmt.Errorf("%w: create work dir: %w", ErrTransport, err)
	}
	// The work dir is only cleaned up after a successful run; on failure the
	// downloaded and extracted files stay for inspection.
	defer func() {
		if err != nil {
			log.Warn("Run failed, keeping work dir", "path", scratch)
			return
		}
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			log.Warn("Failed to remove work dir", "path", scratch, "error", rmErr)
		}
	}()

	archivePath, err := p.Fetcher.Fetch(ctx, p.SourceURL, scratch)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	listDir := filepath.Join(scratch, "lists")
	report.Extracted, err = archive.Extract(ctx, archivePath, listDir)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	files, err := collector.ListFiles(listDir, p.ListPattern)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if len(files) == 0 {
		log.Warn("Archive contained no address lists", "pattern", p.ListPattern, "extracted", report.Extracted)
	}

	set, fileStats := collector.Collect(files)
	report.Files = fileStats
	report.Collected = set.Len()
	log.Info("Addresses collected", "files", fileStats.FilesRead, "skipped", fileStats.FilesSkipped, "unique", report.Collected)

	filtered, filterStats := cidrfilter.FilterSet(set, p.Ranges)
	report.Filter = filterStats
	log.Info("Addresses filtered", "kept", filterStats.Kept, "excluded", filterStats.Excluded, "unverifiable", filterStats.Unverifiable)

	src := p.Shuffle
	if src == nil {
		src = shuffle.NewSource()
	}
	shuffle.Shuffle(filtered, src)
	report.Published = len(filtered)

	stamp := now()
	if err := publisher.WriteLocal(p.OutputPath, domain.NewArtifact(filtered, stamp)); err != nil {
		return report, fmt.Errorf("%w: %s: %w", ErrLocalWrite, p.OutputPath, err)
	}
	log.Info("Wrote address list", "path", p.OutputPath, "count", report.Published)

	if p.Countries != nil {
		report.Countries = geolite.Summarize(p.Countries, filtered, p.CountryTopN)
		for _, c := range report.Countries {
			log.Debug("Country share", "country", c.Country, "count", c.Count)
		}
	}

	if p.Publisher == nil {
		log.Info("Dry run, skipping remote publish")
		return report, nil
	}

	res, err := p.Publisher.Publish(ctx, filtered, stamp)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	report.Publish = &res
	return report, nil
}
