package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"ipsift/internal/config"
	"ipsift/internal/database"
	"ipsift/internal/domain"
	"ipsift/internal/fetcher"
	"ipsift/internal/geolite"
	"ipsift/internal/github"
	"ipsift/internal/metrics"
	"ipsift/internal/pipeline"
	"ipsift/internal/publisher"
	"ipsift/internal/support"
)

const metricsPushTimeout = 10 * time.Second

// buildPipeline assembles the stages from cfg. The returned func releases
// the optional GeoLite reader.
func buildPipeline(cfg config.Config) (*pipeline.Pipeline, func(), error) {
	f, err := fetcher.New(fetcher.Options{
		UserAgent: cfg.UserAgent,
		MaxBytes:  cfg.FetchMax,
		Timeout:   cfg.FetchTimeout,
		ProxyURL:  cfg.FetchProxy,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: FETCH_PROXY: %w", config.ErrInvalidConfig, err)
	}

	p := &pipeline.Pipeline{
		SourceURL:   cfg.SourceURL,
		OutputPath:  cfg.OutputPath,
		ListPattern: cfg.ListPattern,
		Ranges:      cfg.ExcludedRanges,
		Fetcher:     f,
		CountryTopN: cfg.CountryTopN,
	}

	if !cfg.DryRun {
		pub, err := newPublisher(cfg)
		if err != nil {
			return nil, nil, err
		}
		p.Publisher = pub
	}

	cleanup := func() {}
	if cfg.GeoLiteDB != "" {
		reader, err := geolite.Open(cfg.GeoLiteDB)
		if err != nil {
			log.Warn("Country summary disabled", "path", cfg.GeoLiteDB, "error", err)
		} else {
			p.Countries = reader
			cleanup = func() {
				if err := reader.Close(); err != nil {
					log.Warn("Failed to close GeoLite database", "error", err)
				}
			}
		}
	}

	return p, cleanup, nil
}

func newPublisher(cfg config.Config) (*publisher.Publisher, error) {
	repo, err := github.ParseRepository(cfg.GitHub.Repository)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	client, err := github.NewClient(github.Config{
		BaseURL:        cfg.GitHub.APIURL,
		Token:          cfg.GitHub.Token,
		AppID:          cfg.GitHub.AppID,
		PrivateKey:     cfg.GitHub.PrivateKey,
		InstallationID: cfg.GitHub.InstallationID,
		UserAgent:      cfg.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	return &publisher.Publisher{
		Store: publisher.GitHubStore{Client: client},
		Target: publisher.Target{
			Owner:  repo.Owner,
			Repo:   repo.Name,
			Path:   cfg.GitHub.Path,
			Branch: cfg.GitHub.Branch,
		},
		Location: cfg.Location,
	}, nil
}

// withPublishLock runs fn under the Redis publish lock when REDIS_URL is
// set, and directly otherwise.
func withPublishLock(ctx context.Context, cfg config.Config, fn func(context.Context) error) error {
	if cfg.RedisURL == "" {
		return fn(ctx)
	}

	client, err := support.GetRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("publish lock: %w", err)
	}
	defer func() {
		if err := support.CloseRedisClient(); err != nil {
			log.Warn("Failed to close Redis client", "error", err)
		}
	}()

	key := support.LockKey(cfg.GitHub.Repository, cfg.GitHub.Path)
	return support.WithLock(ctx, client, key, cfg.LockTTL, fn)
}

// publishRun executes the pipeline and reports it to the optional run
// history and metrics gateway. Only the pipeline outcome decides the result.
func publishRun(ctx context.Context, cfg config.Config, p *pipeline.Pipeline) error {
	history := openHistory(cfg)
	if history != nil {
		defer func() {
			if err := database.Close(history); err != nil {
				log.Warn("Failed to close run history", "error", err)
			}
		}()
		logPreviousRun(ctx, history, cfg)
	}

	run := metrics.NewRun(time.Now())

	report, err := p.Run(ctx)
	run.Observe(metrics.Counts{
		Collected:    report.Collected,
		Excluded:     report.Filter.Excluded,
		Unverifiable: report.Filter.Unverifiable,
		Published:    report.Published,
	})
	if err != nil {
		return err
	}
	run.Succeeded(report.FinishedAt)

	if report.Publish != nil {
		log.Info("Published address list",
			"target", cfg.GitHub.Repository+"/"+cfg.GitHub.Path,
			"created", report.Publish.Created,
			"count", report.Publish.Count,
			"commit", report.Publish.CommitSHA)
	}

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(ctx, metricsPushTimeout)
		defer cancel()
		if err := run.Push(pushCtx, cfg.PushgatewayURL, cfg.GitHub.Repository); err != nil {
			log.Warn("Failed to push metrics", "gateway", cfg.PushgatewayURL, "error", err)
		}
	}

	if history != nil {
		if err := database.RecordRun(ctx, history, newRunRecord(cfg, report)); err != nil {
			log.Warn("Failed to record run", "error", err)
		}
	}

	return nil
}

func openHistory(cfg config.Config) *gorm.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}
	db, err := database.SetupDB(database.WithDSN(cfg.DatabaseURL))
	if err != nil {
		log.Warn("Run history disabled", "error", err)
		return nil
	}
	return db
}

func logPreviousRun(ctx context.Context, db *gorm.DB, cfg config.Config) {
	last, err := database.LatestRun(ctx, db, cfg.GitHub.Repository, cfg.GitHub.Path)
	switch {
	case err != nil:
		log.Warn("Failed to read run history", "error", err)
	case last == nil:
		log.Info("No previous run recorded", "repository", cfg.GitHub.Repository, "path", cfg.GitHub.Path)
	default:
		log.Info("Previous run",
			"started_at", last.StartedAt.In(cfg.Location),
			"published", last.Published,
			"commit", last.CommitSHA)
	}
}

func newRunRecord(cfg config.Config, report pipeline.Report) *domain.PublishRun {
	run := &domain.PublishRun{
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
		SourceURL:    cfg.SourceURL,
		Repository:   cfg.GitHub.Repository,
		Path:         cfg.GitHub.Path,
		Branch:       cfg.GitHub.Branch,
		FilesRead:    report.Files.FilesRead,
		FilesSkipped: report.Files.FilesSkipped,
		Collected:    report.Collected,
		Excluded:     report.Filter.Excluded,
		Unverifiable: report.Filter.Unverifiable,
		Published:    report.Published,
		Countries:    report.Countries,
	}
	if res := report.Publish; res != nil {
		run.Created = res.Created
		run.PreviousToken = res.PreviousToken
		run.ContentSHA = res.ContentSHA
		run.CommitSHA = res.CommitSHA
	}
	return run
}
