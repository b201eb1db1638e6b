package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"ipsift/internal/domain"
	"ipsift/internal/support"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	defaultOutputPath   = "output/ips.txt"
	defaultPublishPath  = "ips.txt"
	defaultListPattern  = "*.txt"
	defaultAPIURL       = "https://api.github.com"
	defaultUserAgent    = "ipsift/1.0"
	defaultTimezone     = "UTC"
	defaultFetchMax     = 256 << 20
	defaultFetchTimeout = 5 * time.Minute
	defaultLockTTL      = 45 * time.Second
	defaultCountryTopN  = 10
)

// GitHub holds the remote store coordinate and credentials. Exactly one of
// Token or the App triple is expected.
type GitHub struct {
	APIURL         string `env:"GITHUB_API_URL" validate:"required,url"`
	Repository     string `env:"GITHUB_REPOSITORY" validate:"required,repository"`
	Branch         string `env:"PUBLISH_BRANCH"`
	Path           string `env:"PUBLISH_PATH" validate:"required"`
	Token          string `env:"GITHUB_TOKEN" validate:"required_without=AppID,excluded_with=AppID"`
	AppID          int64  `env:"GITHUB_APP_ID" validate:"required_without=Token"`
	PrivateKey     []byte `env:"GITHUB_APP_PRIVATE_KEY" validate:"required_with=AppID"`
	InstallationID int64  `env:"GITHUB_APP_INSTALLATION_ID" validate:"required_with=AppID"`
}

type Config struct {
	SourceURL    string        `env:"SOURCE_URL" validate:"required,http_url"`
	OutputPath   string        `env:"OUTPUT_PATH" validate:"required"`
	ListPattern  string        `env:"LIST_PATTERN" validate:"required,glob"`
	UserAgent    string        `env:"USER_AGENT" validate:"required"`
	FetchProxy   string        `env:"FETCH_PROXY" validate:"omitempty,url"`
	FetchMax     int64         `env:"FETCH_MAX_BYTES" validate:"gt=0"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" validate:"gt=0"`
	Timezone     string        `env:"PUBLISH_TIMEZONE" validate:"required,timezone"`
	DryRun       bool          `env:"DRY_RUN"`

	GitHub GitHub `env:"-" validate:"-"`

	RedisURL       string        `env:"REDIS_URL" validate:"omitempty,url"`
	LockTTL        time.Duration `env:"LOCK_TTL" validate:"gt=0"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	GeoLiteDB      string        `env:"GEOLITE_COUNTRY_DB" validate:"omitempty,file"`
	CountryTopN    int           `env:"COUNTRY_TOP_N" validate:"gte=0"`
	PushgatewayURL string        `env:"PUSHGATEWAY_URL" validate:"omitempty,http_url"`

	LogLevel  string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" validate:"oneof=text json logfmt"`

	Location       *time.Location   `env:"-" validate:"-"`
	ExcludedRanges domain.RangeList `env:"-" validate:"-"`
}

// Overrides carries command-line values. Empty strings and a false DryRun
// leave the environment value in place.
type Overrides struct {
	SourceURL   string
	OutputPath  string
	PublishPath string
	LogLevel    string
	DryRun      bool
}

// Load reads the process environment, applies overrides, validates the
// result and resolves derived values. Every failure wraps ErrInvalidConfig.
func Load(overrides Overrides) (Config, error) {
	cfg := Config{
		SourceURL:    support.GetEnv("SOURCE_URL", ""),
		OutputPath:   support.GetEnv("OUTPUT_PATH", defaultOutputPath),
		ListPattern:  support.GetEnv("LIST_PATTERN", defaultListPattern),
		UserAgent:    support.GetEnv("USER_AGENT", defaultUserAgent),
		FetchProxy:   support.GetEnv("FETCH_PROXY", ""),
		FetchMax:     support.GetEnvInt64("FETCH_MAX_BYTES", defaultFetchMax),
		FetchTimeout: support.GetEnvDuration("FETCH_TIMEOUT", defaultFetchTimeout),
		Timezone:     support.GetEnv("PUBLISH_TIMEZONE", defaultTimezone),
		DryRun:       support.GetEnvBool("DRY_RUN", false),

		GitHub: GitHub{
			APIURL:         support.GetEnv("GITHUB_API_URL", defaultAPIURL),
			Repository:     strings.TrimSpace(support.GetEnv("GITHUB_REPOSITORY", "")),
			Branch:         support.GetEnv("PUBLISH_BRANCH", ""),
			Path:           support.GetEnv("PUBLISH_PATH", defaultPublishPath),
			Token:          strings.TrimSpace(support.GetEnv("GITHUB_TOKEN", "")),
			AppID:          support.GetEnvInt64("GITHUB_APP_ID", 0),
			InstallationID: support.GetEnvInt64("GITHUB_APP_INSTALLATION_ID", 0),
		},

		RedisURL:       support.GetEnv("REDIS_URL", ""),
		LockTTL:        support.GetEnvDuration("LOCK_TTL", defaultLockTTL),
		DatabaseURL:    support.GetEnv("DATABASE_URL", ""),
		GeoLiteDB:      support.GetEnv("GEOLITE_COUNTRY_DB", ""),
		CountryTopN:    support.GetEnvInt("COUNTRY_TOP_N", defaultCountryTopN),
		PushgatewayURL: support.GetEnv("PUSHGATEWAY_URL", ""),

		LogLevel:  strings.ToLower(support.GetEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(support.GetEnv("LOG_FORMAT", "text")),
	}

	key, err := readPrivateKey()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.GitHub.PrivateKey = key

	cfg.apply(overrides)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("%w: PUBLISH_TIMEZONE: %w", ErrInvalidConfig, err)
	}

	cfg.ExcludedRanges, err = DefaultExcludedRanges()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

func (cfg *Config) apply(o Overrides) {
	if o.SourceURL != "" {
		cfg.SourceURL = o.SourceURL
	}
	if o.OutputPath != "" {
		cfg.OutputPath = o.OutputPath
	}
	if o.PublishPath != "" {
		cfg.GitHub.Path = o.PublishPath
	}
	if o.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(o.LogLevel)
	}
	if o.DryRun {
		cfg.DryRun = true
	}
}

// Validate checks field constraints. GitHub settings are only required when
// the run will publish.
func (cfg Config) Validate() error {
	var problems ValidationErrors
	problems = append(problems, structErrors(cfg)...)
	if !cfg.DryRun {
		problems = append(problems, structErrors(cfg.GitHub)...)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, problems)
	}
	return nil
}

// readPrivateKey prefers the inline PEM and falls back to the _FILE variant.
func readPrivateKey() ([]byte, error) {
	if inline := support.GetEnv("GITHUB_APP_PRIVATE_KEY", ""); inline != "" {
		return []byte(strings.ReplaceAll(inline, `\n`, "\n")), nil
	}
	path := support.GetEnv("GITHUB_APP_PRIVATE_KEY_FILE", "")
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("GITHUB_APP_PRIVATE_KEY_FILE: %w", err)
	}
	return data, nil
}
