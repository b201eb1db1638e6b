package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"ipsift/internal/app/version"
	"ipsift/internal/config"
)

type options struct {
	overrides config.Overrides
	envFile   string
	version   bool
}

func parseFlags(args []string) (options, error) {
	var opts options

	flags := pflag.NewFlagSet("ipsift", pflag.ContinueOnError)
	flags.StringVar(&opts.overrides.SourceURL, "source-url", "", "Archive URL (overrides SOURCE_URL)")
	flags.StringVar(&opts.overrides.OutputPath, "output", "", "Local output file (overrides OUTPUT_PATH)")
	flags.StringVar(&opts.overrides.PublishPath, "publish-path", "", "File path inside the repository (overrides PUBLISH_PATH)")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	flags.BoolVar(&opts.overrides.DryRun, "dry-run", false, "Write the local file and skip the remote publish")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	flags.BoolVar(&opts.version, "version", false, "Print the build version and exit")

	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if flags.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}
	return opts, nil
}

// Run parses args, loads configuration and performs one publish run.
func Run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintln(os.Stdout, version.Get())
		return nil
	}

	loadEnvFile(opts.envFile)

	cfg, err := config.Load(opts.overrides)
	if err != nil {
		return err
	}
	if err := configureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	log.Info("Starting ipsift", "version", version.Get().BuildVersion, "dry_run", cfg.DryRun)

	p, closePipeline, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer closePipeline()

	if cfg.DryRun {
		_, err := p.Run(ctx)
		return err
	}

	return withPublishLock(ctx, cfg, func(ctx context.Context) error {
		return publishRun(ctx, cfg, p)
	})
}

func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.", "path", path)
	}
}

func configureLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%w: LOG_LEVEL: %w", config.ErrInvalidConfig, err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(formatterFor(format))
	log.SetReportTimestamp(true)
	return nil
}

func formatterFor(format string) log.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
