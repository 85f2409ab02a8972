// Package cmd defines the CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bcelary/google-takeout-downloader/auth"
	"github.com/bcelary/google-takeout-downloader/browser"
	"github.com/bcelary/google-takeout-downloader/cli/config"
	"github.com/bcelary/google-takeout-downloader/cli/render"
	"github.com/bcelary/google-takeout-downloader/console"
	"github.com/bcelary/google-takeout-downloader/iox"
	"github.com/bcelary/google-takeout-downloader/journal"
	"github.com/bcelary/google-takeout-downloader/log"
	"github.com/bcelary/google-takeout-downloader/metrics"
	"github.com/bcelary/google-takeout-downloader/mirror"
	"github.com/bcelary/google-takeout-downloader/runtime"
	"github.com/bcelary/google-takeout-downloader/types"
)

// Exit codes.
const (
	exitSuccess = 0
	exitFatal   = 1
	exitLaunch  = 2
)

// DownloadCommand returns the download command, the only command that
// drives the browser.
func DownloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a Takeout archive, part by part",
		ArgsUsage: "<archive-url>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to YAML config file",
			},
			&cli.StringFlag{
				Name:  "download-dir",
				Usage: "Destination directory for downloaded parts",
			},
			&cli.StringFlag{
				Name:  "profile-dir",
				Usage: "Browser profile directory (session persists here)",
			},
			&cli.StringFlag{
				Name:  "executable-path",
				Usage: "Path to a system browser executable",
			},
			&cli.IntFlag{
				Name:  "start-part",
				Usage: "Part number to start downloading from",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "skip-downloaded",
				Usage: "Skip parts already marked as downloaded",
			},
			&cli.BoolFlag{
				Name:  "prompt-password",
				Usage: "Prompt for the Google password upfront instead of when needed",
			},
			&cli.IntFlag{
				Name:  "max-attempts",
				Usage: "Max attempts per part before aborting (0 = unbounded)",
			},
			&cli.DurationFlag{
				Name:  "retry-backoff",
				Usage: "Wait between attempts for a failing part",
			},
			&cli.StringFlag{
				Name:  "mirror-path",
				Usage: "S3 mirror destination as bucket or bucket/prefix",
			},
			&cli.StringFlag{
				Name:  "mirror-region",
				Usage: "AWS region for the S3 mirror",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format: text or json",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the session report",
			},
		},
		Action: downloadAction,
	}
}

func downloadAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one archive URL argument is required", exitLaunch)
	}

	format, err := render.ParseFormat(c.String("format"))
	if err != nil {
		return cli.Exit(err.Error(), exitLaunch)
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitLaunch)
	}

	// URL validation happens before any browser action.
	archiveURL, err := config.PrepareArchiveURL(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}
	if err := config.ValidateExecutable(cfg.ExecutablePath); err != nil {
		return cli.Exit(err.Error(), exitLaunch)
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return cli.Exit(fmt.Sprintf("creating download dir: %v", err), exitLaunch)
	}

	meta := &types.SessionMeta{
		SessionID:      time.Now().UTC().Format("20060102T150405Z"),
		StartPart:      cfg.StartPart,
		SkipDownloaded: cfg.SkipDownloaded,
	}
	logger := log.NewLogger(meta)
	collector := metrics.NewCollector(meta.SessionID)

	// Credential: env seed, then optional upfront prompt. The recovery
	// machine only ever reads it.
	credential := auth.NewSessionCredential()
	credential.Seed(os.Getenv("GOOGLE_PASS"))
	if c.Bool("prompt-password") {
		if err := credential.PromptOnce(); err != nil {
			return cli.Exit(err.Error(), exitLaunch)
		}
	}

	var mirr runtime.Mirror
	if path := cfg.Mirror.Path; path != "" {
		bucket, prefix := mirror.ParsePath(path)
		m, err := mirror.New(context.Background(), mirror.Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Mirror.Region,
			Endpoint:     cfg.Mirror.Endpoint,
			UsePathStyle: cfg.Mirror.UsePathStyle,
		})
		if err != nil {
			return cli.Exit(fmt.Sprintf("configuring mirror: %v", err), exitLaunch)
		}
		mirr = m
	}

	// Cancellation must skip retries and still release the session.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted. Finishing up...")
		cancel()
	}()

	session, err := browser.Launch(browser.LaunchConfig{
		ProfileDir:     cfg.ProfileDir,
		ExecutablePath: cfg.ExecutablePath,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("launching browser: %v", err), exitLaunch)
	}
	defer iox.DiscardClose(session)

	page := session.Page()
	machine := auth.NewMachine(
		page,
		console.NewProbe(),
		auth.NewTerminalPrompter(),
		credential,
		auth.MachineConfig{KeystrokeDelay: cfg.KeystrokeDelay.Duration},
		logger,
		collector,
	)

	orchestrator, err := runtime.NewOrchestrator(
		runtime.Config{
			ArchiveURL:          archiveURL,
			StartPart:           cfg.StartPart,
			SkipDownloaded:      cfg.SkipDownloaded,
			DownloadDir:         cfg.DownloadDir,
			ConfirmDelay:        cfg.ConfirmDelay.Duration,
			PostClickProbeDelay: cfg.PostClickProbeDelay.Duration,
			DownloadTimeout:     cfg.DownloadTimeout.Duration,
			Retry: runtime.RetryPolicy{
				MaxAttempts: cfg.Retry.MaxAttempts,
				Backoff:     cfg.Retry.Backoff.Duration,
			},
		},
		page,
		machine,
		runtime.NewPersister(logger),
		journal.Open(cfg.DownloadDir),
		mirr,
		collector,
		logger,
	)
	if err != nil {
		return cli.Exit(err.Error(), exitLaunch)
	}

	startTime := time.Now()
	runErr := orchestrator.Run(ctx)

	outcome, message := classifyOutcome(runErr)
	report := runtime.BuildReport(meta, collector.Snapshot(), outcome, message,
		time.Since(startTime), cfg.DownloadDir)

	if !c.Bool("quiet") {
		renderer := render.NewRenderer(format, os.Stdout)
		if err := renderer.RenderReport(report); err != nil {
			logger.Warn("report rendering failed", map[string]any{"error": err.Error()})
		}
	}

	if outcome == runtime.OutcomeSuccess {
		return cli.Exit("", exitSuccess)
	}
	return cli.Exit(message, exitFatal)
}

// classifyOutcome maps the orchestrator's terminal error to an outcome.
func classifyOutcome(err error) (runtime.Outcome, string) {
	switch {
	case err == nil:
		return runtime.OutcomeSuccess, ""
	case errors.Is(err, context.Canceled):
		return runtime.OutcomeCanceled, "interrupted by operator"
	default:
		return runtime.OutcomeFatal, err.Error()
	}
}

// resolveConfig merges defaults, the optional config file, and flags.
// Flags always win.
func resolveConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if c.IsSet("download-dir") {
		cfg.DownloadDir = c.String("download-dir")
	}
	if c.IsSet("profile-dir") {
		cfg.ProfileDir = c.String("profile-dir")
	}
	if c.IsSet("executable-path") {
		cfg.ExecutablePath = c.String("executable-path")
	}
	if c.IsSet("start-part") {
		cfg.StartPart = c.Int("start-part")
	}
	if c.IsSet("skip-downloaded") {
		cfg.SkipDownloaded = c.Bool("skip-downloaded")
	}
	if c.IsSet("max-attempts") {
		cfg.Retry.MaxAttempts = c.Int("max-attempts")
	}
	if c.IsSet("retry-backoff") {
		cfg.Retry.Backoff = config.Duration{Duration: c.Duration("retry-backoff")}
	}
	if c.IsSet("mirror-path") {
		cfg.Mirror.Path = c.String("mirror-path")
	}
	if c.IsSet("mirror-region") {
		cfg.Mirror.Region = c.String("mirror-region")
	}

	if cfg.StartPart < 1 {
		return nil, fmt.Errorf("start part must be positive, got %d", cfg.StartPart)
	}
	return &cfg, nil
}
