// Package runtime orchestrates the sequential download loop: authenticate,
// refresh the catalog, trigger one native download at a time, persist and
// verify the result, and advance the cursor. All page interactions are
// strictly serialized on the calling goroutine; the underlying session has
// exactly one active page context.
package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bcelary/google-takeout-downloader/browser"
	"github.com/bcelary/google-takeout-downloader/console"
	"github.com/bcelary/google-takeout-downloader/log"
	"github.com/bcelary/google-takeout-downloader/metrics"
	"github.com/bcelary/google-takeout-downloader/types"
)

// Authenticator drives the page toward the archive-ready state.
// auth.Machine is the production implementation.
type Authenticator interface {
	EnsureReady(ctx context.Context) error
}

// Journal records each persisted part. Failures are warnings only.
type Journal interface {
	Record(part int, result types.DownloadResult) error
}

// Mirror uploads a persisted artifact to remote storage. Failures are
// warnings only.
type Mirror interface {
	Upload(ctx context.Context, localPath string) error
}

// RetryPolicy bounds per-part retry behavior. MaxAttempts of 0 preserves
// the operator-supervised unbounded loop; the process is meant to be
// long-running with a human nearby.
type RetryPolicy struct {
	// MaxAttempts is the number of failed attempts tolerated per part
	// before the run aborts. 0 means unbounded.
	MaxAttempts int
	// Backoff is the wait between attempts.
	Backoff time.Duration
}

// Config configures the download orchestrator.
type Config struct {
	// ArchiveURL is the validated console URL.
	ArchiveURL string
	// StartPart is the first part number to attempt (>= 1).
	StartPart int
	// SkipDownloaded skips parts the console marks as already downloaded.
	SkipDownloaded bool
	// DownloadDir is the destination directory for persisted parts.
	DownloadDir string
	// ConfirmDelay is the interruptible safety window before each
	// iteration acts. Not a retry delay: it exists so a human can abort.
	ConfirmDelay time.Duration
	// PostClickProbeDelay is the pause after clicking a download link
	// before re-running the recovery machine, since the click itself can
	// raise a fresh challenge.
	PostClickProbeDelay time.Duration
	// DownloadTimeout bounds the wait for the native download to start.
	DownloadTimeout time.Duration
	// Retry bounds per-part retries.
	Retry RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.StartPart == 0 {
		c.StartPart = 1
	}
	if c.ConfirmDelay == 0 {
		c.ConfirmDelay = 3 * time.Second
	}
	if c.PostClickProbeDelay == 0 {
		c.PostClickProbeDelay = 3 * time.Second
	}
	if c.DownloadTimeout == 0 {
		c.DownloadTimeout = 10 * time.Second
	}
	if c.Retry.Backoff == 0 {
		c.Retry.Backoff = 2 * time.Second
	}
	return c
}

// PartUnavailableError is the fatal condition of a cursor pointing at a
// part the non-empty catalog does not declare. Retrying cannot fix a
// catalog that structurally lacks the requested part.
type PartUnavailableError struct {
	Part      int
	Available []int
}

func (e *PartUnavailableError) Error() string {
	return fmt.Sprintf("part %d not found in catalog; available parts: %v", e.Part, e.Available)
}

// Orchestrator drives the end-to-end sequential download loop.
type Orchestrator struct {
	cfg       Config
	page      browser.Page
	auth      Authenticator
	persister *Persister
	journal   Journal
	mirror    Mirror
	collector *metrics.Collector
	logger    *log.Logger
	out       io.Writer

	// cursor is the next part number to attempt. Owned exclusively by the
	// orchestrator; monotonically non-decreasing for the whole session.
	cursor int
}

// NewOrchestrator creates an orchestrator. journal and mirror may be nil.
func NewOrchestrator(
	cfg Config,
	page browser.Page,
	authenticator Authenticator,
	persister *Persister,
	journal Journal,
	mirror Mirror,
	collector *metrics.Collector,
	logger *log.Logger,
) (*Orchestrator, error) {
	cfg = cfg.withDefaults()
	if cfg.StartPart < 1 {
		return nil, fmt.Errorf("start part must be positive, got %d", cfg.StartPart)
	}
	if cfg.ArchiveURL == "" {
		return nil, fmt.Errorf("archive URL is required")
	}
	return &Orchestrator{
		cfg:       cfg,
		page:      page,
		auth:      authenticator,
		persister: persister,
		journal:   journal,
		mirror:    mirror,
		collector: collector,
		logger:    logger,
		out:       os.Stdout,
	}, nil
}

// SetOutput redirects operator progress lines. Used by tests.
func (o *Orchestrator) SetOutput(w io.Writer) { o.out = w }

// Cursor returns the current cursor value.
func (o *Orchestrator) Cursor() int { return o.cursor }

// Run executes the download loop until the cursor passes the highest part
// number in the latest catalog, a fatal condition occurs, or the context
// is canceled. Parts are attempted in strictly ascending order starting at
// StartPart; the cursor only advances on confirmed success or explicit skip.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.cursor = o.cfg.StartPart
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintf(o.out, "\n=== Download part %d ===\n", o.cursor)

		// Safety window, not a retry delay: the operator gets a last
		// chance to abort before the iteration acts.
		fmt.Fprintf(o.out, "Starting download #%d. Waiting %s (press Ctrl+C to stop)...\n",
			o.cursor, o.cfg.ConfirmDelay)
		if err := sleepCtx(ctx, o.cfg.ConfirmDelay); err != nil {
			return err
		}

		if err := o.ensureConsole(ctx); err != nil {
			return err
		}

		parts, err := console.List(o.page)
		if err != nil {
			// Reading the catalog failed outright; treat like an empty
			// catalog and re-probe authentication on the next pass.
			o.logger.Warn("catalog read failed", map[string]any{"error": err.Error()})
			continue
		}
		o.collector.IncCatalogRefresh()

		if len(parts) == 0 {
			// Emptiness means authentication was lost or the page has not
			// rendered; the recovery machine on the next pass is the fix,
			// so this is not charged against the retry budget.
			o.collector.IncEmptyCatalog()
			fmt.Fprintln(o.out, "No parts found. Verify authentication.")
			continue
		}

		record, found := findPart(parts, o.cursor)
		if !found {
			return &PartUnavailableError{Part: o.cursor, Available: types.PartNumbers(parts)}
		}

		maxPart := types.MaxPartNumber(parts)

		if record.AlreadyDownloaded {
			fmt.Fprintf(o.out, "Note: part %d has already been downloaded previously.\n", o.cursor)
			if o.cfg.SkipDownloaded {
				fmt.Fprintf(o.out, "Skipping download of part %d.\n", o.cursor)
				o.collector.IncPartSkipped()
				attempts = 0
				o.cursor++
				if o.cursor > maxPart {
					break
				}
				continue
			}
		}

		fmt.Fprintf(o.out, "Downloading part %d of %d...\n", o.cursor, len(parts))
		if record.ExpectedSizeBytes != nil {
			fmt.Fprintf(o.out, "File size: %d bytes\n", *record.ExpectedSizeBytes)
		}

		result, err := o.downloadPart(ctx, record)
		if err != nil {
			// Cancellation short-circuits all retries.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			attempts++
			o.collector.IncRetryAttempt()
			o.logger.Warn("download attempt failed", map[string]any{
				"part":    record.PartNumber,
				"attempt": attempts,
				"error":   err.Error(),
			})
			if o.cfg.Retry.MaxAttempts > 0 && attempts >= o.cfg.Retry.MaxAttempts {
				return fmt.Errorf("part %d failed after %d attempts: %w", record.PartNumber, attempts, err)
			}
			fmt.Fprintf(o.out, "Failed to download part %d: %v. Retrying...\n", record.PartNumber, err)
			if err := sleepCtx(ctx, o.cfg.Retry.Backoff); err != nil {
				return err
			}
			continue
		}

		o.recordSuccess(ctx, record, result)
		fmt.Fprintf(o.out, "File saved to: %s\n", result.SavedPath)

		attempts = 0
		o.cursor++
		if o.cursor > maxPart {
			break
		}
	}

	fmt.Fprintf(o.out, "\nAll downloads complete! Files saved to: %s\n", o.cfg.DownloadDir)
	return nil
}

// ensureConsole navigates to the archive console if the page is elsewhere,
// then drives the recovery machine to readiness.
func (o *Orchestrator) ensureConsole(ctx context.Context) error {
	if !strings.Contains(o.page.URL(), console.ArchiveURLPart) {
		fmt.Fprintln(o.out, "Navigating to archive console.")
		if err := o.page.Navigate(o.cfg.ArchiveURL); err != nil {
			// Let the recovery machine sort it out; its Unknown handling
			// escalates to a human before looping forever.
			o.logger.Warn("navigation failed", map[string]any{"error": err.Error()})
		}
	}
	return o.auth.EnsureReady(ctx)
}

// downloadPart triggers the native download for one part and persists it.
// The download awaiter is registered before the click so a download
// started by the click cannot be missed, and the recovery machine runs
// once post-click while the awaiter stays armed, since clicking a download
// can itself re-raise an authentication challenge.
func (o *Orchestrator) downloadPart(ctx context.Context, record types.PartRecord) (types.DownloadResult, error) {
	fmt.Fprintf(o.out, "Clicking download link of part %d...\n", record.PartNumber)

	dl, err := o.page.ExpectDownload(func() error {
		if err := o.page.ClickToken(record.DownloadToken); err != nil {
			return fmt.Errorf("clicking download link: %w", err)
		}
		if err := sleepCtx(ctx, o.cfg.PostClickProbeDelay); err != nil {
			return err
		}
		return o.auth.EnsureReady(ctx)
	}, o.cfg.DownloadTimeout)
	if err != nil {
		return types.DownloadResult{}, fmt.Errorf("triggering download of part %d: %w", record.PartNumber, err)
	}

	return o.persister.Persist(dl, o.cfg.DownloadDir, record.ExpectedSizeBytes)
}

// recordSuccess updates metrics and the best-effort journal/mirror outputs.
func (o *Orchestrator) recordSuccess(ctx context.Context, record types.PartRecord, result types.DownloadResult) {
	o.collector.IncPartDownloaded()
	o.collector.AddBytesPersisted(result.ActualSizeBytes)
	if !result.SizeMatchesExpected {
		o.collector.IncSizeMismatch()
	}

	if o.journal != nil {
		if err := o.journal.Record(record.PartNumber, result); err != nil {
			o.logger.Warn("journal write failed", map[string]any{"error": err.Error()})
		}
	}
	if o.mirror != nil {
		if err := o.mirror.Upload(ctx, result.SavedPath); err != nil {
			o.logger.Warn("mirror upload failed", map[string]any{
				"path":  result.SavedPath,
				"error": err.Error(),
			})
		}
	}
}

func findPart(parts []types.PartRecord, number int) (types.PartRecord, bool) {
	for _, p := range parts {
		if p.PartNumber == number {
			return p, true
		}
	}
	return types.PartRecord{}, false
}

// sleepCtx sleeps for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
