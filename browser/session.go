// Package browser owns the browser session resource and adapts playwright
// to the narrow Page/Download contracts the download loop consumes.
//
// The session is acquired once per run, exclusively owned by the
// orchestrator for the run's duration, and must be closed on every exit
// path. Headless operation is deliberately unsupported: the recovery
// contract assumes a visible window a human can take over.
package browser

import (
	"fmt"
	"os"

	"github.com/playwright-community/playwright-go"
)

// Chrome's automation banner and blink automation flags give the session
// away to Google's sign-in heuristics, so they are disabled at launch.
var launchArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--no-sandbox",
	"--disable-infobars",
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Brave/128.0.0.0 Chrome/128.0.0.0 Safari/537.36"

// LaunchConfig configures the persistent browser session.
type LaunchConfig struct {
	// ProfileDir is the user-data directory. Session cookies persist here
	// across runs, which is what makes resumption practical. Created if
	// absent.
	ProfileDir string
	// ExecutablePath optionally points at a system browser binary instead
	// of the playwright-managed Chromium.
	ExecutablePath string
}

// Session is a live persistent-context browser with one active page.
type Session struct {
	pw      *playwright.Playwright
	context playwright.BrowserContext
	page    *pwPage
}

// Launch starts the browser with a persistent profile and returns the
// session. The caller owns the session and must Close it on every exit path.
func Launch(cfg LaunchConfig) (*Session, error) {
	if err := os.MkdirAll(cfg.ProfileDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating profile dir: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright driver: %w", err)
	}

	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:        playwright.Bool(false),
		Args:            launchArgs,
		AcceptDownloads: playwright.Bool(true),
		UserAgent:       playwright.String(userAgent),
	}
	if cfg.ExecutablePath != "" {
		opts.ExecutablePath = playwright.String(cfg.ExecutablePath)
	}

	context, err := pw.Chromium.LaunchPersistentContext(cfg.ProfileDir, opts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	// A persistent context opens with one page; reuse it rather than
	// leaving a blank tab behind.
	var page playwright.Page
	if pages := context.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = context.NewPage()
		if err != nil {
			_ = context.Close()
			_ = pw.Stop()
			return nil, fmt.Errorf("opening page: %w", err)
		}
	}

	return &Session{pw: pw, context: context, page: &pwPage{page: page}}, nil
}

// Page returns the session's single active page.
func (s *Session) Page() Page { return s.page }

// Close releases the browser context and the playwright driver.
// Safe to call after a partial failure.
func (s *Session) Close() error {
	var closeErr error
	if s.context != nil {
		closeErr = s.context.Close()
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}
