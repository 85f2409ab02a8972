// Package auth drives the console page from any authentication state
// toward readiness. The machine never fails on its own classification
// uncertainty: every unrecoverable state escalates to a human prompt, so
// the loop favors liveness over wall-clock bounds.
package auth

import (
	"context"
	"time"

	"github.com/bcelary/google-takeout-downloader/browser"
	"github.com/bcelary/google-takeout-downloader/log"
	"github.com/bcelary/google-takeout-downloader/metrics"
	"github.com/bcelary/google-takeout-downloader/types"
)

// Classifier classifies the live page into a PageState.
// console.Probe is the production implementation.
type Classifier interface {
	Classify(page browser.Page) types.PageState
}

// Prompter blocks on explicit human confirmation. Implementations must
// honor context cancellation.
type Prompter interface {
	// Acknowledge shows message and blocks until the human confirms.
	Acknowledge(ctx context.Context, message string) error
}

// Credential exposes the optionally held password. Read-only to the
// machine; only the prompt path may set it, at most once.
type Credential interface {
	// Secret returns the held password and whether one is held.
	Secret() (string, bool)
}

// MachineConfig tunes the recovery loop's pacing. Zero values are
// replaced with defaults by NewMachine.
type MachineConfig struct {
	// UnknownRetryLimit is the number of consecutive Unknown
	// classifications tolerated before escalating to a human prompt.
	UnknownRetryLimit int
	// UnknownRetryDelay is the wait between Unknown re-classifications.
	UnknownRetryDelay time.Duration
	// SettleDelay is the wait before re-ticking when the state has not
	// changed since the last action.
	SettleDelay time.Duration
	// KeystrokeDelay paces automated password typing. This exists to
	// stay under the site's automation-detection heuristics; keep it
	// configurable, never remove it.
	KeystrokeDelay time.Duration
	// PostEntrySettle is the buffer after submitting a password before
	// the next classification.
	PostEntrySettle time.Duration
}

func (c MachineConfig) withDefaults() MachineConfig {
	if c.UnknownRetryLimit == 0 {
		c.UnknownRetryLimit = 10
	}
	if c.UnknownRetryDelay == 0 {
		c.UnknownRetryDelay = 2 * time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = time.Second
	}
	if c.KeystrokeDelay == 0 {
		c.KeystrokeDelay = 100 * time.Millisecond
	}
	if c.PostEntrySettle == 0 {
		c.PostEntrySettle = 2 * time.Second
	}
	return c
}

// Machine is the authentication recovery state machine. On each tick it
// classifies the page and, when warranted, performs one recovery action.
// The machine decides success by re-classifying; no action ever declares
// success on its own.
type Machine struct {
	page       browser.Page
	classifier Classifier
	prompter   Prompter
	credential Credential
	cfg        MachineConfig
	logger     *log.Logger
	collector  *metrics.Collector
}

// NewMachine creates a recovery machine over the given page.
func NewMachine(
	page browser.Page,
	classifier Classifier,
	prompter Prompter,
	credential Credential,
	cfg MachineConfig,
	logger *log.Logger,
	collector *metrics.Collector,
) *Machine {
	return &Machine{
		page:       page,
		classifier: classifier,
		prompter:   prompter,
		credential: credential,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		collector:  collector,
	}
}

// EnsureReady ticks until the page reaches ArchiveReady. Returns only on
// success, context cancellation, or a prompter failure; classification
// uncertainty never produces an error.
func (m *Machine) EnsureReady(ctx context.Context) error {
	previous := types.StateUnknown
	unknownStreak := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		state := m.classifier.Classify(m.page)
		if state == types.StateArchiveReady {
			return nil
		}
		if state != types.StateUnknown {
			unknownStreak = 0
		}

		// Act only when the state changed since the last tick, or when it
		// is Unknown. Repeating an action while the page is still settling
		// after the previous one just fights the page.
		if state == previous && state != types.StateUnknown {
			if err := sleepCtx(ctx, m.cfg.SettleDelay); err != nil {
				return err
			}
			continue
		}
		previous = state

		m.logger.Info("recovery action", map[string]any{"state": state.String()})

		var err error
		switch state {
		case types.StateUnknown:
			unknownStreak++
			if unknownStreak >= m.cfg.UnknownRetryLimit {
				// Bounded silent retry: after the cap, ask for help and
				// start counting again.
				unknownStreak = 0
				m.collector.IncUnknownEscalation()
				err = m.acknowledge(ctx,
					"Cannot determine the page state. Resolve it in the browser, then press Enter...")
			} else {
				err = sleepCtx(ctx, m.cfg.UnknownRetryDelay)
			}

		case types.StateNeedsIdentifier:
			err = m.acknowledge(ctx,
				"Google is asking for your account email. Enter it in the browser, then press Enter...")

		case types.StateNeedsTwoFactor:
			err = m.acknowledge(ctx,
				"Two-factor challenge detected. Complete it in the browser, then press Enter...")

		case types.StateError:
			err = m.acknowledge(ctx,
				"Sign-in hit a dead end. Resolve it in the browser, then press Enter...")

		case types.StateNeedsPassword:
			err = m.enterPassword(ctx)
		}

		if err != nil {
			return err
		}
	}
}

// enterPassword performs automated password entry when a credential is
// held, falling back to the human prompt otherwise. Success is decided by
// the next classification tick, not here.
func (m *Machine) enterPassword(ctx context.Context) error {
	secret, held := m.credential.Secret()
	if !held {
		return m.acknowledge(ctx,
			"Password prompt detected. Enter your password in the browser, then press Enter...")
	}

	m.logger.Info("attempting automated password entry", nil)
	m.collector.IncPasswordAutofill()

	if err := m.page.SubmitPassword(secret, m.cfg.KeystrokeDelay); err != nil {
		m.logger.Warn("automated password entry failed", map[string]any{
			"error": err.Error(),
		})
		return m.acknowledge(ctx,
			"Automatic password entry failed. Enter it manually in the browser, then press Enter...")
	}

	// Bounded settle so the next tick classifies a loaded page.
	_ = m.page.WaitForLoad(10 * time.Second)
	return sleepCtx(ctx, m.cfg.PostEntrySettle)
}

func (m *Machine) acknowledge(ctx context.Context, message string) error {
	m.collector.IncHumanPrompt()
	return m.prompter.Acknowledge(ctx, message)
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
