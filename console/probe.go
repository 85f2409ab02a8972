// Package console reads the Takeout archive console: classifying which
// page the browser is showing and deriving the catalog of downloadable
// parts from the rendered markup. Both operations are read-only.
package console

import (
	"strings"
	"time"

	"github.com/bcelary/google-takeout-downloader/browser"
	"github.com/bcelary/google-takeout-downloader/types"
)

// URL fragments that identify each page of the sign-in/console flow.
const (
	// ArchiveURLPart marks the archive console itself.
	ArchiveURLPart = "takeout.google.com/manage/archive"

	identifierURLPart = "accounts.google.com/v3/signin/identifier"
	// passwordURLPart is a sub-pattern of challengeURLPart; the probe must
	// check it first and require a visible input, since the pwd URL can
	// appear transiently before the field is interactive.
	passwordURLPart  = "accounts.google.com/v3/signin/challenge/pwd"
	challengeURLPart = "accounts.google.com/v3/signin/challenge"
)

// deadEndURLParts mark sign-in flows that cannot proceed without a human.
var deadEndURLParts = []string{
	"/signin/rejected",
	"/deniedsigninrejected",
	"/disabled/explanation",
}

// Probe classifies the current page into a PageState. It has no memory:
// each Classify call is a pure function of the live page, bounded by the
// configured waits so it can never hang.
type Probe struct {
	// LoadWait bounds the wait for the basic load signal before the URL is
	// trusted for classification.
	LoadWait time.Duration
	// PasswordWait bounds the visibility check for the password input.
	PasswordWait time.Duration
}

// NewProbe returns a probe with default wait bounds.
func NewProbe() *Probe {
	return &Probe{
		LoadWait:     2 * time.Second,
		PasswordWait: time.Second,
	}
}

// Classify returns exactly one PageState for the current page.
//
// Precedence: archive-ready first (cheapest, most specific), then
// identifier, then password (URL and a visible input), then the broader
// challenge pattern as two-factor, then sign-in dead ends, else Unknown.
func (p *Probe) Classify(page browser.Page) types.PageState {
	// Already on the console: no need to wait for anything.
	if strings.Contains(page.URL(), ArchiveURLPart) {
		return types.StateArchiveReady
	}

	// Give the page a bounded chance to finish loading before trusting
	// the URL. Errors here just mean the page is still settling.
	_ = page.WaitForLoad(p.LoadWait)

	url := page.URL()
	switch {
	case strings.Contains(url, ArchiveURLPart):
		return types.StateArchiveReady

	case strings.Contains(url, identifierURLPart):
		return types.StateNeedsIdentifier

	case strings.Contains(url, passwordURLPart):
		// URL match alone is insufficient; without an interactive field
		// the page is still in transit.
		if page.PasswordInputVisible(p.PasswordWait) {
			return types.StateNeedsPassword
		}
		return types.StateUnknown

	case strings.Contains(url, challengeURLPart):
		return types.StateNeedsTwoFactor
	}

	for _, part := range deadEndURLParts {
		if strings.Contains(url, part) {
			return types.StateError
		}
	}

	return types.StateUnknown
}
