// Package types defines core domain types for the Takeout downloader.
//
//nolint:revive // types is a common Go package naming convention
package types

// PageState classifies what the archive console page is currently showing.
// Exactly one state holds at any instant; it is derived fresh on every
// evaluation and never cached across navigations.
type PageState string

const (
	// StateUnknown means no signal matched; the page may still be settling.
	StateUnknown PageState = "unknown"
	// StateArchiveReady means the archive console is rendered and the
	// session is authenticated. Terminal state for recovery.
	StateArchiveReady PageState = "archive_ready"
	// StateNeedsIdentifier means Google is asking for the account email.
	StateNeedsIdentifier PageState = "needs_identifier"
	// StateNeedsPassword means Google is asking for a password and the
	// password input is actually interactive (URL match alone is not enough).
	StateNeedsPassword PageState = "needs_password"
	// StateNeedsTwoFactor means Google raised a non-password challenge.
	StateNeedsTwoFactor PageState = "needs_two_factor"
	// StateError means the sign-in flow hit a dead end (rejected, disabled).
	StateError PageState = "error"
)

// String returns the state name for logging.
func (s PageState) String() string { return string(s) }
