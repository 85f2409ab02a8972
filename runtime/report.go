package runtime

import (
	"time"

	"github.com/bcelary/google-takeout-downloader/metrics"
	"github.com/bcelary/google-takeout-downloader/types"
)

// Outcome is the terminal status of a session.
type Outcome string

const (
	// OutcomeSuccess means the loop exhausted the catalog.
	OutcomeSuccess Outcome = "success"
	// OutcomeFatal means a run-aborting condition occurred.
	OutcomeFatal Outcome = "fatal"
	// OutcomeCanceled means the operator interrupted the run.
	OutcomeCanceled Outcome = "canceled"
)

// Report is the session summary shown at exit.
type Report struct {
	SessionID          string  `json:"session_id"`
	Outcome            Outcome `json:"outcome"`
	Message            string  `json:"message,omitempty"`
	DurationMs         int64   `json:"duration_ms"`
	StartPart          int     `json:"start_part"`
	PartsDownloaded    int64   `json:"parts_downloaded"`
	PartsSkipped       int64   `json:"parts_skipped"`
	RetryAttempts      int64   `json:"retry_attempts"`
	EmptyCatalogs      int64   `json:"empty_catalogs"`
	HumanPrompts       int64   `json:"human_prompts"`
	PasswordAutofills  int64   `json:"password_autofills"`
	UnknownEscalations int64   `json:"unknown_escalations"`
	BytesPersisted     int64   `json:"bytes_persisted"`
	SizeMismatches     int64   `json:"size_mismatches"`
	DownloadDir        string  `json:"download_dir"`
}

// BuildReport assembles the session report from the metrics snapshot.
func BuildReport(
	meta *types.SessionMeta,
	snap metrics.Snapshot,
	outcome Outcome,
	message string,
	duration time.Duration,
	downloadDir string,
) Report {
	return Report{
		SessionID:          meta.SessionID,
		Outcome:            outcome,
		Message:            message,
		DurationMs:         duration.Milliseconds(),
		StartPart:          meta.StartPart,
		PartsDownloaded:    snap.PartsDownloaded,
		PartsSkipped:       snap.PartsSkipped,
		RetryAttempts:      snap.RetryAttempts,
		EmptyCatalogs:      snap.EmptyCatalogs,
		HumanPrompts:       snap.HumanPrompts,
		PasswordAutofills:  snap.PasswordAutofills,
		UnknownEscalations: snap.UnknownEscalations,
		BytesPersisted:     snap.BytesPersisted,
		SizeMismatches:     snap.SizeMismatches,
		DownloadDir:        downloadDir,
	}
}
