package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/bcelary/google-takeout-downloader/runtime"
)

// runDownload runs the download command with exit handling suppressed so
// tests can inspect the returned exit code.
func runDownload(t *testing.T, args ...string) error {
	t.Helper()
	app := &cli.App{
		Name:           "takeout-dl",
		ExitErrHandler: func(*cli.Context, error) {},
		Commands:       []*cli.Command{DownloadCommand()},
	}
	return app.Run(append([]string{"takeout-dl", "download"}, args...))
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var coder cli.ExitCoder
	if !errors.As(err, &coder) {
		t.Fatalf("error = %v, want cli.ExitCoder", err)
	}
	return coder.ExitCode()
}

func TestDownloadRequiresArchiveURL(t *testing.T) {
	err := runDownload(t)
	if code := exitCode(t, err); code != exitLaunch {
		t.Errorf("exit code = %d, want %d for missing argument", code, exitLaunch)
	}
}

func TestDownloadRejectsInvalidURL(t *testing.T) {
	err := runDownload(t, "--download-dir", t.TempDir(), "https://drive.google.com/whatever")
	if code := exitCode(t, err); code != exitFatal {
		t.Errorf("exit code = %d, want %d for a non-Takeout URL", code, exitFatal)
	}
}

func TestDownloadRejectsInvalidFormat(t *testing.T) {
	err := runDownload(t, "--format", "yaml", "https://takeout.google.com/manage/archive")
	if code := exitCode(t, err); code != exitLaunch {
		t.Errorf("exit code = %d, want %d for an invalid format", code, exitLaunch)
	}
}

func TestDownloadRejectsNonPositiveStartPart(t *testing.T) {
	err := runDownload(t, "--start-part", "0", "https://takeout.google.com/manage/archive")
	if code := exitCode(t, err); code != exitLaunch {
		t.Errorf("exit code = %d, want %d for start part 0", code, exitLaunch)
	}
}

func TestDownloadRejectsMissingExecutable(t *testing.T) {
	err := runDownload(t,
		"--download-dir", t.TempDir(),
		"--executable-path", "/nonexistent/brave",
		"https://takeout.google.com/manage/archive")
	if code := exitCode(t, err); code != exitLaunch {
		t.Errorf("exit code = %d, want %d for a missing executable", code, exitLaunch)
	}
}

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want runtime.Outcome
	}{
		{"nil is success", nil, runtime.OutcomeSuccess},
		{"cancellation", context.Canceled, runtime.OutcomeCanceled},
		{"wrapped cancellation", fmt.Errorf("run: %w", context.Canceled), runtime.OutcomeCanceled},
		{"anything else is fatal", errors.New("part 5 not found"), runtime.OutcomeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, message := classifyOutcome(tt.err)
			if outcome != tt.want {
				t.Errorf("classifyOutcome(%v) = %q, want %q", tt.err, outcome, tt.want)
			}
			if tt.err != nil && message == "" {
				t.Error("message empty for non-nil error")
			}
		})
	}
}
