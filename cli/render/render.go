// Package render provides output rendering for the session report.
//
// Format selection rules:
//   - If stdout is a TTY, default to text
//   - If stdout is not a TTY, default to json
//   - --format always overrides defaults
//   - Invalid formats are errors
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/bcelary/google-takeout-downloader/runtime"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be text or json)", s)
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true).Width(20)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Renderer handles report output formatting.
type Renderer struct {
	format Format
	out    io.Writer
}

// NewRenderer creates a renderer for the given format; an empty format
// selects text on a TTY and json otherwise.
func NewRenderer(format Format, out io.Writer) *Renderer {
	if format == "" {
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = FormatText
		} else {
			format = FormatJSON
		}
	}
	return &Renderer{format: format, out: out}
}

// RenderReport writes the session report in the selected format.
func (r *Renderer) RenderReport(report runtime.Report) error {
	if r.format == FormatJSON {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, titleStyle.Render("=== Session Report ==="))
	r.line("Session ID", report.SessionID)
	r.line("Outcome", string(report.Outcome))
	if report.Message != "" {
		r.line("Message", report.Message)
	}
	r.line("Duration", (time.Duration(report.DurationMs) * time.Millisecond).String())
	r.line("Start part", fmt.Sprintf("%d", report.StartPart))
	r.line("Parts downloaded", fmt.Sprintf("%d", report.PartsDownloaded))
	r.line("Parts skipped", fmt.Sprintf("%d", report.PartsSkipped))
	r.line("Bytes persisted", fmt.Sprintf("%d", report.BytesPersisted))
	r.line("Retry attempts", fmt.Sprintf("%d", report.RetryAttempts))
	r.line("Empty catalogs", fmt.Sprintf("%d", report.EmptyCatalogs))
	r.line("Human prompts", fmt.Sprintf("%d", report.HumanPrompts))
	r.line("Password autofills", fmt.Sprintf("%d", report.PasswordAutofills))
	r.line("Unknown escalations", fmt.Sprintf("%d", report.UnknownEscalations))
	if report.SizeMismatches > 0 {
		fmt.Fprintf(r.out, "%s %s\n",
			labelStyle.Render("Size mismatches"),
			warnStyle.Render(fmt.Sprintf("%d", report.SizeMismatches)))
	}
	r.line("Download dir", report.DownloadDir)
	return nil
}

func (r *Renderer) line(label, value string) {
	fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render(label), value)
}
