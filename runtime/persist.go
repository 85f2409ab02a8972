package runtime

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bcelary/google-takeout-downloader/browser"
	"github.com/bcelary/google-takeout-downloader/log"
	"github.com/bcelary/google-takeout-downloader/types"
)

// Persister moves completed native downloads into the destination
// directory and verifies them against the page's size hint.
type Persister struct {
	logger *log.Logger
}

// NewPersister creates a persister.
func NewPersister(logger *log.Logger) *Persister {
	return &Persister{logger: logger}
}

// Persist waits for the transfer to fully materialize, saves the artifact
// under its suggested filename in targetDir, and compares the on-disk size
// to expectedSize when supplied. A size mismatch is a logged warning, never
// an error: the page's size hint is advisory. The transient artifact is
// always removed best-effort afterward.
func (p *Persister) Persist(dl browser.Download, targetDir string, expectedSize *int64) (types.DownloadResult, error) {
	name := dl.SuggestedFilename()

	// Path blocks until the browser finishes writing the transfer.
	transient, err := dl.Path()
	if err != nil {
		return types.DownloadResult{}, fmt.Errorf("waiting for download %q to complete: %w", name, err)
	}
	p.logger.Info("download completed", map[string]any{
		"filename":  name,
		"transient": transient,
	})

	savedPath := filepath.Join(targetDir, name)
	if err := dl.SaveAs(savedPath); err != nil {
		return types.DownloadResult{}, fmt.Errorf("saving %q: %w", savedPath, err)
	}

	info, err := os.Stat(savedPath)
	if err != nil {
		return types.DownloadResult{}, fmt.Errorf("verifying %q: %w", savedPath, err)
	}
	actualSize := info.Size()

	matches := expectedSize == nil || *expectedSize == actualSize
	if !matches {
		p.logger.Warn("file size mismatch; the download may be incomplete", map[string]any{
			"path":     savedPath,
			"expected": *expectedSize,
			"actual":   actualSize,
		})
	}

	// Removal failure must not mask a successful persist.
	if err := dl.Remove(); err != nil {
		p.logger.Warn("could not remove transient artifact", map[string]any{
			"transient": transient,
			"error":     err.Error(),
		})
	}

	return types.DownloadResult{
		SavedPath:           savedPath,
		ActualSizeBytes:     actualSize,
		SizeMatchesExpected: matches,
	}, nil
}
