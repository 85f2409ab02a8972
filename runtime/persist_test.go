package runtime

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/bcelary/google-takeout-downloader/log"
	"github.com/bcelary/google-takeout-downloader/types"
)

// stubDownload simulates a completed native browser download.
type stubDownload struct {
	filename  string
	content   []byte
	pathErr   error
	saveErr   error
	removeErr error
	removed   bool
}

func (d *stubDownload) SuggestedFilename() string { return d.filename }

func (d *stubDownload) Path() (string, error) {
	if d.pathErr != nil {
		return "", d.pathErr
	}
	return "/tmp/transient/" + d.filename, nil
}

func (d *stubDownload) SaveAs(path string) error {
	if d.saveErr != nil {
		return d.saveErr
	}
	return os.WriteFile(path, d.content, 0o644)
}

func (d *stubDownload) Remove() error {
	d.removed = true
	return d.removeErr
}

func testRuntimeLogger() *log.Logger {
	return log.NewLogger(&types.SessionMeta{SessionID: "test"}).WithOutput(io.Discard)
}

func int64p(n int64) *int64 { return &n }

func TestPersistMatchingSize(t *testing.T) {
	dir := t.TempDir()
	dl := &stubDownload{filename: "takeout-001.zip", content: []byte("abcde")}

	result, err := NewPersister(testRuntimeLogger()).Persist(dl, dir, int64p(5))
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if result.SavedPath != filepath.Join(dir, "takeout-001.zip") {
		t.Errorf("SavedPath = %q", result.SavedPath)
	}
	if result.ActualSizeBytes != 5 || !result.SizeMatchesExpected {
		t.Errorf("result = %+v, want 5 bytes, size match", result)
	}
	if !dl.removed {
		t.Error("transient artifact not removed")
	}
}

func TestPersistSizeMismatchIsAdvisory(t *testing.T) {
	dir := t.TempDir()
	dl := &stubDownload{filename: "takeout-002.zip", content: make([]byte, 999)}

	result, err := NewPersister(testRuntimeLogger()).Persist(dl, dir, int64p(1000))
	if err != nil {
		t.Fatalf("Persist() error = %v, want nil on size mismatch", err)
	}
	if result.SizeMatchesExpected {
		t.Error("SizeMatchesExpected = true, want false")
	}
	if result.ActualSizeBytes != 999 {
		t.Errorf("ActualSizeBytes = %d, want 999", result.ActualSizeBytes)
	}
}

func TestPersistWithoutSizeHint(t *testing.T) {
	dir := t.TempDir()
	dl := &stubDownload{filename: "takeout-003.zip", content: []byte("x")}

	result, err := NewPersister(testRuntimeLogger()).Persist(dl, dir, nil)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if !result.SizeMatchesExpected {
		t.Error("SizeMatchesExpected = false, want true when no hint given")
	}
}

func TestPersistRemoveFailureDoesNotMaskSuccess(t *testing.T) {
	dir := t.TempDir()
	dl := &stubDownload{
		filename:  "takeout-004.zip",
		content:   []byte("x"),
		removeErr: errors.New("busy"),
	}

	if _, err := NewPersister(testRuntimeLogger()).Persist(dl, dir, nil); err != nil {
		t.Errorf("Persist() error = %v, want nil despite remove failure", err)
	}
}

func TestPersistIncompleteTransfer(t *testing.T) {
	dl := &stubDownload{filename: "takeout-005.zip", pathErr: errors.New("canceled")}

	if _, err := NewPersister(testRuntimeLogger()).Persist(dl, t.TempDir(), nil); err == nil {
		t.Error("Persist() error = nil, want error when transfer never completed")
	}
}
