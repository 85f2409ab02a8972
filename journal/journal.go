// Package journal maintains an operator-readable manifest of persisted
// parts in the destination directory. The manifest is purely additive
// record-keeping: the live console page stays the source of truth for
// "already downloaded", so the manifest is never consulted for control
// flow.
package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bcelary/google-takeout-downloader/types"
)

// ManifestName is the manifest filename within the destination directory.
const ManifestName = "manifest.yaml"

// Entry records one persisted part.
type Entry struct {
	Part        int       `yaml:"part"`
	File        string    `yaml:"file"`
	Bytes       int64     `yaml:"bytes"`
	SizeMatch   bool      `yaml:"size_match"`
	CompletedAt time.Time `yaml:"completed_at"`
}

// Manifest appends per-part records to a YAML file, rewriting it
// atomically (temp file + rename) on each record.
type Manifest struct {
	mu   sync.Mutex
	path string
}

// Open returns a manifest rooted in the given destination directory.
// The file is created lazily on the first Record.
func Open(dir string) *Manifest {
	return &Manifest{path: filepath.Join(dir, ManifestName)}
}

// Record upserts the entry for part and rewrites the manifest. A re-run
// of the same part replaces its previous entry.
func (m *Manifest) Record(part int, result types.DownloadResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.load()
	if err != nil {
		return err
	}

	entry := Entry{
		Part:        part,
		File:        filepath.Base(result.SavedPath),
		Bytes:       result.ActualSizeBytes,
		SizeMatch:   result.SizeMatchesExpected,
		CompletedAt: time.Now().UTC(),
	}

	replaced := false
	for i := range entries {
		if entries[i].Part == part {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Part < entries[j].Part })

	return m.write(entries)
}

// Entries returns the recorded entries sorted by part number.
func (m *Manifest) Entries() ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Manifest) load() ([]Entry, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", m.path, err)
	}
	return entries, nil
}

func (m *Manifest) write(entries []Entry) error {
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}
