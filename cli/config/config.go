// Package config handles YAML config file loading and validation for the
// downloader. All values are optional and act as defaults for download
// flags; CLI flags always override config values.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config represents a takeout.yaml configuration file.
type Config struct {
	DownloadDir    string `yaml:"download_dir"`
	ProfileDir     string `yaml:"profile_dir"`
	ExecutablePath string `yaml:"executable_path"`

	StartPart      int  `yaml:"start_part"`
	SkipDownloaded bool `yaml:"skip_downloaded"`

	ConfirmDelay        Duration `yaml:"confirm_delay"`
	KeystrokeDelay      Duration `yaml:"keystroke_delay"`
	PostClickProbeDelay Duration `yaml:"post_click_probe_delay"`
	DownloadTimeout     Duration `yaml:"download_timeout"`

	Retry  RetryConfig  `yaml:"retry"`
	Mirror MirrorConfig `yaml:"mirror"`
}

// RetryConfig holds per-part retry defaults.
type RetryConfig struct {
	// MaxAttempts of 0 keeps the unbounded operator-supervised loop.
	MaxAttempts int      `yaml:"max_attempts"`
	Backoff     Duration `yaml:"backoff"`
}

// MirrorConfig holds optional S3 mirror defaults.
type MirrorConfig struct {
	// Path is "bucket" or "bucket/prefix". Empty disables mirroring.
	Path         string `yaml:"path"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Default returns the built-in defaults applied before file and flag
// overrides.
func Default() Config {
	return Config{
		DownloadDir: "./takeout-downloads",
		ProfileDir:  "./takeout-profile",
		StartPart:   1,
	}
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// archiveURLPart is the console path an archive URL must reference.
// Validation happens before any browser action.
const archiveURLPart = "takeout.google.com/manage/archive"

// PrepareArchiveURL validates the archive URL and normalizes it to the
// English locale so the catalog's textual markers stay parseable.
func PrepareArchiveURL(raw string) (string, error) {
	if !strings.Contains(raw, archiveURLPart) {
		return "", fmt.Errorf("invalid archive URL %q: must reference %s", raw, archiveURLPart)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid archive URL %q: %w", raw, err)
	}

	query := parsed.Query()
	query.Set("hl", "en")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// ValidateExecutable checks that an optional browser executable exists.
func ValidateExecutable(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("executable path %q does not exist", path)
	}
	if info.IsDir() {
		return fmt.Errorf("executable path %q is a directory", path)
	}
	return nil
}
