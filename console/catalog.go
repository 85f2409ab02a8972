package console

import (
	"sort"
	"strconv"
	"strings"

	"github.com/bcelary/google-takeout-downloader/browser"
	"github.com/bcelary/google-takeout-downloader/types"
)

// downloadedMarker is the console's textual completion marker inside the
// list item of a part that was downloaded before.
const downloadedMarker = "Download started"

// List derives the current catalog of parts from the rendered console.
// Read-only; the result is sorted ascending by part number and free of
// duplicates. An empty catalog is a valid outcome meaning the session is
// not authenticated or the page has not rendered yet.
func List(page browser.Page) ([]types.PartRecord, error) {
	affordances, err := page.Affordances()
	if err != nil {
		return nil, err
	}
	return ParseParts(affordances), nil
}

// ParseParts converts raw download affordances into part records.
// Elements whose label cannot be parsed are skipped rather than failing
// the whole catalog; later duplicates of a part number are dropped.
func ParseParts(affordances []browser.Affordance) []types.PartRecord {
	parts := make([]types.PartRecord, 0, len(affordances))
	seen := make(map[int]bool, len(affordances))

	for _, a := range affordances {
		number, ok := parsePartNumber(a.AriaLabel)
		if !ok || a.Href == "" || seen[number] {
			continue
		}
		seen[number] = true

		rec := types.PartRecord{
			PartNumber:        number,
			DownloadToken:     a.Href,
			AlreadyDownloaded: strings.Contains(a.ListItemText, downloadedMarker),
		}
		if a.DataSize != "" {
			if size, err := strconv.ParseInt(a.DataSize, 10, 64); err == nil && size >= 0 {
				rec.ExpectedSizeBytes = &size
			}
		}
		parts = append(parts, rec)
	}

	sort.Slice(parts, func(i, j int) bool {
		return parts[i].PartNumber < parts[j].PartNumber
	})
	return parts
}

// parsePartNumber extracts N from labels like "Download part 22 of 59"
// or "Download again part 21 of 59".
func parsePartNumber(label string) (int, bool) {
	_, rest, found := strings.Cut(label, "part ")
	if !found {
		return 0, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, false
	}
	number, err := strconv.Atoi(fields[0])
	if err != nil || number <= 0 {
		return 0, false
	}
	return number, true
}
