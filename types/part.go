package types

// PartRecord describes one downloadable segment of the export as rendered
// by the archive console. The collection is keyed by PartNumber and
// processed in ascending order.
type PartRecord struct {
	// PartNumber is the declared part index (positive).
	PartNumber int
	// DownloadToken is the opaque href that triggers the native download.
	DownloadToken string
	// AlreadyDownloaded is inferred from the console's completion marker.
	AlreadyDownloaded bool
	// ExpectedSizeBytes is the advisory size hint from the page, if present.
	ExpectedSizeBytes *int64
}

// DownloadResult is the outcome of persisting one completed download.
// Produced and consumed within a single orchestrator iteration.
type DownloadResult struct {
	// SavedPath is the final location under the destination directory.
	SavedPath string
	// ActualSizeBytes is the on-disk size after persisting.
	ActualSizeBytes int64
	// SizeMatchesExpected is false when the page's size hint disagreed with
	// the artifact. Advisory only; a mismatch never aborts the run.
	SizeMatchesExpected bool
}

// MaxPartNumber returns the highest part number in parts, or 0 when empty.
func MaxPartNumber(parts []PartRecord) int {
	max := 0
	for _, p := range parts {
		if p.PartNumber > max {
			max = p.PartNumber
		}
	}
	return max
}

// PartNumbers returns the declared part numbers in catalog order.
// Used for the fatal missing-part report.
func PartNumbers(parts []PartRecord) []int {
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		nums = append(nums, p.PartNumber)
	}
	return nums
}
