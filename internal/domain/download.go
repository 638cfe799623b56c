package domain

// ScanRequest carries the user inputs of one scan
type ScanRequest struct {
	Range       Range `json:"range"`
	Concurrency int   `json:"concurrency"`
}

// DownloadRequest carries the user inputs of one download sequence
type DownloadRequest struct {
	FormatOverride Format `json:"format"`
}

// FormatFor returns the format to download an item in
func (r DownloadRequest) FormatFor(item *ValidatedItem) Format {
	if r.FormatOverride == "" || r.FormatOverride == FormatAuto {
		return item.Format
	}
	return r.FormatOverride
}

// BatchSize clamps a requested concurrency into [1, limit].
// Non-positive values silently become 1.
func BatchSize(requested, limit int) int {
	if limit < 1 {
		limit = 1
	}
	if requested < 1 {
		return 1
	}
	if requested > limit {
		return limit
	}
	return requested
}

// NextBatch returns the batch of at most size identifiers that starts at from,
// and whether more identifiers of r follow it. Batches are produced one at a
// time so wide ranges never materialize, and the arithmetic cannot overflow
// at the top of the int64 space.
func (r Range) NextBatch(from int64, size int) (batch Range, more bool) {
	if size < 1 {
		size = 1
	}
	end := r.End
	if uint64(r.End)-uint64(from) >= uint64(size) {
		end = from + int64(size) - 1
	}
	return Range{Start: from, End: end}, end < r.End
}
