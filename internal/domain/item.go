package domain

import (
	"fmt"
	"math"
	"strings"
)

// Format is a candidate content encoding of a remote video
type Format string

const (
	FormatFLV Format = "flv"
	FormatHLV Format = "hlv"
	FormatMP4 Format = "mp4"

	// FormatAuto means "use whatever the resolver picked"
	FormatAuto Format = "auto"
)

// CandidateFormats is the ordered preference list tried by the format resolver.
// The last element doubles as the fallback.
var CandidateFormats = []Format{FormatFLV, FormatHLV, FormatMP4}

// DefaultFormat returns the fallback format used when nothing resolves
func DefaultFormat() Format {
	return CandidateFormats[len(CandidateFormats)-1]
}

// IsCandidate checks if a format belongs to the candidate set
func IsCandidate(f Format) bool {
	for _, c := range CandidateFormats {
		if c == f {
			return true
		}
	}
	return false
}

// ParseFormatOverride normalizes a user supplied override.
// Empty and unknown values fall back to FormatAuto; ok reports whether the
// input was understood as given.
func ParseFormatOverride(s string) (f Format, ok bool) {
	v := Format(strings.ToLower(strings.TrimSpace(s)))
	if v == "" || v == FormatAuto {
		return FormatAuto, true
	}
	if IsCandidate(v) {
		return v, true
	}
	return FormatAuto, false
}

// Range is an inclusive identifier range
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Validate checks the range bounds. Identifiers are non-negative.
func (r Range) Validate() error {
	if r.Start < 0 {
		return fmt.Errorf("%w: start %d is negative", ErrInvalidRange, r.Start)
	}
	if r.Start > r.End {
		return fmt.Errorf("%w: start %d is greater than end %d", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Len returns the number of identifiers in the range, saturating at
// math.MaxInt64 for ranges wider than that
func (r Range) Len() int64 {
	if r.Start > r.End {
		return 0
	}
	d := uint64(r.End) - uint64(r.Start)
	if d >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(d) + 1
}

// ItemStatus is the download state of a validated item
type ItemStatus string

const (
	ItemPending     ItemStatus = "pending"
	ItemDownloading ItemStatus = "downloading"
	ItemCompleted   ItemStatus = "completed"
	ItemFailed      ItemStatus = "failed"
)

// IsFinished reports whether the status is terminal for the current sequence
func (s ItemStatus) IsFinished() bool {
	return s == ItemCompleted || s == ItemFailed
}

// ValidatedItem is an identifier that passed the lookup probe, together with
// its resolved format. It is never modified after the scanner creates it.
type ValidatedItem struct {
	Identifier int64  `json:"vid"`
	Title      string `json:"title"`
	Format     Format `json:"format"`
}

// NewValidatedItem creates a validated item, filling in a default title
func NewValidatedItem(id int64, title string, format Format) *ValidatedItem {
	if title == "" {
		title = DefaultTitle(id)
	}
	return &ValidatedItem{Identifier: id, Title: title, Format: format}
}

// DefaultTitle is the title given to items whose lookup carried none
func DefaultTitle(id int64) string {
	return fmt.Sprintf("video_%d", id)
}

// EntryName returns the archive entry name for an identifier and format
func EntryName(id int64, format Format) string {
	return fmt.Sprintf("%d.%s", id, format)
}

// DownloadedItem tracks one download attempt of a validated item
type DownloadedItem struct {
	Item         *ValidatedItem `json:"item"`
	Format       Format         `json:"format"`
	Filename     string         `json:"filename,omitempty"`
	Status       ItemStatus     `json:"status"`
	Size         int64          `json:"size"`
	ContentType  string         `json:"content_type,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Payload      []byte         `json:"-"`
}

// NewDownloadedItem starts tracking a validated item in the pending state
func NewDownloadedItem(item *ValidatedItem, format Format) *DownloadedItem {
	return &DownloadedItem{
		Item:   item,
		Format: format,
		Status: ItemPending,
	}
}

// Identifier returns the identifier of the underlying validated item
func (d *DownloadedItem) Identifier() int64 {
	return d.Item.Identifier
}

// MarkDownloading marks the item as being fetched
func (d *DownloadedItem) MarkDownloading() {
	d.Status = ItemDownloading
	d.ErrorMessage = ""
}

// MarkCompleted records the payload. An empty payload is treated as a failure
// so that completed items always carry bytes and a filename.
func (d *DownloadedItem) MarkCompleted(payload []byte, contentType string) error {
	if len(payload) == 0 {
		err := fmt.Errorf("empty payload for vid %d", d.Identifier())
		d.MarkFailed(err)
		return err
	}
	d.Payload = payload
	d.Size = int64(len(payload))
	d.ContentType = contentType
	d.Filename = EntryName(d.Identifier(), d.Format)
	d.Status = ItemCompleted
	return nil
}

// MarkFailed marks the item as failed
func (d *DownloadedItem) MarkFailed(err error) {
	d.Status = ItemFailed
	d.Payload = nil
	d.Size = 0
	d.Filename = ""
	if err != nil {
		d.ErrorMessage = err.Error()
	}
}

// Release drops the payload bytes
func (d *DownloadedItem) Release() {
	d.Payload = nil
}
