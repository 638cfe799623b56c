package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange_Validate(t *testing.T) {
	assert.NoError(t, Range{Start: 1, End: 1}.Validate())
	assert.NoError(t, Range{Start: 100, End: 109}.Validate())

	assert.NoError(t, Range{Start: 0, End: math.MaxInt64}.Validate())

	err := Range{Start: 10, End: 9}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	err = Range{Start: -1, End: 9}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestRange_Len(t *testing.T) {
	assert.Equal(t, int64(10), Range{Start: 100, End: 109}.Len())
	assert.Equal(t, int64(1), Range{Start: 5, End: 5}.Len())
	assert.Equal(t, int64(0), Range{Start: 6, End: 5}.Len())
	assert.Equal(t, int64(math.MaxInt64), Range{Start: 0, End: math.MaxInt64}.Len())
	assert.Equal(t, int64(math.MaxInt64), Range{Start: math.MinInt64, End: math.MaxInt64}.Len())
	assert.Equal(t, int64(4), Range{Start: math.MaxInt64 - 3, End: math.MaxInt64}.Len())
}

func TestBatchSize(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		limit     int
		expected  int
	}{
		{"within limit", 5, 10, 5},
		{"at limit", 10, 10, 10},
		{"above limit", 50, 10, 10},
		{"zero", 0, 10, 1},
		{"negative", -3, 10, 1},
		{"bad limit", 4, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BatchSize(tt.requested, tt.limit))
		})
	}
}

// collectBatches walks r batch by batch, failing after limit batches
func collectBatches(t *testing.T, r Range, size, limit int) []Range {
	t.Helper()
	var out []Range
	from := r.Start
	for {
		b, more := r.NextBatch(from, size)
		out = append(out, b)
		require.LessOrEqual(t, len(out), limit, "batching did not terminate")
		if !more {
			return out
		}
		from = b.End + 1
	}
}

func TestNextBatch(t *testing.T) {
	assert.Equal(t, []Range{{100, 104}, {105, 109}}, collectBatches(t, Range{Start: 100, End: 109}, 5, 10))
	assert.Equal(t, []Range{{1, 3}, {4, 6}, {7, 7}}, collectBatches(t, Range{Start: 1, End: 7}, 3, 10))
	assert.Equal(t, []Range{{3, 3}}, collectBatches(t, Range{Start: 3, End: 3}, 10, 10))
}

func TestNextBatch_TopOfRange(t *testing.T) {
	top := Range{Start: math.MaxInt64 - 3, End: math.MaxInt64}
	assert.Equal(t, []Range{top}, collectBatches(t, top, 10, 2))

	r := Range{Start: math.MaxInt64 - 14, End: math.MaxInt64}
	assert.Equal(t, []Range{
		{math.MaxInt64 - 14, math.MaxInt64 - 5},
		{math.MaxInt64 - 4, math.MaxInt64},
	}, collectBatches(t, r, 10, 3))
}

func TestNextBatch_WideRangeIsLazy(t *testing.T) {
	r := Range{Start: 0, End: 1_000_000_000_000}
	b, more := r.NextBatch(r.Start, 10)
	assert.Equal(t, Range{Start: 0, End: 9}, b)
	assert.True(t, more)

	b, more = r.NextBatch(r.End-3, 10)
	assert.Equal(t, Range{Start: r.End - 3, End: r.End}, b)
	assert.False(t, more)
}

func TestNextBatch_CoverEveryIdentifierOnce(t *testing.T) {
	r := Range{Start: -4, End: 37}
	for size := 1; size <= 12; size++ {
		seen := make(map[int64]int)
		prevEnd := r.Start - 1
		for _, b := range collectBatches(t, r, size, 100) {
			assert.Equal(t, prevEnd+1, b.Start, "batches must be contiguous and ascending")
			assert.LessOrEqual(t, b.Len(), int64(size))
			for id := b.Start; id <= b.End; id++ {
				seen[id]++
			}
			prevEnd = b.End
		}
		assert.Equal(t, r.End, prevEnd)
		assert.Len(t, seen, int(r.Len()))
		for id, n := range seen {
			assert.Equal(t, 1, n, "vid %d probed %d times", id, n)
		}
	}
}

func TestParseFormatOverride(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		ok       bool
	}{
		{"", FormatAuto, true},
		{"auto", FormatAuto, true},
		{"MP4", FormatMP4, true},
		{" flv ", FormatFLV, true},
		{"hlv", FormatHLV, true},
		{"avi", FormatAuto, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, ok := ParseFormatOverride(tt.input)
			assert.Equal(t, tt.expected, f)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestDownloadRequest_FormatFor(t *testing.T) {
	item := NewValidatedItem(101, "", FormatFLV)

	assert.Equal(t, FormatFLV, DownloadRequest{}.FormatFor(item))
	assert.Equal(t, FormatFLV, DownloadRequest{FormatOverride: FormatAuto}.FormatFor(item))
	assert.Equal(t, FormatMP4, DownloadRequest{FormatOverride: FormatMP4}.FormatFor(item))
}

func TestDefaultFormat(t *testing.T) {
	assert.Equal(t, FormatMP4, DefaultFormat())
	assert.True(t, IsCandidate(DefaultFormat()))
	assert.False(t, IsCandidate(FormatAuto))
}

func TestNewValidatedItem(t *testing.T) {
	item := NewValidatedItem(42, "", FormatHLV)
	assert.Equal(t, int64(42), item.Identifier)
	assert.Equal(t, "video_42", item.Title)
	assert.Equal(t, FormatHLV, item.Format)

	named := NewValidatedItem(43, "clip", FormatMP4)
	assert.Equal(t, "clip", named.Title)
}

func TestDownloadedItem_Lifecycle(t *testing.T) {
	d := NewDownloadedItem(NewValidatedItem(101, "", FormatFLV), FormatFLV)
	assert.Equal(t, ItemPending, d.Status)

	d.MarkDownloading()
	assert.Equal(t, ItemDownloading, d.Status)

	require.NoError(t, d.MarkCompleted([]byte("FLV\x01"), "video/x-flv"))
	assert.Equal(t, ItemCompleted, d.Status)
	assert.Equal(t, "101.flv", d.Filename)
	assert.Equal(t, int64(4), d.Size)
	assert.True(t, d.Status.IsFinished())
}

func TestDownloadedItem_EmptyPayloadFails(t *testing.T) {
	d := NewDownloadedItem(NewValidatedItem(7, "", FormatMP4), FormatMP4)
	d.MarkDownloading()

	err := d.MarkCompleted(nil, "")
	require.Error(t, err)
	assert.Equal(t, ItemFailed, d.Status)
	assert.Empty(t, d.Filename)
	assert.NotEmpty(t, d.ErrorMessage)
}

func TestDownloadedItem_MarkFailed(t *testing.T) {
	d := NewDownloadedItem(NewValidatedItem(7, "", FormatMP4), FormatMP4)
	d.MarkFailed(errors.New("HTTP 404"))

	assert.Equal(t, ItemFailed, d.Status)
	assert.Equal(t, "HTTP 404", d.ErrorMessage)
	assert.Nil(t, d.Payload)
}

func TestFetchError(t *testing.T) {
	err := &FetchError{URL: "http://x/1.mp4", StatusCode: 404}
	assert.Equal(t, "fetch http://x/1.mp4: HTTP 404", err.Error())
	assert.True(t, err.IsClientError())

	wrapped := &FetchError{URL: "http://x/1.mp4", Err: errors.New("reset")}
	assert.Contains(t, wrapped.Error(), "reset")
	assert.False(t, wrapped.IsClientError())
}

func TestProgress_Percent(t *testing.T) {
	assert.Equal(t, 50.0, Progress{Current: 5, Total: 10}.Percent())
	assert.Equal(t, 0.0, Progress{Current: 5}.Percent())
}
