package infrastructure

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

func completedItem(t *testing.T, id int64, format domain.Format, payload string) *domain.DownloadedItem {
	t.Helper()
	d := domain.NewDownloadedItem(domain.NewValidatedItem(id, "", format), format)
	require.NoError(t, d.MarkCompleted([]byte(payload), "video/mp4"))
	return d
}

func failedItem(id int64) *domain.DownloadedItem {
	d := domain.NewDownloadedItem(domain.NewValidatedItem(id, "", domain.FormatMP4), domain.FormatMP4)
	d.MarkFailed(assert.AnError)
	return d
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(b)
	}
	return out
}

func TestZipArchiveBuilder_Build(t *testing.T) {
	builder := NewZipArchiveBuilder("sina_videos", "sina_videos")
	fixed := time.Date(2024, 5, 1, 12, 30, 45, 123_000_000, time.UTC)
	builder.now = func() time.Time { return fixed }

	items := []*domain.DownloadedItem{
		completedItem(t, 101, domain.FormatFLV, "flv-bytes"),
		failedItem(104),
		completedItem(t, 108, domain.FormatMP4, "mp4-bytes"),
	}

	archive, err := builder.Build(items)
	require.NoError(t, err)
	assert.Equal(t, "sina_videos_2024-05-01T12-30-45-123Z.zip", archive.Name)
	assert.Equal(t, []string{"sina_videos/101.flv", "sina_videos/108.mp4"}, archive.Entries)

	files := readZip(t, archive.Data)
	assert.Equal(t, map[string]string{
		"sina_videos/101.flv": "flv-bytes",
		"sina_videos/108.mp4": "mp4-bytes",
	}, files)

	// inputs are untouched
	assert.Equal(t, []byte("flv-bytes"), items[0].Payload)
	assert.Equal(t, domain.ItemFailed, items[1].Status)
}

func TestZipArchiveBuilder_Empty(t *testing.T) {
	builder := NewZipArchiveBuilder("sina_videos", "")

	_, err := builder.Build(nil)
	assert.ErrorIs(t, err, domain.ErrArchiveEmpty)

	_, err = builder.Build([]*domain.DownloadedItem{failedItem(1)})
	assert.ErrorIs(t, err, domain.ErrArchiveEmpty)
}

func TestZipArchiveBuilder_NoFolder(t *testing.T) {
	builder := NewZipArchiveBuilder("", "pack")
	archive, err := builder.Build([]*domain.DownloadedItem{completedItem(t, 7, domain.FormatHLV, "x")})
	require.NoError(t, err)
	assert.Equal(t, []string{"7.hlv"}, archive.Entries)
}

func TestArchiveName(t *testing.T) {
	ts := time.Date(2023, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	assert.Equal(t, "p_2023-01-02T02-04-05-000Z.zip", ArchiveName("p", ts))
}

func TestMinioArchiveMirror_Upload(t *testing.T) {
	backend := s3mem.New()
	require.NoError(t, backend.CreateBucket("archives"))
	srv := httptest.NewServer(gofakes3.New(backend).Server())
	defer srv.Close()

	ctx := context.Background()
	mirror, err := NewMinioArchiveMirror(ctx, domain.MirrorConfig{
		Enabled:   true,
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "archives",
		Region:    "us-east-1",
		Prefix:    "sina",
	}, nil)
	require.NoError(t, err)

	archive := &domain.Archive{Name: "sina_videos_x.zip", Data: []byte("zipdata")}
	assert.False(t, mirror.Exists(ctx, archive.Name))

	url, err := mirror.Upload(ctx, archive)
	require.NoError(t, err)
	assert.Equal(t, "s3://archives/sina/sina_videos_x.zip", url)
	assert.True(t, mirror.Exists(ctx, archive.Name))
}

func TestMinioArchiveMirror_MissingBucket(t *testing.T) {
	srv := httptest.NewServer(gofakes3.New(s3mem.New()).Server())
	defer srv.Close()

	_, err := NewMinioArchiveMirror(context.Background(), domain.MirrorConfig{
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "missing",
		Region:    "us-east-1",
	}, nil)
	assert.Error(t, err)

	_, err = NewMinioArchiveMirror(context.Background(), domain.MirrorConfig{}, nil)
	assert.Error(t, err)
}

func TestNotificationService(t *testing.T) {
	var calls [][]string
	n := NewNotificationService(&domain.NotificationConfig{Enabled: true, Method: "notify-send"}, nil)
	n.run = func(name string, args ...string) error {
		calls = append(calls, append([]string{name}, args...))
		return nil
	}

	n.NotifyScanCompleted(domain.Range{Start: 100, End: 109}, 3)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"notify-send", "Scan Completed", "3 valid videos in 100-109"}, calls[0])

	n.config.Enabled = false
	n.NotifyDownloadCompleted(2, 3)
	assert.Len(t, calls, 1)
}
