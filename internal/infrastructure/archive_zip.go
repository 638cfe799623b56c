package infrastructure

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// ZipArchiveBuilder implements domain.ArchiveBuilder with a deflate ZIP
type ZipArchiveBuilder struct {
	folder     string
	namePrefix string
	now        func() time.Time
}

// NewZipArchiveBuilder creates a builder that stores entries under folder
func NewZipArchiveBuilder(folder, namePrefix string) *ZipArchiveBuilder {
	if namePrefix == "" {
		namePrefix = "sina_videos"
	}
	return &ZipArchiveBuilder{
		folder:     strings.Trim(folder, "/"),
		namePrefix: namePrefix,
		now:        time.Now,
	}
}

// Build packages every completed item. Items are read, never modified.
func (b *ZipArchiveBuilder) Build(items []*domain.DownloadedItem) (*domain.Archive, error) {
	if len(items) == 0 {
		return nil, domain.ErrArchiveEmpty
	}

	createdAt := b.now()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	entries := make([]string, 0, len(items))
	for _, item := range items {
		if item.Status != domain.ItemCompleted || len(item.Payload) == 0 {
			continue
		}

		name := item.Filename
		if b.folder != "" {
			name = path.Join(b.folder, item.Filename)
		}

		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: createdAt,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := w.Write(item.Payload); err != nil {
			zw.Close()
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		entries = append(entries, name)
	}

	if len(entries) == 0 {
		zw.Close()
		return nil, domain.ErrArchiveEmpty
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return &domain.Archive{
		Name:      ArchiveName(b.namePrefix, createdAt),
		Folder:    b.folder,
		Entries:   entries,
		Data:      buf.Bytes(),
		CreatedAt: createdAt,
	}, nil
}

// ArchiveName formats "<prefix>_<ISO timestamp>.zip" with ':' and '.'
// replaced so the name is safe on every filesystem
func ArchiveName(prefix string, t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return fmt.Sprintf("%s_%s.zip", prefix, ts)
}
