package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Archive is a packaged container held in memory
type Archive struct {
	Name      string
	Folder    string
	Entries   []string
	Data      []byte
	CreatedAt time.Time
}

// Size returns the container size in bytes
func (a *Archive) Size() int64 {
	return int64(len(a.Data))
}

// ArchiveRecord is the catalog entry of a finalized archive
type ArchiveRecord struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	SessionID  string    `json:"session_id" gorm:"index"`
	Name       string    `json:"name" gorm:"not null"`
	Path       string    `json:"path"`
	EntryCount int       `json:"entry_count"`
	Entries    string    `json:"entries" gorm:"type:text"` // newline separated
	Size       int64     `json:"size"`
	MirrorURL  string    `json:"mirror_url,omitempty"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// NewArchiveRecord creates a catalog record for an archive written to path
func NewArchiveRecord(sessionID string, archive *Archive, path string) *ArchiveRecord {
	return &ArchiveRecord{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Name:       archive.Name,
		Path:       path,
		EntryCount: len(archive.Entries),
		Entries:    strings.Join(archive.Entries, "\n"),
		Size:       archive.Size(),
		CreatedAt:  archive.CreatedAt,
	}
}
