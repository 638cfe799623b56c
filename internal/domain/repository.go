package domain

// ArchiveRepository defines the interface for archive catalog persistence.
// Only finalized archives are persisted; scan results never are.
type ArchiveRepository interface {
	// Create stores a new archive record
	Create(record *ArchiveRecord) error

	// Update updates an existing record
	Update(record *ArchiveRecord) error

	// Delete deletes a record by ID
	Delete(id string) error

	// FindByID finds a record by ID
	FindByID(id string) (*ArchiveRecord, error)

	// FindBySession finds the records produced by one session, newest first
	FindBySession(sessionID string) ([]*ArchiveRecord, error)

	// FindAll lists records, newest first; limit <= 0 means no limit
	FindAll(limit int) ([]*ArchiveRecord, error)

	// GetStats returns catalog statistics
	GetStats() (*ArchiveStats, error)
}

// ArchiveStats represents archive catalog statistics
type ArchiveStats struct {
	Archives   int64 `json:"archives"`
	Entries    int64 `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
}
