package infrastructure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

func setupTestRepo(t *testing.T) (*SQLiteArchiveRepository, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "repo-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "catalog", "test.db")
	repo, err := NewSQLiteArchiveRepository(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return repo, cleanup
}

func testRecord(sessionID string, createdAt time.Time, entries ...string) *domain.ArchiveRecord {
	archive := &domain.Archive{
		Name:      ArchiveName("sina_videos", createdAt),
		Entries:   entries,
		Data:      make([]byte, 100*len(entries)),
		CreatedAt: createdAt,
	}
	return domain.NewArchiveRecord(sessionID, archive, "/tmp/"+archive.Name)
}

func TestArchiveRepository_CreateAndFind(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	rec := testRecord("s1", time.Now(), "sina_videos/101.flv", "sina_videos/108.mp4")
	require.NoError(t, repo.Create(rec))

	found, err := repo.FindByID(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Name, found.Name)
	assert.Equal(t, 2, found.EntryCount)
	assert.Equal(t, "sina_videos/101.flv\nsina_videos/108.mp4", found.Entries)
	assert.Equal(t, int64(200), found.Size)
}

func TestArchiveRepository_FindByIDMissing(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	_, err := repo.FindByID("nope")
	assert.ErrorIs(t, err, domain.ErrArchiveNotFound)
}

func TestArchiveRepository_FindBySessionNewestFirst(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	base := time.Now().Add(-time.Hour)
	older := testRecord("s1", base, "a.flv")
	newer := testRecord("s1", base.Add(time.Minute), "b.flv")
	other := testRecord("s2", base, "c.flv")
	require.NoError(t, repo.Create(older))
	require.NoError(t, repo.Create(newer))
	require.NoError(t, repo.Create(other))

	records, err := repo.FindBySession("s1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, newer.ID, records[0].ID)
	assert.Equal(t, older.ID, records[1].ID)
}

func TestArchiveRepository_FindAllLimit(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(testRecord("s1", base.Add(time.Duration(i)*time.Second), "x.mp4")))
	}

	all, err := repo.FindAll(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := repo.FindAll(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestArchiveRepository_UpdateAndDelete(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	rec := testRecord("s1", time.Now(), "a.flv")
	require.NoError(t, repo.Create(rec))

	rec.MirrorURL = "s3://bucket/archives/" + rec.Name
	require.NoError(t, repo.Update(rec))

	found, err := repo.FindByID(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.MirrorURL, found.MirrorURL)

	require.NoError(t, repo.Delete(rec.ID))
	assert.ErrorIs(t, repo.Delete(rec.ID), domain.ErrArchiveNotFound)
}

func TestArchiveRepository_GetStats(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Archives)

	require.NoError(t, repo.Create(testRecord("s1", time.Now(), "a.flv", "b.mp4")))
	require.NoError(t, repo.Create(testRecord("s2", time.Now(), "c.hlv")))

	stats, err = repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Archives)
	assert.Equal(t, int64(3), stats.Entries)
	assert.Equal(t, int64(300), stats.TotalBytes)
}
