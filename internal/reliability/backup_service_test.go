package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marcos415/cotacoesview/internal/config"
	"github.com/Marcos415/cotacoesview/internal/database"
)

func newTestBackupService(t *testing.T) (*BackupService, *database.DB) {
	t.Helper()
	dataDir := t.TempDir()

	db, err := database.New(database.Config{
		Path: filepath.Join(dataDir, "app.db"),
		Name: "app",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	svc, err := NewBackupService(db, &config.BackupConfig{Keep: 3}, dataDir, zerolog.Nop())
	require.NoError(t, err)
	return svc, db
}

func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	gz, err := gzip.NewReader(file)
	require.NoError(t, err)
	defer gz.Close()

	contents := map[string][]byte{}
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		contents[header.Name] = data
	}
	return contents
}

func TestCreateArchive(t *testing.T) {
	svc, db := newTestBackupService(t)

	_, err := db.Exec(`
		INSERT INTO transactions (id, user_id, symbol, side, quantity, unit_price, fees, trade_date, created_at)
		VALUES ('tx-1', 'user-1', 'PETR4.SA', 'BUY', '10', '100', '5', '2024-01-10', 1704931200)`)
	require.NoError(t, err)

	archivePath, err := svc.CreateArchive(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, archivePath)

	contents := readArchive(t, archivePath)
	require.Contains(t, contents, "app.db")
	require.Contains(t, contents, "metadata.json")

	var meta backupMetadata
	require.NoError(t, json.Unmarshal(contents["metadata.json"], &meta))
	assert.Equal(t, "app", meta.DatabaseName)
	assert.Equal(t, int64(len(contents["app.db"])), meta.SizeBytes)

	// The recorded checksum matches the archived database copy
	sum := sha256.Sum256(contents["app.db"])
	assert.Equal(t, hex.EncodeToString(sum[:]), meta.SHA256)
}

func TestCreateArchiveCleansStaging(t *testing.T) {
	svc, _ := newTestBackupService(t)

	_, err := svc.CreateArchive(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(svc.stageDir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, entry.IsDir(), "staging directories must be removed, found %s", entry.Name())
	}
}

func TestCreateAndUploadWithoutRemote(t *testing.T) {
	svc, _ := newTestBackupService(t)

	// No bucket configured: the archive is kept locally
	result, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, result)
}
