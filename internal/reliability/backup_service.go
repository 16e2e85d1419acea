// Package reliability contains the database backup pipeline.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/config"
	"github.com/Marcos415/cotacoesview/internal/database"
)

// backupMetadata travels inside every archive next to the database
// copy, so a restore can verify integrity.
type backupMetadata struct {
	CreatedAt    time.Time `json:"created_at"`
	DatabaseName string    `json:"database_name"`
	SizeBytes    int64     `json:"size_bytes"`
	SHA256       string    `json:"sha256"`
}

// BackupService produces consistent database archives and ships them
// to S3-compatible storage.
type BackupService struct {
	db       *database.DB
	cfg      *config.BackupConfig
	stageDir string
	client   *s3.Client
	uploader *manager.Uploader
	log      zerolog.Logger
}

// NewBackupService creates the backup service. When remote backups are
// not configured, archives are still created locally and upload is
// skipped.
func NewBackupService(db *database.DB, cfg *config.BackupConfig, dataDir string, log zerolog.Logger) (*BackupService, error) {
	svc := &BackupService{
		db:       db,
		cfg:      cfg,
		stageDir: filepath.Join(dataDir, "backups"),
		log:      log.With().Str("service", "backup").Logger(),
	}

	if err := os.MkdirAll(svc.stageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup staging directory: %w", err)
	}

	if cfg.Enabled() {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load S3 configuration: %w", err)
		}

		svc.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
		svc.uploader = manager.NewUploader(svc.client)
	}

	return svc, nil
}

// CreateArchive snapshots the database into a tar.gz with a metadata
// file and returns the archive path.
func (s *BackupService) CreateArchive(ctx context.Context) (string, error) {
	stamp := time.Now().UTC().Format("20060102-150405")
	staging := filepath.Join(s.stageDir, "staging-"+stamp)
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	// Fold the WAL into the main file so the copy is complete
	if err := s.db.WALCheckpoint("TRUNCATE"); err != nil {
		s.log.Warn().Err(err).Msg("WAL checkpoint before backup failed")
	}

	dbCopy := filepath.Join(staging, s.db.Name()+".db")
	if err := s.db.BackupTo(dbCopy); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	checksum, size, err := fileChecksum(dbCopy)
	if err != nil {
		return "", fmt.Errorf("failed to checksum database copy: %w", err)
	}

	meta := backupMetadata{
		CreatedAt:    time.Now().UTC(),
		DatabaseName: s.db.Name(),
		SizeBytes:    size,
		SHA256:       checksum,
	}
	metaPath := filepath.Join(staging, "metadata.json")
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode backup metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaBytes, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup metadata: %w", err)
	}

	archivePath := filepath.Join(s.stageDir, fmt.Sprintf("backup-%s.tar.gz", stamp))
	if err := createTarGz(archivePath, []string{dbCopy, metaPath}); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	s.log.Info().
		Str("archive", filepath.Base(archivePath)).
		Int64("db_bytes", size).
		Str("sha256", checksum[:12]).
		Msg("Backup archive created")

	return archivePath, nil
}

// CreateAndUpload creates an archive and, when configured, uploads it
// and prunes old remote archives. The local archive is removed after a
// successful upload.
func (s *BackupService) CreateAndUpload(ctx context.Context) (string, error) {
	archivePath, err := s.CreateArchive(ctx)
	if err != nil {
		return "", err
	}

	if s.uploader == nil {
		s.log.Debug().Msg("Remote backup not configured, keeping local archive only")
		return archivePath, nil
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive for upload: %w", err)
	}
	defer file.Close()

	key := s.remoteKey(filepath.Base(archivePath))
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	s.log.Info().Str("bucket", s.cfg.Bucket).Str("key", key).Msg("Backup uploaded")

	if err := s.PruneRemote(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to prune old remote backups")
	}

	file.Close()
	if err := os.Remove(archivePath); err != nil {
		s.log.Warn().Err(err).Msg("Failed to remove local archive after upload")
	}

	return key, nil
}

// PruneRemote deletes remote archives beyond the configured retention
// count, oldest first. Archive names embed their timestamp, so key
// order is chronological.
func (s *BackupService) PruneRemote(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	prefix := s.remoteKey("backup-")
	resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to list remote backups: %w", err)
	}

	keys := make([]string, 0, len(resp.Contents))
	for _, obj := range resp.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	sort.Strings(keys)

	if len(keys) <= s.cfg.Keep {
		return nil
	}

	for _, key := range keys[:len(keys)-s.cfg.Keep] {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("failed to delete remote backup %s: %w", key, err)
		}
		s.log.Debug().Str("key", key).Msg("Pruned old remote backup")
	}

	return nil
}

func (s *BackupService) remoteKey(name string) string {
	if s.cfg.Prefix == "" {
		return name
	}
	return s.cfg.Prefix + "/" + name
}

func fileChecksum(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

func createTarGz(archivePath string, files []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	for _, path := range files {
		if err := addToTar(tw, path); err != nil {
			return fmt.Errorf("failed to archive %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func addToTar(tw *tar.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, file)
	return err
}
