package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/store"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotConfigured is returned when no bucket or credentials are set.
var ErrNotConfigured = errors.New("backup not configured: S3 credentials missing")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// Manager snapshots the shopping list database and keeps encrypted copies
// in S3-compatible storage.
type Manager struct {
	mu     sync.RWMutex
	cfg    S3Config
	status Status
	client s3Client

	// run serializes RunNow calls.
	run sync.Mutex

	db      *sql.DB
	backups *store.BackupStore
	logger  *slog.Logger
}

// NewManager creates a backup manager. It is disabled unless cfg names a
// bucket and both keys.
func NewManager(cfg S3Config, db *sql.DB, backups *store.BackupStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: backups,
		logger:  logger.With("component", "backup"),
		status:  Status{State: StateDisabled},
	}
	if cfg.complete() {
		m.client = newS3Client(cfg)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether backups can run.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) snapshot() (s3Client, string, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client, m.cfg.Bucket, m.cfg.Prefix
}

// RunNow snapshots the database, encrypts it with passphrase and uploads it.
// The returned record is the completed backup row.
func (m *Manager) RunNow(ctx context.Context, passphrase string) (*model.Backup, error) {
	client, bucket, prefix := m.snapshot()
	if client == nil {
		return nil, ErrNotConfigured
	}
	if passphrase == "" {
		return nil, fmt.Errorf("backup: empty passphrase")
	}

	m.run.Lock()
	defer m.run.Unlock()

	last := m.Status().LastBackup
	m.setStatus(Status{State: StateRunning, InProgress: true, LastBackup: last})

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	filename := fmt.Sprintf("shoplist-%s-%s.db.enc", timestamp, uuid.NewString()[:8])
	key := path.Join(prefix, filename)

	record, err := m.backups.Create(ctx, filename, key)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error(), LastBackup: last})
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	fail := func(stage string, err error) (*model.Backup, error) {
		m.logger.Error("backup failed", "stage", stage, "key", key, "error", err)
		if uerr := m.backups.UpdateStatus(context.WithoutCancel(ctx), record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Warn("record backup failure", "id", record.ID, "error", uerr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error(), LastBackup: last})
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	plain, err := m.vacuumInto(ctx)
	if err != nil {
		return fail("snapshot database", err)
	}

	sealed, err := Seal(plain, passphrase)
	if err != nil {
		return fail("encrypt", err)
	}

	if err := m.backups.UpdateStatus(ctx, record.ID, model.BackupStatusUploading, ""); err != nil {
		return fail("mark uploading", err)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return fail("upload to s3", err)
	}

	if err := m.backups.UpdateCompleted(ctx, record.ID, int64(len(sealed))); err != nil {
		return fail("mark completed", err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup uploaded", "key", key, "bytes", len(sealed))

	return m.backups.GetByID(ctx, record.ID)
}

// vacuumInto writes a consistent copy of the live database to a temp file
// and returns its bytes.
func (m *Manager) vacuumInto(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "shoplist-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", target); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Restore downloads the backup stored under key, decrypts it, checks its
// integrity and writes it to dst. The running database is never touched;
// dst must not be the path of an open database.
func (m *Manager) Restore(ctx context.Context, key, passphrase, dst string) error {
	client, bucket, _ := m.snapshot()
	if client == nil {
		return ErrNotConfigured
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read download: %w", err)
	}

	plain, err := Open(sealed, passphrase)
	if err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".shoplist-restore-*.db")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(plain); err != nil {
		tmp.Close()
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close restored db: %w", err)
	}

	if err := checkIntegrity(ctx, tmpPath); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("move restored db: %w", err)
	}
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")

	m.logger.Info("backup restored", "key", key, "dst", dst)
	return nil
}

func checkIntegrity(ctx context.Context, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var integrity string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed: %s", integrity)
	}
	return nil
}

// List returns the most recent backup records, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	if limit <= 0 {
		limit = 20
	}
	return m.backups.List(ctx, limit)
}
