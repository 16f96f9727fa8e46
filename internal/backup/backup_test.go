package backup

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3NotFound{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(string(data))),
	}, nil
}

type s3NotFound struct{}

func (e *s3NotFound) Error() string { return "NoSuchKey" }

var testS3 = S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret", Prefix: "lists"}

func setupManager(t *testing.T) (*Manager, *mockS3Client, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(testS3, db, store.NewBackupStore(db), slog.Default())
	mock := newMockS3()
	m.client = mock
	return m, mock, db
}

func TestManagerState(t *testing.T) {
	m := NewManager(S3Config{}, nil, nil, nil)
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}
	if m.Enabled() {
		t.Error("expected disabled manager")
	}

	m2 := NewManager(testS3, nil, nil, nil)
	if m2.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m2.Status().State, StateIdle)
	}
	if !m2.Enabled() {
		t.Error("expected enabled manager")
	}
}

func TestNotConfigured(t *testing.T) {
	m := NewManager(S3Config{Bucket: "only-bucket"}, nil, nil, nil)
	ctx := context.Background()

	if _, err := m.RunNow(ctx, "pw"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("RunNow err = %v, want ErrNotConfigured", err)
	}
	if err := m.Restore(ctx, "k", "pw", filepath.Join(t.TempDir(), "x.db")); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Restore err = %v, want ErrNotConfigured", err)
	}
}

func TestRunNowAndRestore(t *testing.T) {
	m, mock, db := setupManager(t)
	ctx := context.Background()

	items := store.NewItemStore(db)
	if _, err := items.Insert(ctx, model.NewShoppingItem("Milk")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec, err := m.RunNow(ctx, "hunter2")
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	if rec.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want %q", rec.Status, model.BackupStatusCompleted)
	}
	if !strings.HasPrefix(rec.S3Key, "lists/shoplist-") {
		t.Errorf("s3 key = %q", rec.S3Key)
	}
	if _, ok := mock.objects[rec.S3Key]; !ok {
		t.Fatalf("object %q not uploaded", rec.S3Key)
	}
	if rec.SizeBytes != int64(len(mock.objects[rec.S3Key])) {
		t.Errorf("size = %d, want %d", rec.SizeBytes, len(mock.objects[rec.S3Key]))
	}
	if st := m.Status(); st.State != StateIdle || st.LastBackup == nil {
		t.Errorf("status after run = %+v", st)
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(ctx, rec.S3Key, "hunter2", dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := database.Open(dst)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()

	got, err := store.NewItemStore(restored).ListActive(ctx)
	if err != nil {
		t.Fatalf("list restored: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Milk" {
		t.Errorf("restored items = %+v", got)
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()

	rec, err := m.RunNow(ctx, "right")
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	err = m.Restore(ctx, rec.S3Key, "wrong", filepath.Join(t.TempDir(), "restored.db"))
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestRestoreMissingKey(t *testing.T) {
	m, _, _ := setupManager(t)
	if err := m.Restore(context.Background(), "nope", "pw", filepath.Join(t.TempDir(), "r.db")); err == nil {
		t.Fatal("expected error for missing object")
	}
}

func TestRestoreRejectsNonDatabase(t *testing.T) {
	m, mock, _ := setupManager(t)

	sealed, err := Seal([]byte("definitely not sqlite"), "pw")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	mock.objects["junk"] = sealed

	if err := m.Restore(context.Background(), "junk", "pw", filepath.Join(t.TempDir(), "r.db")); err == nil {
		t.Fatal("expected integrity failure")
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	m, mock, _ := setupManager(t)
	ctx := context.Background()
	mock.putErr = errors.New("bucket unreachable")

	if _, err := m.RunNow(ctx, "pw"); err == nil {
		t.Fatal("expected upload error")
	}
	if st := m.Status(); st.State != StateError {
		t.Errorf("state = %q, want %q", st.State, StateError)
	}

	list, err := m.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed {
		t.Fatalf("records = %+v", list)
	}
	if !strings.Contains(list[0].ErrorMessage, "bucket unreachable") {
		t.Errorf("error message = %q", list[0].ErrorMessage)
	}
}

func TestRunNowEmptyPassphrase(t *testing.T) {
	m, _, _ := setupManager(t)
	if _, err := m.RunNow(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty passphrase")
	}
}
