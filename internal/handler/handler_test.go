package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/shoplist/internal/backup"
	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/repository"
	"github.com/dukerupert/shoplist/internal/state"
	"github.com/dukerupert/shoplist/internal/store"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupList(t *testing.T) (*ListHandler, *state.Controller) {
	t.Helper()
	db := setupDB(t)
	repo := repository.New(store.NewItemStore(db), nil, slog.Default())
	ctrl := state.New(repo, nil, slog.Default())
	t.Cleanup(ctrl.Close)
	return NewListHandler(ctrl, slog.Default()), ctrl
}

func postIntent(t *testing.T, h *ListHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/intents", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.PostIntent(rr, req)
	return rr
}

// waitItems polls the controller until its item names match want.
func waitItems(t *testing.T, ctrl *state.Controller, want string) state.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := ctrl.State()
		names := make([]string, len(s.Items))
		for i, it := range s.Items {
			names[i] = it.Name
		}
		if !s.Loading && strings.Join(names, ",") == want {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("items = %q, want %q", strings.Join(names, ","), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPostIntentAccepted(t *testing.T) {
	h, ctrl := setupList(t)

	rr := postIntent(t, h, `{"type":"add_item","item":{"name":"Milk","quantity":2}}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusAccepted, rr.Body.String())
	}

	s := waitItems(t, ctrl, "Milk")
	if s.Items[0].Quantity != 2 {
		t.Errorf("quantity = %d, want 2", s.Items[0].Quantity)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rr = httptest.NewRecorder()
	h.State(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("state status = %d", rr.Code)
	}
	var got state.State
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Name != "Milk" {
		t.Errorf("state items = %+v", got.Items)
	}
}

func TestPostIntentBadRequest(t *testing.T) {
	h, _ := setupList(t)

	for _, body := range []string{
		`not json`,
		`{"type":"teleport"}`,
		`{"type":"archive_item"}`,
		`{"type":"set_selected_priority","priority":"SOON"}`,
	} {
		rr := postIntent(t, h, body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want %d", body, rr.Code, http.StatusBadRequest)
		}
		var resp map[string]string
		json.NewDecoder(rr.Body).Decode(&resp)
		if resp["error"] == "" {
			t.Errorf("body %s: expected error message", body)
		}
	}
}

func TestPostIntentAfterClose(t *testing.T) {
	h, ctrl := setupList(t)
	ctrl.Close()

	rr := postIntent(t, h, `{"type":"clear_error"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestSuggestCategory(t *testing.T) {
	h, _ := setupList(t)

	req := httptest.NewRequest(http.MethodGet, "/api/categories/suggest?name=whole+milk", nil)
	rr := httptest.NewRecorder()
	h.SuggestCategory(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp map[string]string
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["category"] != "Dairy" {
		t.Errorf("category = %q, want Dairy", resp["category"])
	}

	req = httptest.NewRequest(http.MethodGet, "/api/categories/suggest", nil)
	rr = httptest.NewRecorder()
	h.SuggestCategory(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing name: status = %d", rr.Code)
	}
}

func TestThemeRoundTrip(t *testing.T) {
	db := setupDB(t)
	h := NewSettingsHandler(store.NewSettingsStore(db), nil, slog.Default())

	rr := httptest.NewRecorder()
	h.GetTheme(rr, httptest.NewRequest(http.MethodGet, "/api/settings/theme", nil))
	if !strings.Contains(rr.Body.String(), `"system"`) {
		t.Errorf("default theme body = %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.UpdateTheme(rr, httptest.NewRequest(http.MethodPut, "/api/settings/theme", strings.NewReader(`{"theme":"dark"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.GetTheme(rr, httptest.NewRequest(http.MethodGet, "/api/settings/theme", nil))
	if !strings.Contains(rr.Body.String(), `"dark"`) {
		t.Errorf("theme body = %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.UpdateTheme(rr, httptest.NewRequest(http.MethodPut, "/api/settings/theme", strings.NewReader(`{"theme":"purple"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid theme status = %d", rr.Code)
	}
}

type fakeBackups struct {
	enabled bool
	runErr  error
	ran     []string
}

func (f *fakeBackups) Enabled() bool         { return f.enabled }
func (f *fakeBackups) Status() backup.Status { return backup.Status{State: backup.StateIdle} }
func (f *fakeBackups) RunNow(_ context.Context, passphrase string) (*model.Backup, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	f.ran = append(f.ran, passphrase)
	return &model.Backup{ID: 1, S3Key: "shoplist/x.db.enc", Status: model.BackupStatusCompleted}, nil
}
func (f *fakeBackups) List(context.Context, int) ([]model.Backup, error) { return nil, nil }

func TestBackupHandler(t *testing.T) {
	tests := []struct {
		name string
		b    Backups
		body string
		want int
	}{
		{"not configured", nil, `{"passphrase":"pw"}`, http.StatusServiceUnavailable},
		{"disabled", &fakeBackups{}, `{"passphrase":"pw"}`, http.StatusServiceUnavailable},
		{"missing passphrase", &fakeBackups{enabled: true}, `{}`, http.StatusBadRequest},
		{"bad json", &fakeBackups{enabled: true}, `{`, http.StatusBadRequest},
		{"upload fails", &fakeBackups{enabled: true, runErr: errors.New("s3 down")}, `{"passphrase":"pw"}`, http.StatusBadGateway},
		{"ok", &fakeBackups{enabled: true}, `{"passphrase":"pw"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBackupHandler(tt.b, slog.Default())
			rr := httptest.NewRecorder()
			h.Run(rr, httptest.NewRequest(http.MethodPost, "/api/backups", strings.NewReader(tt.body)))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestBackupList(t *testing.T) {
	h := NewBackupHandler(&fakeBackups{enabled: true}, slog.Default())
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/backups", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"backups":[]`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	db := setupDB(t)
	items := store.NewItemStore(db)
	items.Insert(context.Background(), model.NewShoppingItem("Milk"))

	rr := httptest.NewRecorder()
	Health(db, items)(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"active_items":1`) {
		t.Errorf("health body = %s, want active_items 1", rr.Body.String())
	}

	db.Close()
	rr = httptest.NewRecorder()
	Health(db, items)(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("closed db health = %d", rr.Code)
	}
}
