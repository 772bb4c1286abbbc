package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/log-center/log-center/internal/config"
)

// ---------------------------------------------------------------------------
// Test setup helpers
// ---------------------------------------------------------------------------

// newKeyRouter creates a gin router with all APIKeyHandlers routes registered.
func newKeyRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewAPIKeyHandlers(&config.Config{}, db)

	r := gin.New()
	r.POST("/keys/create", h.CreateKeyHandler())
	r.POST("/keys/deactivate/:token", h.DeactivateKeyHandler())
	r.POST("/keys/deactivate-by-owner/:email", h.DeactivateByOwnerHandler())
	r.GET("/keys/active/", h.ListActiveHandler())
	r.GET("/keys/active/:email", h.ListActiveForOwnerHandler())
	r.GET("/keys/deactivated/", h.ListDeactivatedHandler())

	return mock, r
}

// expectIssue scripts one successful issuance transaction against the given
// holder and kind tables.
func expectIssue(mock sqlmock.Sqlmock, holderTable, keyTable string) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT active FROM " + holderTable).
		WillReturnRows(sqlmock.NewRows([]string{"active"}).AddRow(true))
	mock.ExpectExec("INSERT INTO api_key_tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO " + keyTable).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

// ---------------------------------------------------------------------------
// CreateKeyHandler
// ---------------------------------------------------------------------------

func TestCreateKeyHandler_UserKey(t *testing.T) {
	mock, r := newKeyRouter(t)
	expectIssue(mock, "key_holders", "user_api_keys")

	w := postJSON(r, "/keys/create", gin.H{
		"owner_email": "alice@example.com",
		"kind":        "user",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	resp := getJSON(w)
	key, ok := resp["key"].(map[string]interface{})
	if !ok {
		t.Fatalf("response missing 'key' object: %s", w.Body.String())
	}
	token, _ := key["token"].(string)
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64", len(token))
	}
	if key["kind"] != "USER" {
		t.Errorf("kind = %v, want USER", key["kind"])
	}
}

func TestCreateKeyHandler_ProcessKey(t *testing.T) {
	mock, r := newKeyRouter(t)
	expectIssue(mock, "key_holders", "process_api_keys")

	w := postJSON(r, "/keys/create", gin.H{
		"owner_email":  "alice@example.com",
		"kind":         "process",
		"process_name": "billing-worker",
		"environment":  "production",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	resp := getJSON(w)
	key := resp["key"].(map[string]interface{})
	if key["process_name"] != "billing-worker" {
		t.Errorf("process_name = %v, want billing-worker", key["process_name"])
	}
	if key["environment"] != "PRODUCTION" {
		t.Errorf("environment = %v, want PRODUCTION", key["environment"])
	}
}

func TestCreateKeyHandler_AdminKeyUsesAdminRegistry(t *testing.T) {
	mock, r := newKeyRouter(t)
	expectIssue(mock, "admin_key_holders", "admin_api_keys")

	w := postJSON(r, "/keys/create", gin.H{
		"owner_email": "root@example.com",
		"kind":        "admin",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
}

func TestCreateKeyHandler_ProcessKeyMissingFields(t *testing.T) {
	_, r := newKeyRouter(t)

	w := postJSON(r, "/keys/create", gin.H{
		"owner_email": "alice@example.com",
		"kind":        "process",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateKeyHandler_InvalidKind(t *testing.T) {
	_, r := newKeyRouter(t)

	w := postJSON(r, "/keys/create", gin.H{
		"owner_email": "alice@example.com",
		"kind":        "superuser",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateKeyHandler_InvalidEnvironment(t *testing.T) {
	_, r := newKeyRouter(t)

	w := postJSON(r, "/keys/create", gin.H{
		"owner_email":  "alice@example.com",
		"kind":         "process",
		"process_name": "worker",
		"environment":  "staging",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateKeyHandler_HolderNotApproved(t *testing.T) {
	mock, r := newKeyRouter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT active FROM key_holders").
		WillReturnRows(sqlmock.NewRows([]string{"active"}))
	mock.ExpectRollback()

	w := postJSON(r, "/keys/create", gin.H{
		"owner_email": "ghost@example.com",
		"kind":        "user",
	})

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestCreateKeyHandler_DeactivatedHolder(t *testing.T) {
	mock, r := newKeyRouter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT active FROM key_holders").
		WillReturnRows(sqlmock.NewRows([]string{"active"}).AddRow(false))
	mock.ExpectRollback()

	w := postJSON(r, "/keys/create", gin.H{
		"owner_email": "former@example.com",
		"kind":        "user",
	})

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

// ---------------------------------------------------------------------------
// DeactivateKeyHandler
// ---------------------------------------------------------------------------

func TestDeactivateKeyHandler_Success(t *testing.T) {
	mock, r := newKeyRouter(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE user_api_keys").
		WillReturnRows(sqlmock.NewRows(keySQLCols).
			AddRow("a1b2", "alice@example.com", "USER", nil, nil, false, now.Add(-time.Hour), now))
	mock.ExpectCommit()

	w := postJSON(r, "/keys/deactivate/a1b2", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := getJSON(w)
	if resp["key"] == nil {
		t.Error("response missing 'key'")
	}
}

func TestDeactivateKeyHandler_NotFound(t *testing.T) {
	mock, r := newKeyRouter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE user_api_keys").
		WillReturnRows(sqlmock.NewRows(keySQLCols))
	mock.ExpectQuery("UPDATE process_api_keys").
		WillReturnRows(sqlmock.NewRows(keySQLCols))
	mock.ExpectQuery("UPDATE admin_api_keys").
		WillReturnRows(sqlmock.NewRows(keySQLCols))
	mock.ExpectRollback()

	w := postJSON(r, "/keys/deactivate/unknown", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// DeactivateByOwnerHandler
// ---------------------------------------------------------------------------

func TestDeactivateByOwnerHandler_Success(t *testing.T) {
	mock, r := newKeyRouter(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE user_api_keys").
		WillReturnRows(sqlmock.NewRows(keySQLCols).
			AddRow("a1b2", "alice@example.com", "USER", nil, nil, false, now.Add(-time.Hour), now))
	mock.ExpectQuery("UPDATE process_api_keys").
		WillReturnRows(sqlmock.NewRows(keySQLCols))
	mock.ExpectCommit()

	w := postJSON(r, "/keys/deactivate-by-owner/alice@example.com", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := getJSON(w)
	keys, ok := resp["keys"].([]interface{})
	if !ok || len(keys) != 1 {
		t.Errorf("keys = %v, want 1 entry", resp["keys"])
	}
}

func TestDeactivateByOwnerHandler_NoActiveKeys(t *testing.T) {
	mock, r := newKeyRouter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE user_api_keys").
		WillReturnRows(sqlmock.NewRows(keySQLCols))
	mock.ExpectQuery("UPDATE process_api_keys").
		WillReturnRows(sqlmock.NewRows(keySQLCols))
	mock.ExpectRollback()

	w := postJSON(r, "/keys/deactivate-by-owner/ghost@example.com", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Listings
// ---------------------------------------------------------------------------

func TestListActiveHandler_Success(t *testing.T) {
	mock, r := newKeyRouter(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM user_api_keys").
		WillReturnRows(sqlmock.NewRows(keySQLCols).
			AddRow("a1b2", "alice@example.com", "USER", nil, nil, true, now, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/keys/active/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	resp := getJSON(w)
	keys, ok := resp["keys"].([]interface{})
	if !ok || len(keys) != 1 {
		t.Errorf("keys = %v, want 1 entry", resp["keys"])
	}
}

func TestListActiveForOwnerHandler_EmptyIsOK(t *testing.T) {
	mock, r := newKeyRouter(t)

	mock.ExpectQuery("FROM user_api_keys").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(keySQLCols))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/keys/active/alice@example.com", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	resp := getJSON(w)
	keys, ok := resp["keys"].([]interface{})
	if !ok {
		t.Fatalf("keys should be an empty array, got %v", resp["keys"])
	}
	if len(keys) != 0 {
		t.Errorf("keys length = %d, want 0", len(keys))
	}
}

func TestListDeactivatedHandler_DBError(t *testing.T) {
	mock, r := newKeyRouter(t)

	mock.ExpectQuery("FROM user_api_keys").
		WillReturnError(sqlmock.ErrCancelled)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/keys/deactivated/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
