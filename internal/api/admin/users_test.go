package admin

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/medcore-hms/medcore/internal/audit"
	"github.com/medcore-hms/medcore/internal/authz"
	"github.com/medcore-hms/medcore/internal/db/repositories"
	"github.com/medcore-hms/medcore/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func adminActor() *authz.Actor {
	return &authz.Actor{
		ID:    "admin-1",
		Name:  "Priya Shah",
		Email: "priya@medcore.example",
		Role:  authz.RoleAdmin,
	}
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func userColumns() []string {
	return []string{"id", "email", "name", "role", "password_hash", "status", "created_at", "updated_at"}
}

func userRow(id, email, name, role, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(userColumns()).AddRow(id, email, name, role, "$2a$10$hash", status, now, now)
}

func userTestRouter(t *testing.T, db *sqlx.DB) (*gin.Engine, *audit.Ledger) {
	t.Helper()
	ledger := audit.NewLedger(100)
	recorder := audit.NewRecorder(ledger)
	h := NewUserHandlers(repositories.NewUserRepository(db), recorder)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ActorKey, adminActor())
		c.Next()
	})
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUser)
	r.POST("/users/:id/suspend", h.SuspendUser)
	r.POST("/users/:id/activate", h.ActivateUser)
	return r, ledger
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateUser(t *testing.T) {
	db, mock := newMockDB(t)
	r, ledger := userTestRouter(t, db)

	mock.ExpectQuery(`SELECT \* FROM users WHERE email`).
		WithArgs("dana@stmarys.example").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := doJSON(r, http.MethodPost, "/users", gin.H{
		"email":    "dana@stmarys.example",
		"name":     "Dana Ortiz",
		"role":     "nurse",
		"password": "correct-horse-battery",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["email"] != "dana@stmarys.example" {
		t.Errorf("email = %v", resp["email"])
	}
	if _, leaked := resp["password_hash"]; leaked {
		t.Error("response leaks password_hash")
	}
	if resp["id"] == "" || resp["id"] == nil {
		t.Error("response missing id")
	}

	entries := ledger.Snapshot()
	if len(entries) != 1 {
		t.Fatalf("ledger holds %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != "user.create" {
		t.Errorf("audit action = %q", e.Action)
	}
	if e.Actor.UserID != "admin-1" {
		t.Errorf("audit actor = %q", e.Actor.UserID)
	}
	if !e.Success {
		t.Error("audit entry marked failed")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	r, ledger := userTestRouter(t, db)

	mock.ExpectQuery(`SELECT \* FROM users WHERE email`).
		WithArgs("dana@stmarys.example").
		WillReturnRows(userRow("u1", "dana@stmarys.example", "Dana Ortiz", "nurse", "active"))

	w := doJSON(r, http.MethodPost, "/users", gin.H{
		"email":    "dana@stmarys.example",
		"name":     "Dana Ortiz",
		"role":     "nurse",
		"password": "correct-horse-battery",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if ledger.Len() != 0 {
		t.Error("rejected create was audited")
	}
}

func TestCreateUser_BadRequests(t *testing.T) {
	cases := []struct {
		name string
		body gin.H
	}{
		{"missing email", gin.H{"name": "x", "role": "nurse", "password": "longenough"}},
		{"malformed email", gin.H{"email": "not-an-email", "name": "x", "role": "nurse", "password": "longenough"}},
		{"short password", gin.H{"email": "a@b.example", "name": "x", "role": "nurse", "password": "short"}},
		{"unknown role", gin.H{"email": "a@b.example", "name": "x", "role": "astronaut", "password": "longenough"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, _ := newMockDB(t)
			r, _ := userTestRouter(t, db)
			w := doJSON(r, http.MethodPost, "/users", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	r, _ := userTestRouter(t, db)

	mock.ExpectQuery(`SELECT \* FROM users WHERE id`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	w := doJSON(r, http.MethodGet, "/users/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSuspendUser(t *testing.T) {
	db, mock := newMockDB(t)
	r, ledger := userTestRouter(t, db)

	mock.ExpectQuery(`SELECT \* FROM users WHERE id`).
		WithArgs("u1").
		WillReturnRows(userRow("u1", "dana@stmarys.example", "Dana Ortiz", "nurse", "active"))
	mock.ExpectExec("UPDATE users SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(r, http.MethodPost, "/users/u1/suspend", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	entries := ledger.Snapshot()
	if len(entries) != 1 {
		t.Fatalf("ledger holds %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != "user.suspend" {
		t.Errorf("audit action = %q", e.Action)
	}
	if e.Severity != audit.SeverityCritical {
		t.Errorf("suspend severity = %q, want critical", e.Severity)
	}
	change, ok := e.Changes["status"]
	if !ok {
		t.Fatal("audit entry missing status change")
	}
	if string(change.Old) != `"active"` || string(change.New) != `"suspended"` {
		t.Errorf("status change = %s -> %s", change.Old, change.New)
	}
}

func TestActivateUser(t *testing.T) {
	db, mock := newMockDB(t)
	r, ledger := userTestRouter(t, db)

	mock.ExpectQuery(`SELECT \* FROM users WHERE id`).
		WithArgs("u1").
		WillReturnRows(userRow("u1", "dana@stmarys.example", "Dana Ortiz", "nurse", "suspended"))
	mock.ExpectExec("UPDATE users SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(r, http.MethodPost, "/users/u1/activate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := ledger.Snapshot()[0].Action; got != "user.activate" {
		t.Errorf("audit action = %q", got)
	}
}
