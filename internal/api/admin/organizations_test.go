package admin

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/medcore-hms/medcore/internal/audit"
	"github.com/medcore-hms/medcore/internal/db/repositories"
	"github.com/medcore-hms/medcore/internal/middleware"
)

func orgColumns() []string {
	return []string{"id", "name", "type", "plan", "created_at", "updated_at"}
}

func orgRow(id, name, orgType, plan string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(orgColumns()).AddRow(id, name, orgType, plan, now, now)
}

func orgTestRouter(t *testing.T, db *sqlx.DB) (*gin.Engine, *audit.Ledger) {
	t.Helper()
	ledger := audit.NewLedger(100)
	recorder := audit.NewRecorder(ledger)
	h := NewOrganizationHandlers(repositories.NewOrganizationRepository(db), recorder)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ActorKey, adminActor())
		c.Next()
	})
	r.POST("/organizations", h.CreateOrganization)
	r.GET("/organizations/:id", h.GetOrganization)
	r.POST("/organizations/:id/members", h.AddMember)
	r.POST("/organizations/:id/resources", h.AddResource)
	r.DELETE("/organizations/:id/resources/:resource_id", h.RemoveResource)
	return r, ledger
}

func TestCreateOrganization(t *testing.T) {
	db, mock := newMockDB(t)
	r, ledger := orgTestRouter(t, db)

	mock.ExpectExec("INSERT INTO organizations").
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := doJSON(r, http.MethodPost, "/organizations", gin.H{
		"name": "Northside Clinic",
		"type": "clinic",
		"plan": "professional",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	entries := ledger.Snapshot()
	if len(entries) != 1 {
		t.Fatalf("ledger holds %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != "admin.org_create" {
		t.Errorf("audit action = %q", e.Action)
	}
	if e.Severity != audit.SeverityCritical {
		t.Errorf("org create severity = %q, want critical", e.Severity)
	}
}

func TestCreateOrganization_DefaultsToBasicPlan(t *testing.T) {
	db, mock := newMockDB(t)
	r, _ := orgTestRouter(t, db)

	mock.ExpectExec("INSERT INTO organizations").
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := doJSON(r, http.MethodPost, "/organizations", gin.H{
		"name": "Westbrook Pharmacy",
		"type": "pharmacy",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Plan string `json:"plan"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Plan != "basic" {
		t.Errorf("plan = %q, want basic", resp.Plan)
	}
}

func TestCreateOrganization_BadRequests(t *testing.T) {
	cases := []struct {
		name string
		body gin.H
	}{
		{"missing name", gin.H{"type": "clinic"}},
		{"unknown type", gin.H{"name": "x", "type": "food_truck"}},
		{"unknown plan", gin.H{"name": "x", "type": "clinic", "plan": "platinum"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, _ := newMockDB(t)
			r, _ := orgTestRouter(t, db)
			w := doJSON(r, http.MethodPost, "/organizations", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGetOrganization(t *testing.T) {
	db, mock := newMockDB(t)
	r, _ := orgTestRouter(t, db)

	mock.ExpectQuery(`SELECT \* FROM organizations WHERE id`).
		WithArgs("org-1").
		WillReturnRows(orgRow("org-1", "St. Mary's Hospital", "hospital", "basic"))
	// One count per resource kind: departments, rooms, beds, staff.
	for range 4 {
		mock.ExpectQuery("SELECT COUNT.*FROM org_resources").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	}

	w := doJSON(r, http.MethodGet, "/organizations/org-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ResourceCounts map[string]int `json:"resource_counts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.ResourceCounts) != 4 {
		t.Errorf("resource_counts has %d kinds, want 4", len(resp.ResourceCounts))
	}
	if resp.ResourceCounts["beds"] != 2 {
		t.Errorf("beds count = %d, want 2", resp.ResourceCounts["beds"])
	}
}

func TestAddResource(t *testing.T) {
	db, mock := newMockDB(t)
	r, _ := orgTestRouter(t, db)

	mock.ExpectQuery(`SELECT \* FROM organizations WHERE id`).
		WithArgs("org-1").
		WillReturnRows(orgRow("org-1", "St. Mary's Hospital", "hospital", "basic"))
	mock.ExpectQuery("SELECT COUNT.*FROM org_resources").
		WithArgs("org-1", "beds").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	mock.ExpectExec("INSERT INTO org_resources").
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := doJSON(r, http.MethodPost, "/organizations/org-1/resources", gin.H{
		"kind": "beds",
		"name": "Ward B bed 11",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAddResource_QuotaExceeded(t *testing.T) {
	db, mock := newMockDB(t)
	r, _ := orgTestRouter(t, db)

	// Basic plan allows 50 beds; the org is already at the limit.
	mock.ExpectQuery(`SELECT \* FROM organizations WHERE id`).
		WithArgs("org-1").
		WillReturnRows(orgRow("org-1", "St. Mary's Hospital", "hospital", "basic"))
	mock.ExpectQuery("SELECT COUNT.*FROM org_resources").
		WithArgs("org-1", "beds").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(50))

	w := doJSON(r, http.MethodPost, "/organizations/org-1/resources", gin.H{
		"kind": "beds",
		"name": "Ward B bed 51",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Limit != 50 {
		t.Errorf("limit = %d, want 50", resp.Limit)
	}
}

func TestAddResource_EnterpriseUnlimited(t *testing.T) {
	db, mock := newMockDB(t)
	r, _ := orgTestRouter(t, db)

	mock.ExpectQuery(`SELECT \* FROM organizations WHERE id`).
		WithArgs("org-2").
		WillReturnRows(orgRow("org-2", "Medcore HQ", "headquarters", "enterprise"))
	mock.ExpectQuery("SELECT COUNT.*FROM org_resources").
		WithArgs("org-2", "staff").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(100000))
	mock.ExpectExec("INSERT INTO org_resources").
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := doJSON(r, http.MethodPost, "/organizations/org-2/resources", gin.H{
		"kind": "staff",
		"name": "Night shift charge nurse",
	})
	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
}

func TestAddResource_UnknownKind(t *testing.T) {
	db, _ := newMockDB(t)
	r, _ := orgTestRouter(t, db)

	w := doJSON(r, http.MethodPost, "/organizations/org-1/resources", gin.H{
		"kind": "helipads",
		"name": "Roof pad",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAddResource_OrgNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	r, _ := orgTestRouter(t, db)

	mock.ExpectQuery(`SELECT \* FROM organizations WHERE id`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	w := doJSON(r, http.MethodPost, "/organizations/nope/resources", gin.H{
		"kind": "rooms",
		"name": "Exam room 3",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRemoveResource(t *testing.T) {
	db, mock := newMockDB(t)
	r, _ := orgTestRouter(t, db)

	mock.ExpectExec("DELETE FROM org_resources").
		WithArgs("res-9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(r, http.MethodDelete, "/organizations/org-1/resources/res-9", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
