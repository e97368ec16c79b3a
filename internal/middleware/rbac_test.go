package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/medcore-hms/medcore/internal/audit"
	"github.com/medcore-hms/medcore/internal/authz"
	"github.com/medcore-hms/medcore/internal/db/repositories"
)

var errQuota = errors.New("org_resources unavailable")

func nurseActor() *authz.Actor {
	org := authz.Organization{
		ID:   "org-1",
		Name: "St. Mary's Hospital",
		Type: authz.OrgTypeHospital,
		Plan: authz.PlanBasic,
	}
	return &authz.Actor{
		ID:            "u1",
		Role:          authz.RoleNurse,
		Organizations: []authz.Organization{org},
		CurrentOrg:    &org,
	}
}

// injectActor places the actor in the context the way AuthMiddleware does.
func injectActor(actor *authz.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor != nil {
			c.Set(ActorKey, actor)
		}
		c.Next()
	}
}

// guardRouter runs the given guard middleware behind an injected actor.
func guardRouter(actor *authz.Actor, mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(injectActor(actor))
	r.GET("/resource", mw, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequirePermission_Allowed(t *testing.T) {
	guard := NewGuard(audit.NewRecorder(audit.NewLedger(10)), nil)
	r := guardRouter(nurseActor(), guard.RequirePermission(authz.PermViewPatientRecords))

	if w := doGet(r, "/resource"); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequirePermission_Denied(t *testing.T) {
	ledger := audit.NewLedger(10)
	guard := NewGuard(audit.NewRecorder(ledger), nil)
	r := guardRouter(nurseActor(), guard.RequirePermission(authz.PermManageUsers))

	if w := doGet(r, "/resource"); w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}

	entries := ledger.Snapshot()
	if len(entries) != 1 {
		t.Fatalf("ledger has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != string(audit.EventUnauthorizedAccess) {
		t.Errorf("action = %q, want %q", e.Action, audit.EventUnauthorizedAccess)
	}
	if e.Severity != audit.SeverityCritical {
		t.Errorf("severity = %q, want critical", e.Severity)
	}
	if e.Success {
		t.Error("denial entry marked successful")
	}
	if e.Actor.UserID != "u1" {
		t.Errorf("actor = %+v, want user u1", e.Actor)
	}
}

func TestRequirePermission_AdminBypass(t *testing.T) {
	actor := nurseActor()
	actor.Role = authz.RoleAdmin
	guard := NewGuard(audit.NewRecorder(audit.NewLedger(10)), nil)
	r := guardRouter(actor, guard.RequirePermission(authz.PermManageUsers))

	if w := doGet(r, "/resource"); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequirePermission_NoActor(t *testing.T) {
	guard := NewGuard(audit.NewRecorder(audit.NewLedger(10)), nil)
	r := guardRouter(nil, guard.RequirePermission(authz.PermViewPatientRecords))

	if w := doGet(r, "/resource"); w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRequireAnyPermission(t *testing.T) {
	guard := NewGuard(audit.NewRecorder(audit.NewLedger(10)), nil)

	r := guardRouter(nurseActor(), guard.RequireAnyPermission(
		authz.PermManageUsers, authz.PermViewPatientRecords))
	if w := doGet(r, "/resource"); w.Code != http.StatusOK {
		t.Errorf("one held permission: status = %d, want 200", w.Code)
	}

	r = guardRouter(nurseActor(), guard.RequireAnyPermission(
		authz.PermManageUsers, authz.PermManageBilling))
	if w := doGet(r, "/resource"); w.Code != http.StatusForbidden {
		t.Errorf("no held permissions: status = %d, want 403", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	guard := NewGuard(audit.NewRecorder(audit.NewLedger(10)), nil)

	r := guardRouter(nurseActor(), guard.RequireRole(authz.RoleNurse, authz.RoleHealthcareWorker))
	if w := doGet(r, "/resource"); w.Code != http.StatusOK {
		t.Errorf("matching role: status = %d, want 200", w.Code)
	}

	r = guardRouter(nurseActor(), guard.RequireRole(authz.RoleAccountant))
	if w := doGet(r, "/resource"); w.Code != http.StatusForbidden {
		t.Errorf("non-matching role: status = %d, want 403", w.Code)
	}
}

func TestRequireFeature(t *testing.T) {
	guard := NewGuard(audit.NewRecorder(audit.NewLedger(10)), nil)

	// Basic plan includes appointments but not lab.
	r := guardRouter(nurseActor(), guard.RequireFeature(authz.FeatureAppointments))
	if w := doGet(r, "/resource"); w.Code != http.StatusOK {
		t.Errorf("plan feature: status = %d, want 200", w.Code)
	}

	r = guardRouter(nurseActor(), guard.RequireFeature(authz.FeatureLab))
	if w := doGet(r, "/resource"); w.Code != http.StatusForbidden {
		t.Errorf("missing feature: status = %d, want 403", w.Code)
	}
}

func newMockOrgRepo(t *testing.T) (*repositories.OrganizationRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlmock")
	return repositories.NewOrganizationRepository(db), mock
}

func TestRequireQuota_UnderLimit(t *testing.T) {
	orgs, mock := newMockOrgRepo(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM org_resources").
		WithArgs("org-1", "beds").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))

	guard := NewGuard(audit.NewRecorder(audit.NewLedger(10)), orgs)
	r := guardRouter(nurseActor(), guard.RequireQuota(authz.ResourceBeds))

	if w := doGet(r, "/resource"); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequireQuota_AtLimit(t *testing.T) {
	orgs, mock := newMockOrgRepo(t)
	// Basic plan allows 50 beds.
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM org_resources").
		WithArgs("org-1", "beds").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(50))

	guard := NewGuard(audit.NewRecorder(audit.NewLedger(10)), orgs)
	r := guardRouter(nurseActor(), guard.RequireQuota(authz.ResourceBeds))

	if w := doGet(r, "/resource"); w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRequireQuota_CountError(t *testing.T) {
	orgs, mock := newMockOrgRepo(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM org_resources").
		WillReturnError(errQuota)

	guard := NewGuard(audit.NewRecorder(audit.NewLedger(10)), orgs)
	r := guardRouter(nurseActor(), guard.RequireQuota(authz.ResourceBeds))

	if w := doGet(r, "/resource"); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestRequireQuota_NoOrgContext(t *testing.T) {
	actor := nurseActor()
	actor.CurrentOrg = nil
	guard := NewGuard(audit.NewRecorder(audit.NewLedger(10)), nil)
	r := guardRouter(actor, guard.RequireQuota(authz.ResourceBeds))

	if w := doGet(r, "/resource"); w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
