package access

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/medcore-hms/medcore/internal/authz"
	"github.com/medcore-hms/medcore/internal/db/repositories"
	"github.com/medcore-hms/medcore/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func nurseActor() *authz.Actor {
	org := authz.Organization{
		ID:   "org-1",
		Name: "St. Mary's Hospital",
		Type: authz.OrgTypeHospital,
		Plan: authz.PlanBasic,
	}
	return &authz.Actor{
		ID:            "u1",
		Name:          "Dana Ortiz",
		Email:         "dana@stmarys.example",
		Role:          authz.RoleNurse,
		Organizations: []authz.Organization{org},
		CurrentOrg:    &org,
	}
}

func newMockOrgRepo(t *testing.T) (*repositories.OrganizationRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return repositories.NewOrganizationRepository(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func accessRouter(actor *authz.Actor, orgs *repositories.OrganizationRepository) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if actor != nil {
			c.Set(middleware.ActorKey, actor)
		}
		c.Next()
	})
	h := NewHandlers(orgs)
	r.GET("/me/permissions", h.MePermissions)
	r.GET("/access/feature/:tag", h.CheckFeature)
	r.GET("/access/quota/:kind", h.CheckQuota)
	return r
}

func doGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMePermissions(t *testing.T) {
	orgs, _ := newMockOrgRepo(t)
	w := doGet(accessRouter(nurseActor(), orgs), "/me/permissions")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		UserID      string   `json:"user_id"`
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Role != "nurse" {
		t.Errorf("role = %q, want nurse", resp.Role)
	}
	found := false
	for _, p := range resp.Permissions {
		if p == "view_patient_records" {
			found = true
		}
		if p == "manage_users" {
			t.Error("nurse granted manage_users")
		}
	}
	if !found {
		t.Error("nurse missing view_patient_records")
	}
}

func TestMePermissions_Unauthenticated(t *testing.T) {
	orgs, _ := newMockOrgRepo(t)
	w := doGet(accessRouter(nil, orgs), "/me/permissions")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCheckFeature(t *testing.T) {
	orgs, _ := newMockOrgRepo(t)
	r := accessRouter(nurseActor(), orgs)

	cases := []struct {
		tag     string
		allowed bool
	}{
		{"appointments", true}, // in the basic plan
		{"lab", false},         // professional and up
		{"bogus", false},       // unknown tags are in no plan
	}
	for _, tc := range cases {
		t.Run(tc.tag, func(t *testing.T) {
			w := doGet(r, "/access/feature/"+tc.tag)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var resp struct {
				Allowed bool `json:"allowed"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Allowed != tc.allowed {
				t.Errorf("allowed = %v, want %v", resp.Allowed, tc.allowed)
			}
		})
	}
}

func TestCheckQuota(t *testing.T) {
	orgs, mock := newMockOrgRepo(t)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("org-1", "beds").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(48))

	w := doGet(accessRouter(nurseActor(), orgs), "/access/quota/beds")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Allowed      bool `json:"allowed"`
		Limit        int  `json:"limit"`
		CurrentCount int  `json:"current_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Allowed {
		t.Error("allowed = false at 48 of 50 beds")
	}
	if resp.Limit != 50 {
		t.Errorf("limit = %d, want 50", resp.Limit)
	}
	if resp.CurrentCount != 48 {
		t.Errorf("current_count = %d, want 48", resp.CurrentCount)
	}
}

func TestCheckQuota_UnknownKind(t *testing.T) {
	orgs, _ := newMockOrgRepo(t)
	w := doGet(accessRouter(nurseActor(), orgs), "/access/quota/helipads")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCheckQuota_NoOrgContext(t *testing.T) {
	orgs, _ := newMockOrgRepo(t)
	actor := nurseActor()
	actor.CurrentOrg = nil
	w := doGet(accessRouter(actor, orgs), "/access/quota/beds")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
