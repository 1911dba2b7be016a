package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func performRequest(t *testing.T, mw echo.MiddlewareFunc, header string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	rec := performRequest(t, Middleware(issuer), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	token, err := issuer.Issue(Viewer{ID: uuid.New(), Email: "mo@lab.example", Role: RoleMedicalOfficer})
	if err != nil {
		t.Fatal(err)
	}
	rec := performRequest(t, Middleware(issuer), "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func requireRoleRequest(t *testing.T, viewer *Viewer, roles ...Role) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	if viewer != nil {
		req = req.WithContext(ContextWithViewer(req.Context(), *viewer))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequireRole(roles...)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestRequireRole(t *testing.T) {
	mo := &Viewer{ID: uuid.New(), Email: "mo@lab.example", Role: RoleMedicalOfficer}
	admin := &Viewer{ID: uuid.New(), Email: "admin@lab.example", Role: RoleAdmin}
	tech := &Viewer{ID: uuid.New(), Email: "tech@lab.example", Role: RoleLabTechnician}

	if rec := requireRoleRequest(t, mo, RoleMedicalOfficer); rec.Code != http.StatusOK {
		t.Errorf("matching role: expected 200, got %d", rec.Code)
	}
	if rec := requireRoleRequest(t, admin, RoleMedicalOfficer); rec.Code != http.StatusOK {
		t.Errorf("admin bypass: expected 200, got %d", rec.Code)
	}
	if rec := requireRoleRequest(t, tech, RoleMedicalOfficer); rec.Code != http.StatusForbidden {
		t.Errorf("wrong role: expected 403, got %d", rec.Code)
	}
	if rec := requireRoleRequest(t, nil, RoleMedicalOfficer); rec.Code != http.StatusUnauthorized {
		t.Errorf("no viewer: expected 401, got %d", rec.Code)
	}
}
