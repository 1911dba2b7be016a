package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	viewer := Viewer{ID: uuid.New(), Email: "tech@lab.example", Role: RoleLabTechnician}

	token, err := issuer.Issue(viewer)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := issuer.Parse(token)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.ID != viewer.ID {
		t.Errorf("expected id %s, got %s", viewer.ID, parsed.ID)
	}
	if parsed.Email != viewer.Email {
		t.Errorf("expected email %s, got %s", viewer.Email, parsed.Email)
	}
	if parsed.Role != RoleLabTechnician {
		t.Errorf("expected role lab_technician, got %s", parsed.Role)
	}
}

func TestParseExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123456789abcdef", -time.Minute)
	token, err := issuer.Issue(Viewer{ID: uuid.New(), Email: "x@lab.example", Role: RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	other := NewTokenIssuer("ffffffffffffffffffffffffffffffff", time.Hour)

	token, err := issuer.Issue(Viewer{ID: uuid.New(), Email: "x@lab.example", Role: RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseRejectsUnknownRole(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	token, err := issuer.Issue(Viewer{ID: uuid.New(), Email: "x@lab.example", Role: Role("intruder")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Parse(token); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleLabTechnician, RoleMedicalOfficer, RolePathologist, RoleHealthOfficer, RoleAdmin} {
		if !r.Valid() {
			t.Errorf("role %s should be valid", r)
		}
	}
	if Role("nurse").Valid() {
		t.Error("unknown role should not be valid")
	}
}
