package service

import (
	"context"
	"testing"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.auth.Register(ctx, RegisterInput{Name: "Bruna", Email: "Bruna@Example.com", Password: "s3cretpass"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.User.Role != domain.RoleClient || session.User.Email != "bruna@example.com" || session.Token == "" {
		t.Fatalf("unexpected session %+v", session.User)
	}
	claims, err := h.auth.TokenManager().ParseToken(session.Token)
	if err != nil || claims.Subject != session.User.ID {
		t.Fatalf("token does not carry the account: %v", err)
	}

	_, err = h.auth.Register(ctx, RegisterInput{Name: "Other", Email: "bruna@example.com", Password: "s3cretpass"})
	requireCode(t, err, apperrors.CodeConflict)

	if _, err := h.auth.Login(ctx, "BRUNA@example.com", "s3cretpass"); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, err = h.auth.Login(ctx, "bruna@example.com", "wrong-password")
	requireCode(t, err, apperrors.CodeUnauthorized)
	_, err = h.auth.Login(ctx, "nobody@example.com", "s3cretpass")
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cases := []RegisterInput{
		{Name: "", Email: "a@example.com", Password: "s3cretpass"},
		{Name: "A", Email: "not-an-email", Password: "s3cretpass"},
		{Name: "A", Email: "a@example.com", Password: "short"},
		{Name: "A", Email: "a@example.com", Password: "s3cretpass", Role: domain.RoleAdmin},
		{Name: "A", Email: "a@example.com", Password: "s3cretpass", Role: domain.RoleTechnician},
	}
	for i, input := range cases {
		if _, err := h.auth.Register(ctx, input); !apperrors.HasCode(err, apperrors.CodeValidationFailed) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestRegisterTechnicianCreatesDirectoryEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.auth.Register(ctx, RegisterInput{
		Name:     "Diego",
		Email:    "diego@example.com",
		Password: "s3cretpass",
		Role:     domain.RoleTechnician,
		Profile:  &TechnicianInput{Specialties: []string{"Phone"}, Position: saoPaulo, Available: true},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	tech, err := h.technicians.Get(ctx, session.User.ID)
	if err != nil {
		t.Fatalf("directory entry missing: %v", err)
	}
	if tech.Name != "Diego" || !tech.Available {
		t.Fatalf("unexpected entry %+v", tech)
	}
}

func TestEnsureAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.auth.EnsureAdmin(ctx, "Root", "root@example.com", "s3cretpass")
	if err != nil || first.Role != domain.RoleAdmin {
		t.Fatalf("ensure admin: %+v %v", first, err)
	}
	second, err := h.auth.EnsureAdmin(ctx, "Root", "root@example.com", "s3cretpass")
	if err != nil || second.ID != first.ID {
		t.Fatalf("ensure admin is not idempotent: %v", err)
	}

	if _, err := h.auth.Register(ctx, RegisterInput{Name: "C", Email: "c@example.com", Password: "s3cretpass"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = h.auth.EnsureAdmin(ctx, "C", "c@example.com", "s3cretpass")
	requireCode(t, err, apperrors.CodeConflict)
}
