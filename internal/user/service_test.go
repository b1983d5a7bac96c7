package user

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/repository"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn      func(ctx context.Context, id string) (*model.User, error)
	updateProfileFn func(ctx context.Context, user *model.User) error
	deleteByIDFn    func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByUsername(context.Context, string) (*model.User, error) { return nil, nil }
func (m *mockUserRepo) FindByEmail(context.Context, string) (*model.User, error)    { return nil, nil }
func (m *mockUserRepo) Create(context.Context, *model.User) error                   { return nil }
func (m *mockUserRepo) MarkVerified(context.Context, string) error                  { return nil }
func (m *mockUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, user)
	}
	return nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockSessionRepo struct {
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(context.Context, *model.Session) error { return nil }
func (m *mockSessionRepo) FindByID(context.Context, string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(context.Context, string) error { return nil }
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

type fakeHasher struct{}

func (fakeHasher) HashPassword(password string) (string, error) {
	return "hashed:" + password, nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ PasswordHasher = fakeHasher{}

const (
	aliceID = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	bobID   = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
)

func alice() *model.User {
	return &model.User{ID: aliceID, Username: "alice", PasswordHash: "old", FirstName: "Alice"}
}

func findAlice(_ context.Context, id string) (*model.User, error) {
	if id == aliceID {
		return alice(), nil
	}
	return nil, nil
}

func strPtr(s string) *string { return &s }

func assertCode(t *testing.T, err error, code string) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
	return apiErr
}

// --- Retrieve ---

func TestRetrieve_Found(t *testing.T) {
	svc := NewService(&mockUserRepo{findByIDFn: findAlice}, &mockSessionRepo{}, fakeHasher{})

	u, err := svc.Retrieve(context.Background(), aliceID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("Username = %q, want %q", u.Username, "alice")
	}
}

func TestRetrieve_NotFound(t *testing.T) {
	svc := NewService(&mockUserRepo{findByIDFn: findAlice}, &mockSessionRepo{}, fakeHasher{})

	for _, id := range []string{bobID, "42"} {
		_, err := svc.Retrieve(context.Background(), id)
		assertCode(t, err, model.ErrCodeUserNotFound)
	}
}

// --- UpdateSelf ---

func TestUpdateSelf_NamesOnly_KeepsSessions(t *testing.T) {
	var saved *model.User
	repo := &mockUserRepo{
		findByIDFn: findAlice,
		updateProfileFn: func(_ context.Context, u *model.User) error {
			saved = u
			return nil
		},
	}
	sessions := &mockSessionRepo{deleteByUserIDFn: func(context.Context, string) error {
		t.Error("sessions should not be revoked without a password change")
		return nil
	}}
	svc := NewService(repo, sessions, fakeHasher{})

	u, err := svc.UpdateSelf(context.Background(), aliceID, ProfilePatch{LastName: strPtr("Liddell")})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if u.FirstName != "Alice" || u.LastName != "Liddell" {
		t.Errorf("names = %q %q", u.FirstName, u.LastName)
	}
	if saved == nil || saved.PasswordHash != "old" {
		t.Errorf("password hash should be unchanged, saved = %+v", saved)
	}
}

func TestUpdateSelf_Password_HashesAndRevokesSessions(t *testing.T) {
	var saved *model.User
	var revoked string
	repo := &mockUserRepo{
		findByIDFn: findAlice,
		updateProfileFn: func(_ context.Context, u *model.User) error {
			saved = u
			return nil
		},
	}
	sessions := &mockSessionRepo{deleteByUserIDFn: func(_ context.Context, userID string) error {
		revoked = userID
		return nil
	}}
	svc := NewService(repo, sessions, fakeHasher{})

	if _, err := svc.UpdateSelf(context.Background(), aliceID, ProfilePatch{Password: strPtr("n3w-passw0rd")}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if saved.PasswordHash != "hashed:n3w-passw0rd" {
		t.Errorf("PasswordHash = %q", saved.PasswordHash)
	}
	if revoked != aliceID {
		t.Errorf("revoked sessions for %q, want %q", revoked, aliceID)
	}
}

func TestUpdateSelf_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		patch ProfilePatch
		field string
	}{
		{"short password", ProfilePatch{Password: strPtr("short")}, "password"},
		{"long first name", ProfilePatch{FirstName: strPtr(strings.Repeat("a", 151))}, "first_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUserRepo{
				findByIDFn: findAlice,
				updateProfileFn: func(context.Context, *model.User) error {
					t.Error("UpdateProfile should not be called")
					return nil
				},
			}
			svc := NewService(repo, &mockSessionRepo{}, fakeHasher{})

			_, err := svc.UpdateSelf(context.Background(), aliceID, tt.patch)

			apiErr := assertCode(t, err, model.ErrCodeValidationFailed)
			if _, ok := apiErr.Fields[tt.field]; !ok {
				t.Errorf("expected %s field error, got %v", tt.field, apiErr.Fields)
			}
		})
	}
}

// --- Delete ---

func TestDelete_Staff_DeletesUser(t *testing.T) {
	var deleted string
	repo := &mockUserRepo{
		findByIDFn: findAlice,
		deleteByIDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := NewService(repo, &mockSessionRepo{}, fakeHasher{})

	staff := &model.User{ID: bobID, IsStaff: true}
	if err := svc.Delete(context.Background(), staff, aliceID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if deleted != aliceID {
		t.Errorf("deleted = %q, want %q", deleted, aliceID)
	}
}

func TestDelete_NonStaff_Forbidden(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: findAlice,
		deleteByIDFn: func(context.Context, string) error {
			t.Error("DeleteByID should not be called")
			return nil
		},
	}
	svc := NewService(repo, &mockSessionRepo{}, fakeHasher{})

	err := svc.Delete(context.Background(), &model.User{ID: bobID}, aliceID)
	assertCode(t, err, model.ErrCodeForbidden)

	err = svc.Delete(context.Background(), nil, aliceID)
	assertCode(t, err, model.ErrCodeForbidden)
}

func TestDelete_Missing_NotFound(t *testing.T) {
	svc := NewService(&mockUserRepo{findByIDFn: findAlice}, &mockSessionRepo{}, fakeHasher{})

	err := svc.Delete(context.Background(), &model.User{ID: bobID, IsStaff: true}, bobID)
	assertCode(t, err, model.ErrCodeUserNotFound)
}

func TestDelete_RepositoryError_IsWrapped(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn:   findAlice,
		deleteByIDFn: func(context.Context, string) error { return errors.New("db down") },
	}
	svc := NewService(repo, &mockSessionRepo{}, fakeHasher{})

	err := svc.Delete(context.Background(), &model.User{ID: bobID, IsStaff: true}, aliceID)

	var apiErr *model.APIError
	if err == nil || errors.As(err, &apiErr) {
		t.Fatalf("expected infra error, got %v", err)
	}
}
