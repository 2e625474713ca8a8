package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repository
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users       map[int64]*domain.User
	nextID      int64
	emailLookup int   // number of FindByEmail calls
	updateErr   error // if set, Update returns this error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[int64]*domain.User)}
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	stored := copyUser(user)
	stored.ID = r.nextID
	r.users[stored.ID] = stored
	return copyUser(stored), nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.emailLookup++
	for _, u := range r.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) List(_ context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	if _, ok := r.users[user.ID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	for _, u := range r.users {
		if u.ID != user.ID && u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.users[user.ID] = copyUser(user)
	return copyUser(user), nil
}

func (r *stubUserRepo) SetLastLogin(_ context.Context, id int64, at time.Time) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.LastLogin = &at
	return copyUser(u), nil
}

func (r *stubUserRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *stubUserRepo) Ping(context.Context) error { return nil }

func newTestCredentialStore(repo ports.UserRepository) *CredentialStore {
	return NewCredentialStore(repo, bcrypt.MinCost, zerolog.Nop())
}

func janeInput() ports.NewUserInput {
	return ports.NewUserInput{
		FullName: "Jane Doe",
		Email:    "Jane@Example.com ",
		Password: "secret123",
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCredentialStore_Create_HashesAndSanitizes(t *testing.T) {
	repo := newStubUserRepo()
	store := newTestCredentialStore(repo)

	user, err := store.Create(context.Background(), janeInput())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if user.PasswordHash != "" {
		t.Fatalf("expected sanitized user, got hash %q", user.PasswordHash)
	}
	if user.Email != "jane@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("expected default role user, got %q", user.Role)
	}
	if user.Avatar != nil || user.LastLogin != nil {
		t.Fatalf("expected nil avatar and lastLogin, got %+v", user)
	}

	stored := repo.users[user.ID]
	if stored.PasswordHash == "secret123" {
		t.Fatalf("password stored in clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")); err != nil {
		t.Fatalf("stored hash does not match: %v", err)
	}
}

func TestCredentialStore_Create_Duplicate(t *testing.T) {
	store := newTestCredentialStore(newStubUserRepo())
	ctx := context.Background()

	if _, err := store.Create(ctx, janeInput()); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	in := janeInput()
	in.Email = "JANE@example.com"
	if _, err := store.Create(ctx, in); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestCredentialStore_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ports.NewUserInput)
		reason string
	}{
		{"bad email", func(in *ports.NewUserInput) { in.Email = "not-an-email" }, "Invalid email format"},
		{"short password", func(in *ports.NewUserInput) { in.Password = "12345" }, "Password must be at least 6 characters long"},
		{"short name", func(in *ports.NewUserInput) { in.FullName = "J" }, "fullName must be at least 2 characters long"},
		{"bad role", func(in *ports.NewUserInput) { in.Role = "root" }, `Role must be either "admin" or "user"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubUserRepo()
			store := newTestCredentialStore(repo)
			in := janeInput()
			tc.mutate(&in)

			_, err := store.Create(context.Background(), in)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if err.Error() != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, err.Error())
			}
			if len(repo.users) != 0 {
				t.Fatalf("expected no user persisted")
			}
		})
	}
}

func TestCredentialStore_FindByEmail_HashOnlyOnRequest(t *testing.T) {
	store := newTestCredentialStore(newStubUserRepo())
	ctx := context.Background()
	if _, err := store.Create(ctx, janeInput()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	plain, err := store.FindByEmail(ctx, "JANE@example.com", false)
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if plain.PasswordHash != "" {
		t.Fatalf("expected no hash without includeHash")
	}

	withHash, err := store.FindByEmail(ctx, "jane@example.com", true)
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if withHash.PasswordHash == "" {
		t.Fatalf("expected hash with includeHash")
	}
	if !store.VerifyPassword(withHash, "secret123") {
		t.Fatalf("expected password to verify")
	}
	if store.VerifyPassword(withHash, "wrong-pass") {
		t.Fatalf("expected wrong password to fail")
	}
	if store.VerifyPassword(plain, "secret123") {
		t.Fatalf("expected sanitized user to never verify")
	}
}

func TestCredentialStore_LongPasswords(t *testing.T) {
	store := newTestCredentialStore(newStubUserRepo())
	ctx := context.Background()

	long := strings.Repeat("a", 100)
	in := janeInput()
	in.Password = long
	if _, err := store.Create(ctx, in); err != nil {
		t.Fatalf("Create with long password: %v", err)
	}

	user, err := store.FindByEmail(ctx, in.Email, true)
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if !store.VerifyPassword(user, long) {
		t.Fatalf("expected long password to verify")
	}
	// Differs only after byte 72.
	if store.VerifyPassword(user, strings.Repeat("a", 99)+"b") {
		t.Fatalf("expected passwords differing past 72 bytes to be distinct")
	}
}

func TestCredentialStore_VerifyPassword_NoUser(t *testing.T) {
	store := NewCredentialStore(newStubUserRepo(), bcrypt.MinCost+1, zerolog.Nop())

	if store.VerifyPassword(nil, "no-such-account") {
		t.Fatalf("expected a missing user never to verify")
	}
	if store.VerifyPassword(&domain.User{ID: 1}, "secret123") {
		t.Fatalf("expected a user without a hash never to verify")
	}
	cost, err := bcrypt.Cost(store.dummyHash)
	if err != nil {
		t.Fatalf("dummy hash: %v", err)
	}
	if cost != bcrypt.MinCost+1 {
		t.Fatalf("expected the dummy hash at the configured cost, got %d", cost)
	}
}

func TestCredentialStore_Update_PartialFields(t *testing.T) {
	repo := newStubUserRepo()
	store := newTestCredentialStore(repo)
	ctx := context.Background()

	created, err := store.Create(ctx, janeInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	hashBefore := repo.users[created.ID].PasswordHash

	name := "Jane Smith"
	updated, err := store.Update(ctx, created.ID, ports.UserChanges{FullName: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.FullName != "Jane Smith" || updated.Email != "jane@example.com" {
		t.Fatalf("unexpected user after update: %+v", updated)
	}
	if repo.users[created.ID].PasswordHash != hashBefore {
		t.Fatalf("password hash changed without a password update")
	}

	password := "another-secret"
	if _, err := store.Update(ctx, created.ID, ports.UserChanges{Password: &password}); err != nil {
		t.Fatalf("Update password: %v", err)
	}
	user, _ := store.FindByEmail(ctx, "jane@example.com", true)
	if !store.VerifyPassword(user, "another-secret") {
		t.Fatalf("expected new password to verify")
	}
}

func TestCredentialStore_Update_SameEmailSkipsConflictCheck(t *testing.T) {
	repo := newStubUserRepo()
	store := newTestCredentialStore(repo)
	ctx := context.Background()

	created, err := store.Create(ctx, janeInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	repo.emailLookup = 0

	email := "JANE@example.com"
	if _, err := store.Update(ctx, created.ID, ports.UserChanges{Email: &email}); err != nil {
		t.Fatalf("Update with same email: %v", err)
	}
	if repo.emailLookup != 0 {
		t.Fatalf("expected no email lookup, got %d", repo.emailLookup)
	}
}

func TestCredentialStore_Update_EmailTaken(t *testing.T) {
	store := newTestCredentialStore(newStubUserRepo())
	ctx := context.Background()

	jane, err := store.Create(ctx, janeInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	other := janeInput()
	other.Email = "john@example.com"
	if _, err := store.Create(ctx, other); err != nil {
		t.Fatalf("Create: %v", err)
	}

	email := "john@example.com"
	if _, err := store.Update(ctx, jane.ID, ports.UserChanges{Email: &email}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestCredentialStore_Update_NotFound(t *testing.T) {
	store := newTestCredentialStore(newStubUserRepo())
	name := "Nobody"
	if _, err := store.Update(context.Background(), 99, ports.UserChanges{FullName: &name}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCredentialStore_RecordLogin_StrictlyIncreasing(t *testing.T) {
	repo := newStubUserRepo()
	store := newTestCredentialStore(repo)
	ctx := context.Background()

	created, err := store.Create(ctx, janeInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	frozen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return frozen }

	first, err := store.RecordLogin(ctx, repo.users[created.ID])
	if err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	second, err := store.RecordLogin(ctx, copyUser(repo.users[created.ID]))
	if err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	if first.LastLogin == nil || second.LastLogin == nil {
		t.Fatalf("expected lastLogin to be set")
	}
	if !second.LastLogin.After(*first.LastLogin) {
		t.Fatalf("expected %v to be after %v", second.LastLogin, first.LastLogin)
	}
	if second.PasswordHash != "" {
		t.Fatalf("expected sanitized user")
	}
	if repo.users[created.ID].PasswordHash == "" {
		t.Fatalf("RecordLogin must not clear the stored hash")
	}
}

func TestCredentialStore_Delete(t *testing.T) {
	repo := newStubUserRepo()
	store := newTestCredentialStore(repo)
	ctx := context.Background()

	created, err := store.Create(ctx, janeInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, created.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on second delete, got %v", err)
	}
}
