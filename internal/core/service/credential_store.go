package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

// bcrypt ignores input past 72 bytes; longer passwords are pre-hashed.
const bcryptMaxInput = 72

// CredentialStore validates, hashes and persists user records on top of a
// ports.UserRepository.
type CredentialStore struct {
	repo ports.UserRepository
	cost int
	log  zerolog.Logger
	now  func() time.Time
	// dummyHash is compared against when there is no stored hash, so a
	// missing account costs as much as a wrong password.
	dummyHash []byte
}

func NewCredentialStore(repo ports.UserRepository, bcryptCost int, log zerolog.Logger) *CredentialStore {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("no-such-account"), bcryptCost)
	if err != nil {
		log.Warn().Err(err).Msg("could not prepare dummy password hash")
	}
	return &CredentialStore{repo: repo, cost: bcryptCost, log: log, now: time.Now, dummyHash: dummy}
}

// Create validates in, hashes the password and inserts the user. The returned
// user carries no password hash.
func (s *CredentialStore) Create(ctx context.Context, in ports.NewUserInput) (*domain.User, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	user := &domain.User{
		FullName: strings.TrimSpace(in.FullName),
		Email:    normalizeEmail(in.Email),
		Avatar:   in.Avatar,
		Role:     role,
	}

	checks := []struct{ name, value string }{
		{"fullName", user.FullName},
		{"email", user.Email},
		{"password", in.Password},
		{"role", string(role)},
	}
	if in.Avatar != nil {
		checks = append(checks, struct{ name, value string }{"avatar", *in.Avatar})
	}
	for _, c := range checks {
		if err := validateField(c.name, c.value); err != nil {
			return nil, err
		}
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("create user: hash password: %w", err)
	}
	user.PasswordHash = hash
	user.CreatedAt = s.now().UTC().Truncate(time.Microsecond)

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Int64("user_id", created.ID).Str("role", string(created.Role)).Msg("user created")
	return created.Sanitized(), nil
}

// FindByEmail looks a user up by email. The hash is only kept when includeHash
// is set.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string, includeHash bool) (*domain.User, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if includeHash {
		return user, nil
	}
	return user.Sanitized(), nil
}

func (s *CredentialStore) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *CredentialStore) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]*domain.User, len(users))
	for i, u := range users {
		out[i] = u.Sanitized()
	}
	return out, nil
}

// Update applies the supplied fields only. The password is re-hashed only when
// it is part of the change set.
func (s *CredentialStore) Update(ctx context.Context, id int64, changes ports.UserChanges) (*domain.User, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes.Empty() {
		return current.Sanitized(), nil
	}

	if changes.FullName != nil {
		name := strings.TrimSpace(*changes.FullName)
		if err := validateField("fullName", name); err != nil {
			return nil, err
		}
		current.FullName = name
	}

	if changes.Email != nil {
		email := normalizeEmail(*changes.Email)
		if err := validateField("email", email); err != nil {
			return nil, err
		}
		if email != current.Email {
			existing, err := s.repo.FindByEmail(ctx, email)
			switch {
			case err == nil && existing.ID != id:
				return nil, domain.ErrEmailTaken
			case err != nil && !errors.Is(err, domain.ErrUserNotFound):
				return nil, fmt.Errorf("update user: check email: %w", err)
			}
			current.Email = email
		}
	}

	if changes.Password != nil {
		if err := validateField("password", *changes.Password); err != nil {
			return nil, err
		}
		hash, err := s.hashPassword(*changes.Password)
		if err != nil {
			return nil, fmt.Errorf("update user: hash password: %w", err)
		}
		current.PasswordHash = hash
	}

	if changes.Avatar != nil {
		if *changes.Avatar == "" {
			current.Avatar = nil
		} else {
			if err := validateField("avatar", *changes.Avatar); err != nil {
				return nil, err
			}
			avatar := *changes.Avatar
			current.Avatar = &avatar
		}
	}

	if changes.Role != nil {
		if err := validateField("role", string(*changes.Role)); err != nil {
			return nil, err
		}
		current.Role = *changes.Role
	}

	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) || errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return updated.Sanitized(), nil
}

func (s *CredentialStore) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// VerifyPassword compares candidate against the stored hash in constant time.
// A nil user, or one without a hash, never verifies but still pays for one
// bcrypt comparison.
func (s *CredentialStore) VerifyPassword(user *domain.User, candidate string) bool {
	if user == nil || user.PasswordHash == "" {
		if s.dummyHash != nil {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, passwordInput(candidate))
		}
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), passwordInput(candidate)) == nil
}

// RecordLogin stamps lastLogin with the current time. The stamp always moves
// forward, even when two logins land on the same clock tick.
func (s *CredentialStore) RecordLogin(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	if user.LastLogin != nil && !now.After(*user.LastLogin) {
		now = user.LastLogin.Add(time.Microsecond)
	}

	updated, err := s.repo.SetLastLogin(ctx, user.ID, now)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("record login: %w", err)
	}
	return updated.Sanitized(), nil
}

func (s *CredentialStore) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(passwordInput(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func passwordInput(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
