package ports

import (
	"context"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

// NewUserInput carries the fields accepted when creating an account.
type NewUserInput struct {
	FullName string
	Email    string
	Password string
	Avatar   *string
	Role     domain.Role
}

// UserChanges is a partial update. Nil fields are left untouched.
type UserChanges struct {
	FullName *string
	Email    *string
	Password *string
	Avatar   *string
	Role     *domain.Role
}

// Empty reports whether no field is set.
func (c UserChanges) Empty() bool {
	return c.FullName == nil && c.Email == nil && c.Password == nil && c.Avatar == nil && c.Role == nil
}

// CredentialStore validates, hashes and persists user records. Users it returns
// never carry a password hash unless explicitly requested.
type CredentialStore interface {
	Create(ctx context.Context, in NewUserInput) (*domain.User, error)
	FindByEmail(ctx context.Context, email string, includeHash bool) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, id int64, changes UserChanges) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
	VerifyPassword(user *domain.User, candidate string) bool
	RecordLogin(ctx context.Context, user *domain.User) (*domain.User, error)
}
