package ports

import (
	"context"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

// RegisterInput is the registration payload. Role may be empty (defaults to user).
type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Role     string
	Avatar   *domain.AvatarUpload
}

// UpdateUserInput is a partial update. Empty strings mean "not supplied".
type UpdateUserInput struct {
	FullName string
	Email    string
	Password string
	Role     string
	Avatar   *domain.AvatarUpload
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  *domain.User
	Token string
}

// AccountService orchestrates the account use cases.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	List(ctx context.Context) ([]*domain.User, error)
	Get(ctx context.Context, id int64) (*domain.User, error)
	Update(ctx context.Context, id int64, in UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
	ListAvatars(ctx context.Context) ([]domain.StoredAsset, error)
}

// TokenIssuer mints session tokens bound to a user id.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}
