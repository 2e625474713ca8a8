package ports

import (
	"context"
	"time"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

// UserRepository is the persistence behind the credential store. Implementations
// enforce email uniqueness with a storage constraint and report violations as
// domain.ErrUserExists; missing rows are reported as domain.ErrUserNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// List returns every user, newest first.
	List(ctx context.Context) ([]*domain.User, error)
	// Update overwrites the mutable columns of the row identified by user.ID.
	Update(ctx context.Context, user *domain.User) (*domain.User, error)
	// SetLastLogin only touches the last_login column.
	SetLastLogin(ctx context.Context, id int64, at time.Time) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// UserCache holds sanitized users keyed by id. Every Invalidate moves the
// user's generation forward; Fill is dropped when the generation returned by
// the missing Get is no longer current.
type UserCache interface {
	// Get returns (nil, gen, nil) on a miss.
	Get(ctx context.Context, id int64) (*domain.User, uint64, error)
	Fill(ctx context.Context, user *domain.User, gen uint64) error
	Invalidate(ctx context.Context, id int64) error
}
