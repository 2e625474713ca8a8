package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

// AccountService implements registration, login and user CRUD on top of the
// credential store, the upload pipeline and the object storage gateway.
type AccountService struct {
	store   ports.CredentialStore
	uploads ports.UploadPipeline
	storage ports.ObjectStorage
	tokens  ports.TokenIssuer
	cache   ports.UserCache
	log     zerolog.Logger
}

// AccountOption customises an AccountService.
type AccountOption func(*AccountService)

// WithUserCache enables the read cache used by Get.
func WithUserCache(cache ports.UserCache) AccountOption {
	return func(s *AccountService) { s.cache = cache }
}

func NewAccountService(
	store ports.CredentialStore,
	uploads ports.UploadPipeline,
	storage ports.ObjectStorage,
	tokens ports.TokenIssuer,
	log zerolog.Logger,
	opts ...AccountOption,
) *AccountService {
	s := &AccountService{
		store:   store,
		uploads: uploads,
		storage: storage,
		tokens:  tokens,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates the payload, rejects known emails, stores the avatar (if
// any) and creates the account. The uploaded avatar is discarded when the
// account cannot be created.
func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, domain.NewValidationError("Missing required fields: fullName, email, and password are required")
	}
	if err := validateField("email", normalizeEmail(in.Email)); err != nil {
		return nil, err
	}
	if err := validateField("password", in.Password); err != nil {
		return nil, err
	}
	if err := validateField("fullName", strings.TrimSpace(in.FullName)); err != nil {
		return nil, err
	}
	if in.Role != "" {
		if err := validateField("role", in.Role); err != nil {
			return nil, err
		}
	}

	if _, err := s.store.FindByEmail(ctx, in.Email, false); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("register: check email: %w", err)
	}

	var asset *domain.StoredAsset
	if in.Avatar != nil {
		stored, err := s.uploads.Store(ctx, in.Avatar, "")
		if err != nil {
			return nil, fmt.Errorf("register: %w", err)
		}
		asset = stored
	}

	var avatarURL *string
	if asset != nil {
		avatarURL = &asset.URL
	}

	user, err := s.store.Create(ctx, ports.NewUserInput{
		FullName: in.FullName,
		Email:    in.Email,
		Password: in.Password,
		Avatar:   avatarURL,
		Role:     domain.Role(in.Role),
	})
	if err != nil {
		s.uploads.Discard(ctx, asset)
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("register: issue token: %w", err)
	}

	return &ports.AuthResult{User: user, Token: token}, nil
}

// Login checks the credentials, stamps lastLogin and issues a token. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, domain.NewValidationError("Email and password are required")
	}

	user, err := s.store.FindByEmail(ctx, email, true)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.store.VerifyPassword(nil, password)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.store.VerifyPassword(user, password) {
		return nil, domain.ErrInvalidCredentials
	}

	updated, err := s.store.RecordLogin(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	s.invalidate(ctx, updated.ID)

	token, err := s.tokens.Issue(updated.ID)
	if err != nil {
		return nil, fmt.Errorf("login: issue token: %w", err)
	}

	s.log.Info().Int64("user_id", updated.ID).Msg("user logged in")
	return &ports.AuthResult{User: updated, Token: token}, nil
}

func (s *AccountService) List(ctx context.Context) ([]*domain.User, error) {
	return s.store.List(ctx)
}

// Get returns one user, served from the cache when one is configured. A fill
// racing with an update is discarded by the cache, so a stale row never
// outlives the invalidation that followed it.
func (s *AccountService) Get(ctx context.Context, id int64) (*domain.User, error) {
	var (
		gen      uint64
		fillable bool
	)
	if s.cache != nil {
		cached, g, err := s.cache.Get(ctx, id)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Int64("user_id", id).Msg("user cache read failed")
		case cached != nil:
			return cached, nil
		default:
			gen, fillable = g, true
		}
	}

	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if fillable {
		if err := s.cache.Fill(ctx, user, gen); err != nil {
			s.log.Warn().Err(err).Int64("user_id", id).Msg("user cache write failed")
		}
	}
	return user, nil
}

// Update applies the supplied fields. When a new avatar is supplied the old
// one is deleted first; that delete is best effort.
func (s *AccountService) Update(ctx context.Context, id int64, in ports.UpdateUserInput) (*domain.User, error) {
	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var changes ports.UserChanges
	if in.FullName != "" {
		name := strings.TrimSpace(in.FullName)
		if err := validateField("fullName", name); err != nil {
			return nil, err
		}
		changes.FullName = &name
	}
	if in.Email != "" {
		email := normalizeEmail(in.Email)
		if err := validateField("email", email); err != nil {
			return nil, err
		}
		if email != current.Email {
			existing, err := s.store.FindByEmail(ctx, email, false)
			switch {
			case err == nil && existing.ID != id:
				return nil, domain.ErrEmailTaken
			case err != nil && !errors.Is(err, domain.ErrUserNotFound):
				return nil, fmt.Errorf("update: check email: %w", err)
			}
		}
		changes.Email = &email
	}
	if in.Password != "" {
		if err := validateField("password", in.Password); err != nil {
			return nil, err
		}
		password := in.Password
		changes.Password = &password
	}
	if in.Role != "" {
		if err := validateField("role", in.Role); err != nil {
			return nil, err
		}
		role := domain.Role(in.Role)
		changes.Role = &role
	}

	var asset *domain.StoredAsset
	if in.Avatar != nil {
		if current.HasAvatar() {
			s.removeAvatar(ctx, current)
		}
		stored, err := s.uploads.Store(ctx, in.Avatar, strconv.FormatInt(id, 10))
		if err != nil {
			return nil, fmt.Errorf("update: %w", err)
		}
		asset = stored
		changes.Avatar = &stored.URL
	}

	updated, err := s.store.Update(ctx, id, changes)
	if err != nil {
		s.uploads.Discard(ctx, asset)
		return nil, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// Delete removes the account after a best-effort delete of its avatar.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if user.HasAvatar() {
		s.removeAvatar(ctx, user)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)

	s.log.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

// ListAvatars lists the blobs in the avatar folder.
func (s *AccountService) ListAvatars(ctx context.Context) ([]domain.StoredAsset, error) {
	assets, err := s.storage.List(ctx, s.uploads.Folder())
	if err != nil {
		return nil, fmt.Errorf("list avatars: %w", err)
	}
	return assets, nil
}

// removeAvatar deletes the user's current avatar blob. URLs that do not belong
// to the bucket are left alone, and a failed delete only leaves an orphan.
func (s *AccountService) removeAvatar(ctx context.Context, user *domain.User) {
	path, ok := s.storage.PathFromURL(*user.Avatar)
	if !ok {
		s.log.Warn().Int64("user_id", user.ID).Str("avatar", *user.Avatar).Msg("avatar is not in the bucket, skipping delete")
		return
	}
	if err := s.storage.Delete(ctx, path); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Str("path", path).Msg("could not delete avatar from storage")
	}
}

func (s *AccountService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn().Err(err).Int64("user_id", id).Msg("user cache invalidation failed")
	}
}
