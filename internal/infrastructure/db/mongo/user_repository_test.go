package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

func TestUserDocument_KeepsMicrosecondPrecision(t *testing.T) {
	created := time.Date(2024, 6, 1, 8, 30, 15, 123456000, time.UTC)
	login := created.Add(1500 * time.Microsecond)
	avatar := "https://cdn.example.com/a.png"

	doc := toDocument(&domain.User{
		ID:           3,
		FullName:     "Jane Doe",
		Email:        "jane@example.com",
		PasswordHash: "hash",
		Avatar:       &avatar,
		Role:         domain.RoleAdmin,
		LastLogin:    &login,
		CreatedAt:    created,
	})
	assert.Equal(t, created.UnixMicro(), doc.CreatedAt)

	got := doc.toDomain()
	assert.True(t, got.CreatedAt.Equal(created))
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(login))
	require.NotNil(t, got.Avatar)
	assert.Equal(t, avatar, *got.Avatar)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, "hash", got.PasswordHash)
}

func TestUserDocument_EmptyOptionalFields(t *testing.T) {
	empty := ""
	doc := toDocument(&domain.User{ID: 1, Email: "a@b.co", Role: domain.RoleUser, Avatar: &empty})

	got := doc.toDomain()
	assert.Nil(t, got.Avatar)
	assert.Nil(t, got.LastLogin)
	assert.True(t, got.CreatedAt.IsZero())
}
