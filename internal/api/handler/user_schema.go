package handler

import (
	"time"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

const (
	lastLoginLayout = "Monday, January 2, 2006 at 03:04:05 PM MST"
	createdAtLayout = "Monday, January 2, 2006 at 03:04 PM MST"
)

// registerRequest binds from JSON or from the text fields of a multipart form.
type registerRequest struct {
	FullName string `json:"fullName" form:"fullName" example:"Jane Doe"`
	Email    string `json:"email"    form:"email"    example:"jane@example.com"`
	Password string `json:"password" form:"password" example:"secret1"`
	Role     string `json:"role"     form:"role"     example:"user"`
}

type loginRequest struct {
	Email    string `json:"email"    form:"email"    example:"jane@example.com"`
	Password string `json:"password" form:"password" example:"secret1"`
}

// updateUserRequest carries any subset of the mutable fields.
type updateUserRequest struct {
	FullName string `json:"fullName" form:"fullName"`
	Email    string `json:"email"    form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role"     form:"role"`
}

// userResponse is the wire form of a user. It has no password field.
type userResponse struct {
	ID        int64   `json:"id"          example:"1"`
	FullName  string  `json:"fullName"    example:"Jane Doe"`
	Email     string  `json:"email"       example:"jane@example.com"`
	Avatar    *string `json:"avatar"`
	Role      string  `json:"role"        example:"user"`
	LastLogin *string `json:"lastLogin"   example:"Monday, March 4, 2024 at 09:15:02 AM UTC"`
	CreatedAt string  `json:"createdAt"   example:"Monday, March 4, 2024 at 09:00 AM UTC"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type assetResponse struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

// userPresenter formats users for the wire in a fixed display time zone.
type userPresenter struct {
	loc *time.Location
}

func newUserPresenter(loc *time.Location) userPresenter {
	if loc == nil {
		loc = time.UTC
	}
	return userPresenter{loc: loc}
}

func (p userPresenter) user(u *domain.User) userResponse {
	resp := userResponse{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.In(p.loc).Format(createdAtLayout),
	}
	if u.HasAvatar() {
		avatar := *u.Avatar
		resp.Avatar = &avatar
	}
	if u.LastLogin != nil {
		s := u.LastLogin.In(p.loc).Format(lastLoginLayout)
		resp.LastLogin = &s
	}
	return resp
}

func (p userPresenter) users(us []*domain.User) []userResponse {
	out := make([]userResponse, 0, len(us))
	for _, u := range us {
		out = append(out, p.user(u))
	}
	return out
}

func (p userPresenter) asset(a domain.StoredAsset) assetResponse {
	resp := assetResponse{
		Name:        a.Name,
		Path:        a.Path,
		URL:         a.URL,
		Size:        a.Size,
		ContentType: a.ContentType,
	}
	if !a.LastModified.IsZero() {
		resp.LastModified = a.LastModified.In(p.loc).Format(time.RFC3339)
	}
	return resp
}
