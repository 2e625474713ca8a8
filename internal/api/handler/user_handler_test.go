package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

type stubAccountService struct {
	registerFn func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error)
	loginFn    func(ctx context.Context, email, password string) (*ports.AuthResult, error)
	listFn     func(ctx context.Context) ([]*domain.User, error)
	getFn      func(ctx context.Context, id int64) (*domain.User, error)
	updateFn   func(ctx context.Context, id int64, in ports.UpdateUserInput) (*domain.User, error)
	deleteFn   func(ctx context.Context, id int64) error
	avatarsFn  func(ctx context.Context) ([]domain.StoredAsset, error)
}

func (s *stubAccountService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAccountService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAccountService) List(ctx context.Context) ([]*domain.User, error) {
	return s.listFn(ctx)
}

func (s *stubAccountService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.getFn(ctx, id)
}

func (s *stubAccountService) Update(ctx context.Context, id int64, in ports.UpdateUserInput) (*domain.User, error) {
	return s.updateFn(ctx, id, in)
}

func (s *stubAccountService) Delete(ctx context.Context, id int64) error {
	return s.deleteFn(ctx, id)
}

func (s *stubAccountService) ListAvatars(ctx context.Context) ([]domain.StoredAsset, error) {
	return s.avatarsFn(ctx)
}

var created = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func jane() *domain.User {
	return &domain.User{ID: 7, FullName: "Jane Doe", Email: "jane@example.com", PasswordHash: "$2a$hash", Role: domain.RoleUser, CreatedAt: created}
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func TestUserHandler_Register_Success(t *testing.T) {
	stub := &stubAccountService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
			if in.FullName != "Jane Doe" || in.Email != "jane@example.com" || in.Password != "secret1" {
				t.Fatalf("unexpected input: %+v", in)
			}
			if in.Avatar != nil {
				t.Fatalf("expected no avatar for a JSON request")
			}
			return &ports.AuthResult{User: jane(), Token: "tok"}, nil
		},
	}
	h := NewUserHandler(stub, time.UTC)

	c, rec := newContext(http.MethodPost, "/api/users/register", `{"fullName":"Jane Doe","email":"jane@example.com","password":"secret1"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	resp := decode(t, rec)
	if resp["success"] != true || resp["message"] != "User registered successfully" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	data := resp["data"].(map[string]any)
	user := data["user"].(map[string]any)
	if data["token"] != "tok" || user["email"] != "jane@example.com" {
		t.Fatalf("unexpected data: %+v", data)
	}
	if _, leaked := user["password"]; leaked {
		t.Fatalf("password must not be serialized")
	}
	if user["avatar"] != nil || user["lastLogin"] != nil {
		t.Fatalf("expected null avatar and lastLogin, got %+v", user)
	}
}

func TestUserHandler_Register_WrapsError(t *testing.T) {
	stub := &stubAccountService{
		registerFn: func(context.Context, ports.RegisterInput) (*ports.AuthResult, error) {
			return nil, domain.ErrUserExists
		},
	}
	h := NewUserHandler(stub, time.UTC)

	c, _ := newContext(http.MethodPost, "/api/users/register", `{"email":"jane@example.com"}`)
	err := h.Register(c)

	var oe *OperationError
	if !errors.As(err, &oe) || oe.Message != "Registration failed" {
		t.Fatalf("expected OperationError, got %v", err)
	}
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}

func TestUserHandler_Register_BadBody(t *testing.T) {
	h := NewUserHandler(&stubAccountService{}, time.UTC)

	c, _ := newContext(http.MethodPost, "/api/users/register", `{"email":`)
	err := h.Register(c)
	if !errors.Is(err, domain.ErrValidation) || err.Error() != "Invalid request body" {
		t.Fatalf("expected invalid body error, got %v", err)
	}
}

func TestUserHandler_Get_InvalidID(t *testing.T) {
	h := NewUserHandler(&stubAccountService{}, time.UTC)

	for _, raw := range []string{"abc", "0", "-4"} {
		c, _ := newContext(http.MethodGet, "/api/users/"+raw, "")
		c.SetParamNames("id")
		c.SetParamValues(raw)

		err := h.Get(c)
		if !errors.Is(err, domain.ErrValidation) || err.Error() != "Invalid user id" {
			t.Fatalf("id %q: expected invalid id error, got %v", raw, err)
		}
	}
}

func TestUserHandler_Get_FormatsTimestamps(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	last := time.Date(2024, 3, 14, 18, 5, 9, 0, time.UTC)
	avatar := "https://cdn.test/avatars/7.png"

	stub := &stubAccountService{
		getFn: func(ctx context.Context, id int64) (*domain.User, error) {
			u := jane()
			u.ID = id
			u.LastLogin = &last
			u.Avatar = &avatar
			return u, nil
		},
	}
	h := NewUserHandler(stub, loc)

	c, rec := newContext(http.MethodGet, "/api/users/7", "")
	c.SetParamNames("id")
	c.SetParamValues("7")
	if err := h.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	user := decode(t, rec)["data"].(map[string]any)
	if user["lastLogin"] != "Thursday, March 14, 2024 at 02:05:09 PM EDT" {
		t.Fatalf("unexpected lastLogin: %v", user["lastLogin"])
	}
	if user["createdAt"] != "Monday, March 4, 2024 at 04:00 AM EST" {
		t.Fatalf("unexpected createdAt: %v", user["createdAt"])
	}
	if user["avatar"] != avatar {
		t.Fatalf("unexpected avatar: %v", user["avatar"])
	}
}

func TestUserHandler_List(t *testing.T) {
	stub := &stubAccountService{
		listFn: func(context.Context) ([]*domain.User, error) {
			return []*domain.User{jane(), jane()}, nil
		},
	}
	h := NewUserHandler(stub, time.UTC)

	c, rec := newContext(http.MethodGet, "/api/users", "")
	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	if resp["count"] != float64(2) || len(resp["data"].([]any)) != 2 {
		t.Fatalf("unexpected list envelope: %+v", resp)
	}
}

func TestUserHandler_List_Empty(t *testing.T) {
	stub := &stubAccountService{
		listFn: func(context.Context) ([]*domain.User, error) { return nil, nil },
	}
	h := NewUserHandler(stub, time.UTC)

	c, rec := newContext(http.MethodGet, "/api/users", "")
	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) || !strings.Contains(rec.Body.String(), `"count":0`) {
		t.Fatalf("expected empty array and zero count, got %s", rec.Body.String())
	}
}

func TestUserHandler_Update_PartialFields(t *testing.T) {
	stub := &stubAccountService{
		updateFn: func(ctx context.Context, id int64, in ports.UpdateUserInput) (*domain.User, error) {
			if id != 7 || in.FullName != "Janet" || in.Email != "" || in.Password != "" {
				t.Fatalf("unexpected update: %d %+v", id, in)
			}
			u := jane()
			u.FullName = in.FullName
			return u, nil
		},
	}
	h := NewUserHandler(stub, time.UTC)

	c, rec := newContext(http.MethodPut, "/api/users/7", `{"fullName":"Janet"}`)
	c.SetParamNames("id")
	c.SetParamValues("7")
	if err := h.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	if resp["message"] != "User updated successfully" {
		t.Fatalf("unexpected message: %v", resp["message"])
	}
	if resp["data"].(map[string]any)["fullName"] != "Janet" {
		t.Fatalf("unexpected data: %+v", resp["data"])
	}
}

func TestUserHandler_Delete(t *testing.T) {
	var deleted int64
	stub := &stubAccountService{
		deleteFn: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	h := NewUserHandler(stub, time.UTC)

	c, rec := newContext(http.MethodDelete, "/api/users/7", "")
	c.SetParamNames("id")
	c.SetParamValues("7")
	if err := h.Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("expected user 7 deleted, got %d", deleted)
	}
	if decode(t, rec)["message"] != "User deleted successfully" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestUserHandler_Login(t *testing.T) {
	stub := &stubAccountService{
		loginFn: func(ctx context.Context, email, password string) (*ports.AuthResult, error) {
			if email != "jane@example.com" || password != "secret1" {
				return nil, domain.ErrInvalidCredentials
			}
			u := jane()
			now := created.Add(time.Hour)
			u.LastLogin = &now
			return &ports.AuthResult{User: u, Token: "tok"}, nil
		},
	}
	h := NewUserHandler(stub, time.UTC)

	c, rec := newContext(http.MethodPost, "/api/users/login", `{"email":"jane@example.com","password":"secret1"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	if resp["message"] != "Login successful" {
		t.Fatalf("unexpected message: %v", resp["message"])
	}

	c, _ = newContext(http.MethodPost, "/api/users/login", `{"email":"jane@example.com","password":"wrong"}`)
	if err := h.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}
