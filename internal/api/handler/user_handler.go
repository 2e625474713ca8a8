package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts-api/internal/api/metrics"
	"github.com/99minutos/accounts-api/internal/api/middleware"
	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

type UserHandler struct {
	accounts ports.AccountService
	present  userPresenter
}

// NewUserHandler builds the user routes. Timestamps are rendered in loc.
func NewUserHandler(accounts ports.AccountService, loc *time.Location) *UserHandler {
	return &UserHandler{accounts: accounts, present: newUserPresenter(loc)}
}

// Register creates a new account, optionally with an avatar image.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       json,mpfd
// @Produce      json
// @Param        body    body      registerRequest  false  "Registration details (JSON)"
// @Param        avatar  formData  file             false  "Avatar image, at most 2MB"
// @Success      201     {object}  Envelope{data=authResponse}
// @Failure      400     {object}  Envelope
// @Failure      500     {object}  Envelope
// @Router       /users/register [post]
func (h *UserHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewValidationError("Invalid request body")
	}

	res, err := h.accounts.Register(c.Request().Context(), ports.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Avatar:   middleware.AvatarFrom(c),
	})
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
		return failed("Registration failed", err)
	}
	metrics.RegistrationsTotal.WithLabelValues("success").Inc()

	return ok(c, http.StatusCreated, "User registered successfully", authResponse{
		User:  h.present.user(res.User),
		Token: res.Token,
	})
}

// Login authenticates a user and returns a session token.
//
// @Summary      Login
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  Envelope{data=authResponse}
// @Failure      400   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Router       /users/login [post]
func (h *UserHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewValidationError("Invalid request body")
	}

	res, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
		return failed("Login failed", err)
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	return ok(c, http.StatusOK, "Login successful", authResponse{
		User:  h.present.user(res.User),
		Token: res.Token,
	})
}

// List returns every user, newest first.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200  {object}  Envelope{data=[]userResponse}
// @Failure      500  {object}  Envelope
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.accounts.List(c.Request().Context())
	if err != nil {
		return failed("Error fetching users", err)
	}
	return okList(c, h.present.users(users), len(users))
}

// Get returns a single user.
//
// @Summary      Get user by id
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "User id"
// @Success      200  {object}  Envelope{data=userResponse}
// @Failure      404  {object}  Envelope
// @Router       /users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	id, err := h.userID(c)
	if err != nil {
		return err
	}

	user, err := h.accounts.Get(c.Request().Context(), id)
	if err != nil {
		return failed("Error fetching user", err)
	}
	return ok(c, http.StatusOK, "", h.present.user(user))
}

// Update changes any subset of a user's fields. A new avatar replaces the
// previous one.
//
// @Summary      Update user
// @Tags         users
// @Accept       json,mpfd
// @Produce      json
// @Param        id      path      int                true   "User id"
// @Param        body    body      updateUserRequest  false  "Fields to change (JSON)"
// @Param        avatar  formData  file               false  "New avatar image, at most 2MB"
// @Success      200     {object}  Envelope{data=userResponse}
// @Failure      400     {object}  Envelope
// @Failure      404     {object}  Envelope
// @Router       /users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	id, err := h.userID(c)
	if err != nil {
		return err
	}

	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewValidationError("Invalid request body")
	}

	user, err := h.accounts.Update(c.Request().Context(), id, ports.UpdateUserInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Avatar:   middleware.AvatarFrom(c),
	})
	if err != nil {
		return failed("Error updating user", err)
	}
	return ok(c, http.StatusOK, "User updated successfully", h.present.user(user))
}

// Delete removes a user and, best effort, their avatar.
//
// @Summary      Delete user
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "User id"
// @Success      200  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Failure      500  {object}  Envelope
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := h.userID(c)
	if err != nil {
		return err
	}

	if err := h.accounts.Delete(c.Request().Context(), id); err != nil {
		return failed("Error deleting user", err)
	}
	return ok(c, http.StatusOK, "User deleted successfully", nil)
}

// userID reads the positive :id path parameter.
func (h *UserHandler) userID(c echo.Context) (int64, error) {
	var id int64
	if err := echo.PathParamsBinder(c).MustInt64("id", &id).BindError(); err != nil || id <= 0 {
		return 0, domain.NewValidationError("Invalid user id")
	}
	return id, nil
}
