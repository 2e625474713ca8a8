package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/99minutos/accounts-api/internal/api/handler"
	"github.com/99minutos/accounts-api/internal/api/middleware"
	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

// bodyLimit sits well above the avatar cap so oversized files are rejected by
// the upload pipeline with a 400 instead of a bare 413.
const bodyLimit = "10M"

// Dependencies is everything NewRouter wires into the routes.
type Dependencies struct {
	Accounts     ports.AccountService
	Users        middleware.UserLookup // role lookups for RBAC, uncached
	Uploads      ports.UploadPipeline
	Health       map[string]handler.Pinger
	Log          zerolog.Logger
	JWTSecret    string
	APIPrefix    string
	Location     *time.Location
	ExposeErrors bool
	// Registry receives the HTTP metrics. Defaults to the prometheus default
	// registry, which also holds the domain metrics.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log, deps.ExposeErrors)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "accounts",
		Registerer: registerer,
	}))

	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/", welcome(deps.APIPrefix))

	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	users := handler.NewUserHandler(deps.Accounts, loc)
	assets := handler.NewAssetHandler(deps.Accounts, loc)
	health := handler.NewHealthHandler(deps.Health)
	avatar := middleware.AvatarUpload(deps.Uploads)

	g := e.Group(deps.APIPrefix)

	// --- Health probes (no auth required) ---
	g.GET("/health", health.Liveness)
	g.GET("/health/ready", health.Readiness)

	// --- User routes ---
	g.POST("/users/register", users.Register, avatar)
	g.POST("/users/login", users.Login)
	g.GET("/users", users.List)
	g.GET("/users/:id", users.Get)
	g.PUT("/users/:id", users.Update, avatar)
	g.DELETE("/users/:id", users.Delete)

	// --- Storage (admin only) ---
	g.GET("/storage/avatars", assets.ListAvatars,
		middleware.Auth(deps.JWTSecret),
		middleware.RBAC(deps.Users, domain.RoleAdmin),
	)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

type welcomeResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

func welcome(prefix string) echo.HandlerFunc {
	body := welcomeResponse{
		Message: "Welcome to the accounts API",
		Version: "1.0.0",
		Endpoints: map[string]string{
			"health":   "GET " + prefix + "/health",
			"register": "POST " + prefix + "/users/register",
			"login":    "POST " + prefix + "/users/login",
			"users":    "GET " + prefix + "/users",
			"user":     "GET|PUT|DELETE " + prefix + "/users/:id",
			"avatars":  "GET " + prefix + "/storage/avatars",
			"docs":     "GET /swagger/index.html",
		},
	}
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, body)
	}
}
