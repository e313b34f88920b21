package http

import (
	"net/http"
	"time"

	"github.com/airobot/server/internal/auth"
	"github.com/airobot/server/internal/http/handlers"
	"github.com/airobot/server/internal/middleware"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const limitWindow = 15 * time.Minute

// Limiters are the per-IP request budgets applied to route groups.
type Limiters struct {
	General *middleware.RateLimiter
	Auth    *middleware.RateLimiter
	Devices *middleware.RateLimiter
	Chat    *middleware.RateLimiter
}

func NewLimiters() Limiters {
	return Limiters{
		General: middleware.NewRateLimiter(limitWindow, 100),
		Auth:    middleware.NewRateLimiter(limitWindow, 20),
		Devices: middleware.NewRateLimiter(limitWindow, 50),
		Chat:    middleware.NewRateLimiter(limitWindow, 100),
	}
}

// Sweep drops expired windows from every limiter.
func (l Limiters) Sweep() int {
	return l.General.Sweep() + l.Auth.Sweep() + l.Devices.Sweep() + l.Chat.Sweep()
}

// Handlers groups everything the router mounts.
type Handlers struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Device    *handlers.DeviceHandler
	Group     *handlers.GroupHandler
	Action    *handlers.ActionHandler
	Binding   *handlers.BindingHandler
	Chat      *handlers.ChatHandler
	Analytics *handlers.AnalyticsHandler
	Admin     *handlers.AdminHandler
	Push      http.Handler
}

type Options struct {
	JWT         *auth.JWTService
	Users       repo.UserRepo
	Limiters    Limiters
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h Handlers, opts Options) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer(opts.Logger))
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/ws", h.Push)

	authn := middleware.AuthMiddleware(opts.JWT, opts.Users)
	limit := func(l *middleware.RateLimiter) func(http.Handler) http.Handler {
		return middleware.RateLimitMiddleware(l, middleware.GetIPKey)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(limit(opts.Limiters.General))

		r.Route("/auth", func(r chi.Router) {
			r.With(limit(opts.Limiters.Auth)).Group(func(r chi.Router) {
				r.Post("/register", h.Auth.HandleRegister)
				r.Post("/login", h.Auth.HandleLogin)
				r.Post("/send-code", h.Auth.HandleSendCode)
				r.Post("/phone-login", h.Auth.HandlePhoneLogin)
			})
			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Get("/me", h.Auth.HandleMe)
				r.Post("/mfa/setup", h.Auth.HandleSetupMFA)
				r.Post("/mfa/enable", h.Auth.HandleEnableMFA)
				r.Post("/mfa/disable", h.Auth.HandleDisableMFA)
			})
		})

		// Called by the robots themselves.
		r.Route("/device-heartbeat", func(r chi.Router) {
			r.Post("/heartbeat", h.Device.HandleHeartbeat)
			r.Post("/offline", h.Device.HandleOffline)
		})

		r.Group(func(r chi.Router) {
			r.Use(authn)

			r.Route("/devices", func(r chi.Router) {
				r.Use(limit(opts.Limiters.Devices))
				r.Get("/", h.Device.HandleList)
				r.Post("/", h.Device.HandleCreate)
				r.Post("/batch-delete", h.Device.HandleBatchDelete)
				r.Post("/batch-update-status", h.Device.HandleBatchUpdateStatus)
				r.Get("/{id}", h.Device.HandleGet)
				r.Put("/{id}", h.Device.HandleUpdate)
				r.Delete("/{id}", h.Device.HandleDelete)
			})

			r.Route("/actions", func(r chi.Router) {
				r.Get("/", h.Action.HandleList)
				r.Post("/", h.Action.HandleCreate)
				r.Post("/execute", h.Action.HandleExecute)
				r.Get("/{id}", h.Action.HandleGet)
				r.Put("/{id}", h.Action.HandleUpdate)
				r.Delete("/{id}", h.Action.HandleDelete)
			})

			r.Route("/device-actions", func(r chi.Router) {
				r.Get("/{deviceId}", h.Binding.HandleList)
				r.Post("/", h.Binding.HandleCreate)
				r.Put("/{id}", h.Binding.HandleUpdate)
				r.Delete("/{id}", h.Binding.HandleDelete)
			})

			r.Route("/chat", func(r chi.Router) {
				r.Use(limit(opts.Limiters.Chat))
				r.Post("/", h.Chat.HandleSend)
				r.Get("/{deviceId}", h.Chat.HandleHistory)
			})

			r.Route("/device-groups", func(r chi.Router) {
				r.Get("/", h.Group.HandleList)
				r.Post("/", h.Group.HandleCreate)
				r.Post("/add-device", h.Group.HandleAddDevice)
				r.Post("/remove-device", h.Group.HandleRemoveDevice)
				r.Get("/{id}", h.Group.HandleGet)
				r.Put("/{id}", h.Group.HandleUpdate)
				r.Delete("/{id}", h.Group.HandleDelete)
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/device-usage", h.Analytics.HandleDeviceUsage())
				r.Get("/action-usage", h.Analytics.HandleActionUsage())
				r.Get("/conversation-trend", h.Analytics.HandleConversationTrend())
				r.Get("/device-activation-rate", h.Analytics.HandleActivationRate())
				r.Get("/ai-response-stats", h.Analytics.HandleAIResponseStats())
				r.Get("/comprehensive", h.Analytics.HandleComprehensive())
				r.Get("/export", h.Analytics.HandleExport)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin))
				r.Get("/users", h.Admin.HandleListUsers)
				r.Post("/users", h.Admin.HandleCreateUser)
				r.Put("/users/{id}", h.Admin.HandleUpdateUser)
				r.Put("/users/{id}/disable", h.Admin.HandleDisableUser)
				r.Get("/roles", h.Admin.HandleListRoles)
				r.Post("/roles", h.Admin.HandleCreateRole)
				r.Post("/roles/permissions", h.Admin.HandleAssignPermissions)
				r.Get("/permissions", h.Admin.HandleListPermissions)
				r.Post("/permissions", h.Admin.HandleCreatePermission)
				r.Get("/logs", h.Admin.HandleListLogs)
				r.Get("/anomalies", h.Admin.HandleListAnomalies)
				r.Put("/anomalies/{id}/resolve", h.Admin.HandleResolveAnomaly)
			})
		})
	})

	return r
}
