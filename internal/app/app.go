// Package app wires repositories, services and transport into a runnable server.
package app

import (
	"context"
	"net/http"

	"github.com/airobot/server/internal/admin"
	"github.com/airobot/server/internal/analytics"
	"github.com/airobot/server/internal/audit"
	"github.com/airobot/server/internal/auth"
	"github.com/airobot/server/internal/binding"
	"github.com/airobot/server/internal/cache"
	"github.com/airobot/server/internal/catalog"
	"github.com/airobot/server/internal/config"
	"github.com/airobot/server/internal/db"
	"github.com/airobot/server/internal/device"
	"github.com/airobot/server/internal/dispatch"
	httpapi "github.com/airobot/server/internal/http"
	"github.com/airobot/server/internal/http/handlers"
	"github.com/airobot/server/internal/jobs"
	"github.com/airobot/server/internal/llm"
	"github.com/airobot/server/internal/realtime"
	"github.com/airobot/server/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the assembled server.
type App struct {
	Handler  http.Handler
	Hub      *realtime.Hub
	Devices  *device.Service
	Codes    *auth.CodeStore
	Limiters httpapi.Limiters
	Cache    cache.Cache
	JWT      *auth.JWTService
}

// Build assembles the server on an opened, migrated database. A nil
// completer uses the configured HTTP model client.
func Build(cfg *config.Config, gdb *gorm.DB, c cache.Cache, completer dispatch.Completer, logger *zap.Logger) *App {
	users := repo.NewUserRepo(gdb)
	roles := repo.NewRoleRepo(gdb)
	devices := repo.NewDeviceRepo(gdb)
	groups := repo.NewGroupRepo(gdb)
	actions := repo.NewActionRepo(gdb)
	bindings := repo.NewBindingRepo(gdb)
	conversations := repo.NewConversationRepo(gdb)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	hub := realtime.NewHub(jwtService, cfg.DevMode, logger)

	if completer == nil {
		completer = llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout, logger)
	}

	auditSvc := audit.NewService(repo.NewAuditRepo(gdb), logger)
	codes := auth.NewCodeStore(cfg.OTPSalt)
	authSvc := auth.NewService(users, roles, jwtService, codes, auth.NewLogSender(logger), auditSvc, cfg.DevMode, logger)
	deviceSvc := device.NewService(devices, groups, c, hub, logger)
	catalogSvc := catalog.NewService(actions, c, logger)
	bindingSvc := binding.NewService(bindings, devices, actions, logger)
	pipeline := dispatch.NewPipeline(dispatch.Deps{
		Devices:       devices,
		Actions:       actions,
		Conversations: conversations,
		Candidates:    bindingSvc,
		Matcher:       dispatch.NewLLMMatcher(completer),
		Responder:     dispatch.NewLLMResponder(completer),
		Notifier:      hub,
	}, logger)
	analyticsSvc := analytics.NewService(repo.NewAnalyticsRepo(gdb), c, logger)
	adminSvc := admin.NewService(users, roles, auditSvc, logger)

	limiters := httpapi.NewLimiters()
	router := httpapi.NewRouter(httpapi.Handlers{
		Health: handlers.NewHealthHandler(handlers.PingFunc(func(ctx context.Context) error {
			return db.Ping(ctx, gdb)
		})),
		Auth:      handlers.NewAuthHandler(authSvc, logger),
		Device:    handlers.NewDeviceHandler(deviceSvc, logger),
		Group:     handlers.NewGroupHandler(deviceSvc, logger),
		Action:    handlers.NewActionHandler(catalogSvc, logger),
		Binding:   handlers.NewBindingHandler(bindingSvc, logger),
		Chat:      handlers.NewChatHandler(pipeline, logger),
		Analytics: handlers.NewAnalyticsHandler(analyticsSvc, logger),
		Admin:     handlers.NewAdminHandler(adminSvc, auditSvc, logger),
		Push:      hub,
	}, httpapi.Options{
		JWT:         jwtService,
		Users:       users,
		Limiters:    limiters,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	return &App{
		Handler:  router,
		Hub:      hub,
		Devices:  deviceSvc,
		Codes:    codes,
		Limiters: limiters,
		Cache:    c,
		JWT:      jwtService,
	}
}

// Schedule registers the maintenance sweeps.
func (a *App) Schedule(s *jobs.Scheduler) error {
	if err := s.Add("@every 1m", "device-stale-sweep", func(ctx context.Context) (int, error) {
		return a.Devices.SweepStale(ctx, device.StaleAfter)
	}); err != nil {
		return err
	}
	if err := s.Add("@every 5m", "rate-limit-sweep", func(context.Context) (int, error) {
		return a.Limiters.Sweep(), nil
	}); err != nil {
		return err
	}
	if err := s.Add("@hourly", "code-sweep", func(context.Context) (int, error) {
		return a.Codes.Sweep(), nil
	}); err != nil {
		return err
	}
	if m, ok := a.Cache.(*cache.Memory); ok {
		return s.Add("@every 5m", "cache-sweep", func(context.Context) (int, error) {
			return m.Sweep(), nil
		})
	}
	return nil
}
