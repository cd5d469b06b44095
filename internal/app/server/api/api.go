//Серверная часть tradekeeper — удаленный источник истины:
//регистрация и аутентификация пользователей;
//применение операций клиентов к серверному состоянию;
//выдача изменений для синхронизации;
//учет и разрешение конфликтов.

//POST /api/v1/auth/register              # Регистрация (публичный)
//POST /api/v1/auth/login                 # Логин (публичный)
//POST /api/v1/sync/apply                 # Применить операцию (auth)
//POST /api/v1/sync/changes               # Получить изменения (auth)
//GET  /api/v1/sync/status                # Статус синхронизации (auth)
//GET  /api/v1/sync/conflicts             # Список конфликтов (auth)
//POST /api/v1/sync/conflicts/{id}/resolve # Разрешить конфликт (auth)

package api

import (
	healthAPI "tradekeeper/internal/app/server/api/http/health"
	"tradekeeper/internal/app/server/api/http/middleware"
	"tradekeeper/internal/app/server/api/http/middleware/auth"
	"tradekeeper/internal/app/server/api/http/middleware/logger"
	syncAPI "tradekeeper/internal/app/server/api/http/sync"
	userAPI "tradekeeper/internal/app/server/api/http/user"
	"tradekeeper/internal/domain/session"
	"tradekeeper/internal/domain/sync"
	"tradekeeper/internal/domain/user"
	"tradekeeper/internal/infrastructure/storage/postgres"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

type Handlers struct {
	Health *healthAPI.Handler
	User   *userAPI.Handler
	Sync   *syncAPI.Handler
}

// New создает *chi.Mux со всеми операциями через huma.Register
func New(storage *postgres.Storage, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("Tradekeeper API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	h := handlers(storage, log)
	h.Health.SetupRoutes(API)
	h.User.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(storage *postgres.Storage, log *slog.Logger) *Handlers {
	sessionRepo := postgres.NewSessionRepository(storage, log)
	sessionService := session.NewService(sessionRepo, log)
	authMW := auth.New(sessionService, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(log, middlewares.GetAllAndClear())

	userRepo := postgres.NewUserRepository(storage, log)
	userService := user.NewService(userRepo, log)
	middlewares.Add(loggerMW.Middleware())
	userHandler := userAPI.NewHandler(userService, sessionService, log, middlewares.GetAllAndClear())

	syncRepo := postgres.NewSyncRepository(storage, log)
	syncService := sync.NewService(syncRepo, log, nil)
	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	syncHandler := syncAPI.NewHandler(syncService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		User:   userHandler,
		Sync:   syncHandler,
	}
}
