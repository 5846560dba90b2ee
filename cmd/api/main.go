package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/alpharequest/requestmanager/internal/api/http"
	"github.com/alpharequest/requestmanager/internal/api/http/handlers"
	"github.com/alpharequest/requestmanager/internal/auth"
	"github.com/alpharequest/requestmanager/internal/config"
	"github.com/alpharequest/requestmanager/internal/events"
	"github.com/alpharequest/requestmanager/internal/ninja"
	"github.com/alpharequest/requestmanager/internal/observability"
	"github.com/alpharequest/requestmanager/internal/persistence"
	"github.com/alpharequest/requestmanager/internal/repository"
	"github.com/alpharequest/requestmanager/internal/service"
	"github.com/alpharequest/requestmanager/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	departmentRepo := repository.NewDepartmentRepository(pool)
	permissionRepo := repository.NewPermissionRepository(pool)
	accountRepo := repository.NewAccountRepository(pool)

	permissionService := service.NewPermissionService(permissionRepo, logger)
	if err := permissionService.EnsureDefaults(ctx); err != nil {
		logger.Fatal("failed to seed permission table", zap.Error(err))
	}

	workflowService := service.NewWorkflowService(ticketRepo, departmentRepo)
	historyService := service.NewHistoryService(ticketRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		DepartmentRepo: departmentRepo,
		Permissions:    permissionService,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	authService := service.NewAuthService(*cfg, accountRepo)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	if cfg.Ninja.BaseURL != "" {
		tokenCache := ninja.NewRedisTokenCache(redis.Client)
		ninjaClient := ninja.NewClient(cfg.Ninja, tokenCache, logger)
		syncService := service.NewSyncService(service.SyncDependencies{
			TicketRepo: ticketRepo,
			External:   ninjaClient,
			Apply:      ticketService.ApplyExternalOutcome,
			Interval:   cfg.Ninja.PollInterval(),
			Metrics:    metrics,
			Logger:     logger,
		})
		stopSync := worker.StartSyncWorker(ctx, syncService)
		defer stopSync()
	} else {
		logger.Warn("ninja base url not configured, reconciliation disabled")
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Accounts:       handlers.NewAccountsHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, workflowService, historyService),
		Departments:    handlers.NewDepartmentsHandler(departmentRepo),
		Permissions:    handlers.NewPermissionsHandler(permissionService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
