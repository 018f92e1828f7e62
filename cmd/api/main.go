package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/repair-service/internal/api/http"
	"github.com/spec-kit/repair-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/persistence"
	"github.com/spec-kit/repair-service/internal/repository"
	"github.com/spec-kit/repair-service/internal/repository/memory"
	"github.com/spec-kit/repair-service/internal/seed"
	"github.com/spec-kit/repair-service/internal/service"
	"github.com/spec-kit/repair-service/internal/storage"
	"github.com/spec-kit/repair-service/internal/worker"
)

// repositories groups the store implementations chosen at startup.
type repositories struct {
	users       repository.UserRepository
	tickets     repository.TicketRepository
	history     repository.TicketHistoryRepository
	technicians repository.TechnicianRepository
	reviews     repository.ReviewRepository
	candidates  repository.CandidateSource
}

func main() {
	envFile := pflag.String("env-file", "", "dotenv file to load before reading the environment")
	migrationsDir := pflag.String("migrations", persistence.DefaultMigrationsDir, "directory holding SQL migrations")
	fixtures := pflag.String("fixtures", "", "YAML technician fixtures to load at startup (in-memory store only)")
	pflag.Parse()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), *migrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(pg, logger)

	dispatcher := events.NewInMemoryDispatcher(logger)
	var forwarder service.EventForwarder
	if redis.Enabled() {
		forwarder = events.NewRedisPublisher(redis.Client, cfg.Notification.RedisChannel)
	}
	notifications := service.NewNotificationService(dispatcher, forwarder, logger, cfg.Notification)
	notifier := worker.NewNotificationWorker(notifications, logger, 0)
	notifier.Start(ctx, dispatcher)

	var attachments storage.AttachmentStore
	if cfg.Storage.Endpoint != "" {
		store, err := storage.NewMinIOStore(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Fatal("failed to init attachment storage", zap.Error(err))
		}
		attachments = store
	} else {
		logger.Warn("STORAGE_ENDPOINT not provided; attachment uploads disabled")
	}

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:      repos.tickets,
		TechnicianRepo:  repos.technicians,
		CandidateSource: repos.candidates,
		HistoryRepo:     repos.history,
		Dispatcher:      dispatcher,
		SearchRadiusKm:  cfg.Assignment.SearchRadiusKm,
		Logger:          logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:      repos.tickets,
		HistoryRepo:     repos.history,
		Assignment:      assignmentService,
		AttachmentStore: attachments,
		Dispatcher:      dispatcher,
		Logger:          logger,
	})
	reviewService := service.NewReviewService(service.ReviewDependencies{
		TicketRepo:     repos.tickets,
		TechnicianRepo: repos.technicians,
		ReviewRepo:     repos.reviews,
		Dispatcher:     dispatcher,
		MaxRetries:     cfg.Review.MaxRetries,
		Logger:         logger,
	})
	technicianService := service.NewTechnicianService(repos.technicians, logger, nil)
	rankingService := service.NewRankingService(repos.technicians, cfg.Ranking.DefaultLimit)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    repos.users,
		Technicians: technicianService,
		Logger:      logger,
	})

	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		if _, err := authService.EnsureAdmin(ctx, "Administrator", cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Fatal("failed to bootstrap admin", zap.Error(err))
		}
	}
	if *fixtures != "" {
		loadFixtures(ctx, *fixtures, pg, technicianService, logger)
	}

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    10 * 1024 * 1024,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	var idempotency fiber.Handler
	if cfg.Idempotency.Enabled && redis.Enabled() {
		idempotency = httptransport.NewIdempotencyMiddleware(
			persistence.NewRedisStorage(redis.Client, cfg.App.Name+":idempotency:"),
			cfg.Idempotency.Lifetime(),
		)
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService, reviewService),
		Technicians:    handlers.NewTechniciansHandler(technicianService, rankingService, reviewService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), repos.users),
		Idempotency:    idempotency,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	notifier.Wait()
}

func buildRepositories(pg *persistence.Postgres, logger *zap.Logger) repositories {
	if !pg.Enabled() {
		logger.Warn("using in-memory repositories; data is lost on restart")
		store := memory.NewStore()
		return repositories{
			users:       store.Users(),
			tickets:     store.Tickets(),
			history:     store.History(),
			technicians: store.Technicians(),
			reviews:     store.Reviews(),
			candidates:  store.Candidates(),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		users:       repository.NewUserRepository(pool),
		tickets:     repository.NewTicketRepository(pool),
		history:     repository.NewTicketHistoryRepository(pool),
		technicians: repository.NewTechnicianRepository(pool),
		reviews:     repository.NewReviewRepository(pool),
		candidates:  repository.NewCandidateSource(pool),
	}
}

func loadFixtures(ctx context.Context, path string, pg *persistence.Postgres, technicians *service.TechnicianService, logger *zap.Logger) {
	if pg.Enabled() {
		logger.Warn("--fixtures ignored with postgres; use cmd/seed")
		return
	}
	fixtures, err := seed.LoadFile(path)
	if err != nil {
		logger.Fatal("failed to read fixtures", zap.Error(err))
	}
	result, err := seed.Apply(ctx, technicians, domain.Actor{ID: "bootstrap", Role: domain.RoleAdmin}, fixtures, logger)
	if err != nil {
		logger.Fatal("failed to load fixtures", zap.Error(err))
	}
	logger.Info("fixtures loaded", zap.Int("created", result.Created), zap.Int("skipped", result.Skipped))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
