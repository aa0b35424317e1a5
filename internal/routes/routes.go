package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/harryospicon/catarse/internal/balance"
	"github.com/harryospicon/catarse/internal/config"
	"github.com/harryospicon/catarse/internal/contribution"
	"github.com/harryospicon/catarse/internal/middleware"
	"github.com/harryospicon/catarse/internal/notification"
	"github.com/harryospicon/catarse/internal/payment"
	"github.com/harryospicon/catarse/internal/posting"
	"github.com/harryospicon/catarse/internal/project"
	"github.com/harryospicon/catarse/internal/user"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes. Without a database
// the posting engine runs against in-memory stores, which only makes sense
// for local development and tests.
func Setup(app *fiber.App, d Deps) error {
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.Production() {
		app.Use(middleware.Audit(d.Logger))
	} else {
		// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health and metrics
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	// Stores and repositories
	var (
		store         balance.Store
		projects      project.Repository
		contributions contribution.Repository
		payments      payment.Repository
		users         user.Repository
	)
	if d.DB != nil {
		store = balance.NewPostgresStore(d.DB)
		projects = project.NewPostgresRepository(d.DB)
		contributions = contribution.NewPostgresRepository(d.DB)
		payments = payment.NewPostgresRepository(d.DB)
		users = user.NewPostgresRepository(d.DB)
	} else {
		memContributions := contribution.NewMemoryRepository()
		store = balance.NewInMemory(memContributions)
		projects = project.NewMemoryRepository()
		contributions = memContributions
		payments = payment.NewMemoryRepository()
		users = user.NewMemoryRepository()
	}

	svc := posting.NewService(posting.Deps{
		Store:         store,
		Projects:      projects,
		Contributions: contributions,
		Payments:      payments,
		Users:         users,
		Notifier:      notifier,
		Logger:        d.Logger,
	})
	handler := posting.NewHandler(svc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	transferLimit := middleware.RateLimit(d.Cache, "transfer", "userId", 5)
	RegisterBalanceRoutes(api, handler, transferLimit)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
