// Package app は設定から各コンポーネントを組み立てる。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"library-backend/internal/catalog"
	"library-backend/internal/loans"
	"library-backend/internal/overdue"
	"library-backend/internal/platform/config"
	"library-backend/internal/platform/db"
	"library-backend/internal/platform/idgen"
	"library-backend/internal/platform/lock"
	"library-backend/internal/platform/logging"
	"library-backend/internal/platform/ratelimit"
)

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Log     *zap.SugaredLogger
	DB      *sql.DB
	Dialect db.Dialect

	Books   *catalog.Service
	Loans   *loans.Service
	Scanner *overdue.Scanner

	redis   *redis.Client
	limiter *ratelimit.Limiter
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, _ := logging.New(cfg.Mode)
	return NewWithLogger(ctx, cfg, logger)
}

func NewWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	log := logger.Sugar()
	log.Infow("starting", "version", cfg.Version, "mode", cfg.Mode)

	conn, dialect, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	log.Infow("connected to DB", "driver", cfg.DB.Driver, "dbname", cfg.DB.DBName, "path", cfg.DB.Path)

	a := &App{Config: cfg, Logger: logger, Log: log, DB: conn, Dialect: dialect}

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Redis.Enabled {
		a.redis = lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		locker = lock.NewRedisLocker(a.redis, cfg.Redis.LockTTL, log)
		log.Infow("using redis book locks", "addr", cfg.Redis.Addr)
	}

	if rl := cfg.Server.RateLimit; rl.Enabled {
		if a.limiter, err = ratelimit.New(rl.RequestsPerSecond, rl.Burst, rl.MaxClients); err != nil {
			a.Close()
			return nil, err
		}
	}

	ids := idgen.New()
	bookStore := catalog.NewStore(conn, dialect, ids)
	loanStore := loans.NewStore(conn, dialect, ids)

	a.Books = catalog.NewService(bookStore, loanStore, locker, log)
	a.Loans = loans.NewService(loanStore, bookStore, locker, log)

	var notifier overdue.Notifier = overdue.NewLogNotifier(log)
	if cfg.Mail.Enabled {
		notifier = overdue.NewSMTPNotifier(cfg.Mail)
	}
	a.Scanner = overdue.NewScanner(loanStore, notifier, overdue.Options{
		ThresholdDays: cfg.Overdue.ThresholdDays,
		Message:       cfg.Overdue.Message,
		Location:      cfg.Overdue.Location(),
	}, log)

	return a, nil
}

func (a *App) Migrate(ctx context.Context) error {
	if err := db.Migrate(ctx, a.DB, a.Dialect); err != nil {
		return err
	}
	a.Log.Info("schema up to date")
	return nil
}

// Scheduler は overdue.run_at に Scanner を起動するスケジューラを返す（未起動）。
func (a *App) Scheduler() *overdue.Scheduler {
	h, m := a.Config.Overdue.Clock()
	return overdue.NewScheduler(a.Scanner, h, m, a.Config.Overdue.Location(), a.Config.Overdue.Timeout, a.Log)
}

func (a *App) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(logging.GinLogger(a.Log), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if a.Config.Mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     a.Config.Server.AllowOrigins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Location"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context(), a.DB); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// /api
	api := r.Group("/api")
	if a.limiter != nil {
		api.Use(a.limiter.Middleware())
	}
	catalog.RegisterRoutes(api, a.Books, a.Log)
	loans.RegisterRoutes(api, a.Loans, a.Log)
	overdue.RegisterRoutes(api, a.Scanner, a.Log)

	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusNotFound) })
	return r
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	_ = a.Logger.Sync()
}
