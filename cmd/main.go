package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mundotango/mundo-tango-api/config"
	"github.com/mundotango/mundo-tango-api/internal/container"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/cache"
	pginfra "github.com/mundotango/mundo-tango-api/internal/infrastructure/postgres"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/search"
	"github.com/mundotango/mundo-tango-api/internal/interface/middleware"
	"github.com/mundotango/mundo-tango-api/internal/realtime"
	"github.com/mundotango/mundo-tango-api/internal/router"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
	"github.com/mundotango/mundo-tango-api/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Postgres pool
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	// Run migrations using database/sql with pgx stdlib
	if err := runMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	// Redis is optional; cache, locks and rate limits degrade without it
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		if err := helpers.PingRedis(ctx, rdb); err != nil {
			logger.WithError(err).Warn("redis unreachable, continuing with in-memory fallback")
		}
		defer func() { _ = rdb.Close() }()
	}

	// GCS only when a bucket is configured
	if cfg.GCSBucket != "" {
		gcsClient, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			log.Fatalf("failed to init GCS client: %v", err)
		}
		defer func() { _ = gcsClient.Close() }()
		container.SetGCS(gcsClient)
	}

	if cfg.RabbitMQURL != "" {
		emailPub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			logger.WithError(err).Warn("email queue unavailable; digests disabled")
		} else {
			defer emailPub.Close()
			container.SetEmailPub(emailPub)
		}
		indexPub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQIndexQueue)
		if err != nil {
			logger.WithError(err).Warn("index queue unavailable; writing to elasticsearch directly")
		} else {
			defer indexPub.Close()
			container.SetIndexPub(indexPub)
		}
	}

	if cfg.SearchUseElastic {
		es, err := search.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			logger.WithError(err).Warn("elasticsearch client init failed; using in-memory search")
		} else {
			container.SetES(es)
		}
	}

	// Cache with Redis primary, memory fallback, and the predictive warmer
	mem := cache.NewMemoryStore(cfg.CacheMemoryMaxEntries)
	appCache := cache.New(rdb, logger,
		cache.WithPrefix(cfg.CachePrefix),
		cache.WithDefaultTTL(cfg.CacheDefaultTTL),
		cache.WithMemoryStore(mem),
	)
	warmer := cache.NewWarmer(appCache, cache.NewLocker(rdb, cfg.CachePrefix), logger, warmerConfig(cfg))
	appCache.SetObserver(warmer)

	hub := realtime.NewHub(logger, 0)

	// Provide infra singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	container.SetRedis(rdb)
	container.SetJWT(helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL))
	container.SetCache(appCache)
	container.SetWarmer(warmer)
	container.SetHub(hub)

	// Gin engine and global middleware
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxyList()); err != nil {
		logger.WithError(err).Fatal("invalid TRUSTED_PROXIES")
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RealIP(cfg.TrustedProxyList()...))
	r.Use(middleware.RequestIDMiddleware())
	// CORS
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOriginFunc = func(string) bool { return cfg.Env == "development" }
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r)
	deps := router.InitModules(reg)
	reg.RegisterAll()

	// Build the local index before serving; a partial index is still useful
	if n, err := deps.Search.Reindex(ctx, deps.Sources); err != nil {
		logger.WithError(err).WithField("indexed", n).Warn("initial reindex incomplete")
	} else {
		helpers.LogInfo(logger, "search index built", logrus.Fields{"indexed": n})
	}

	go mem.Run(ctx, cfg.CacheJanitorInterval)
	if cfg.WarmerEnabled {
		go warmer.Run(ctx, cfg.WarmerInterval)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// hijacked websocket connections are not tracked by Shutdown
	hub.Shutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}

func runMigrations(dsn string, migrationsDir string, logger *logrus.Logger) error {
	// Open sql DB via pgx stdlib
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsDir), "postgres", driver)
	if err != nil {
		return err
	}
	logger.Info("running migrations...")
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to run")
		return nil
	}
	return err
}

// warmerConfig holds the warmer lock for one interval, so a crashed
// instance blocks warming for at most one run.
func warmerConfig(cfg *config.Config) cache.WarmerConfig {
	return cache.WarmerConfig{
		Limit:         cfg.WarmerLimit,
		Threshold:     cfg.WarmerThreshold,
		RecencyWindow: cfg.WarmerRecencyWindow,
		MaxTracked:    cfg.WarmerMaxTrackedKeys,
		LockTTL:       cfg.WarmerInterval,
	}
}
