package container

import (
	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mundotango/mundo-tango-api/config"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/cache"
	"github.com/mundotango/mundo-tango-api/internal/realtime"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

// app-level container to share constructed components across packages
// Router can auto-wire modules from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	gcsClient   *storage.Client

	jwtManager *helpers.JWTManager

	emailPub *helpers.RabbitPublisher
	indexPub *helpers.RabbitPublisher
	esClient *elasticsearch.Client

	appCache *cache.Cache
	warmer   *cache.Warmer
	chatHub  *realtime.Hub
)

func SetConfig(c *config.Config)   { cfg = c }
func GetConfig() *config.Config    { return cfg }
func SetLogger(l *logrus.Logger)   { logger = l }
func GetLogger() *logrus.Logger    { return logger }
func SetPGPool(p *pgxpool.Pool)    { pgPool = p }
func GetPGPool() *pgxpool.Pool     { return pgPool }
func SetRedis(r *redis.Client)     { redisClient = r }
func GetRedis() *redis.Client      { return redisClient }
func SetGCS(s *storage.Client)     { gcsClient = s }
func GetGCS() *storage.Client      { return gcsClient }
func SetJWT(m *helpers.JWTManager) { jwtManager = m }
func GetJWT() *helpers.JWTManager  { return jwtManager }

func SetEmailPub(p *helpers.RabbitPublisher) { emailPub = p }
func SetIndexPub(p *helpers.RabbitPublisher) { indexPub = p }
func SetES(c *elasticsearch.Client)          { esClient = c }
func GetES() *elasticsearch.Client           { return esClient }

// GetEmailPub returns the email job publisher, or a nil interface when
// RabbitMQ is not configured.
func GetEmailPub() helpers.Publisher {
	if emailPub == nil {
		return nil
	}
	return emailPub
}

func GetIndexPub() helpers.Publisher {
	if indexPub == nil {
		return nil
	}
	return indexPub
}

// GetUploader returns a GCS uploader, or a nil interface when no bucket is set.
func GetUploader() helpers.Uploader {
	if gcsClient == nil || cfg == nil || cfg.GCSBucket == "" {
		return nil
	}
	return helpers.NewGCSUploader(gcsClient, cfg.GCSBucket)
}

func SetCache(c *cache.Cache)   { appCache = c }
func GetCache() *cache.Cache    { return appCache }
func SetWarmer(w *cache.Warmer) { warmer = w }
func GetWarmer() *cache.Warmer  { return warmer }
func SetHub(h *realtime.Hub)    { chatHub = h }
func GetHub() *realtime.Hub     { return chatHub }
