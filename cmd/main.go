package main

import (
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/koinonia-app/QueueChat/config"
	"github.com/koinonia-app/QueueChat/internal/handlers"
	"github.com/koinonia-app/QueueChat/internal/identity"
	"github.com/koinonia-app/QueueChat/internal/notifier"
	"github.com/koinonia-app/QueueChat/internal/pkg/ratelimit"
	"github.com/koinonia-app/QueueChat/internal/pkg/snowflake"
	"github.com/koinonia-app/QueueChat/internal/pkg/workerpool"
	"github.com/koinonia-app/QueueChat/internal/repositories"
	"github.com/koinonia-app/QueueChat/internal/routers"
	"github.com/koinonia-app/QueueChat/internal/services"
	"github.com/koinonia-app/QueueChat/internal/storage"
	logger "github.com/koinonia-app/QueueChat/middleware/log"
	"github.com/koinonia-app/QueueChat/pkg/utils"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zlog.Sync()

	utils.SetJWTSecret(cfg.JWT.Secret)

	// PostgreSQL
	db, err := storage.InitPostgres(&cfg.Postgres)
	if err != nil {
		zlog.Fatal("failed to init postgres", zap.Error(err))
	}

	// Redis
	redisClient, err := storage.InitRedis(&cfg.Redis)
	if err != nil {
		zlog.Fatal("failed to init redis", zap.Error(err))
	}

	// 仓储层
	queueRepo := repositories.NewQueueRepository(db)
	chatRepo := repositories.NewChatRepository(db)

	// Worker pool for notification fan-out
	pool := workerpool.New(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, zlog.Logger)
	pool.Start()
	defer pool.Stop()

	// Notifier: kafka when brokers are configured, otherwise a no-op.
	var note notifier.Notifier = notifier.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier, err := notifier.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			zlog.Warn("kafka notifier unavailable, notifications disabled", zap.Error(err))
		} else {
			defer kafkaNotifier.Close()
			note = kafkaNotifier
		}
	}
	dispatcher := notifier.NewDispatcher(note, pool, zlog)

	// Identity provider boundary. The static provider stands in for the
	// platform's identity service; the redis cache keeps member resolution
	// cheap either way.
	var identityProvider identity.Provider = identity.NewStaticProvider()
	identityProvider = identity.NewCachingProvider(identityProvider, redisClient, 5*time.Minute, zlog.Logger)

	// Message ID generator
	idGen, err := snowflake.NewGenerator(cfg.Server.WorkerID)
	if err != nil {
		zlog.Fatal("failed to init snowflake generator", zap.Error(err))
	}

	// 服务层
	matchmaker := services.NewMatchmakerService(
		queueRepo,
		dispatcher,
		zlog,
		cfg.Matchmaker.MaxRetries,
		time.Duration(cfg.Matchmaker.RetryBackoffMs)*time.Millisecond,
	)
	chatService := services.NewChatService(chatRepo, idGen, identityProvider, dispatcher, zlog)

	// 处理器
	queueHandler := handlers.NewQueueHandler(matchmaker)
	chatHandler := handlers.NewChatHandler(chatService)

	// 限流器
	var limiter ratelimit.Limiter
	if cfg.RateLimit.PerMinute > 0 {
		limiter = ratelimit.NewRedisLimiter(redisClient, zlog.Logger, cfg.RateLimit.Fallback)
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()

	routers.SetupRoutes(r, cfg, queueHandler, chatHandler, limiter)

	zlog.Info("starting server", zap.Int("port", cfg.Server.Port))
	if err := r.Run(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}
