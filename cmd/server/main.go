package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"interviewlab/config"
	"interviewlab/internal/cache"
	"interviewlab/internal/logging"
	"interviewlab/internal/model"
	"interviewlab/internal/repository"
	"interviewlab/internal/service"
	"interviewlab/internal/session"
	"interviewlab/internal/transport/rest"
	"interviewlab/internal/transport/ws"
	"interviewlab/internal/vision"
)

func main() {
	ctx := context.Background()

	// Bootstrap logger for config loading; replaced once logging config is known.
	bootLog := zap.Must(zap.NewDevelopment())

	cfg, err := config.Load("config", bootLog)
	if err != nil {
		bootLog.Fatal("failed to load configuration", zap.Error(err))
	}

	log, err := logging.New(logging.Options{
		Directory:  cfg.Logging.Directory,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		bootLog.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer log.Sync()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("failed to ping MongoDB", zap.Error(err))
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	db := mongoClient.Database(cfg.Mongo.Database)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("failed to ping Redis", zap.Error(err))
	}
	log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// WebSocket hub
	wsHub := ws.NewHub(log)
	defer wsHub.Close()

	// Repositories + cache
	sessionRepo := repository.NewSessionRepo(db)
	metricsRepo := repository.NewMetricsRepo(db)
	metricsCache := cache.NewMetricsCache(rdb)

	// Pipeline services
	detector := vision.NewHTTPDetector(cfg.Detector.Endpoint)
	manager := session.NewManager(sessionRepo, metricsRepo, metricsCache, wsHub, detector, cfg.Pipeline.SampleInterval, log)
	publisher := service.NewPublisher(manager, wsHub, metricsCache, cfg.Pipeline.PublishInterval, log)
	retentionSvc := service.NewRetentionService(sessionRepo, metricsRepo, log)
	exportSvc := service.NewExportService()

	publisher.Start(ctx)
	defer publisher.Stop()

	defaultPolicy := model.RetentionPolicy{
		MaxAge:       cfg.Retention.MaxAge,
		MaxSessions:  cfg.Retention.MaxSessions,
		ArchiveAfter: cfg.Retention.ArchiveAfter,
		DeleteAfter:  cfg.Retention.DeleteAfter,
	}

	container := &rest.Container{
		Manager:          manager,
		RetentionService: retentionSvc,
		ExportService:    exportSvc,
		SessionRepo:      sessionRepo,
		MetricsRepo:      metricsRepo,
		MetricsCache:     metricsCache,
		WSHandler:        ws.NewHandler(wsHub, log),
		DefaultPolicy:    defaultPolicy,
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: rest.NewRouter(container),
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen and serve", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Live sessions complete locally before the process exits; an interview
	// is never lost to a restart.
	manager.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
}
