package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ahtracker/internal/client/blizzard"
	"ahtracker/internal/config"
	cronrunner "ahtracker/internal/cron"
	"ahtracker/internal/db"
	"ahtracker/internal/handler"
	"ahtracker/internal/logger"
	"ahtracker/internal/pricing"
	gormrepository "ahtracker/internal/repository/gorm"
	"ahtracker/internal/service"
)

func main() {
	cfgPath := os.Getenv("AH_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("AH_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	httpClient := &http.Client{Timeout: cfg.Blizzard.Timeout}
	client := blizzard.NewClient(httpClient, blizzard.Options{
		OAuthHost:    cfg.Blizzard.OAuthURL,
		APIHost:      cfg.Blizzard.APIURL,
		Region:       cfg.Blizzard.Region,
		Locale:       cfg.Blizzard.Locale,
		ClientID:     cfg.Blizzard.ClientID,
		ClientSecret: cfg.Blizzard.ClientSecret,
	})
	store := gormrepository.New(dbConn.Gorm)

	writer := &service.Writer{
		Repo:            store,
		Logger:          logger,
		BatchSize:       cfg.Writer.BatchSize,
		InterBatchDelay: cfg.Writer.InterBatchDelay,
	}
	enricher := &service.Enricher{
		Repo:         store,
		Items:        client,
		Logger:       logger,
		ChunkSize:    cfg.Enrich.ChunkSize,
		PerItemDelay: cfg.Enrich.PerItemDelay,
		MaxPerRun:    cfg.Enrich.MaxPerRun,
	}
	scanSvc := &service.ScanService{
		Repo:     store,
		Source:   client,
		Engine:   pricing.NewEngine(pricing.RealClock{}),
		Writer:   writer,
		Enricher: enricher,
		Logger:   logger,
		Scan:     cfg.Scan,
		Enrich:   cfg.Enrich,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	scanHandler := &handler.ScanHandler{Service: scanSvc, Repo: store, Logger: logger}
	scanHandler.Register(engine)
	historyHandler := &handler.HistoryHandler{Repo: store}
	historyHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err := cronRunner.Add(cfg.Cron.Scan, func(ctx context.Context) {
			result, err := scanSvc.Run(ctx)
			if err != nil {
				if errors.Is(err, service.ErrScanInProgress) {
					logger.Info("cron scan skipped, previous run still active")
					return
				}
				logger.Warn("cron scan failed", zap.Error(err))
				return
			}
			logger.Info("cron scan ok",
				zap.String("status", string(result.Status)),
				zap.Int("listings", result.Listings),
				zap.Int("rows", result.Rows),
				zap.Int("enriched", result.Enrich.Enriched),
			)
		})
		if err != nil {
			logger.Warn("cron register scan failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
