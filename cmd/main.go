package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anonchat/backend/internal/api/handler"
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/logger"
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "anonchat",
		Short: "Anonymous chat matchmaking and relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", os.Getenv("ANONCHAT_CONFIG"), "path to the YAML configuration file")
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer storage.CloseDatabase(db)

	rdb, err := storage.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	log.Info("persistence configured",
		zap.String("database", cfg.Database.Driver), zap.Bool("redis", rdb != nil))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	store := storage.NewStorageService(db, rdb, cfg.Redis)
	writer := storage.NewAsyncWriter(store, cfg.Chat.PersistQueueSize, m, log)
	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.Run(writerCtx)
	}()

	localizer, err := localization.NewLocalizer()
	if err != nil {
		stopWriter()
		return err
	}

	hub := chathub.NewManagerService(chathub.Options{
		GreetingDelay:    cfg.Chat.GreetingDelay,
		SyntheticPartner: cfg.Chat.SyntheticEnabled(),
		Persister:        writer,
		Localizer:        localizer,
		Metrics:          m,
		Logger:           log,
	})
	go hub.Run(ctx)

	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	var history handler.HistoryReader
	if db != nil {
		history = store
	}
	h := handler.NewHandler(hub, history, m, cfg, log)
	h.RegisterRoutes(router)

	server := &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err = <-serveErr:
		log.Error("http server failed", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("http server shutdown", zap.Error(shutdownErr))
	}

	<-hub.Done()
	stopWriter()
	<-writerDone
	log.Info("server stopped")
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
