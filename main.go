package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"meticulous-api/api"
	"meticulous-api/boardsync"
	"meticulous-api/config"
	"meticulous-api/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}
	settings, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg := settings.Current()

	logger := log.New()
	store := storage.NewFileStore(cfg.BoardPath(), logger)
	briefs := storage.NewBriefStore(cfg.VaultPath, logger)
	coord := boardsync.New(store, logger, boardsync.Config{
		Debounce:     cfg.Debounce,
		PollInterval: cfg.PollInterval,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	api.Register(e, coord, briefs, settings, logger)

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()
	logger.WithFields(log.Fields{
		"addr":  cfg.ListenAddr,
		"vault": cfg.VaultPath,
		"board": cfg.BoardFile,
	}).Info("board server ready")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	// Close after the listener stops so the last debounced write lands.
	if err := coord.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("coordinator close")
	}
}
