package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/app"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/config"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/logger"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/router"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.AppConfig
	log := logger.New(cfg.Log)

	container, err := app.NewServiceContainer(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to initialize service container")
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.Bootstrap(ctx); err != nil {
		log.WithError(err).Fatal("❌ Bootstrap failed")
	}

	server := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           router.SetupRouter(container.RouterDeps()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("🌐 HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return container.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("🛑 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("❌ Server stopped with error")
		os.Exit(1)
	}
	log.Info("✅ Server stopped")
}
