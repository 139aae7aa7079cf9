package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p3dr-dev/hydra/internal/config"
	"github.com/p3dr-dev/hydra/internal/exchange"
	"github.com/p3dr-dev/hydra/internal/executor"
	"github.com/p3dr-dev/hydra/internal/graph"
	"github.com/p3dr-dev/hydra/internal/observer"
	"github.com/p3dr-dev/hydra/internal/orchestrator"
	"github.com/p3dr-dev/hydra/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	ctx, cancelBoot := context.WithTimeout(context.Background(), 15*time.Second)
	client, err := exchange.NewBinanceClient(ctx, cfg.Endpoints)
	cancelBoot()
	if err != nil {
		logger.Fatal("failed to connect to exchange", utils.Err(err))
	}
	defer client.Close()

	history, err := executor.OpenHistory(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open trade history", utils.Err(err))
	}
	defer history.Close()

	g := graph.New()
	hopExec := executor.NewHopExecutor(client, g)
	pathExec := executor.NewPathExecutor(hopExec, history)

	hub := observer.NewHub()
	go hub.Run()
	obsServer := observer.NewServer(hub)

	orch := orchestrator.New(cfg, client, g, pathExec, obsServer)

	runCtx, cancelRun := context.WithCancel(context.Background())
	go func() {
		if err := orch.Run(runCtx); err != nil {
			logger.Error("orchestrator stopped with error", utils.Err(err))
		}
	}()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", getEnv("HYDRA_HTTP_PORT", "8080")),
		Handler:      obsServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting observer HTTP server", utils.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("observer server failed", utils.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancelRun()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("observer server forced to shutdown", utils.Err(err))
	}

	logger.Info("shutdown complete")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
