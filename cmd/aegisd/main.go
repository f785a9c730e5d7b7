package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aegis-otc/aegis-core/params"
	"github.com/aegis-otc/aegis-core/pkg/api"
	"github.com/aegis-otc/aegis-core/pkg/rfq"
	"github.com/aegis-otc/aegis-core/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("") // "" means load .env from current directory

	logger, err := util.NewLogger(cfg.Server.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// ---- Core: store -> bus -> engine -> expiry monitor ----
	store := rfq.NewStore(nil)
	bus := rfq.NewBus(store.ListAll, cfg.Server.WSSendBuffer, logger)
	store.SetNotifier(bus)

	engine := rfq.NewEngine(store, cfg.Quote.MakerWallet, cfg.Quote.TTL, nil, logger)

	monitor := rfq.NewMonitor(store, cfg.Expiry.SweepInterval, nil, logger)
	monitor.Start()

	// ---- Gateway ----
	server := api.NewServer(store, engine, bus, cfg.Server, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.ListenAddr)
	}()

	logger.Info("aegis core started",
		zap.String("addr", cfg.Server.ListenAddr),
		zap.Duration("quote_ttl", cfg.Quote.TTL),
		zap.Duration("expiry_sweep", cfg.Expiry.SweepInterval),
		zap.String("maker_wallet", cfg.Quote.MakerWallet))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
		}
	}

	monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	bus.Close()

	logger.Info("shutdown complete")
}
