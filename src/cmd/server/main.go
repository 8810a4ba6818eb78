package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/api-sage/ledger-core/src/internal/adapter/http/controller"
	"github.com/api-sage/ledger-core/src/internal/adapter/http/middleware"
	"github.com/api-sage/ledger-core/src/internal/adapter/http/router"
	"github.com/api-sage/ledger-core/src/internal/bootstrap"
	"github.com/api-sage/ledger-core/src/internal/config"
	"github.com/api-sage/ledger-core/src/internal/logger"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", err, nil)
		os.Exit(1)
	}
	logger.Configure(os.Stdout, cfg.LogLevel)

	if err := run(cfg); err != nil {
		logger.Error("server stopped with error", err, nil)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	ledger, err := bootstrap.Open(startCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(context.Background()); err != nil {
			logger.Error("close ledger", err, nil)
		}
	}()

	var pinger controller.Pinger
	if ledger.DB != nil {
		pinger = ledger.DB
	}

	mux := router.New(router.Controllers{
		Account:     controller.NewAccountController(ledger.Accounts),
		Transfer:    controller.NewTransferController(ledger.Transfers),
		Transaction: controller.NewTransactionController(ledger.Transactions),
		Audit:       controller.NewAuditController(ledger.Audit),
		Health:      controller.NewHealthController(cfg.StoreBackend, pinger),
	}, middleware.BasicAuth(cfg.ChannelID, cfg.ChannelKeyHash))

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", logger.Fields{"addr": cfg.HTTPAddr})
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("http server shutting down", nil)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}
