package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/viper"

	"github.com/ridewire/ridewire/server/adaptor"
	"github.com/ridewire/ridewire/server/domain"
	"github.com/ridewire/ridewire/server/repository"
	"github.com/ridewire/ridewire/server/usecase"
)

func main() {
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("store", "sqlite")
	viper.SetDefault("db_path", "./ridewire.db")
	viper.SetDefault("ring_delay_ms", 200)
	viper.SetDefault("answer_timeout_s", 60)
	viper.SetDefault("settle_delay_s", 3)
	viper.SetEnvPrefix("ridewire")
	viper.AutomaticEnv()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	repo, cleanup, err := openRepository(logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	registry := domain.NewConnectionRegistry()
	pub := domain.NewBroadcaster(registry, logger)
	uc := usecase.NewCoordinator(repo, registry, pub, logger, domain.CallMachineConfig{
		RingDelay:     time.Duration(viper.GetInt("ring_delay_ms")) * time.Millisecond,
		AnswerTimeout: time.Duration(viper.GetInt("answer_timeout_s")) * time.Second,
		SettleDelay:   time.Duration(viper.GetInt("settle_delay_s")) * time.Second,
	})

	handler := adaptor.NewHandler(uc, logger)
	ws := adaptor.NewWSHandler(uc, logger)
	srv := &http.Server{
		Addr:    viper.GetString("listen_addr"),
		Handler: adaptor.NewRouter(handler, ws),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "store", viper.GetString("store"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func openRepository(logger *slog.Logger) (usecase.Repository, func(), error) {
	if viper.GetString("store") == "memory" {
		logger.Warn("using in-memory store, data will not survive a restart")
		return repository.NewMemory(), func() {}, nil
	}

	db, err := sql.Open("sqlite3", repository.DSN(viper.GetString("db_path")))
	if err != nil {
		return nil, nil, err
	}
	repo, err := repository.NewRepository(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, func() { db.Close() }, nil
}
