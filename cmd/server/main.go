package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradekeeper/internal/app/server/api"
	"tradekeeper/internal/app/server/config"
	"tradekeeper/internal/infrastructure/storage/postgres"
	"tradekeeper/internal/utils/logger"
)

func main() {
	conf := config.MustLoad()
	log := logger.New(conf.Env)

	storage, err := postgres.New(conf)
	if err != nil {
		log.Error("storage init", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	mux := api.New(storage, log)

	srv := &http.Server{
		Addr:         conf.Server.RunAddress,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("server started", "address", conf.Server.RunAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			done <- syscall.SIGTERM
		}
	}()

	<-done
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
