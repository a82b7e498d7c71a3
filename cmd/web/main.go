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

	"naccexam/internal/app"
	"naccexam/internal/db"
	"naccexam/internal/event"
	"naccexam/internal/question"
)

func main() {
	cfg := app.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Printf("config error: %v", err)
		os.Exit(1)
	}

	catalog, err := question.ParseCatalog(cfg.ExamTestIDs)
	if err != nil {
		log.Printf("catalog error: %v", err)
		os.Exit(1)
	}

	dbCfg, err := cfg.DBConfig()
	if err != nil {
		log.Printf("config error: %v", err)
		os.Exit(1)
	}
	dbConn, err := db.Open(context.Background(), dbCfg)
	if err != nil {
		log.Printf("database error: %v", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := app.BootstrapAdmin(context.Background(), cfg, dbConn); err != nil {
		log.Printf("bootstrap admin error: %v", err)
		os.Exit(1)
	}

	publisher, err := event.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Printf("event publisher error: %v", err)
		os.Exit(1)
	}
	defer func() { _ = publisher.Close() }()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.NewRouter(cfg, dbConn, catalog, publisher),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("naccexam web listening on %s (db=%s, tests=%d)", cfg.HTTPAddr, dbCfg.Driver, len(catalog.Tests()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
