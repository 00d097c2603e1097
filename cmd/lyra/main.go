package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sneakwind/lyra/internal/config"
	"github.com/sneakwind/lyra/internal/db"
	"github.com/sneakwind/lyra/internal/library"
	"github.com/sneakwind/lyra/internal/resolver"
	"github.com/sneakwind/lyra/internal/server"
)

func main() {
	logger := log.New(os.Stdout, "[lyra] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load configuration: %v", err)
	}

	var database *sql.DB
	if cfg.CacheEnabled() {
		database, err = db.Open(cfg.Cache.DBPath)
		if err != nil {
			// The persisted index is an optimization; run without it.
			logger.Printf("cache database unavailable, index will rebuild per process: %v", err)
			database = nil
		} else {
			defer database.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := resolver.New(resolver.Options{
		LyricsRoot:   cfg.LyricsRoot,
		TTL:          cfg.CacheTTL(),
		CacheEnabled: cfg.CacheEnabled(),
		DB:           database,
		Logger:       logger,
	})
	if err := res.Watch(ctx); err != nil {
		logger.Printf("lyric watcher disabled: %v", err)
	}

	lib := library.New(cfg.MusicRoot)
	srv := server.New(lib, res, cfg.LyricsRoot, logger)

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("serving music from %s, lyrics from %s, listening on %s",
		cfg.MusicRoot, cfg.LyricsRoot, cfg.Listen)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server: %v", err)
	}
}
