package main

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"med-dose-guard/internal/adapters/auth/janus"
	"med-dose-guard/internal/adapters/capabilities/plans"
	"med-dose-guard/internal/adapters/storage/postgres"
	"med-dose-guard/internal/platform/config"
	"med-dose-guard/internal/platform/httpclient"
	"med-dose-guard/internal/platform/logger"
	"med-dose-guard/internal/ports/auth"
	"med-dose-guard/internal/ports/capabilities"
	"med-dose-guard/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	lg := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})

	var verifier auth.AuthVerifier
	if cfg.AuthBaseURL != "" {
		hc, err := httpclient.NewWithBaseURL(cfg.AuthBaseURL, cfg.AuthTimeout())
		if err != nil {
			log.Fatalf("auth client error: %v", err)
		}
		verifier = janus.NewVerifier(janus.NewClient(hc))
		lg.Info("remote auth enabled", map[string]any{"base_url": cfg.AuthBaseURL})
	} else {
		lg.Warn("auth verifier not configured, dev mode (X-Debug-User-ID)", nil)
	}

	var caps capabilities.Resolver
	if cfg.PlansBaseURL != "" {
		client, err := plans.NewClient(plans.Config{
			BaseURL: cfg.PlansBaseURL,
			APIKey:  cfg.PlansAPIKey,
		})
		if err != nil {
			log.Fatalf("plans client error: %v", err)
		}
		caps = plans.NewResolver(client)
		lg.Info("capability resolver enabled", map[string]any{"base_url": cfg.PlansBaseURL})
	}

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("postgres error: %v", err)
		}
		defer db.Close()
		lg.Info("postgres storage enabled", nil)
	}

	r := router.NewRouter(router.Options{
		AuthVerifier: verifier,
		Capabilities: caps,
		DB:           db,
		SQLitePath:   cfg.SQLitePath,
		Grace:        cfg.Grace(),
		Log:          lg,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	lg.Info("starting server", map[string]any{"addr": cfg.HTTPAddr()})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
