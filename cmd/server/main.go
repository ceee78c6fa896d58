package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"skyflow/internal/api"
	"skyflow/internal/auth"
	"skyflow/internal/config"
	"skyflow/internal/db"
	"skyflow/internal/notify"
	"skyflow/internal/payments"
	"skyflow/internal/recon"
	"skyflow/internal/service"
	"skyflow/internal/store"
	"skyflow/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	sqdb, err := db.OpenSQLite(cfg.DBPath, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer sqdb.Close()
	if err := db.ApplyMigrationFile(sqdb, "migrations/001_init.sql"); err != nil {
		log.Fatalf("migration: %v", err)
	}

	st := store.New(sqdb)
	if cfg.BootstrapAdminEmail != "" {
		if err := st.EnsureAdmin(context.Background(), cfg.BootstrapAdminEmail, cfg.BootstrapAdminName); err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
	}

	ledger, err := payments.NewLedger(cfg)
	if err != nil {
		log.Fatalf("payment ledger: %v", err)
	}
	sender := notify.NewSender(cfg)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.SessionDuration())

	svc := service.New(cfg, st, tokens, sender, ledger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper := recon.NewSweeper(st, cfg.SweepInterval())
	go sweeper.Run(ctx)

	r := api.NewRouter(cfg, svc, sweeper)

	hsrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTPReadHeaderTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	info := version.Current()
	log.Printf("skyflow %s (%s) listening on %s", info.Version, info.Commit, cfg.ListenAddr)
	if err := hsrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}
