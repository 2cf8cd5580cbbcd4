/*
main.go - Coin engine server entry point

PURPOSE:
  Starts the HTTP server for the coin ledger service. Wires together the
  SQLite store, ledger, scheme registry, engine, payment provider, and
  HTTP handlers.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse flags
  2. Open SQLite database (migrates on open)
  3. Build engine and HTTP router
  4. Optionally seed demo data
  5. Serve until SIGINT/SIGTERM, then drain with a grace period

FLAGS:
  -port  HTTP port (default 8080, env PORT)
  -db    SQLite database path (default ./data/coins.db, env DB_PATH)
  -seed  Insert demo accounts, schemes, and catalog items

ENVIRONMENT:
  PAYMENT_SECRET  HMAC secret shared with the payment gateway
  LOG_LEVEL       logrus level (debug, info, warn, error)
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/loyaltyworks/coin-engine/api"
	"github.com/loyaltyworks/coin-engine/engine"
	"github.com/loyaltyworks/coin-engine/ledger"
	"github.com/loyaltyworks/coin-engine/payment"
	"github.com/loyaltyworks/coin-engine/scheme"
	"github.com/loyaltyworks/coin-engine/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var (
		port   = flag.String("port", envOr("PORT", "8080"), "HTTP port")
		dbPath = flag.String("db", envOr("DB_PATH", "./data/coins.db"), "SQLite database path")
		seed   = flag.Bool("seed", false, "Insert demo data on startup")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(envOr("LOG_LEVEL", "info")); err == nil {
		log.SetLevel(level)
	}

	if dir := filepath.Dir(*dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.WithError(err).Fatal("failed to create database directory")
		}
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer store.Close()

	registry := scheme.NewRegistry(store)
	eng := engine.New(store, ledger.NewLedger(store), registry, store, store, log)
	payments := payment.NewFake(envOr("PAYMENT_SECRET", "dev-secret"))

	if *seed {
		if err := seedDemoData(context.Background(), eng, registry, store); err != nil {
			log.WithError(err).Fatal("failed to seed demo data")
		}
		log.Info("demo data seeded")
	}

	handler := api.NewHandler(eng, payments, log)
	server := &http.Server{
		Addr:              ":" + *port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": *port, "db": *dbPath}).Info("coin engine listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// seedDemoData provisions a demo partner and member, funds the partner
// wallet through the normal purchase path so the ledger stays consistent,
// and adds a scheme and a few catalog items. Idempotent: re-running against
// an existing database is a no-op.
func seedDemoData(ctx context.Context, eng *engine.Engine, registry *scheme.Registry, store *sqlite.Store) error {
	now := time.Now().UTC()

	accounts := []ledger.Account{
		{ID: "acct-demo-admin", UserID: "user-admin", Role: ledger.RoleAdmin, Active: true, CreatedAt: now},
		{ID: "acct-demo-partner", UserID: "user-partner", Role: ledger.RolePartner, Active: true, CreatedAt: now},
		{ID: "acct-demo-member", UserID: "user-member", Role: ledger.RoleMember, Active: true, CreatedAt: now},
	}
	for _, a := range accounts {
		if err := store.CreateAccount(ctx, a); err != nil {
			if ledger.IsClientError(err) {
				return nil // already seeded
			}
			return fmt.Errorf("seed account %s: %w", a.ID, err)
		}
	}

	if _, err := eng.PurchaseCoins(ctx, "acct-demo-partner",
		ledger.NewAmount(10000), "seed", "seed-purchase"); err != nil {
		return fmt.Errorf("seed partner wallet: %w", err)
	}

	if _, err := registry.Create(ctx, scheme.Spec{
		PartnerID:       "acct-demo-partner",
		Name:            "Welcome bonus",
		Description:     "Coins for first purchase over 500",
		Category:        scheme.CategoryPurchase,
		CoinReward:      ledger.NewAmount(50),
		MinimumPurchase: ledger.NewAmount(500),
		StartDate:       now.AddDate(0, 0, -1),
		EndDate:         now.AddDate(1, 0, 0),
		MaxUsage:        1000,
	}); err != nil {
		return fmt.Errorf("seed scheme: %w", err)
	}

	items := []engine.RewardItem{
		{ID: "item-demo-cashback", Title: "₹100 cashback", CoinsCost: ledger.NewAmount(100), Category: engine.ItemCashback, Active: true, CreatedAt: now},
		{ID: "item-demo-voucher", Title: "Coffee voucher", CoinsCost: ledger.NewAmount(250), Category: engine.ItemVoucher, Active: true, CreatedAt: now},
		{ID: "item-demo-trip", Title: "Weekend getaway", CoinsCost: ledger.NewAmount(5000), Category: engine.ItemTrip, Active: true, CreatedAt: now},
	}
	for _, item := range items {
		if err := store.SaveRewardItem(ctx, item); err != nil {
			return fmt.Errorf("seed item %s: %w", item.ID, err)
		}
	}
	return nil
}
