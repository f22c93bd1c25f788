// verify-db applies pending migrations and then checks every organization's
// stored state: cached partner balances against their source documents, and
// the trial balance against the double-entry rule. It exits non-zero on any
// inconsistency.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"accounting-engine/internal/app"
	"accounting-engine/internal/config"
	"accounting-engine/internal/db"
	"accounting-engine/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[CONFIG] %v", err)
	}
	if err := logger.Setup(cfg.LoggerConfig()); err != nil {
		log.Fatalf("[LOGGER] %v", err)
	}
	logr := logger.WithComponent("verify-db")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()
	logr.Info().Msg("connected")

	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		log.Fatalf("[MIGRATE] %v", err)
	}
	for _, name := range applied {
		logr.Info().Str("migration", name).Msg("applied")
	}

	svc := app.NewFromPool(pool, nil)
	orgs, err := svc.ListOrganizations(ctx)
	if err != nil {
		log.Fatalf("[ORGS] %v", err)
	}

	failures := 0
	for _, org := range orgs {
		balances, err := svc.VerifyPartnerBalances(ctx, org.ID)
		if err != nil {
			log.Fatalf("[BALANCES] organization %d: %v", org.ID, err)
		}
		for _, d := range balances.Discrepancies {
			failures++
			logr.Error().
				Int("organization_id", org.ID).
				Int("contact_id", d.ContactID).
				Str("cached", d.Cached.StringFixed(2)).
				Str("actual", d.Actual.StringFixed(2)).
				Msg("partner balance out of date")
		}

		tb, err := svc.GetTrialBalance(ctx, org.ID)
		if err != nil {
			log.Fatalf("[LEDGER] organization %d: %v", org.ID, err)
		}
		if !tb.Balanced {
			failures++
			logr.Error().
				Int("organization_id", org.ID).
				Str("debit", tb.TotalDebit.StringFixed(2)).
				Str("credit", tb.TotalCredit.StringFixed(2)).
				Msg("trial balance does not balance")
		}
	}

	if failures > 0 {
		logr.Error().Int("failures", failures).Int("organizations", len(orgs)).Msg("verification failed")
		os.Exit(1)
	}
	logr.Info().Int("organizations", len(orgs)).Msg("[DONE] all organizations consistent")
}
