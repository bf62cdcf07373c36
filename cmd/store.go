package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-pipeline/internal/ledger"
	sfpkg "github.com/sells-group/prospect-pipeline/pkg/salesforce"
)

func initLedger(ctx context.Context) (ledger.Ledger, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "prospects.db"
		}
		return ledger.NewSQLite(path)
	case "postgres":
		return ledger.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// reapStaleClaims deletes in-flight claims older than maxAge so a
// prospect orphaned by a crashed process can be researched again.
func reapStaleClaims(ctx context.Context, led ledger.Ledger, maxAge time.Duration) error {
	n, err := led.DeleteStaleClaims(ctx, maxAge)
	if err != nil {
		return eris.Wrap(err, "reap stale attempt claims")
	}
	if n > 0 {
		zap.L().Warn("reaped stale attempt claims",
			zap.Int("count", n),
			zap.Duration("max_age", maxAge),
		)
	}
	return nil
}

// initSalesforce returns nil when CRM sync is disabled.
func initSalesforce() (sfpkg.Client, error) {
	if !cfg.Salesforce.Enabled {
		return nil, nil
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}
