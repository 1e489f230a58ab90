// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/dataimport/internal/dbopen"
	"github.com/cardinalhq/dataimport/ledgerdb"
	"github.com/cardinalhq/dataimport/ledgerdb/migrations"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run ledger database migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		return migrateLedger()
	},
}

func migrateLedger() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	url, err := dbopen.GetDatabaseURLFromEnv(ledgerdb.EnvPrefix)
	if err != nil {
		return fmt.Errorf("%w: %w", dbopen.ErrDatabaseNotConfigured, err)
	}
	pool, err := ledgerdb.NewConnectionPool(ctx, url)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("Running ledger migrations")
	if err := migrations.RunMigrationsUp(ctx, pool); err != nil {
		return fmt.Errorf("failed to migrate ledger: %w", err)
	}
	slog.Info("Ledger migrations completed successfully")
	return nil
}

// openLedger connects to the ledger and checks its schema version.
func openLedger(ctx context.Context, opts ...migrations.CheckOption) (*ledgerdb.Store, error) {
	store, err := ledgerdb.LedgerStore(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}
	return store, nil
}
