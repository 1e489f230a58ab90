//go:build integration

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

package testhelpers

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orlangure/gnomock"
	"github.com/orlangure/gnomock/preset/postgres"

	"github.com/cardinalhq/dataimport/ledgerdb"
	"github.com/cardinalhq/dataimport/ledgerdb/migrations"
)

// SetupTestLedger returns a pool on a freshly migrated ledger database.
// DATAIMPORT_TEST_DB_URL points at an existing empty database; otherwise a
// throwaway PostgreSQL container is started with gnomock.
func SetupTestLedger(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	connStr := os.Getenv("DATAIMPORT_TEST_DB_URL")
	if connStr == "" {
		p := postgres.Preset(
			postgres.WithUser("dataimport", "dataimport"),
			postgres.WithDatabase("ledger"),
			postgres.WithVersion("16"),
		)
		container, err := gnomock.Start(p)
		if err != nil {
			t.Fatalf("Failed to start postgres container: %v", err)
		}
		t.Cleanup(func() { _ = gnomock.Stop(container) })
		connStr = fmt.Sprintf("postgresql://dataimport:dataimport@%s/ledger?sslmode=disable", container.DefaultAddress())
	}

	pool, err := ledgerdb.NewConnectionPool(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to test ledger: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrations.RunMigrationsUp(ctx, pool); err != nil {
		t.Fatalf("Failed to run ledger migrations: %v", err)
	}
	return pool
}

// NewTestLedgerStore wraps SetupTestLedger in a Store.
func NewTestLedgerStore(t *testing.T) *ledgerdb.Store {
	return ledgerdb.NewStore(SetupTestLedger(t))
}
