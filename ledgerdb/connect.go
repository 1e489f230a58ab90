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

package ledgerdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"

	"github.com/cardinalhq/dataimport/internal/dbopen"
	"github.com/cardinalhq/dataimport/ledgerdb/migrations"
)

// EnvPrefix selects the DATAIMPORT_DB_* variables read by dbopen.
const EnvPrefix = "DATAIMPORT_DB"

// NewConnectionPool creates a pgx pool traced with pgxotel.
func NewConnectionPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{
		Name: "ledgerdb",
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}

// ConnectToLedger opens the ledger pool and verifies its schema version.
func ConnectToLedger(ctx context.Context, opts ...migrations.CheckOption) (*pgxpool.Pool, error) {
	connectionString, err := dbopen.GetDatabaseURLFromEnv(EnvPrefix)
	if err != nil {
		return nil, errors.Join(dbopen.ErrDatabaseNotConfigured, fmt.Errorf("failed to get %s connection string: %w", EnvPrefix, err))
	}

	pool, err := NewConnectionPool(ctx, connectionString)
	if err != nil {
		return nil, err
	}

	if err := migrations.CheckVersion(ctx, pool, opts...); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger migration version check failed: %w", err)
	}

	return pool, nil
}

// LedgerStore connects and wraps the pool in a Store.
func LedgerStore(ctx context.Context, opts ...migrations.CheckOption) (*Store, error) {
	pool, err := ConnectToLedger(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}
