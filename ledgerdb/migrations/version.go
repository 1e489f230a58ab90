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

package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/dataimport/internal/helpers"
)

// CheckMode defines how the schema version check behaves on a mismatch.
type CheckMode int

const (
	// CheckModeWait polls until the expected version appears or the timeout expires.
	CheckModeWait CheckMode = iota
	// CheckModeWarn logs the mismatch and continues.
	CheckModeWarn
	// CheckModeSkip does not check at all.
	CheckModeSkip
)

// CheckOptions configures CheckVersion.
type CheckOptions struct {
	Mode          CheckMode
	Timeout       time.Duration
	RetryInterval time.Duration
	AllowDirty    bool
}

// CheckOption modifies CheckOptions.
type CheckOption func(*CheckOptions)

func WithCheckMode(mode CheckMode) CheckOption {
	return func(o *CheckOptions) { o.Mode = mode }
}

func WithTimeout(timeout time.Duration) CheckOption {
	return func(o *CheckOptions) { o.Timeout = timeout }
}

func WithRetryInterval(interval time.Duration) CheckOption {
	return func(o *CheckOptions) { o.RetryInterval = interval }
}

// DefaultCheckOptions waits up to two minutes for pending migrations.
func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		Mode:          CheckModeWait,
		Timeout:       120 * time.Second,
		RetryInterval: 5 * time.Second,
	}
}

// CheckVersion verifies the ledger schema is at the version embedded in this binary.
// DATAIMPORT_MIGRATION_CHECK_ENABLED=false disables the check entirely.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, options ...CheckOption) error {
	if !helpers.EnvBool("DATAIMPORT_MIGRATION_CHECK_ENABLED", true) {
		slog.Debug("Migration version checking disabled")
		return nil
	}

	opts := DefaultCheckOptions()
	for _, o := range options {
		o(&opts)
	}
	if opts.Mode == CheckModeSkip {
		return nil
	}
	if v := os.Getenv("MIGRATION_CHECK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts.Timeout = d
		}
	}

	expected, err := latestVersion(migrationFiles)
	if err != nil {
		return fmt.Errorf("failed to extract expected migration version: %w", err)
	}

	deadline := time.Now().Add(opts.Timeout)
	for {
		current, dirty, err := currentVersion(pool)
		if err != nil {
			return err
		}
		if dirty && !opts.AllowDirty {
			if opts.Mode != CheckModeWarn {
				return fmt.Errorf("ledger migration is in dirty state at version %d", current)
			}
			slog.Warn("Ledger migration is dirty, continuing anyway", slog.Uint64("version", uint64(current)))
		}
		if current == expected {
			return nil
		}
		if current > expected {
			if opts.Mode == CheckModeWarn {
				slog.Warn("Ledger schema is newer than expected",
					slog.Uint64("currentVersion", uint64(current)),
					slog.Uint64("expectedVersion", uint64(expected)))
				return nil
			}
			return fmt.Errorf("ledger schema version %d is newer than expected version %d", current, expected)
		}
		if opts.Mode == CheckModeWarn {
			slog.Warn("Ledger schema is older than expected",
				slog.Uint64("currentVersion", uint64(current)),
				slog.Uint64("expectedVersion", uint64(expected)))
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for ledger migrations: at %d, want %d", current, expected)
		}

		slog.Info("Waiting for ledger migrations to complete",
			slog.Uint64("currentVersion", uint64(current)),
			slog.Uint64("expectedVersion", uint64(expected)),
			slog.Duration("remainingTimeout", time.Until(deadline)))

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for ledger migrations: %w", ctx.Err())
		case <-time.After(opts.RetryInterval):
		}
	}
}

// latestVersion extracts the highest "<version>_name.up.sql" number from fsys.
func latestVersion(fsys fs.ReadDirFS) (uint, error) {
	entries, err := fsys.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var maxVersion uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		maxVersion = max(maxVersion, uint(version))
	}
	if maxVersion == 0 {
		return 0, fmt.Errorf("no valid migration files found")
	}
	return maxVersion, nil
}
