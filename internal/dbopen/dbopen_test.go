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

package dbopen

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDatabaseURLFromEnvURLWins(t *testing.T) {
	t.Setenv("TESTDB_URL", "postgresql://example/db")
	t.Setenv("TESTDB_HOST", "ignored")

	got, err := GetDatabaseURLFromEnv("TESTDB")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://example/db", got)
}

func TestGetDatabaseURLFromEnvParts(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "data import/worker")
	t.Setenv("TESTDB_HOST", "db.internal")
	t.Setenv("TESTDB_DBNAME", "ledger")
	t.Setenv("TESTDB_USER", "loader")
	t.Setenv("TESTDB_PASSWORD", "s3cret")
	t.Setenv("TESTDB_SSLMODE", "require")

	got, err := GetDatabaseURLFromEnv("TESTDB_")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "/ledger", u.Path)
	assert.Equal(t, "loader", u.User.Username())
	pass, _ := u.User.Password()
	assert.Equal(t, "s3cret", pass)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "data_import_worker", u.Query().Get("application_name"))
}

func TestGetDatabaseURLFromEnvMissing(t *testing.T) {
	_, err := GetDatabaseURLFromEnv("NOSUCHDB")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "NOSUCHDB_HOST"))
	assert.True(t, strings.Contains(err.Error(), "NOSUCHDB_DBNAME"))
}
