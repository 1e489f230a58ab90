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

package remotesource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.csv", "orders.csv", true},
		{"*.csv", "ORDERS.CSV", true},
		{"*.CSV", "orders.csv", true},
		{"*.csv", "orders.csv.bak", false},
		{"*.csv", "old_orders.txt", false},
		{"orders_??.csv", "orders_01.csv", true},
		{"orders_??.csv", "orders_1.csv", false},
		{"orders*", "orders", true},
		{"orders", "my-orders", false},
		{"", "anything.at.all", true},
		{"*", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.name, func(t *testing.T) {
			got, err := MatchPattern(tt.pattern, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectFiles(t *testing.T) {
	files, err := selectFiles("/outbound", "*.csv", []string{"b.csv", "readme.txt", "A.CSV"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/outbound/A.CSV", "/outbound/b.csv"}, files)

	files, err = selectFiles("/outbound", "*.csv", nil)
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)

	_, err = selectFiles("/outbound", "[", []string{"a"})
	assert.Error(t, err)
}

func TestHostPort(t *testing.T) {
	port := int32(2121)
	assert.Equal(t, "ftp.example.com:990", hostPort(ledgerdb.Agent{Url: "ftp.example.com"}, DefaultFTPSPort))
	assert.Equal(t, "ftp.example.com:2121", hostPort(ledgerdb.Agent{Url: "ftps://ftp.example.com/", Port: &port}, DefaultFTPSPort))
	assert.Equal(t, "sftp.example.com:22", hostPort(ledgerdb.Agent{Url: "sftp.example.com"}, DefaultSFTPPort))
	assert.Equal(t, "sftp.example.com", hostOnly("sftp.example.com:22"))
}

func TestResolver(t *testing.T) {
	r := NewResolver(config.RemoteConfig{})

	for _, typ := range []string{ledgerdb.AgentTypeFTPS, ledgerdb.AgentTypeSFTP, ledgerdb.AgentTypeManual, ledgerdb.AgentTypePowerShell} {
		src, err := r.For(typ)
		require.NoError(t, err, typ)
		assert.NotNil(t, src)
	}

	_, err := r.For("Carrier Pigeon")
	assert.Error(t, err)
}

func TestEmptySource(t *testing.T) {
	var src EmptySource
	files, err := src.ListFiles(context.Background(), ledgerdb.Agent{Name: "manual"})
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = src.Fetch(context.Background(), ledgerdb.Agent{Name: "manual"}, "x.csv")
	assert.Error(t, err)
}
