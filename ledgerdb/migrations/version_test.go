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
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestVersionEmbedded(t *testing.T) {
	v, err := latestVersion(migrationFiles)
	require.NoError(t, err)
	assert.Equal(t, uint(1760500000), v)
}

func TestLatestVersion(t *testing.T) {
	tests := []struct {
		name    string
		files   fstest.MapFS
		want    uint
		wantErr bool
	}{
		{
			name: "picks highest up migration",
			files: fstest.MapFS{
				"1_initial.up.sql":   {},
				"1_initial.down.sql": {},
				"20_files.up.sql":    {},
				"3_agents.up.sql":    {},
			},
			want: 20,
		},
		{
			name: "ignores non numeric prefixes",
			files: fstest.MapFS{
				"README.up.sql":   {},
				"5_jobs.up.sql":   {},
				"notes.txt":       {},
				"7_only.down.sql": {},
			},
			want: 5,
		},
		{
			name:    "no migrations",
			files:   fstest.MapFS{"notes.txt": {}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := latestVersion(tt.files)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckOptions(t *testing.T) {
	opts := DefaultCheckOptions()
	for _, o := range []CheckOption{WithCheckMode(CheckModeWarn), WithTimeout(0), WithRetryInterval(1)} {
		o(&opts)
	}
	assert.Equal(t, CheckModeWarn, opts.Mode)
	assert.Zero(t, opts.Timeout)
	assert.EqualValues(t, 1, opts.RetryInterval)
}
