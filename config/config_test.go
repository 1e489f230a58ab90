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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, FileModeLocal, cfg.Storage.FileMode)
	assert.False(t, cfg.Storage.Production)
	assert.True(t, cfg.Concurrency.LimitConcurrentAPIPosts)
	assert.Equal(t, 5, cfg.Concurrency.MaxConcurrentAPIPosts)
	assert.Equal(t, 3, cfg.API.MaxAuthAttempts)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DATAIMPORT_STORAGE_FILE_MODE", "cloud")
	t.Setenv("DATAIMPORT_STORAGE_CLOUD_BUCKET", "imports")
	t.Setenv("DATAIMPORT_STORAGE_CLOUD_REGION", "us-east-2")
	t.Setenv("DATAIMPORT_STORAGE_PRODUCTION", "true")
	t.Setenv("DATAIMPORT_CONCURRENCY_MAX_CONCURRENT_API_POSTS", "12")
	t.Setenv("DATAIMPORT_REMOTE_TIMEOUT", "5s")
	t.Setenv("DATAIMPORT_SCHEDULE_TIMEZONE", "America/Chicago")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, FileModeCloud, cfg.Storage.FileMode)
	assert.Equal(t, "imports", cfg.Storage.Cloud.Bucket)
	assert.Equal(t, "us-east-2", cfg.Storage.Cloud.Region)
	assert.True(t, cfg.Storage.Production)
	assert.Equal(t, 12, cfg.Concurrency.MaxConcurrentAPIPosts)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)

	loc, err := cfg.Schedule.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", loc.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown file mode",
			mutate:  func(c *Config) { c.Storage.FileMode = "Tape" },
			wantErr: "storage.file_mode",
		},
		{
			name:    "cloud without bucket",
			mutate:  func(c *Config) { c.Storage.FileMode = "Cloud" },
			wantErr: "storage.cloud.bucket",
		},
		{
			name: "azure without account",
			mutate: func(c *Config) {
				c.Storage.FileMode = "Cloud"
				c.Storage.Cloud.Bucket = "container"
				c.Storage.Cloud.Provider = "Azure"
			},
			wantErr: "storage_account",
		},
		{
			name: "cap enabled with zero limit",
			mutate: func(c *Config) {
				c.Concurrency.MaxConcurrentAPIPosts = 0
			},
			wantErr: "max_concurrent_api_posts",
		},
		{
			name: "cap disabled ignores limit",
			mutate: func(c *Config) {
				c.Concurrency.LimitConcurrentAPIPosts = false
				c.Concurrency.MaxConcurrentAPIPosts = 0
			},
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" },
			wantErr: "schedule.timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
