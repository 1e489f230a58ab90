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
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// File modes select the FileStore backend.
const (
	FileModeLocal = "Local"
	FileModeCloud = "Cloud"
)

// Config aggregates configuration for the application.
type Config struct {
	Storage      StorageConfig      `mapstructure:"storage"`
	Concurrency  ConcurrencyConfig  `mapstructure:"concurrency"`
	Secrets      SecretsConfig      `mapstructure:"secrets"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	API          APIConfig          `mapstructure:"api"`
	Schedule     ScheduleConfig     `mapstructure:"schedule"`
	IngestionLog IngestionLogConfig `mapstructure:"ingestion_log"`
}

type StorageConfig struct {
	// FileMode is Local or Cloud.
	FileMode string `mapstructure:"file_mode"`
	// Root is the base directory (Local) or key prefix (Cloud).
	Root string `mapstructure:"root"`
	// Production drops the file-mode path segment that keeps
	// non-production environments apart.
	Production bool               `mapstructure:"production"`
	Cloud      CloudStorageConfig `mapstructure:"cloud"`
}

type CloudStorageConfig struct {
	Provider       string `mapstructure:"provider"`
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Role           string `mapstructure:"role"`
	UsePathStyle   bool   `mapstructure:"use_path_style"`
	InsecureTLS    bool   `mapstructure:"insecure_tls"`
	StorageAccount string `mapstructure:"storage_account"`
}

type ConcurrencyConfig struct {
	LimitConcurrentAPIPosts bool `mapstructure:"limit_concurrent_api_posts"`
	MaxConcurrentAPIPosts   int  `mapstructure:"max_concurrent_api_posts"`
}

type SecretsConfig struct {
	// Identity is an age X25519 identity (AGE-SECRET-KEY-1...).
	Identity     string `mapstructure:"identity"`
	IdentityFile string `mapstructure:"identity_file"`
}

type RemoteConfig struct {
	AllowTestCertificates bool          `mapstructure:"allow_test_certificates"`
	Timeout               time.Duration `mapstructure:"timeout"`
	KnownHostsFile        string        `mapstructure:"known_hosts_file"`
}

type APIConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxAuthAttempts int           `mapstructure:"max_auth_attempts"`
}

type ScheduleConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type IngestionLogConfig struct {
	// MinimumLevel is Information, Warning, Error or None.
	MinimumLevel string `mapstructure:"minimum_level"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			FileMode: FileModeLocal,
			Root:     "data",
			Cloud: CloudStorageConfig{
				Provider: "aws",
			},
		},
		Concurrency: ConcurrencyConfig{
			LimitConcurrentAPIPosts: true,
			MaxConcurrentAPIPosts:   5,
		},
		Remote: RemoteConfig{
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			Timeout:         60 * time.Second,
			MaxAuthAttempts: 3,
		},
		Schedule: ScheduleConfig{
			Timezone: "UTC",
		},
		IngestionLog: IngestionLogConfig{
			MinimumLevel: "Error",
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "DATAIMPORT" and the dot character
// in keys is replaced by an underscore. For example, "storage.file_mode"
// becomes "DATAIMPORT_STORAGE_FILE_MODE".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("DATAIMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the file mode and checks cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	switch {
	case strings.EqualFold(c.Storage.FileMode, FileModeLocal):
		c.Storage.FileMode = FileModeLocal
	case strings.EqualFold(c.Storage.FileMode, FileModeCloud):
		c.Storage.FileMode = FileModeCloud
		c.Storage.Cloud.Provider = strings.ToLower(c.Storage.Cloud.Provider)
		if c.Storage.Cloud.Bucket == "" {
			errs = append(errs, errors.New("storage.cloud.bucket is required in Cloud file mode"))
		}
		switch c.Storage.Cloud.Provider {
		case "aws":
		case "azure":
			if c.Storage.Cloud.StorageAccount == "" && c.Storage.Cloud.Endpoint == "" {
				errs = append(errs, errors.New("storage.cloud.storage_account or storage.cloud.endpoint is required for azure"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported storage.cloud.provider %q", c.Storage.Cloud.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.file_mode %q (want Local or Cloud)", c.Storage.FileMode))
	}

	if c.Concurrency.LimitConcurrentAPIPosts && c.Concurrency.MaxConcurrentAPIPosts < 1 {
		errs = append(errs, fmt.Errorf("concurrency.max_concurrent_api_posts must be at least 1, got %d", c.Concurrency.MaxConcurrentAPIPosts))
	}
	if c.API.MaxAuthAttempts < 1 {
		errs = append(errs, fmt.Errorf("api.max_auth_attempts must be at least 1, got %d", c.API.MaxAuthAttempts))
	}
	if _, err := c.Schedule.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Location resolves the schedule time zone; empty means UTC.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule.timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
