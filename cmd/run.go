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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/internal/apiclient"
	"github.com/cardinalhq/dataimport/internal/cloudstorage"
	"github.com/cardinalhq/dataimport/internal/filestore"
	"github.com/cardinalhq/dataimport/internal/helpers"
	"github.com/cardinalhq/dataimport/internal/jobrunner"
	"github.com/cardinalhq/dataimport/internal/processor"
	"github.com/cardinalhq/dataimport/internal/remotesource"
	"github.com/cardinalhq/dataimport/internal/secrets"
	"github.com/cardinalhq/dataimport/internal/transport"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one transport and load pass over every API connection",
	RunE: func(_ *cobra.Command, _ []string) error {
		servicename := "dataimport-run"
		addlAttrs := attribute.NewSet(
			attribute.String("signal", "job"),
			attribute.String("action", "run"),
		)
		doneCtx, doneFx, err := setupTelemetry(servicename, &addlAttrs)
		if err != nil {
			return fmt.Errorf("failed to setup telemetry: %w", err)
		}
		defer func() {
			if err := doneFx(); err != nil {
				slog.Error("Error shutting down telemetry", slog.Any("error", err))
			}
		}()

		defer helpers.CleanTempDir()

		return runJob(doneCtx)
	},
}

func runJob(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}

	store, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	decrypter, err := secrets.FromConfig(cfg.Secrets)
	if err != nil {
		return fmt.Errorf("failed to load secrets identity: %w", err)
	}

	files, err := filestore.New(ctx, cfg.Storage, cloudstorage.NewCloudManagers())
	if err != nil {
		return fmt.Errorf("failed to open file store: %w", err)
	}
	slog.Info("File store ready",
		slog.String("fileMode", cfg.Storage.FileMode),
		slog.Bool("production", cfg.Storage.Production))

	transporter := transport.New(store, remotesource.NewResolver(cfg.Remote), files, decrypter, loc)
	proc := processor.New(store, files,
		processor.WithConcurrency(cfg.Concurrency),
		processor.WithIngestionLogLevel(cfg.IngestionLog.MinimumLevel))

	runner := jobrunner.New(store, transporter, proc, decrypter,
		jobrunner.WithClientFactory(func(c apiclient.Config) processor.Poster {
			return apiclient.New(c,
				apiclient.WithTimeout(cfg.API.Timeout),
				apiclient.WithMaxAuthAttempts(cfg.API.MaxAuthAttempts))
		}))

	ctx, span := tracer.Start(ctx, "dataimport.job")
	defer span.End()

	start := time.Now()
	err = runner.Run(ctx)
	jobDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributeSet(commonAttributes))

	result := "success"
	switch {
	case errors.Is(err, jobrunner.ErrNoTargets):
		result = "no_targets"
	case err != nil:
		result = "error"
	}
	jobCounter.Add(ctx, 1,
		metric.WithAttributeSet(commonAttributes),
		metric.WithAttributes(attribute.String("result", result)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job failed")
		return err
	}
	return nil
}
