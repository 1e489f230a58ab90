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

// Package jobrunner runs one transform/load pass over every configured
// target.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/dataimport/internal/apiclient"
	"github.com/cardinalhq/dataimport/internal/helpers"
	"github.com/cardinalhq/dataimport/internal/idgen"
	"github.com/cardinalhq/dataimport/internal/logctx"
	"github.com/cardinalhq/dataimport/internal/processor"
	"github.com/cardinalhq/dataimport/internal/secrets"
	"github.com/cardinalhq/dataimport/internal/transport"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

// ErrNoTargets is returned when no API connection is configured.
var ErrNoTargets = errors.New("no API connections configured; at least one is required")

type Store interface {
	ListApiServers(ctx context.Context) ([]ledgerdb.ApiServer, error)
	JobStarted(ctx context.Context, started time.Time) error
	JobCompleted(ctx context.Context, completed time.Time) error
}

type Transporter interface {
	Run(ctx context.Context, target ledgerdb.ApiServer) (transport.Result, error)
}

type Processor interface {
	Run(ctx context.Context, api processor.Poster) (processor.Result, error)
}

// ClientFactory builds the API client for one target. A fresh client per
// target keeps token caches from leaking between targets and runs.
type ClientFactory func(cfg apiclient.Config) processor.Poster

type Runner struct {
	store       Store
	transporter Transporter
	processor   Processor
	decrypter   secrets.Decrypter
	newClient   ClientFactory
	runIDs      *idgen.RunIDGenerator
	now         func() time.Time
}

type Option func(*Runner)

func WithClientFactory(f ClientFactory) Option {
	return func(r *Runner) { r.newClient = f }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func New(store Store, transporter Transporter, proc Processor, decrypter secrets.Decrypter, opts ...Option) *Runner {
	r := &Runner{
		store:       store,
		transporter: transporter,
		processor:   proc,
		decrypter:   decrypter,
		newClient: func(cfg apiclient.Config) processor.Poster {
			return apiclient.New(cfg)
		},
		runIDs: idgen.NewRunIDGenerator(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run performs a single pass: transport then load for each target in id
// order. A target's failure does not stop the others; all target failures
// are returned together. The job completion time is always recorded.
func (r *Runner) Run(ctx context.Context) (err error) {
	started := r.now()
	ctx, ll := logctx.With(ctx, slog.String("runID", r.runIDs.Make(started)))

	defer func() {
		// Recorded even when the caller's context is cancelled.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		completed := r.now()
		if cerr := r.store.JobCompleted(cctx, completed); cerr != nil {
			ll.Error("Failed to record job completion", slog.Any("error", cerr))
			err = errors.Join(err, fmt.Errorf("record job completion: %w", cerr))
		}
		ll.Info("Job finished", slog.String("duration", helpers.FormatDuration(completed.Sub(started))))
	}()

	if err := r.store.JobStarted(ctx, started); err != nil {
		return fmt.Errorf("record job start: %w", err)
	}
	ll.Info("Job started")

	targets, err := r.store.ListApiServers(ctx)
	if err != nil {
		return fmt.Errorf("list API connections: %w", err)
	}
	if len(targets) == 0 {
		ll.Error("No API connections configured")
		return ErrNoTargets
	}

	var errs *multierror.Error
	for _, target := range targets {
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}
		if terr := r.runTarget(ctx, target); terr != nil {
			ll.Error("Target failed", slog.String("target", target.Name), slog.Any("error", terr))
			errs = multierror.Append(errs, terr)
		}
	}
	return errs.ErrorOrNil()
}

func (r *Runner) runTarget(ctx context.Context, target ledgerdb.ApiServer) error {
	ctx, ll := logctx.With(ctx, slog.String("target", target.Name), slog.Int64("targetID", target.ID))

	cfg, err := apiclient.ConfigFromApiServer(target, r.decrypter)
	if err != nil {
		return fmt.Errorf("target %s: %w", target.Name, err)
	}
	client := r.newClient(cfg)

	var errs *multierror.Error
	tres, err := r.transporter.Run(ctx, target)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("target %s: transport: %w", target.Name, err))
	}
	ll.Info("Transport finished",
		slog.Int("agentsDue", tres.AgentsDue),
		slog.Int("transported", tres.Transported),
		slog.Int("skipped", tres.Skipped),
		slog.Int("failed", tres.Failed))

	pres, err := r.processor.Run(ctx, client)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("target %s: process: %w", target.Name, err))
	}
	ll.Info("Processing finished",
		slog.Int("bootstrapData", pres.BootstrapData),
		slog.Int("agents", pres.Agents),
		slog.Int("loaded", pres.Loaded),
		slog.Int("failed", pres.Failed))

	return errs.ErrorOrNil()
}
