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

// Package processor transforms a target's pending files with their agents'
// data maps and posts the mapped rows to the target API.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/internal/apiclient"
	"github.com/cardinalhq/dataimport/internal/filestore"
	"github.com/cardinalhq/dataimport/internal/logctx"
	"github.com/cardinalhq/dataimport/internal/scheduler"
	"github.com/cardinalhq/dataimport/internal/transform"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

// Store is the subset of the ledger the processor uses.
type Store interface {
	ListLookups(ctx context.Context) ([]ledgerdb.Lookup, error)
	ListAgentsWithPendingFiles(ctx context.Context, apiServerID int64) ([]ledgerdb.Agent, error)
	ListDataMapsForAgent(ctx context.Context, agentID int64) ([]ledgerdb.DataMap, error)
	ListPendingFiles(ctx context.Context, agentID int64) ([]ledgerdb.File, error)
	UpdateFileStatus(ctx context.Context, arg ledgerdb.UpdateFileStatusParams) error
	InsertIngestionLog(ctx context.Context, arg ledgerdb.InsertIngestionLogParams) error
	SetAgentLastExecuted(ctx context.Context, arg ledgerdb.SetAgentLastExecutedParams) error
	ListPendingBootstrapData(ctx context.Context, apiServerID int64) ([]ledgerdb.PendingBootstrapData, error)
	MarkBootstrapDataProcessed(ctx context.Context, arg ledgerdb.BootstrapDataApiServer) error
}

// Poster sends resource requests to a target. *apiclient.Client implements it.
type Poster interface {
	Post(ctx context.Context, endpoint string, body []byte) (apiclient.Response, error)
	Delete(ctx context.Context, endpoint string) (apiclient.Response, error)
	PostAndDelete(ctx context.Context, endpoint string, body []byte) (apiclient.Response, error)
	Config() apiclient.Config
}

var _ Poster = (*apiclient.Client)(nil)

// statusWriteTimeout bounds the final ledger writes for a file, which run
// even after the pass is cancelled.
const statusWriteTimeout = 10 * time.Second

// Result summarizes one processor pass for a target.
type Result struct {
	BootstrapData int
	Agents        int
	AgentsSkipped int
	Loaded        int
	Failed        int
}

type Processor struct {
	store    Store
	files    filestore.FileStore
	maxPosts int64
	minLevel IngestionLevel
	now      func() time.Time
}

type Option func(*Processor)

// WithConcurrency caps in-flight posts for a pass when the limit is enabled.
func WithConcurrency(cfg config.ConcurrencyConfig) Option {
	return func(p *Processor) {
		p.maxPosts = 0
		if cfg.LimitConcurrentAPIPosts && cfg.MaxConcurrentAPIPosts > 0 {
			p.maxPosts = int64(cfg.MaxConcurrentAPIPosts)
		}
	}
}

// WithIngestionLogLevel sets the minimum level written to the ingestion log.
func WithIngestionLogLevel(level string) Option {
	return func(p *Processor) {
		p.minLevel = ParseIngestionLevel(level)
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

func New(store Store, files filestore.FileStore, opts ...Option) *Processor {
	p := &Processor{
		store:    store,
		files:    files,
		minLevel: LevelError,
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// pass holds the state shared by everything posted in one Run.
type pass struct {
	api     Poster
	cfg     apiclient.Config
	lookups *transform.Lookups
	sem     *semaphore.Weighted
}

// Run posts the target's pending bootstrap data and then processes every
// pending file of its agents. Failures to load lookups, agents or bootstrap
// data are returned, and a bootstrap failure leaves every file pending.
// Agent and file failures are recorded on the files and logged.
func (p *Processor) Run(ctx context.Context, api Poster) (Result, error) {
	var res Result
	cfg := api.Config()
	ctx, ll := logctx.With(ctx, slog.String("target", cfg.Name))

	rows, err := p.store.ListLookups(ctx)
	if err != nil {
		return res, fmt.Errorf("load lookups: %w", err)
	}

	ps := &pass{
		api:     api,
		cfg:     cfg,
		lookups: transform.NewLookups(rows),
	}
	if p.maxPosts > 0 {
		ps.sem = semaphore.NewWeighted(p.maxPosts)
	}

	res.BootstrapData, err = p.postBootstrapData(ctx, ps)
	if err != nil {
		ll.Error("Bootstrap data failed; files for this target are not processed", slog.Any("error", err))
		return res, err
	}

	agents, err := p.store.ListAgentsWithPendingFiles(ctx, cfg.TargetID)
	if err != nil {
		return res, fmt.Errorf("list agents with pending files for target %s: %w", cfg.Name, err)
	}
	if len(agents) == 0 {
		ll.Info("No files found for processing; check file status and agent data maps if a file was expected")
		return res, nil
	}

	for _, agent := range scheduler.Order(agents) {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		p.runAgent(ctx, ps, agent, &res)
	}
	ll.Info("Processor pass finished",
		slog.Int("agents", res.Agents),
		slog.Int("agentsSkipped", res.AgentsSkipped),
		slog.Int("loaded", res.Loaded),
		slog.Int("failed", res.Failed))
	return res, nil
}

func (p *Processor) runAgent(ctx context.Context, ps *pass, agent ledgerdb.Agent, res *Result) {
	ctx, ll := logctx.With(ctx, slog.String("agent", agent.Name), slog.Int64("agentID", agent.ID))

	maps, err := p.store.ListDataMapsForAgent(ctx, agent.ID)
	if err != nil {
		res.AgentsSkipped++
		ll.Error("Failed to load data maps", slog.Any("error", err))
		return
	}
	if len(maps) == 0 {
		res.AgentsSkipped++
		ll.Error("Agent has files to process but no data maps; associate a data map with the agent")
		return
	}

	mappers := make([]transform.Mapper, 0, len(maps))
	var mapErr error
	for _, dm := range maps {
		m, err := transform.NewMapper(dm, ps.lookups)
		if err != nil {
			mapErr = err
			break
		}
		mappers = append(mappers, m)
	}

	files, err := p.store.ListPendingFiles(ctx, agent.ID)
	if err != nil {
		res.AgentsSkipped++
		ll.Error("Failed to list pending files", slog.Any("error", err))
		return
	}
	res.Agents++

	for _, file := range files {
		if ctx.Err() != nil {
			ll.Warn("Processing interrupted; remaining files stay pending", slog.Any("error", ctx.Err()))
			return
		}
		var status ledgerdb.FileStatus
		if mapErr != nil {
			status = p.finish(ctx, file, ledgerdb.FileStatusErrorTransform, mapErr.Error())
		} else {
			status = p.processFile(ctx, ps, agent, file, mappers)
		}
		filesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status.String())))
		if status == ledgerdb.FileStatusLoaded {
			res.Loaded++
		} else {
			res.Failed++
		}
	}

	if err := p.store.SetAgentLastExecuted(ctx, ledgerdb.SetAgentLastExecutedParams{
		ID:           agent.ID,
		LastExecuted: p.now(),
	}); err != nil {
		ll.Error("Failed to record agent execution", slog.Any("error", err))
	}
}

type mappedRow struct {
	number int
	body   []byte
}

type batch struct {
	mapper transform.Mapper
	rows   []mappedRow
}

// processFile moves one file through Transforming and Loading and returns
// its final status.
func (p *Processor) processFile(ctx context.Context, ps *pass, agent ledgerdb.Agent, file ledgerdb.File, mappers []transform.Mapper) ledgerdb.FileStatus {
	ctx, ll := logctx.With(ctx, slog.String("file", file.FileName), slog.Int64("fileID", file.ID))

	if err := p.setStatus(ctx, file, ledgerdb.FileStatusTransforming, nil); err != nil {
		ll.Error("Failed to mark file transforming", slog.Any("error", err))
		return file.Status
	}

	batches, err := p.transformFile(ctx, file, mappers)
	if err != nil {
		ll.Error("Failed to transform file", slog.Any("error", err))
		return p.finish(ctx, file, ledgerdb.FileStatusErrorTransform, err.Error())
	}

	if err := p.setStatus(ctx, file, ledgerdb.FileStatusLoading, nil); err != nil {
		ll.Error("Failed to mark file loading", slog.Any("error", err))
		return p.finish(ctx, file, ledgerdb.FileStatusErrorLoading, fmt.Sprintf("failed to start loading: %v", err))
	}

	var (
		paragraphs []string
		errored    bool
	)
	for _, b := range batches {
		c := p.postBatch(ctx, ps, agent, file, b)
		if c.errors > 0 {
			errored = true
		}
		paragraphs = append(paragraphs, fmt.Sprintf(
			"Using DataMap: %s, File has %d rows, API calls processed: Success: %d, Exists: %d, Error: %d",
			b.mapper.Name(), file.Rows, c.success, c.exists, c.errors))
		ll.Info("Finished posting rows",
			slog.String("dataMap", b.mapper.Name()),
			slog.Int64("success", c.success),
			slog.Int64("exists", c.exists),
			slog.Int64("errors", c.errors),
			slog.Int64("duplicates", c.duplicates))
	}
	message := strings.Join(paragraphs, "\n\n")

	if errored {
		return p.finish(ctx, file, ledgerdb.FileStatusErrorLoading, message)
	}
	status := p.finish(ctx, file, ledgerdb.FileStatusLoaded, message)
	if status == ledgerdb.FileStatusLoaded {
		dctx, cancel := detached(ctx)
		defer cancel()
		if err := p.files.Delete(dctx, file); err != nil {
			ll.Warn("Failed to remove stored file after load", slog.String("url", file.Url), slog.Any("error", err))
		}
	}
	return status
}

// transformFile downloads the stored copy and maps every row with every data
// map. Any failure means nothing from the file is posted.
func (p *Processor) transformFile(ctx context.Context, file ledgerdb.File, mappers []transform.Mapper) ([]batch, error) {
	ll := logctx.FromContext(ctx)

	local, err := p.files.Download(ctx, file)
	if err != nil {
		if errors.Is(err, filestore.ErrObjectNotFound) {
			return nil, fmt.Errorf("stored file %s is missing", file.Url)
		}
		return nil, fmt.Errorf("download stored file: %w", err)
	}
	defer func() {
		if err := os.Remove(local); err != nil && !errors.Is(err, os.ErrNotExist) {
			ll.Warn("Failed to remove downloaded file", slog.String("path", local), slog.Any("error", err))
		}
	}()

	table, err := transform.ReadCSVFile(local)
	if err != nil {
		return nil, err
	}

	batches := make([]batch, 0, len(mappers))
	for _, m := range mappers {
		if err := m.Validate(table.Header); err != nil {
			return nil, fmt.Errorf("file '%s' can not be processed: %w", file.FileName, err)
		}
		b := batch{mapper: m, rows: make([]mappedRow, 0, len(table.Rows))}
		for _, row := range table.Rows {
			ll.Debug("Transforming row", slog.String("resource", m.ResourcePath()), slog.Int("row", row.Number))
			body, err := m.Map(row)
			if err != nil {
				return nil, fmt.Errorf("data map '%s': %w", m.Name(), err)
			}
			b.rows = append(b.rows, mappedRow{number: row.Number, body: body})
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// detached keeps ctx's values but not its cancellation, so a file that
// started loading is settled even when the run is interrupted.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
}

// finish records a terminal (or error) status and returns the status the
// file actually holds.
func (p *Processor) finish(ctx context.Context, file ledgerdb.File, status ledgerdb.FileStatus, message string) ledgerdb.FileStatus {
	wctx, cancel := detached(ctx)
	defer cancel()
	if err := p.setStatus(wctx, file, status, &message); err != nil {
		logctx.FromContext(ctx).Error("Failed to record file status",
			slog.String("status", status.String()),
			slog.Any("error", err))
		return file.Status
	}
	return status
}

func (p *Processor) setStatus(ctx context.Context, file ledgerdb.File, status ledgerdb.FileStatus, message *string) error {
	return p.store.UpdateFileStatus(ctx, ledgerdb.UpdateFileStatusParams{
		ID:         file.ID,
		Status:     status,
		Message:    message,
		UpdateDate: p.now(),
	})
}
