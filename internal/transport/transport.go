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

// Package transport moves new files from due agents' remote sources into
// the file store and records them in the ledger.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/dataimport/internal/filestore"
	"github.com/cardinalhq/dataimport/internal/helpers"
	"github.com/cardinalhq/dataimport/internal/logctx"
	"github.com/cardinalhq/dataimport/internal/remotesource"
	"github.com/cardinalhq/dataimport/internal/scheduler"
	"github.com/cardinalhq/dataimport/internal/secrets"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

// Store is the subset of the ledger the transporter uses.
type Store interface {
	ListAgentsForApiServer(ctx context.Context, apiServerID int64) ([]ledgerdb.Agent, error)
	ListAgentSchedules(ctx context.Context, agentIds []int64) ([]ledgerdb.AgentSchedule, error)
	FileExists(ctx context.Context, arg ledgerdb.FileExistsParams) (bool, error)
	LogFile(ctx context.Context, arg ledgerdb.LogFileParams) (ledgerdb.File, error)
	SetAgentLastExecuted(ctx context.Context, arg ledgerdb.SetAgentLastExecutedParams) error
}

// SourceResolver picks the remote source for an agent type.
type SourceResolver interface {
	For(agentType string) (remotesource.RemoteSource, error)
}

// Result summarizes one transport pass for a target.
type Result struct {
	AgentsDue   int
	Transported int
	Skipped     int
	Failed      int
}

type Transporter struct {
	store     Store
	sources   SourceResolver
	files     filestore.FileStore
	decrypter secrets.Decrypter
	loc       *time.Location
	clock     *helpers.MicroClock
	now       func() time.Time
}

type Option func(*Transporter)

// WithClock overrides the wall clock used for scheduling and record stamps.
func WithClock(now func() time.Time) Option {
	return func(t *Transporter) {
		t.now = now
		t.clock = helpers.NewMicroClock(now)
	}
}

func New(store Store, sources SourceResolver, files filestore.FileStore, decrypter secrets.Decrypter, loc *time.Location, opts ...Option) *Transporter {
	t := &Transporter{
		store:     store,
		sources:   sources,
		files:     files,
		decrypter: decrypter,
		loc:       loc,
		clock:     helpers.NewMicroClock(nil),
		now:       time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Run transports new files for every due agent of the target, in run order.
// Only a failure to load the target's agents is returned; agent and file
// failures are logged and recorded, and the pass continues.
func (t *Transporter) Run(ctx context.Context, target ledgerdb.ApiServer) (Result, error) {
	var res Result
	ll := logctx.FromContext(ctx)

	agents, err := t.store.ListAgentsForApiServer(ctx, target.ID)
	if err != nil {
		return res, fmt.Errorf("list agents for target %s: %w", target.Name, err)
	}
	if len(agents) == 0 {
		ll.Info("No agents configured for target", slog.String("target", target.Name))
		return res, nil
	}

	ids := make([]int64, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	schedules, err := t.store.ListAgentSchedules(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("list agent schedules for target %s: %w", target.Name, err)
	}

	passStart := t.now()
	due := scheduler.Due(agents, schedules, passStart, t.loc)
	res.AgentsDue = len(due)
	ll.Info("Agents due for transport",
		slog.String("target", target.Name),
		slog.Int("configured", len(agents)),
		slog.Int("due", len(due)))

	for _, agent := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		t.runAgent(ctx, agent, passStart, &res)
	}
	return res, nil
}

func (t *Transporter) runAgent(ctx context.Context, agent ledgerdb.Agent, passStart time.Time, res *Result) {
	ctx, ll := logctx.With(ctx, slog.String("agent", agent.Name), slog.Int64("agentID", agent.ID))
	attrs := metric.WithAttributes(attribute.String("agent_type", agent.AgentType))

	remote, paths, err := t.list(ctx, agent)
	if err != nil {
		transportErrors.Add(ctx, 1, attrs, metric.WithAttributes(attribute.String("stage", "list")))
		ll.Error("Failed to list remote files, agent will be retried next pass", slog.Any("error", err))
		return
	}
	ll.Info("Listed remote files", slog.Int("count", len(paths)))

	for _, p := range paths {
		name := path.Base(p)
		exists, err := t.store.FileExists(ctx, ledgerdb.FileExistsParams{AgentID: agent.ID, FileName: name})
		if err != nil {
			res.Failed++
			transportErrors.Add(ctx, 1, attrs, metric.WithAttributes(attribute.String("stage", "dedup")))
			ll.Error("Failed to check file ledger", slog.String("file", name), slog.Any("error", err))
			continue
		}
		if exists {
			res.Skipped++
			filesSkipped.Add(ctx, 1, attrs)
			ll.Debug("File already logged, skipping", slog.String("file", name))
			continue
		}

		if t.transportFile(ctx, remote, agent, p, name) {
			res.Transported++
			filesTransported.Add(ctx, 1, attrs)
		} else {
			res.Failed++
			transportErrors.Add(ctx, 1, attrs, metric.WithAttributes(attribute.String("stage", "store")))
		}
	}

	if err := t.store.SetAgentLastExecuted(ctx, ledgerdb.SetAgentLastExecutedParams{
		ID:           agent.ID,
		LastExecuted: passStart,
	}); err != nil {
		ll.Error("Failed to record agent execution", slog.Any("error", err))
	}
}

// list resolves the source with decrypted credentials and lists candidates.
func (t *Transporter) list(ctx context.Context, agent ledgerdb.Agent) (*remoteAgent, []string, error) {
	src, err := t.sources.For(agent.AgentType)
	if err != nil {
		return nil, nil, err
	}
	password, err := t.decrypter.Decrypt(agent.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("agent password: %w", err)
	}
	connAgent := agent
	connAgent.Password = password

	paths, err := src.ListFiles(ctx, connAgent)
	if err != nil {
		return nil, nil, err
	}
	return &remoteAgent{source: src, agent: connAgent}, paths, nil
}

type remoteAgent struct {
	source remotesource.RemoteSource
	agent  ledgerdb.Agent
}

// transportFile fetches, stores and logs one file. Failures are logged as
// ErrorUploaded with zero rows.
func (t *Transporter) transportFile(ctx context.Context, remote *remoteAgent, agent ledgerdb.Agent, remotePath, name string) bool {
	ll := logctx.FromContext(ctx).With(slog.String("file", name))

	url, rows, err := t.fetchAndStore(ctx, remote, agent, remotePath, name)
	if err != nil {
		ll.Error("Failed to transport file", slog.Any("error", err))
		msg := err.Error()
		if _, lerr := t.store.LogFile(ctx, ledgerdb.LogFileParams{
			AgentID:    agent.ID,
			FileName:   name,
			Status:     ledgerdb.FileStatusErrorUploaded,
			Message:    &msg,
			CreateDate: t.clock.Next(),
		}); lerr != nil {
			ll.Error("Failed to log transport failure", slog.Any("error", lerr))
		}
		return false
	}

	rec, err := t.store.LogFile(ctx, ledgerdb.LogFileParams{
		AgentID:    agent.ID,
		FileName:   name,
		Url:        url,
		Status:     ledgerdb.FileStatusUploaded,
		Rows:       rows,
		CreateDate: t.clock.Next(),
	})
	if err != nil {
		ll.Error("Failed to log stored file, removing stored copy", slog.Any("error", err))
		if derr := t.files.Delete(ctx, ledgerdb.File{AgentID: agent.ID, FileName: name, Url: url}); derr != nil {
			ll.Error("Failed to remove unlogged stored file", slog.String("url", url), slog.Any("error", derr))
		}
		return false
	}

	ll.Info("Transported file",
		slog.Int64("fileID", rec.ID),
		slog.Int("rows", int(rows)),
		slog.String("url", url))
	return true
}

func (t *Transporter) fetchAndStore(ctx context.Context, remote *remoteAgent, agent ledgerdb.Agent, remotePath, name string) (string, int32, error) {
	r, err := remote.source.Fetch(ctx, remote.agent, remotePath)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = r.Close() }()

	return t.files.Store(ctx, name, r, agent)
}
