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

// Package fileops implements the operator actions on ledger files: retry,
// cancel and the activity view.
package fileops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cardinalhq/dataimport/internal/filestore"
	"github.com/cardinalhq/dataimport/internal/logctx"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

// ErrInvalidTransition is returned (wrapped) when a file's status does not
// allow the requested action.
var ErrInvalidTransition = ledgerdb.ErrInvalidTransition

// ActivityWindow bounds how far back Loaded files appear in the activity view.
const ActivityWindow = 7 * 24 * time.Hour

// DefaultActivityLimit caps the activity rows returned when no limit is given.
const DefaultActivityLimit = 100

type Store interface {
	GetFile(ctx context.Context, id int64) (ledgerdb.File, error)
	TransitionFile(ctx context.Context, arg ledgerdb.TransitionFileParams) (ledgerdb.File, error)
	ListActivity(ctx context.Context, arg ledgerdb.ListActivityParams) ([]ledgerdb.ListActivityRow, error)
}

type Ops struct {
	store Store
	files filestore.FileStore
	now   func() time.Time
}

type Option func(*Ops)

func WithClock(now func() time.Time) Option {
	return func(o *Ops) { o.now = now }
}

func New(store Store, files filestore.FileStore, opts ...Option) *Ops {
	o := &Ops{store: store, files: files, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Retry queues a failed or interrupted file for the next processor pass.
// The previous message is kept so the activity view still shows what went
// wrong.
func (o *Ops) Retry(ctx context.Context, id int64) (ledgerdb.File, error) {
	f, err := o.store.TransitionFile(ctx, ledgerdb.TransitionFileParams{
		ID:         id,
		Allowed:    ledgerdb.FileStatus.CanBeRetried,
		Status:     ledgerdb.FileStatusRetry,
		UpdateDate: o.now(),
	})
	if err != nil {
		return ledgerdb.File{}, fmt.Errorf("retry file %d: %w", id, err)
	}
	logctx.FromContext(ctx).Info("File queued for retry", slog.Int64("fileID", id), slog.String("file", f.FileName))
	return f, nil
}

// Cancel removes a file's stored object and marks it Canceled. The status is checked before anything is deleted, and a missing
// object is not an error, so a cancel that failed midway can be repeated.
func (o *Ops) Cancel(ctx context.Context, id int64) (ledgerdb.File, error) {
	f, err := o.store.GetFile(ctx, id)
	if err != nil {
		return ledgerdb.File{}, fmt.Errorf("cancel file %d: %w", id, err)
	}
	if !f.Status.CanBeCanceled() {
		return ledgerdb.File{}, fmt.Errorf("cancel file %d: %w",
			id, &ledgerdb.InvalidTransitionError{FileID: id, From: f.Status, To: ledgerdb.FileStatusCanceled})
	}

	if f.Url != "" {
		if err := o.files.Delete(ctx, f); err != nil {
			return ledgerdb.File{}, fmt.Errorf("cancel file %d: %w", id, err)
		}
	}

	f, err = o.store.TransitionFile(ctx, ledgerdb.TransitionFileParams{
		ID:         id,
		Allowed:    ledgerdb.FileStatus.CanBeCanceled,
		Status:     ledgerdb.FileStatusCanceled,
		UpdateDate: o.now(),
	})
	if err != nil {
		return ledgerdb.File{}, fmt.Errorf("cancel file %d: %w", id, err)
	}
	logctx.FromContext(ctx).Info("File canceled", slog.Int64("fileID", id), slog.String("file", f.FileName))
	return f, nil
}

// Activity lists recent files newest first, optionally for one target.
func (o *Ops) Activity(ctx context.Context, apiServerID *int64, limit int32) ([]ledgerdb.ListActivityRow, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	rows, err := o.store.ListActivity(ctx, ledgerdb.ListActivityParams{
		ApiServerID: apiServerID,
		LoadedSince: o.now().Add(-ActivityWindow),
		RowLimit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return rows, nil
}
