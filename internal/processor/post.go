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

package processor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/dataimport/internal/apiclient"
	"github.com/cardinalhq/dataimport/internal/logctx"
	"github.com/cardinalhq/dataimport/internal/transform"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

type rowResult int

const (
	rowSuccess rowResult = iota
	rowExists
	rowError
)

func (r rowResult) String() string {
	switch r {
	case rowSuccess:
		return "success"
	case rowExists:
		return "exists"
	}
	return "error"
}

type counts struct {
	success    int64
	exists     int64
	errors     int64
	duplicates int64
}

func dedupKey(endpoint string, body []byte) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(endpoint)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(body)
	return d.Sum64()
}

// postBatch posts one data map's rows concurrently. Identical bodies for the
// same endpoint are posted once and the repeats are not counted.
func (p *Processor) postBatch(ctx context.Context, ps *pass, agent ledgerdb.Agent, file ledgerdb.File, b batch) counts {
	endpoint := ps.cfg.ResourceURL(b.mapper.ResourcePath())
	seen := mapset.NewSet[uint64]()

	var success, exists, failed atomic.Int64
	var c counts
	var g errgroup.Group

	for _, row := range b.rows {
		if !seen.Add(dedupKey(endpoint, row.body)) {
			c.duplicates++
			rowsDuplicate.Add(ctx, 1)
			continue
		}
		if ps.sem != nil {
			if err := ps.sem.Acquire(ctx, 1); err != nil {
				failed.Add(1)
				continue
			}
		}
		g.Go(func() error {
			if ps.sem != nil {
				defer ps.sem.Release(1)
			}
			switch p.postRow(ctx, ps, agent, file, b.mapper.Operation(), endpoint, row) {
			case rowSuccess:
				success.Add(1)
			case rowExists:
				exists.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	c.success = success.Load()
	c.exists = exists.Load()
	c.errors = failed.Load()
	return c
}

// sendRow issues the request a row's data map asks for and returns the
// method label and URL it used.
func sendRow(ctx context.Context, api Poster, op transform.Operation, endpoint string, body []byte) (string, string, apiclient.Response, error) {
	switch op {
	case transform.OperationDelete:
		id, err := transform.ResourceID(body)
		if err != nil {
			return http.MethodDelete, endpoint, apiclient.Response{}, err
		}
		target := endpoint + "/" + url.PathEscape(id)
		resp, err := api.Delete(ctx, target)
		return http.MethodDelete, target, resp, err
	case transform.OperationDeleteByNaturalKey:
		resp, err := api.PostAndDelete(ctx, endpoint, body)
		return "POST/DELETE", endpoint, resp, err
	}
	resp, err := api.Post(ctx, endpoint, body)
	return http.MethodPost, endpoint, resp, err
}

func (p *Processor) postRow(ctx context.Context, ps *pass, agent ledgerdb.Agent, file ledgerdb.File, op transform.Operation, endpoint string, row mappedRow) rowResult {
	ll := logctx.FromContext(ctx)
	ll.Debug("Sending row", slog.String("endpoint", endpoint), slog.String("operation", string(op)), slog.Int("row", row.number))

	method, target, resp, err := sendRow(ctx, ps.api, op, endpoint, row.body)

	entry := ledgerdb.InsertIngestionLogParams{
		Operation:     method,
		Process:       "dataimport",
		Endpoint:      target,
		Data:          string(row.body),
		Response:      resp.Body,
		FileName:      file.FileName,
		AgentName:     agent.Name,
		ApiServerName: ps.cfg.Name,
		ApiVersion:    ps.cfg.APIVersion,
	}
	rowNumber := int32(row.number)
	entry.RowNumber = &rowNumber
	if resp.StatusCode != 0 {
		code := int32(resp.StatusCode)
		entry.HttpStatusCode = &code
	}

	result := rowError
	level := LevelError
	switch {
	case err != nil:
		var se *apiclient.StatusError
		if errors.As(err, &se) {
			ll.Error(method+" failed after re-authentication attempts",
				slog.String("endpoint", target),
				slog.Int("row", row.number),
				slog.Int("status", se.StatusCode))
		} else {
			ll.Error(method+" failed", slog.String("endpoint", target), slog.Int("row", row.number), slog.Any("error", err))
			if entry.Response == "" {
				entry.Response = err.Error()
			}
		}
	case op.IsDelete() && resp.StatusCode == http.StatusNoContent:
		result, level = rowSuccess, LevelInformation
	case !op.IsDelete() && resp.StatusCode == http.StatusCreated:
		result, level = rowSuccess, LevelInformation
	case !op.IsDelete() && resp.StatusCode == http.StatusOK:
		result, level = rowExists, LevelInformation
	default:
		ll.Error(method+" returned unexpected HTTP status",
			slog.String("endpoint", target),
			slog.Int("row", row.number),
			slog.Int("status", resp.StatusCode),
			slog.String("response", resp.Body))
	}
	rowsPosted.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result.String())))

	p.writeIngestionLog(ctx, level, result == rowError, entry)
	return result
}

// writeIngestionLog records entry when level passes the configured minimum.
// The write outlives a cancelled pass so the last failures stay visible.
func (p *Processor) writeIngestionLog(ctx context.Context, level IngestionLevel, failed bool, entry ledgerdb.InsertIngestionLogParams) {
	if !p.minLevel.enabled(level) {
		return
	}
	entry.Level = level.String()
	entry.Result = "Success"
	if failed {
		entry.Result = "Error"
	}
	lctx, cancel := detached(ctx)
	defer cancel()
	if err := p.store.InsertIngestionLog(lctx, entry); err != nil {
		logctx.FromContext(ctx).Warn("Failed to write ingestion log", slog.Any("error", err))
	}
}
