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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cardinalhq/dataimport/internal/logctx"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

const bootstrapOperation = "PostBootstrapData"

// postBootstrapData sends the target's pending bootstrap payloads, lowest
// processing order first, and stamps each one once it is fully accepted.
// The first rejected payload stops the stage.
func (p *Processor) postBootstrapData(ctx context.Context, ps *pass) (int, error) {
	ll := logctx.FromContext(ctx)

	pending, err := p.store.ListPendingBootstrapData(ctx, ps.cfg.TargetID)
	if err != nil {
		return 0, fmt.Errorf("list bootstrap data for target %s: %w", ps.cfg.Name, err)
	}
	if len(pending) == 0 {
		ll.Debug("No bootstrap data to post")
		return 0, nil
	}

	posted := 0
	for _, bd := range pending {
		if err := ctx.Err(); err != nil {
			return posted, err
		}
		if err := p.postBootstrapPayload(ctx, ps, bd); err != nil {
			return posted, err
		}

		processed := p.now()
		if bd.UpdateDate.After(processed) {
			processed = bd.UpdateDate
		}
		if err := p.store.MarkBootstrapDataProcessed(ctx, ledgerdb.BootstrapDataApiServer{
			BootstrapDataID: bd.ID,
			ApiServerID:     ps.cfg.TargetID,
			ProcessedDate:   processed,
		}); err != nil {
			return posted, fmt.Errorf("mark bootstrap data %s processed: %w", bd.Name, err)
		}
		posted++
		ll.Info("Posted bootstrap data",
			slog.String("name", bd.Name),
			slog.String("resource", bd.ResourcePath),
			slog.Int("order", int(bd.ProcessingOrder)))
	}
	return posted, nil
}

func (p *Processor) postBootstrapPayload(ctx context.Context, ps *pass, bd ledgerdb.PendingBootstrapData) error {
	endpoint := ps.cfg.ResourceURL(bd.ResourcePath)
	bodies, err := bootstrapBodies(bd.Data)
	if err != nil {
		return fmt.Errorf("bootstrap data %s: %w", bd.Name, err)
	}

	for _, body := range bodies {
		resp, err := ps.api.Post(ctx, endpoint, body)
		accepted := err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300

		var rowNumber int32
		entry := ledgerdb.InsertIngestionLogParams{
			Operation:     bootstrapOperation,
			Process:       "dataimport",
			Endpoint:      endpoint,
			Data:          string(body),
			Response:      resp.Body,
			FileName:      "Bootstrap: " + bd.Name,
			RowNumber:     &rowNumber,
			AgentName:     strings.Join(bd.AgentNames, ", "),
			ApiServerName: ps.cfg.Name,
			ApiVersion:    ps.cfg.APIVersion,
		}
		if resp.StatusCode != 0 {
			code := int32(resp.StatusCode)
			entry.HttpStatusCode = &code
		}
		if err != nil && entry.Response == "" {
			entry.Response = err.Error()
		}

		if accepted {
			p.writeIngestionLog(ctx, LevelInformation, false, entry)
			continue
		}
		p.writeIngestionLog(ctx, LevelError, true, entry)
		if err != nil {
			return fmt.Errorf("post bootstrap data %s: %w", bd.Name, err)
		}
		return fmt.Errorf("post bootstrap data %s: %s returned %d: %s", bd.Name, endpoint, resp.StatusCode, resp.Body)
	}
	return nil
}

// bootstrapBodies splits a payload into request bodies. An array is sent
// element by element; anything else is sent whole.
func bootstrapBodies(data json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("payload is empty")
	}
	if trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, errors.New("payload is not valid JSON")
		}
		return []json.RawMessage{trimmed}, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, fmt.Errorf("decode payload array: %w", err)
	}
	return elems, nil
}
