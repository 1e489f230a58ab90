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

package ledgerdb

import (
	"context"
	"encoding/json"
	"time"
)

const listPendingBootstrapData = `SELECT b.id, b.name, b.resource_path, b.data, b.update_date, b.created_at,
  MIN(bda.processing_order)::integer AS processing_order,
  array_agg(a.name ORDER BY bda.processing_order, a.id)::text[] AS agent_names
FROM bootstrap_data b
JOIN bootstrap_data_agents bda ON bda.bootstrap_data_id = b.id
JOIN agents a ON a.id = bda.agent_id
LEFT JOIN bootstrap_data_api_servers bds
  ON bds.bootstrap_data_id = b.id AND bds.api_server_id = $1
WHERE a.api_server_id = $1
  AND a.enabled
  AND NOT a.archived
  AND (bds.processed_date IS NULL OR b.update_date > bds.processed_date)
GROUP BY b.id
ORDER BY processing_order, b.id
`

type PendingBootstrapData struct {
	BootstrapData
	ProcessingOrder int32    `json:"processing_order"`
	AgentNames      []string `json:"agent_names"`
}

// ListPendingBootstrapData returns the payloads linked to the target's
// enabled agents that were never posted to it, or changed since they were.
func (q *Queries) ListPendingBootstrapData(ctx context.Context, apiServerID int64) ([]PendingBootstrapData, error) {
	rows, err := q.db.Query(ctx, listPendingBootstrapData, apiServerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingBootstrapData
	for rows.Next() {
		var i PendingBootstrapData
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.ResourcePath,
			&i.Data,
			&i.UpdateDate,
			&i.CreatedAt,
			&i.ProcessingOrder,
			&i.AgentNames,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markBootstrapDataProcessed = `INSERT INTO bootstrap_data_api_servers (bootstrap_data_id, api_server_id, processed_date)
VALUES ($1, $2, $3)
ON CONFLICT (bootstrap_data_id, api_server_id) DO UPDATE SET
  processed_date = EXCLUDED.processed_date
`

func (q *Queries) MarkBootstrapDataProcessed(ctx context.Context, arg BootstrapDataApiServer) error {
	_, err := q.db.Exec(ctx, markBootstrapDataProcessed, arg.BootstrapDataID, arg.ApiServerID, arg.ProcessedDate)
	return err
}

const upsertBootstrapData = `INSERT INTO bootstrap_data (name, resource_path, data, update_date)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET
  resource_path = EXCLUDED.resource_path,
  data          = EXCLUDED.data,
  update_date   = CASE
    WHEN bootstrap_data.data IS DISTINCT FROM EXCLUDED.data
      OR bootstrap_data.resource_path IS DISTINCT FROM EXCLUDED.resource_path
    THEN EXCLUDED.update_date
    ELSE bootstrap_data.update_date
  END
RETURNING id, name, resource_path, data, update_date, created_at
`

type UpsertBootstrapDataParams struct {
	Name         string          `json:"name"`
	ResourcePath string          `json:"resource_path"`
	Data         json.RawMessage `json:"data"`
	UpdateDate   time.Time       `json:"update_date"`
}

// UpsertBootstrapData stores a payload by name. UpdateDate only moves when
// the payload or its resource path changed, so unchanged payloads are not
// posted again.
func (q *Queries) UpsertBootstrapData(ctx context.Context, arg UpsertBootstrapDataParams) (BootstrapData, error) {
	var i BootstrapData
	err := q.db.QueryRow(ctx, upsertBootstrapData, arg.Name, arg.ResourcePath, arg.Data, arg.UpdateDate).Scan(
		&i.ID,
		&i.Name,
		&i.ResourcePath,
		&i.Data,
		&i.UpdateDate,
		&i.CreatedAt,
	)
	return i, err
}

const upsertBootstrapDataAgent = `INSERT INTO bootstrap_data_agents (bootstrap_data_id, agent_id, processing_order)
VALUES ($1, $2, $3)
ON CONFLICT (bootstrap_data_id, agent_id) DO UPDATE SET
  processing_order = EXCLUDED.processing_order
`

func (q *Queries) UpsertBootstrapDataAgent(ctx context.Context, arg BootstrapDataAgent) error {
	_, err := q.db.Exec(ctx, upsertBootstrapDataAgent, arg.BootstrapDataID, arg.AgentID, arg.ProcessingOrder)
	return err
}
