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
)

const listDataMapsForAgent = `SELECT m.id, m.name, m.resource_path, m.map, m.created_at
FROM data_maps m
JOIN data_map_agents dma ON dma.data_map_id = m.id
WHERE dma.agent_id = $1
ORDER BY dma.processing_order, m.id
`

// ListDataMapsForAgent returns the agent's data maps in processing order.
func (q *Queries) ListDataMapsForAgent(ctx context.Context, agentID int64) ([]DataMap, error) {
	rows, err := q.db.Query(ctx, listDataMapsForAgent, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DataMap
	for rows.Next() {
		var i DataMap
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.ResourcePath,
			&i.Map,
			&i.CreatedAt,
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

const upsertDataMap = `INSERT INTO data_maps (name, resource_path, map)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET
  resource_path = EXCLUDED.resource_path,
  map           = EXCLUDED.map
RETURNING id, name, resource_path, map, created_at
`

type UpsertDataMapParams struct {
	Name         string          `json:"name"`
	ResourcePath string          `json:"resource_path"`
	Map          json.RawMessage `json:"map"`
}

func (q *Queries) UpsertDataMap(ctx context.Context, arg UpsertDataMapParams) (DataMap, error) {
	var i DataMap
	err := q.db.QueryRow(ctx, upsertDataMap, arg.Name, arg.ResourcePath, arg.Map).Scan(
		&i.ID,
		&i.Name,
		&i.ResourcePath,
		&i.Map,
		&i.CreatedAt,
	)
	return i, err
}

const upsertDataMapAgent = `INSERT INTO data_map_agents (data_map_id, agent_id, processing_order)
VALUES ($1, $2, $3)
ON CONFLICT (data_map_id, agent_id) DO UPDATE SET
  processing_order = EXCLUDED.processing_order
`

func (q *Queries) UpsertDataMapAgent(ctx context.Context, arg DataMapAgent) error {
	_, err := q.db.Exec(ctx, upsertDataMapAgent, arg.DataMapID, arg.AgentID, arg.ProcessingOrder)
	return err
}

const listLookups = `SELECT id, source_table, key, value
FROM lookups
ORDER BY source_table, key
`

func (q *Queries) ListLookups(ctx context.Context) ([]Lookup, error) {
	rows, err := q.db.Query(ctx, listLookups)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Lookup
	for rows.Next() {
		var i Lookup
		if err := rows.Scan(&i.ID, &i.SourceTable, &i.Key, &i.Value); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertLookup = `INSERT INTO lookups (source_table, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (source_table, key) DO UPDATE SET
  value = EXCLUDED.value
`

type UpsertLookupParams struct {
	SourceTable string `json:"source_table"`
	Key         string `json:"key"`
	Value       string `json:"value"`
}

func (q *Queries) UpsertLookup(ctx context.Context, arg UpsertLookupParams) error {
	_, err := q.db.Exec(ctx, upsertLookup, arg.SourceTable, arg.Key, arg.Value)
	return err
}
