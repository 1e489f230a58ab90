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
	"time"
)

const agentColumns = `a.id, a.api_server_id, a.name, a.agent_type, a.url, a.port, a.username, a.password,
  a.directory, a.file_pattern, a.enabled, a.archived, a.run_order, a.last_executed, a.created_at`

func scanAgent(row interface{ Scan(...any) error }) (Agent, error) {
	var i Agent
	err := row.Scan(
		&i.ID,
		&i.ApiServerID,
		&i.Name,
		&i.AgentType,
		&i.Url,
		&i.Port,
		&i.Username,
		&i.Password,
		&i.Directory,
		&i.FilePattern,
		&i.Enabled,
		&i.Archived,
		&i.RunOrder,
		&i.LastExecuted,
		&i.CreatedAt,
	)
	return i, err
}

func (q *Queries) queryAgents(ctx context.Context, sql string, args ...any) ([]Agent, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Agent
	for rows.Next() {
		i, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listAgentsForApiServer = `SELECT ` + agentColumns + `
FROM agents a
WHERE a.api_server_id = $1
  AND a.enabled
  AND NOT a.archived
ORDER BY a.run_order NULLS LAST, a.id
`

// ListAgentsForApiServer returns the enabled, non-archived agents feeding a target.
func (q *Queries) ListAgentsForApiServer(ctx context.Context, apiServerID int64) ([]Agent, error) {
	return q.queryAgents(ctx, listAgentsForApiServer, apiServerID)
}

const listAgentsWithPendingFiles = `SELECT ` + agentColumns + `
FROM agents a
WHERE a.api_server_id = $1
  AND a.enabled
  AND NOT a.archived
  AND EXISTS (
    SELECT 1 FROM files f
    WHERE f.agent_id = a.id
      AND f.status IN (7, 8)
  )
ORDER BY a.run_order NULLS LAST, a.id
`

// ListAgentsWithPendingFiles returns agents of a target owning Uploaded or Retry files.
func (q *Queries) ListAgentsWithPendingFiles(ctx context.Context, apiServerID int64) ([]Agent, error) {
	return q.queryAgents(ctx, listAgentsWithPendingFiles, apiServerID)
}

const listAllAgents = `SELECT ` + agentColumns + `
FROM agents a
ORDER BY a.id
`

func (q *Queries) ListAllAgents(ctx context.Context) ([]Agent, error) {
	return q.queryAgents(ctx, listAllAgents)
}

const getAgent = `SELECT ` + agentColumns + `
FROM agents a
WHERE a.id = $1
`

func (q *Queries) GetAgent(ctx context.Context, id int64) (Agent, error) {
	return scanAgent(q.db.QueryRow(ctx, getAgent, id))
}

const setAgentLastExecuted = `UPDATE agents
SET last_executed = $2
WHERE id = $1
`

type SetAgentLastExecutedParams struct {
	ID           int64     `json:"id"`
	LastExecuted time.Time `json:"last_executed"`
}

func (q *Queries) SetAgentLastExecuted(ctx context.Context, arg SetAgentLastExecutedParams) error {
	_, err := q.db.Exec(ctx, setAgentLastExecuted, arg.ID, arg.LastExecuted)
	return err
}

const upsertAgent = `INSERT INTO agents AS a (
  api_server_id, name, agent_type, url, port, username, password,
  directory, file_pattern, enabled, archived, run_order
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (name) DO UPDATE SET
  api_server_id = EXCLUDED.api_server_id,
  agent_type    = EXCLUDED.agent_type,
  url           = EXCLUDED.url,
  port          = EXCLUDED.port,
  username      = EXCLUDED.username,
  password      = EXCLUDED.password,
  directory     = EXCLUDED.directory,
  file_pattern  = EXCLUDED.file_pattern,
  enabled       = EXCLUDED.enabled,
  archived      = EXCLUDED.archived,
  run_order     = EXCLUDED.run_order
RETURNING ` + agentColumns + `
`

type UpsertAgentParams struct {
	ApiServerID *int64 `json:"api_server_id"`
	Name        string `json:"name"`
	AgentType   string `json:"agent_type"`
	Url         string `json:"url"`
	Port        *int32 `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Directory   string `json:"directory"`
	FilePattern string `json:"file_pattern"`
	Enabled     bool   `json:"enabled"`
	Archived    bool   `json:"archived"`
	RunOrder    *int32 `json:"run_order"`
}

func (q *Queries) UpsertAgent(ctx context.Context, arg UpsertAgentParams) (Agent, error) {
	return scanAgent(q.db.QueryRow(ctx, upsertAgent,
		arg.ApiServerID,
		arg.Name,
		arg.AgentType,
		arg.Url,
		arg.Port,
		arg.Username,
		arg.Password,
		arg.Directory,
		arg.FilePattern,
		arg.Enabled,
		arg.Archived,
		arg.RunOrder,
	))
}

const listAgentSchedules = `SELECT id, agent_id, day, hour, minute
FROM agent_schedules
WHERE agent_id = ANY($1::bigint[])
ORDER BY agent_id, day, hour, minute
`

// ListAgentSchedules returns the schedule entries for all of the given agents.
func (q *Queries) ListAgentSchedules(ctx context.Context, agentIds []int64) ([]AgentSchedule, error) {
	rows, err := q.db.Query(ctx, listAgentSchedules, agentIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AgentSchedule
	for rows.Next() {
		var i AgentSchedule
		if err := rows.Scan(
			&i.ID,
			&i.AgentID,
			&i.Day,
			&i.Hour,
			&i.Minute,
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

const deleteAgentSchedules = `DELETE FROM agent_schedules
WHERE agent_id = $1
`

func (q *Queries) DeleteAgentSchedules(ctx context.Context, agentID int64) error {
	_, err := q.db.Exec(ctx, deleteAgentSchedules, agentID)
	return err
}

const insertAgentSchedule = `INSERT INTO agent_schedules (agent_id, day, hour, minute)
VALUES ($1, $2, $3, $4)
ON CONFLICT (agent_id, day, hour, minute) DO NOTHING
`

type InsertAgentScheduleParams struct {
	AgentID int64 `json:"agent_id"`
	Day     int16 `json:"day"`
	Hour    int16 `json:"hour"`
	Minute  int16 `json:"minute"`
}

func (q *Queries) InsertAgentSchedule(ctx context.Context, arg InsertAgentScheduleParams) error {
	_, err := q.db.Exec(ctx, insertAgentSchedule,
		arg.AgentID,
		arg.Day,
		arg.Hour,
		arg.Minute,
	)
	return err
}
