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

const fileColumns = `f.id, f.agent_id, f.file_name, f.url, f.status, f.message, f.rows, f.create_date, f.update_date`

func scanFile(row interface{ Scan(...any) error }) (File, error) {
	var i File
	err := row.Scan(
		&i.ID,
		&i.AgentID,
		&i.FileName,
		&i.Url,
		&i.Status,
		&i.Message,
		&i.Rows,
		&i.CreateDate,
		&i.UpdateDate,
	)
	return i, err
}

func (q *Queries) queryFiles(ctx context.Context, sql string, args ...any) ([]File, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []File
	for rows.Next() {
		i, err := scanFile(rows)
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

const logFile = `INSERT INTO files AS f (agent_id, file_name, url, status, message, rows, create_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + fileColumns + `
`

type LogFileParams struct {
	AgentID    int64      `json:"agent_id"`
	FileName   string     `json:"file_name"`
	Url        string     `json:"url"`
	Status     FileStatus `json:"status"`
	Message    *string    `json:"message"`
	Rows       int32      `json:"rows"`
	CreateDate time.Time  `json:"create_date"`
}

// LogFile appends a ledger entry for a transported (or failed) file.
func (q *Queries) LogFile(ctx context.Context, arg LogFileParams) (File, error) {
	return scanFile(q.db.QueryRow(ctx, logFile,
		arg.AgentID,
		arg.FileName,
		arg.Url,
		arg.Status,
		arg.Message,
		arg.Rows,
		arg.CreateDate,
	))
}

const fileExists = `SELECT EXISTS (
  SELECT 1 FROM files
  WHERE agent_id = $1
    AND file_name = $2
    AND status <> 10
)
`

type FileExistsParams struct {
	AgentID  int64  `json:"agent_id"`
	FileName string `json:"file_name"`
}

// FileExists is the transport dedup check. Canceled entries do not count.
func (q *Queries) FileExists(ctx context.Context, arg FileExistsParams) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, fileExists, arg.AgentID, arg.FileName).Scan(&exists)
	return exists, err
}

const getFile = `SELECT ` + fileColumns + `
FROM files f
WHERE f.id = $1
`

func (q *Queries) GetFile(ctx context.Context, id int64) (File, error) {
	return scanFile(q.db.QueryRow(ctx, getFile, id))
}

const getFilesForAgent = `SELECT ` + fileColumns + `
FROM files f
WHERE f.agent_id = $1
ORDER BY f.create_date, f.id
`

func (q *Queries) GetFilesForAgent(ctx context.Context, agentID int64) ([]File, error) {
	return q.queryFiles(ctx, getFilesForAgent, agentID)
}

const listPendingFiles = `SELECT ` + fileColumns + `
FROM files f
WHERE f.agent_id = $1
  AND f.status IN (7, 8)
ORDER BY f.create_date, f.id
`

// ListPendingFiles returns an agent's Uploaded and Retry files, oldest first.
func (q *Queries) ListPendingFiles(ctx context.Context, agentID int64) ([]File, error) {
	return q.queryFiles(ctx, listPendingFiles, agentID)
}

const updateFileStatus = `UPDATE files
SET status = $2,
    message = COALESCE($3, message),
    update_date = $4
WHERE id = $1
`

type UpdateFileStatusParams struct {
	ID         int64      `json:"id"`
	Status     FileStatus `json:"status"`
	Message    *string    `json:"message"`
	UpdateDate time.Time  `json:"update_date"`
}

// UpdateFileStatus changes a file's status. A nil Message keeps the stored one.
func (q *Queries) UpdateFileStatus(ctx context.Context, arg UpdateFileStatusParams) error {
	_, err := q.db.Exec(ctx, updateFileStatus,
		arg.ID,
		arg.Status,
		arg.Message,
		arg.UpdateDate,
	)
	return err
}

const listActivity = `SELECT ` + fileColumns + `, a.name
FROM files f
JOIN agents a ON a.id = f.agent_id
WHERE f.status NOT IN (9, 10)
  AND (f.status <> 4 OR f.create_date >= $2)
  AND ($1::bigint IS NULL OR a.api_server_id = $1)
ORDER BY f.create_date DESC, f.id DESC
LIMIT $3
`

type ListActivityParams struct {
	ApiServerID *int64    `json:"api_server_id"`
	LoadedSince time.Time `json:"loaded_since"`
	RowLimit    int32     `json:"row_limit"`
}

type ListActivityRow struct {
	File
	AgentName string `json:"agent_name"`
}

// ListActivity is the operator activity view. Canceled and legacy deleted
// files are hidden; Loaded files only appear when created after LoadedSince.
func (q *Queries) ListActivity(ctx context.Context, arg ListActivityParams) ([]ListActivityRow, error) {
	rows, err := q.db.Query(ctx, listActivity, arg.ApiServerID, arg.LoadedSince, arg.RowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListActivityRow
	for rows.Next() {
		var i ListActivityRow
		if err := rows.Scan(
			&i.ID,
			&i.AgentID,
			&i.FileName,
			&i.Url,
			&i.Status,
			&i.Message,
			&i.Rows,
			&i.CreateDate,
			&i.UpdateDate,
			&i.AgentName,
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
