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
)

const insertIngestionLog = `INSERT INTO ingestion_logs (
  level, operation, process, result, row_number, endpoint, http_status_code,
  data, response, file_name, agent_name, api_server_name, api_version
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

type InsertIngestionLogParams struct {
	Level          string `json:"level"`
	Operation      string `json:"operation"`
	Process        string `json:"process"`
	Result         string `json:"result"`
	RowNumber      *int32 `json:"row_number"`
	Endpoint       string `json:"endpoint"`
	HttpStatusCode *int32 `json:"http_status_code"`
	Data           string `json:"data"`
	Response       string `json:"response"`
	FileName       string `json:"file_name"`
	AgentName      string `json:"agent_name"`
	ApiServerName  string `json:"api_server_name"`
	ApiVersion     string `json:"api_version"`
}

func (q *Queries) InsertIngestionLog(ctx context.Context, arg InsertIngestionLogParams) error {
	_, err := q.db.Exec(ctx, insertIngestionLog,
		arg.Level,
		arg.Operation,
		arg.Process,
		arg.Result,
		arg.RowNumber,
		arg.Endpoint,
		arg.HttpStatusCode,
		arg.Data,
		arg.Response,
		arg.FileName,
		arg.AgentName,
		arg.ApiServerName,
		arg.ApiVersion,
	)
	return err
}
