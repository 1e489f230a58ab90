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

const apiServerColumns = `id, name, api_version, url, token_url, authorize_url, client_id, client_secret, created_at`

func scanApiServer(row interface{ Scan(...any) error }) (ApiServer, error) {
	var i ApiServer
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.ApiVersion,
		&i.Url,
		&i.TokenUrl,
		&i.AuthorizeUrl,
		&i.ClientID,
		&i.ClientSecret,
		&i.CreatedAt,
	)
	return i, err
}

const listApiServers = `SELECT ` + apiServerColumns + `
FROM api_servers
ORDER BY id
`

// ListApiServers returns every configured downstream target in ascending id order.
func (q *Queries) ListApiServers(ctx context.Context) ([]ApiServer, error) {
	rows, err := q.db.Query(ctx, listApiServers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ApiServer
	for rows.Next() {
		i, err := scanApiServer(rows)
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

const getApiServer = `SELECT ` + apiServerColumns + `
FROM api_servers
WHERE id = $1
`

func (q *Queries) GetApiServer(ctx context.Context, id int64) (ApiServer, error) {
	return scanApiServer(q.db.QueryRow(ctx, getApiServer, id))
}

const upsertApiServer = `INSERT INTO api_servers (name, api_version, url, token_url, authorize_url, client_id, client_secret)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (name) DO UPDATE SET
  api_version   = EXCLUDED.api_version,
  url           = EXCLUDED.url,
  token_url     = EXCLUDED.token_url,
  authorize_url = EXCLUDED.authorize_url,
  client_id     = EXCLUDED.client_id,
  client_secret = EXCLUDED.client_secret
RETURNING ` + apiServerColumns + `
`

type UpsertApiServerParams struct {
	Name         string `json:"name"`
	ApiVersion   string `json:"api_version"`
	Url          string `json:"url"`
	TokenUrl     string `json:"token_url"`
	AuthorizeUrl string `json:"authorize_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (q *Queries) UpsertApiServer(ctx context.Context, arg UpsertApiServerParams) (ApiServer, error) {
	return scanApiServer(q.db.QueryRow(ctx, upsertApiServer,
		arg.Name,
		arg.ApiVersion,
		arg.Url,
		arg.TokenUrl,
		arg.AuthorizeUrl,
		arg.ClientID,
		arg.ClientSecret,
	))
}
