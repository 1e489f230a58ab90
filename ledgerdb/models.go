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
	"encoding/json"
	"time"
)

// Agent type codes as stored in agents.agent_type.
const (
	AgentTypeFTPS       = "FTPS"
	AgentTypeSFTP       = "SFTP"
	AgentTypeManual     = "Manual"
	AgentTypePowerShell = "PowerShell"
)

type ApiServer struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ApiVersion   string    `json:"api_version"`
	Url          string    `json:"url"`
	TokenUrl     string    `json:"token_url"`
	AuthorizeUrl string    `json:"authorize_url"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	CreatedAt    time.Time `json:"created_at"`
}

type Agent struct {
	ID           int64      `json:"id"`
	ApiServerID  *int64     `json:"api_server_id"`
	Name         string     `json:"name"`
	AgentType    string     `json:"agent_type"`
	Url          string     `json:"url"`
	Port         *int32     `json:"port"`
	Username     string     `json:"username"`
	Password     string     `json:"password"`
	Directory    string     `json:"directory"`
	FilePattern  string     `json:"file_pattern"`
	Enabled      bool       `json:"enabled"`
	Archived     bool       `json:"archived"`
	RunOrder     *int32     `json:"run_order"`
	LastExecuted *time.Time `json:"last_executed"`
	CreatedAt    time.Time  `json:"created_at"`
}

type AgentSchedule struct {
	ID      int64 `json:"id"`
	AgentID int64 `json:"agent_id"`
	Day     int16 `json:"day"`
	Hour    int16 `json:"hour"`
	Minute  int16 `json:"minute"`
}

type File struct {
	ID         int64      `json:"id"`
	AgentID    int64      `json:"agent_id"`
	FileName   string     `json:"file_name"`
	Url        string     `json:"url"`
	Status     FileStatus `json:"status"`
	Message    *string    `json:"message"`
	Rows       int32      `json:"rows"`
	CreateDate time.Time  `json:"create_date"`
	UpdateDate *time.Time `json:"update_date"`
}

type JobStatus struct {
	ID        int16      `json:"id"`
	Started   *time.Time `json:"started"`
	Completed *time.Time `json:"completed"`
}

type DataMap struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	ResourcePath string          `json:"resource_path"`
	Map          json.RawMessage `json:"map"`
	CreatedAt    time.Time       `json:"created_at"`
}

type DataMapAgent struct {
	DataMapID       int64 `json:"data_map_id"`
	AgentID         int64 `json:"agent_id"`
	ProcessingOrder int32 `json:"processing_order"`
}

// BootstrapData is a JSON payload (one object or an array of objects)
// posted to every target of its agents before their files are loaded.
type BootstrapData struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	ResourcePath string          `json:"resource_path"`
	Data         json.RawMessage `json:"data"`
	UpdateDate   time.Time       `json:"update_date"`
	CreatedAt    time.Time       `json:"created_at"`
}

type BootstrapDataAgent struct {
	BootstrapDataID int64 `json:"bootstrap_data_id"`
	AgentID         int64 `json:"agent_id"`
	ProcessingOrder int32 `json:"processing_order"`
}

type BootstrapDataApiServer struct {
	BootstrapDataID int64     `json:"bootstrap_data_id"`
	ApiServerID     int64     `json:"api_server_id"`
	ProcessedDate   time.Time `json:"processed_date"`
}

type Lookup struct {
	ID          int64  `json:"id"`
	SourceTable string `json:"source_table"`
	Key         string `json:"key"`
	Value       string `json:"value"`
}

type IngestionLog struct {
	ID             int64     `json:"id"`
	LoggedAt       time.Time `json:"logged_at"`
	Level          string    `json:"level"`
	Operation      string    `json:"operation"`
	Process        string    `json:"process"`
	Result         string    `json:"result"`
	RowNumber      *int32    `json:"row_number"`
	Endpoint       string    `json:"endpoint"`
	HttpStatusCode *int32    `json:"http_status_code"`
	Data           string    `json:"data"`
	Response       string    `json:"response"`
	FileName       string    `json:"file_name"`
	AgentName      string    `json:"agent_name"`
	ApiServerName  string    `json:"api_server_name"`
	ApiVersion     string    `json:"api_version"`
}
