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

// Querier is every ledger query. Consumers declare the narrower subset they use.
type Querier interface {
	ListApiServers(ctx context.Context) ([]ApiServer, error)
	GetApiServer(ctx context.Context, id int64) (ApiServer, error)
	UpsertApiServer(ctx context.Context, arg UpsertApiServerParams) (ApiServer, error)

	ListAgentsForApiServer(ctx context.Context, apiServerID int64) ([]Agent, error)
	ListAgentsWithPendingFiles(ctx context.Context, apiServerID int64) ([]Agent, error)
	ListAllAgents(ctx context.Context) ([]Agent, error)
	GetAgent(ctx context.Context, id int64) (Agent, error)
	SetAgentLastExecuted(ctx context.Context, arg SetAgentLastExecutedParams) error
	UpsertAgent(ctx context.Context, arg UpsertAgentParams) (Agent, error)
	ListAgentSchedules(ctx context.Context, agentIds []int64) ([]AgentSchedule, error)
	DeleteAgentSchedules(ctx context.Context, agentID int64) error
	InsertAgentSchedule(ctx context.Context, arg InsertAgentScheduleParams) error

	LogFile(ctx context.Context, arg LogFileParams) (File, error)
	FileExists(ctx context.Context, arg FileExistsParams) (bool, error)
	GetFile(ctx context.Context, id int64) (File, error)
	GetFilesForAgent(ctx context.Context, agentID int64) ([]File, error)
	ListPendingFiles(ctx context.Context, agentID int64) ([]File, error)
	UpdateFileStatus(ctx context.Context, arg UpdateFileStatusParams) error
	ListActivity(ctx context.Context, arg ListActivityParams) ([]ListActivityRow, error)

	JobStarted(ctx context.Context, started time.Time) error
	JobCompleted(ctx context.Context, completed time.Time) error
	GetJobStatus(ctx context.Context) (JobStatus, error)

	ListDataMapsForAgent(ctx context.Context, agentID int64) ([]DataMap, error)
	UpsertDataMap(ctx context.Context, arg UpsertDataMapParams) (DataMap, error)
	UpsertDataMapAgent(ctx context.Context, arg DataMapAgent) error
	ListLookups(ctx context.Context) ([]Lookup, error)
	UpsertLookup(ctx context.Context, arg UpsertLookupParams) error

	ListPendingBootstrapData(ctx context.Context, apiServerID int64) ([]PendingBootstrapData, error)
	MarkBootstrapDataProcessed(ctx context.Context, arg BootstrapDataApiServer) error
	UpsertBootstrapData(ctx context.Context, arg UpsertBootstrapDataParams) (BootstrapData, error)
	UpsertBootstrapDataAgent(ctx context.Context, arg BootstrapDataAgent) error

	InsertIngestionLog(ctx context.Context, arg InsertIngestionLogParams) error
}

var _ Querier = (*Queries)(nil)

// StoreFull adds the transactional helpers implemented by Store.
type StoreFull interface {
	Querier
	TransitionFile(ctx context.Context, arg TransitionFileParams) (File, error)
	InTx(ctx context.Context, fn func(Querier) error) error
	Close()
}
