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

package testhelpers

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/dataimport/ledgerdb"
)

// MemLedger is an in-memory ledgerdb.StoreFull for unit tests. Missing rows
// return pgx.ErrNoRows like the real store.
type MemLedger struct {
	mu sync.Mutex

	nextID int64

	ApiServers     []ledgerdb.ApiServer
	Agents         []ledgerdb.Agent
	Schedules      []ledgerdb.AgentSchedule
	Files          []ledgerdb.File
	DataMaps       []ledgerdb.DataMap
	DataMapAgents  []ledgerdb.DataMapAgent
	Lookups        []ledgerdb.Lookup
	IngestionLogs  []ledgerdb.InsertIngestionLogParams
	BootstrapData  []ledgerdb.BootstrapData
	BootstrapLinks []ledgerdb.BootstrapDataAgent
	BootstrapSent  []ledgerdb.BootstrapDataApiServer
	Job            ledgerdb.JobStatus
	StatusHistory  map[int64][]ledgerdb.FileStatus
	FailLogFile    error
	FailJobStarted error
	// FailFileStatus fails UpdateFileStatus for the listed target statuses.
	FailFileStatus map[ledgerdb.FileStatus]error
}

var _ ledgerdb.StoreFull = (*MemLedger)(nil)

func NewMemLedger() *MemLedger {
	return &MemLedger{
		Job:           ledgerdb.JobStatus{ID: 1},
		StatusHistory: map[int64][]ledgerdb.FileStatus{},
	}
}

// Writes on a done context fail the way they do against a real pool.
func writable(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemLedger) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemLedger) Close() {}

// AddApiServer registers a target and returns it with its id filled in.
func (m *MemLedger) AddApiServer(s ledgerdb.ApiServer) ledgerdb.ApiServer {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	m.ApiServers = append(m.ApiServers, s)
	return s
}

// AddAgent registers an agent with optional schedules.
func (m *MemLedger) AddAgent(a ledgerdb.Agent, schedules ...ledgerdb.AgentSchedule) ledgerdb.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	m.Agents = append(m.Agents, a)
	for _, s := range schedules {
		s.ID = m.id()
		s.AgentID = a.ID
		m.Schedules = append(m.Schedules, s)
	}
	return a
}

// AddDataMap registers a data map and links it to the agent.
func (m *MemLedger) AddDataMap(agentID int64, order int32, dm ledgerdb.DataMap) ledgerdb.DataMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	dm.ID = m.id()
	m.DataMaps = append(m.DataMaps, dm)
	m.DataMapAgents = append(m.DataMapAgents, ledgerdb.DataMapAgent{DataMapID: dm.ID, AgentID: agentID, ProcessingOrder: order})
	return dm
}

// AddBootstrapData registers a payload and links it to the agents with the
// given processing order.
func (m *MemLedger) AddBootstrapData(bd ledgerdb.BootstrapData, order int32, agentIDs ...int64) ledgerdb.BootstrapData {
	m.mu.Lock()
	defer m.mu.Unlock()
	bd.ID = m.id()
	m.BootstrapData = append(m.BootstrapData, bd)
	for _, id := range agentIDs {
		m.BootstrapLinks = append(m.BootstrapLinks, ledgerdb.BootstrapDataAgent{BootstrapDataID: bd.ID, AgentID: id, ProcessingOrder: order})
	}
	return bd
}

// TouchBootstrapData moves a payload's update date, as an edit would.
func (m *MemLedger) TouchBootstrapData(id int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.BootstrapData {
		if m.BootstrapData[i].ID == id {
			m.BootstrapData[i].UpdateDate = at
		}
	}
}

// AddFile inserts a file directly, bypassing transport.
func (m *MemLedger) AddFile(f ledgerdb.File) ledgerdb.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = m.id()
	m.Files = append(m.Files, f)
	m.StatusHistory[f.ID] = append(m.StatusHistory[f.ID], f.Status)
	return f
}

// FileByID returns a copy of the stored file.
func (m *MemLedger) FileByID(id int64) (ledgerdb.File, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.Files {
		if f.ID == id {
			return f, true
		}
	}
	return ledgerdb.File{}, false
}

// AgentByID returns a copy of the stored agent.
func (m *MemLedger) AgentByID(id int64) (ledgerdb.Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return ledgerdb.Agent{}, false
}

// History returns the statuses a file has passed through, in order.
func (m *MemLedger) History(id int64) []ledgerdb.FileStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.StatusHistory[id])
}

func (m *MemLedger) ListApiServers(_ context.Context) ([]ledgerdb.ApiServer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.ApiServers)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemLedger) GetApiServer(_ context.Context, id int64) (ledgerdb.ApiServer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.ApiServers {
		if s.ID == id {
			return s, nil
		}
	}
	return ledgerdb.ApiServer{}, pgx.ErrNoRows
}

func (m *MemLedger) UpsertApiServer(_ context.Context, arg ledgerdb.UpsertApiServerParams) (ledgerdb.ApiServer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := ledgerdb.ApiServer{
		Name:         arg.Name,
		ApiVersion:   arg.ApiVersion,
		Url:          arg.Url,
		TokenUrl:     arg.TokenUrl,
		AuthorizeUrl: arg.AuthorizeUrl,
		ClientID:     arg.ClientID,
		ClientSecret: arg.ClientSecret,
	}
	for i := range m.ApiServers {
		if m.ApiServers[i].Name == arg.Name {
			s.ID = m.ApiServers[i].ID
			m.ApiServers[i] = s
			return s, nil
		}
	}
	s.ID = m.id()
	m.ApiServers = append(m.ApiServers, s)
	return s, nil
}

func sortAgents(agents []ledgerdb.Agent) {
	sort.SliceStable(agents, func(i, j int) bool {
		a, b := agents[i].RunOrder, agents[j].RunOrder
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return agents[i].ID < agents[j].ID
	})
}

func (m *MemLedger) ListAgentsForApiServer(_ context.Context, apiServerID int64) ([]ledgerdb.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledgerdb.Agent
	for _, a := range m.Agents {
		if a.ApiServerID != nil && *a.ApiServerID == apiServerID && a.Enabled && !a.Archived {
			out = append(out, a)
		}
	}
	sortAgents(out)
	return out, nil
}

func (m *MemLedger) ListAgentsWithPendingFiles(_ context.Context, apiServerID int64) ([]ledgerdb.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledgerdb.Agent
	for _, a := range m.Agents {
		if a.ApiServerID == nil || *a.ApiServerID != apiServerID || !a.Enabled || a.Archived {
			continue
		}
		if slices.ContainsFunc(m.Files, func(f ledgerdb.File) bool { return f.AgentID == a.ID && f.Status.IsPending() }) {
			out = append(out, a)
		}
	}
	sortAgents(out)
	return out, nil
}

func (m *MemLedger) ListAllAgents(_ context.Context) ([]ledgerdb.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.Agents), nil
}

func (m *MemLedger) GetAgent(_ context.Context, id int64) (ledgerdb.Agent, error) {
	if a, ok := m.AgentByID(id); ok {
		return a, nil
	}
	return ledgerdb.Agent{}, pgx.ErrNoRows
}

func (m *MemLedger) SetAgentLastExecuted(ctx context.Context, arg ledgerdb.SetAgentLastExecutedParams) error {
	if err := writable(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Agents {
		if m.Agents[i].ID == arg.ID {
			t := arg.LastExecuted
			m.Agents[i].LastExecuted = &t
			return nil
		}
	}
	return nil
}

func (m *MemLedger) UpsertAgent(_ context.Context, arg ledgerdb.UpsertAgentParams) (ledgerdb.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := ledgerdb.Agent{
		ApiServerID: arg.ApiServerID,
		Name:        arg.Name,
		AgentType:   arg.AgentType,
		Url:         arg.Url,
		Port:        arg.Port,
		Username:    arg.Username,
		Password:    arg.Password,
		Directory:   arg.Directory,
		FilePattern: arg.FilePattern,
		Enabled:     arg.Enabled,
		Archived:    arg.Archived,
		RunOrder:    arg.RunOrder,
	}
	for i := range m.Agents {
		if m.Agents[i].Name == arg.Name {
			a.ID = m.Agents[i].ID
			a.LastExecuted = m.Agents[i].LastExecuted
			m.Agents[i] = a
			return a, nil
		}
	}
	a.ID = m.id()
	m.Agents = append(m.Agents, a)
	return a, nil
}

func (m *MemLedger) ListAgentSchedules(_ context.Context, agentIds []int64) ([]ledgerdb.AgentSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledgerdb.AgentSchedule
	for _, s := range m.Schedules {
		if slices.Contains(agentIds, s.AgentID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemLedger) DeleteAgentSchedules(_ context.Context, agentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Schedules = slices.DeleteFunc(m.Schedules, func(s ledgerdb.AgentSchedule) bool { return s.AgentID == agentID })
	return nil
}

func (m *MemLedger) InsertAgentSchedule(_ context.Context, arg ledgerdb.InsertAgentScheduleParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Schedules = append(m.Schedules, ledgerdb.AgentSchedule{
		ID:      m.id(),
		AgentID: arg.AgentID,
		Day:     arg.Day,
		Hour:    arg.Hour,
		Minute:  arg.Minute,
	})
	return nil
}

func (m *MemLedger) LogFile(ctx context.Context, arg ledgerdb.LogFileParams) (ledgerdb.File, error) {
	if err := writable(ctx); err != nil {
		return ledgerdb.File{}, err
	}
	if m.FailLogFile != nil {
		return ledgerdb.File{}, m.FailLogFile
	}
	return m.AddFile(ledgerdb.File{
		AgentID:    arg.AgentID,
		FileName:   arg.FileName,
		Url:        arg.Url,
		Status:     arg.Status,
		Message:    arg.Message,
		Rows:       arg.Rows,
		CreateDate: arg.CreateDate,
	}), nil
}

func (m *MemLedger) FileExists(_ context.Context, arg ledgerdb.FileExistsParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.ContainsFunc(m.Files, func(f ledgerdb.File) bool {
		return f.AgentID == arg.AgentID && f.FileName == arg.FileName && f.Status != ledgerdb.FileStatusCanceled
	}), nil
}

func (m *MemLedger) GetFile(_ context.Context, id int64) (ledgerdb.File, error) {
	if f, ok := m.FileByID(id); ok {
		return f, nil
	}
	return ledgerdb.File{}, pgx.ErrNoRows
}

func (m *MemLedger) filesWhere(keep func(ledgerdb.File) bool) []ledgerdb.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledgerdb.File
	for _, f := range m.Files {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreateDate.Equal(out[j].CreateDate) {
			return out[i].CreateDate.Before(out[j].CreateDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemLedger) GetFilesForAgent(_ context.Context, agentID int64) ([]ledgerdb.File, error) {
	return m.filesWhere(func(f ledgerdb.File) bool { return f.AgentID == agentID }), nil
}

func (m *MemLedger) ListPendingFiles(_ context.Context, agentID int64) ([]ledgerdb.File, error) {
	return m.filesWhere(func(f ledgerdb.File) bool { return f.AgentID == agentID && f.Status.IsPending() }), nil
}

func (m *MemLedger) UpdateFileStatus(ctx context.Context, arg ledgerdb.UpdateFileStatusParams) error {
	if err := writable(ctx); err != nil {
		return err
	}
	if err := m.FailFileStatus[arg.Status]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Files {
		if m.Files[i].ID == arg.ID {
			t := arg.UpdateDate
			m.Files[i].Status = arg.Status
			if arg.Message != nil {
				m.Files[i].Message = arg.Message
			}
			m.Files[i].UpdateDate = &t
			m.StatusHistory[arg.ID] = append(m.StatusHistory[arg.ID], arg.Status)
			return nil
		}
	}
	return nil
}

func (m *MemLedger) TransitionFile(ctx context.Context, arg ledgerdb.TransitionFileParams) (ledgerdb.File, error) {
	f, err := m.GetFile(ctx, arg.ID)
	if err != nil {
		return ledgerdb.File{}, fmt.Errorf("failed to load file %d: %w", arg.ID, err)
	}
	if arg.Allowed != nil && !arg.Allowed(f.Status) {
		return ledgerdb.File{}, &ledgerdb.InvalidTransitionError{FileID: f.ID, From: f.Status, To: arg.Status}
	}
	if err := m.UpdateFileStatus(ctx, ledgerdb.UpdateFileStatusParams{
		ID:         f.ID,
		Status:     arg.Status,
		Message:    arg.Message,
		UpdateDate: arg.UpdateDate,
	}); err != nil {
		return ledgerdb.File{}, err
	}
	f, _ = m.FileByID(f.ID)
	return f, nil
}

// InTx runs fn directly against the ledger; there is no rollback.
func (m *MemLedger) InTx(_ context.Context, fn func(ledgerdb.Querier) error) error {
	return fn(m)
}

func (m *MemLedger) ListActivity(_ context.Context, arg ledgerdb.ListActivityParams) ([]ledgerdb.ListActivityRow, error) {
	m.mu.Lock()
	agents := map[int64]ledgerdb.Agent{}
	for _, a := range m.Agents {
		agents[a.ID] = a
	}
	m.mu.Unlock()

	files := m.filesWhere(func(f ledgerdb.File) bool {
		if f.Status == ledgerdb.FileStatusCanceled || f.Status == ledgerdb.FileStatusDeleted {
			return false
		}
		if f.Status == ledgerdb.FileStatusLoaded && f.CreateDate.Before(arg.LoadedSince) {
			return false
		}
		if arg.ApiServerID != nil {
			a := agents[f.AgentID]
			return a.ApiServerID != nil && *a.ApiServerID == *arg.ApiServerID
		}
		return true
	})
	slices.Reverse(files)
	var out []ledgerdb.ListActivityRow
	for _, f := range files {
		if arg.RowLimit > 0 && int32(len(out)) >= arg.RowLimit {
			break
		}
		out = append(out, ledgerdb.ListActivityRow{File: f, AgentName: agents[f.AgentID].Name})
	}
	return out, nil
}

func (m *MemLedger) JobStarted(ctx context.Context, started time.Time) error {
	if err := writable(ctx); err != nil {
		return err
	}
	if m.FailJobStarted != nil {
		return m.FailJobStarted
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Job.Started = &started
	m.Job.Completed = nil
	return nil
}

func (m *MemLedger) JobCompleted(ctx context.Context, completed time.Time) error {
	if err := writable(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Job.Completed = &completed
	return nil
}

func (m *MemLedger) GetJobStatus(_ context.Context) (ledgerdb.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Job, nil
}

func (m *MemLedger) ListDataMapsForAgent(_ context.Context, agentID int64) ([]ledgerdb.DataMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := slices.Clone(m.DataMapAgents)
	sort.SliceStable(links, func(i, j int) bool { return links[i].ProcessingOrder < links[j].ProcessingOrder })
	var out []ledgerdb.DataMap
	for _, l := range links {
		if l.AgentID != agentID {
			continue
		}
		for _, dm := range m.DataMaps {
			if dm.ID == l.DataMapID {
				out = append(out, dm)
			}
		}
	}
	return out, nil
}

func (m *MemLedger) UpsertDataMap(_ context.Context, arg ledgerdb.UpsertDataMapParams) (ledgerdb.DataMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dm := ledgerdb.DataMap{Name: arg.Name, ResourcePath: arg.ResourcePath, Map: json.RawMessage(arg.Map)}
	for i := range m.DataMaps {
		if m.DataMaps[i].Name == arg.Name {
			dm.ID = m.DataMaps[i].ID
			m.DataMaps[i] = dm
			return dm, nil
		}
	}
	dm.ID = m.id()
	m.DataMaps = append(m.DataMaps, dm)
	return dm, nil
}

func (m *MemLedger) UpsertDataMapAgent(_ context.Context, arg ledgerdb.DataMapAgent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.DataMapAgents {
		if m.DataMapAgents[i].DataMapID == arg.DataMapID && m.DataMapAgents[i].AgentID == arg.AgentID {
			m.DataMapAgents[i].ProcessingOrder = arg.ProcessingOrder
			return nil
		}
	}
	m.DataMapAgents = append(m.DataMapAgents, arg)
	return nil
}

func (m *MemLedger) ListLookups(_ context.Context) ([]ledgerdb.Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.Lookups), nil
}

func (m *MemLedger) UpsertLookup(_ context.Context, arg ledgerdb.UpsertLookupParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Lookups {
		if m.Lookups[i].SourceTable == arg.SourceTable && m.Lookups[i].Key == arg.Key {
			m.Lookups[i].Value = arg.Value
			return nil
		}
	}
	m.Lookups = append(m.Lookups, ledgerdb.Lookup{ID: m.id(), SourceTable: arg.SourceTable, Key: arg.Key, Value: arg.Value})
	return nil
}

func (m *MemLedger) InsertIngestionLog(ctx context.Context, arg ledgerdb.InsertIngestionLogParams) error {
	if err := writable(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IngestionLogs = append(m.IngestionLogs, arg)
	return nil
}

func (m *MemLedger) ListPendingBootstrapData(_ context.Context, apiServerID int64) ([]ledgerdb.PendingBootstrapData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agents := map[int64]ledgerdb.Agent{}
	for _, a := range m.Agents {
		if a.ApiServerID != nil && *a.ApiServerID == apiServerID && a.Enabled && !a.Archived {
			agents[a.ID] = a
		}
	}
	var out []ledgerdb.PendingBootstrapData
	for _, bd := range m.BootstrapData {
		sent := slices.IndexFunc(m.BootstrapSent, func(s ledgerdb.BootstrapDataApiServer) bool {
			return s.BootstrapDataID == bd.ID && s.ApiServerID == apiServerID
		})
		if sent >= 0 && !bd.UpdateDate.After(m.BootstrapSent[sent].ProcessedDate) {
			continue
		}
		links := slices.Clone(m.BootstrapLinks)
		sort.SliceStable(links, func(i, j int) bool { return links[i].ProcessingOrder < links[j].ProcessingOrder })
		p := ledgerdb.PendingBootstrapData{BootstrapData: bd}
		for _, l := range links {
			a, ok := agents[l.AgentID]
			if l.BootstrapDataID != bd.ID || !ok {
				continue
			}
			if len(p.AgentNames) == 0 || l.ProcessingOrder < p.ProcessingOrder {
				p.ProcessingOrder = l.ProcessingOrder
			}
			p.AgentNames = append(p.AgentNames, a.Name)
		}
		if len(p.AgentNames) > 0 {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProcessingOrder != out[j].ProcessingOrder {
			return out[i].ProcessingOrder < out[j].ProcessingOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemLedger) MarkBootstrapDataProcessed(ctx context.Context, arg ledgerdb.BootstrapDataApiServer) error {
	if err := writable(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.BootstrapSent {
		if m.BootstrapSent[i].BootstrapDataID == arg.BootstrapDataID && m.BootstrapSent[i].ApiServerID == arg.ApiServerID {
			m.BootstrapSent[i].ProcessedDate = arg.ProcessedDate
			return nil
		}
	}
	m.BootstrapSent = append(m.BootstrapSent, arg)
	return nil
}

func (m *MemLedger) UpsertBootstrapData(_ context.Context, arg ledgerdb.UpsertBootstrapDataParams) (ledgerdb.BootstrapData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.BootstrapData {
		bd := &m.BootstrapData[i]
		if bd.Name != arg.Name {
			continue
		}
		if string(bd.Data) != string(arg.Data) || bd.ResourcePath != arg.ResourcePath {
			bd.UpdateDate = arg.UpdateDate
		}
		bd.ResourcePath = arg.ResourcePath
		bd.Data = arg.Data
		return *bd, nil
	}
	bd := ledgerdb.BootstrapData{
		ID:           m.id(),
		Name:         arg.Name,
		ResourcePath: arg.ResourcePath,
		Data:         arg.Data,
		UpdateDate:   arg.UpdateDate,
	}
	m.BootstrapData = append(m.BootstrapData, bd)
	return bd, nil
}

func (m *MemLedger) UpsertBootstrapDataAgent(_ context.Context, arg ledgerdb.BootstrapDataAgent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.BootstrapLinks {
		if m.BootstrapLinks[i].BootstrapDataID == arg.BootstrapDataID && m.BootstrapLinks[i].AgentID == arg.AgentID {
			m.BootstrapLinks[i].ProcessingOrder = arg.ProcessingOrder
			return nil
		}
	}
	m.BootstrapLinks = append(m.BootstrapLinks, arg)
	return nil
}
