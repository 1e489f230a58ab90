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

// Package bootstrap loads targets, agents, schedules, data maps, lookups and
// bootstrap payloads from a YAML document into the ledger.
package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/dataimport/internal/logctx"
	"github.com/cardinalhq/dataimport/internal/secrets"
	"github.com/cardinalhq/dataimport/internal/transform"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

// SupportedVersion is the document version this binary imports. A document
// without a version is read as this one.
const SupportedVersion = 1

type Document struct {
	Version    int         `yaml:"version"`
	ApiServers []ApiServer `yaml:"api_servers"`
	DataMaps   []DataMap   `yaml:"data_maps"`
	Agents     []Agent     `yaml:"agents"`
	Lookups    []Lookup    `yaml:"lookups"`
	// BootstrapData are payloads posted to a target before any file.
	BootstrapData []BootstrapData `yaml:"bootstrap_data"`
}

type ApiServer struct {
	Name         string `yaml:"name"`
	ApiVersion   string `yaml:"api_version"`
	Url          string `yaml:"url"`
	TokenUrl     string `yaml:"token_url"`
	AuthorizeUrl string `yaml:"authorize_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type Agent struct {
	Name        string     `yaml:"name"`
	ApiServer   string     `yaml:"api_server"`
	AgentType   string     `yaml:"agent_type"`
	Url         string     `yaml:"url"`
	Port        *int32     `yaml:"port"`
	Username    string     `yaml:"username"`
	Password    string     `yaml:"password"`
	Directory   string     `yaml:"directory"`
	FilePattern string     `yaml:"file_pattern"`
	Enabled     *bool      `yaml:"enabled"`
	Archived    bool       `yaml:"archived"`
	RunOrder    *int32     `yaml:"run_order"`
	Schedules   []Schedule `yaml:"schedules"`
	// DataMaps are applied in list order.
	DataMaps []string `yaml:"data_maps"`
	// BootstrapData are posted in list order.
	BootstrapData []string `yaml:"bootstrap_data"`
}

// Schedule is a weekly trigger. Day is a weekday name or 0 (Sunday) to 6;
// At is "HH:MM".
type Schedule struct {
	Day string `yaml:"day"`
	At  string `yaml:"at"`
}

type DataMap struct {
	Name         string    `yaml:"name"`
	ResourcePath string    `yaml:"resource_path"`
	Map          yaml.Node `yaml:"map"`
}

// BootstrapData is a JSON object, or an array of them, posted to
// ResourcePath. Data may be written as YAML or as a JSON string.
type BootstrapData struct {
	Name         string    `yaml:"name"`
	ResourcePath string    `yaml:"resource_path"`
	Data         yaml.Node `yaml:"data"`
}

type Lookup struct {
	SourceTable string `yaml:"source_table"`
	Key         string `yaml:"key"`
	Value       string `yaml:"value"`
}

// Summary counts what an import wrote.
type Summary struct {
	ApiServers    int
	DataMaps      int
	Agents        int
	Schedules     int
	Lookups       int
	BootstrapData int
}

// Parse decodes a bootstrap document. Unknown keys are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("parse bootstrap document: %w", err)
	}
	return &doc, nil
}

// ParseFile decodes the bootstrap document at filename.
func ParseFile(filename string) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(data))
}

type Store interface {
	InTx(ctx context.Context, fn func(ledgerdb.Querier) error) error
}

type Option func(*plan)

// WithClock sets the time stamped on bootstrap payloads that changed.
func WithClock(now func() time.Time) Option {
	return func(p *plan) { p.now = now }
}

// WithRecipients encrypts client ids, client secrets and agent passwords to
// the given age recipients before they are stored.
func WithRecipients(keys ...string) Option {
	return func(p *plan) { p.recipients = keys }
}

// Import validates doc and upserts everything it names in one transaction.
// Existing rows are matched by name; an agent's schedules are replaced.
func Import(ctx context.Context, store Store, doc *Document, opts ...Option) (Summary, error) {
	p, err := doc.resolve()
	if err != nil {
		return Summary{}, err
	}
	for _, o := range opts {
		o(p)
	}

	var sum Summary
	err = store.InTx(ctx, func(q ledgerdb.Querier) error {
		sum = Summary{}
		return p.apply(ctx, q, &sum)
	})
	if err != nil {
		return Summary{}, err
	}
	logctx.FromContext(ctx).Info("Bootstrap import complete",
		slog.Int("apiServers", sum.ApiServers),
		slog.Int("dataMaps", sum.DataMaps),
		slog.Int("agents", sum.Agents),
		slog.Int("schedules", sum.Schedules),
		slog.Int("lookups", sum.Lookups),
		slog.Int("bootstrapData", sum.BootstrapData))
	return sum, nil
}

type trigger struct {
	day, hour, minute int16
}

type plannedAgent struct {
	Agent
	triggers []trigger
}

type plan struct {
	doc        *Document
	maps       map[string]json.RawMessage
	payloads   map[string]json.RawMessage
	agents     []plannedAgent
	recipients []string
	now        func() time.Time
}

func (p *plan) seal(v string) (string, error) {
	if v == "" || len(p.recipients) == 0 {
		return v, nil
	}
	return secrets.Encrypt(v, p.recipients...)
}

// resolve checks every reference and converts data maps before anything is
// written. All problems are reported together.
func (doc *Document) resolve() (*plan, error) {
	var errs *multierror.Error
	p := &plan{
		doc:      doc,
		maps:     map[string]json.RawMessage{},
		payloads: map[string]json.RawMessage{},
		now:      time.Now,
	}

	if doc.Version != 0 && doc.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported bootstrap version %d, expected %d", doc.Version, SupportedVersion)
	}

	servers := map[string]bool{}
	for i, s := range doc.ApiServers {
		if s.Name == "" || s.Url == "" {
			errs = multierror.Append(errs, fmt.Errorf("api_servers[%d]: name and url are required", i))
			continue
		}
		servers[s.Name] = true
	}

	for i, dm := range doc.DataMaps {
		if dm.Name == "" || dm.ResourcePath == "" {
			errs = multierror.Append(errs, fmt.Errorf("data_maps[%d]: name and resource_path are required", i))
			continue
		}
		raw, err := mapJSON(&dm.Map)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("data map %s: %w", dm.Name, err))
			continue
		}
		if _, err := transform.ParseDefinition(raw); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("data map %s: %w", dm.Name, err))
			continue
		}
		p.maps[dm.Name] = raw
	}

	for i, bd := range doc.BootstrapData {
		if bd.Name == "" || bd.ResourcePath == "" {
			errs = multierror.Append(errs, fmt.Errorf("bootstrap_data[%d]: name and resource_path are required", i))
			continue
		}
		if bd.Data.Kind == 0 {
			errs = multierror.Append(errs, fmt.Errorf("bootstrap data %s: data is required", bd.Name))
			continue
		}
		raw, err := mapJSON(&bd.Data)
		if err == nil && !json.Valid(raw) {
			err = errors.New("data is not valid JSON")
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("bootstrap data %s: %w", bd.Name, err))
			continue
		}
		p.payloads[bd.Name] = raw
	}

	for i, a := range doc.Agents {
		if a.Name == "" {
			errs = multierror.Append(errs, fmt.Errorf("agents[%d]: name is required", i))
			continue
		}
		switch a.AgentType {
		case ledgerdb.AgentTypeFTPS, ledgerdb.AgentTypeSFTP, ledgerdb.AgentTypeManual, ledgerdb.AgentTypePowerShell:
		default:
			errs = multierror.Append(errs, fmt.Errorf("agent %s: unknown agent_type %q", a.Name, a.AgentType))
		}
		if a.ApiServer != "" && !servers[a.ApiServer] {
			errs = multierror.Append(errs, fmt.Errorf("agent %s: api_server %q is not defined in this document", a.Name, a.ApiServer))
		}
		for _, m := range a.DataMaps {
			if _, ok := p.maps[m]; !ok {
				errs = multierror.Append(errs, fmt.Errorf("agent %s: data map %q is not defined in this document", a.Name, m))
			}
		}
		for _, b := range a.BootstrapData {
			if _, ok := p.payloads[b]; !ok {
				errs = multierror.Append(errs, fmt.Errorf("agent %s: bootstrap data %q is not defined in this document", a.Name, b))
			}
		}
		pa := plannedAgent{Agent: a}
		for _, s := range a.Schedules {
			tr, err := parseSchedule(s)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("agent %s: %w", a.Name, err))
				continue
			}
			pa.triggers = append(pa.triggers, tr)
		}
		p.agents = append(p.agents, pa)
	}

	for i, l := range doc.Lookups {
		if strings.TrimSpace(l.SourceTable) == "" || strings.TrimSpace(l.Key) == "" {
			errs = multierror.Append(errs, fmt.Errorf("lookups[%d]: source_table and key are required", i))
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *plan) apply(ctx context.Context, q ledgerdb.Querier, sum *Summary) error {
	serverIDs := map[string]int64{}
	for _, s := range p.doc.ApiServers {
		clientID, err := p.seal(s.ClientID)
		if err != nil {
			return fmt.Errorf("api server %s: seal client_id: %w", s.Name, err)
		}
		clientSecret, err := p.seal(s.ClientSecret)
		if err != nil {
			return fmt.Errorf("api server %s: seal client_secret: %w", s.Name, err)
		}
		row, err := q.UpsertApiServer(ctx, ledgerdb.UpsertApiServerParams{
			Name:         s.Name,
			ApiVersion:   s.ApiVersion,
			Url:          s.Url,
			TokenUrl:     s.TokenUrl,
			AuthorizeUrl: s.AuthorizeUrl,
			ClientID:     clientID,
			ClientSecret: clientSecret,
		})
		if err != nil {
			return fmt.Errorf("api server %s: %w", s.Name, err)
		}
		serverIDs[s.Name] = row.ID
		sum.ApiServers++
	}

	mapIDs := map[string]int64{}
	for _, dm := range p.doc.DataMaps {
		row, err := q.UpsertDataMap(ctx, ledgerdb.UpsertDataMapParams{
			Name:         dm.Name,
			ResourcePath: dm.ResourcePath,
			Map:          p.maps[dm.Name],
		})
		if err != nil {
			return fmt.Errorf("data map %s: %w", dm.Name, err)
		}
		mapIDs[dm.Name] = row.ID
		sum.DataMaps++
	}

	payloadIDs := map[string]int64{}
	for _, bd := range p.doc.BootstrapData {
		row, err := q.UpsertBootstrapData(ctx, ledgerdb.UpsertBootstrapDataParams{
			Name:         bd.Name,
			ResourcePath: bd.ResourcePath,
			Data:         p.payloads[bd.Name],
			UpdateDate:   p.now(),
		})
		if err != nil {
			return fmt.Errorf("bootstrap data %s: %w", bd.Name, err)
		}
		payloadIDs[bd.Name] = row.ID
		sum.BootstrapData++
	}

	for _, a := range p.agents {
		var serverID *int64
		if id, ok := serverIDs[a.ApiServer]; ok {
			serverID = &id
		}
		enabled := true
		if a.Enabled != nil {
			enabled = *a.Enabled
		}
		password, err := p.seal(a.Password)
		if err != nil {
			return fmt.Errorf("agent %s: seal password: %w", a.Name, err)
		}
		row, err := q.UpsertAgent(ctx, ledgerdb.UpsertAgentParams{
			ApiServerID: serverID,
			Name:        a.Name,
			AgentType:   a.AgentType,
			Url:         a.Url,
			Port:        a.Port,
			Username:    a.Username,
			Password:    password,
			Directory:   a.Directory,
			FilePattern: a.FilePattern,
			Enabled:     enabled,
			Archived:    a.Archived,
			RunOrder:    a.RunOrder,
		})
		if err != nil {
			return fmt.Errorf("agent %s: %w", a.Name, err)
		}
		sum.Agents++

		if err := q.DeleteAgentSchedules(ctx, row.ID); err != nil {
			return fmt.Errorf("agent %s: clear schedules: %w", a.Name, err)
		}
		for _, tr := range a.triggers {
			if err := q.InsertAgentSchedule(ctx, ledgerdb.InsertAgentScheduleParams{
				AgentID: row.ID,
				Day:     tr.day,
				Hour:    tr.hour,
				Minute:  tr.minute,
			}); err != nil {
				return fmt.Errorf("agent %s: schedule: %w", a.Name, err)
			}
			sum.Schedules++
		}

		for i, m := range a.DataMaps {
			if err := q.UpsertDataMapAgent(ctx, ledgerdb.DataMapAgent{
				DataMapID:       mapIDs[m],
				AgentID:         row.ID,
				ProcessingOrder: int32(i),
			}); err != nil {
				return fmt.Errorf("agent %s: data map %s: %w", a.Name, m, err)
			}
		}

		for i, b := range a.BootstrapData {
			if err := q.UpsertBootstrapDataAgent(ctx, ledgerdb.BootstrapDataAgent{
				BootstrapDataID: payloadIDs[b],
				AgentID:         row.ID,
				ProcessingOrder: int32(i),
			}); err != nil {
				return fmt.Errorf("agent %s: bootstrap data %s: %w", a.Name, b, err)
			}
		}
	}

	for _, l := range p.doc.Lookups {
		if err := q.UpsertLookup(ctx, ledgerdb.UpsertLookupParams{
			SourceTable: strings.TrimSpace(l.SourceTable),
			Key:         strings.TrimSpace(l.Key),
			Value:       l.Value,
		}); err != nil {
			return fmt.Errorf("lookup %s/%s: %w", l.SourceTable, l.Key, err)
		}
		sum.Lookups++
	}
	return nil
}

// mapJSON converts the YAML map node to JSON. A scalar node is taken as a
// JSON string holding the definition.
func mapJSON(n *yaml.Node) (json.RawMessage, error) {
	if n.Kind == 0 {
		return nil, fmt.Errorf("map is required")
	}
	if n.Kind == yaml.ScalarNode {
		return json.RawMessage(n.Value), nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

var weekdays = map[string]time.Weekday{}

func init() {
	for d := time.Sunday; d <= time.Saturday; d++ {
		weekdays[strings.ToLower(d.String())] = d
		weekdays[strings.ToLower(d.String()[:3])] = d
	}
}

func parseSchedule(s Schedule) (trigger, error) {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(s.Day))]
	if !ok {
		n, err := strconv.Atoi(strings.TrimSpace(s.Day))
		if err != nil || n < 0 || n > 6 {
			return trigger{}, fmt.Errorf("schedule day %q is not a weekday", s.Day)
		}
		day = time.Weekday(n)
	}
	at, err := time.Parse("15:04", strings.TrimSpace(s.At))
	if err != nil {
		return trigger{}, fmt.Errorf("schedule time %q is not HH:MM", s.At)
	}
	return trigger{day: int16(day), hour: int16(at.Hour()), minute: int16(at.Minute())}, nil
}
