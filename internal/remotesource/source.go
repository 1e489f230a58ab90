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

// Package remotesource lists and fetches candidate files from the servers
// agents collect from.
package remotesource

import (
	"context"
	"fmt"
	"io"
	"net"
	"path"
	"slices"
	"strings"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

// RemoteSource is one kind of remote file server.
type RemoteSource interface {
	// ListFiles returns the remote paths of regular files in the agent
	// directory whose base name matches the agent's file pattern.
	ListFiles(ctx context.Context, agent ledgerdb.Agent) ([]string, error)
	// Fetch opens one remote file. The caller closes the reader.
	Fetch(ctx context.Context, agent ledgerdb.Agent, remotePath string) (io.ReadCloser, error)
}

const (
	DefaultFTPSPort = 990
	DefaultSFTPPort = 22
)

// Resolver selects the RemoteSource for an agent type.
type Resolver struct {
	sources map[string]RemoteSource
}

// NewResolver wires the FTPS and SFTP sources with the remote settings.
// Manual and PowerShell agents get a source that never lists anything.
func NewResolver(cfg config.RemoteConfig) *Resolver {
	return NewResolverWith(map[string]RemoteSource{
		ledgerdb.AgentTypeFTPS:       NewFTPS(cfg),
		ledgerdb.AgentTypeSFTP:       NewSFTP(cfg),
		ledgerdb.AgentTypeManual:     EmptySource{},
		ledgerdb.AgentTypePowerShell: EmptySource{},
	})
}

func NewResolverWith(sources map[string]RemoteSource) *Resolver {
	return &Resolver{sources: sources}
}

func (r *Resolver) For(agentType string) (RemoteSource, error) {
	src, ok := r.sources[agentType]
	if !ok {
		return nil, fmt.Errorf("no remote source for agent type %q", agentType)
	}
	return src, nil
}

// EmptySource serves agents whose files arrive out of band.
type EmptySource struct{}

func (EmptySource) ListFiles(context.Context, ledgerdb.Agent) ([]string, error) {
	return []string{}, nil
}

func (EmptySource) Fetch(_ context.Context, agent ledgerdb.Agent, remotePath string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("agent %s (%s) has no remote source to fetch %s from", agent.Name, agent.AgentType, remotePath)
}

// MatchPattern reports whether name matches the glob pattern. Matching is
// case-insensitive and anchored; an empty pattern matches everything.
func MatchPattern(pattern, name string) (bool, error) {
	if pattern == "" {
		return true, nil
	}
	return path.Match(strings.ToLower(pattern), strings.ToLower(name))
}

// selectFiles filters a directory listing down to matching regular files,
// returned as remote paths in name order.
func selectFiles(dir, pattern string, names []string) ([]string, error) {
	files := []string{}
	for _, name := range names {
		ok, err := MatchPattern(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("file pattern %q: %w", pattern, err)
		}
		if ok {
			files = append(files, path.Join(dir, name))
		}
	}
	slices.Sort(files)
	return files, nil
}

func hostPort(agent ledgerdb.Agent, defaultPort int) string {
	port := defaultPort
	if agent.Port != nil && *agent.Port > 0 {
		port = int(*agent.Port)
	}
	host := agent.Url
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host = strings.TrimRight(host, "/")
	return fmt.Sprintf("%s:%d", host, port)
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
