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

package remotesource

import (
	"context"
	"io"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

type pipeConn struct {
	io.Reader
	io.WriteCloser
}

// inMemorySFTP returns an SFTP source whose connections reach an in-process
// server backed by a shared in-memory filesystem.
func inMemorySFTP(t *testing.T) (*SFTP, func() *sftp.Client) {
	t.Helper()
	handlers := sftp.InMemHandler()

	connect := func(context.Context, ledgerdb.Agent) (*sftp.Client, io.Closer, error) {
		c2sR, c2sW := io.Pipe()
		s2cR, s2cW := io.Pipe()
		server := sftp.NewRequestServer(pipeConn{c2sR, s2cW}, handlers)
		go func() { _ = server.Serve() }()

		client, err := sftp.NewClientPipe(s2cR, c2sW)
		if err != nil {
			_ = server.Close()
			return nil, nil, err
		}
		return client, server, nil
	}

	s := NewSFTP(config.RemoteConfig{})
	s.connect = connect

	seed := func() *sftp.Client {
		client, server, err := connect(context.Background(), ledgerdb.Agent{})
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = client.Close()
			_ = server.Close()
		})
		return client
	}
	return s, seed
}

func writeRemote(t *testing.T, c *sftp.Client, path, body string) {
	t.Helper()
	f, err := c.Create(path)
	require.NoError(t, err)
	_, err = f.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestSFTPListAndFetch(t *testing.T) {
	s, seed := inMemorySFTP(t)
	c := seed()
	require.NoError(t, c.Mkdir("/in"))
	require.NoError(t, c.Mkdir("/in/sub.csv"))
	writeRemote(t, c, "/in/b.CSV", "h\n2\n")
	writeRemote(t, c, "/in/a.csv", "h\n1\n")
	writeRemote(t, c, "/in/skip.txt", "x\n")

	agent := ledgerdb.Agent{Name: "sftp1", AgentType: ledgerdb.AgentTypeSFTP, Directory: "/in", FilePattern: "*.csv"}
	files, err := s.ListFiles(context.Background(), agent)
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/a.csv", "/in/b.CSV"}, files)

	r, err := s.Fetch(context.Background(), agent, "/in/a.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "h\n1\n", string(body))
}

func TestSFTPListMissingDirectory(t *testing.T) {
	s, _ := inMemorySFTP(t)
	_, err := s.ListFiles(context.Background(), ledgerdb.Agent{Directory: "/nope"})
	assert.Error(t, err)
}

func TestSFTPFetchMissingFile(t *testing.T) {
	s, _ := inMemorySFTP(t)
	_, err := s.Fetch(context.Background(), ledgerdb.Agent{}, "/nope.csv")
	assert.Error(t, err)
}

func TestSFTPHostKeyCallbackWithoutKnownHosts(t *testing.T) {
	s := NewSFTP(config.RemoteConfig{})
	cb, err := s.hostKeyCallback(ledgerdb.Agent{Name: "x"})
	require.NoError(t, err)
	assert.NotNil(t, cb)

	s = NewSFTP(config.RemoteConfig{KnownHostsFile: "/does/not/exist"})
	_, err = s.hostKeyCallback(ledgerdb.Agent{Name: "x"})
	assert.Error(t, err)
}
