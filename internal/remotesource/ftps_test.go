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
	"crypto/tls"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

type fakeFTP struct {
	files    map[string]string
	entries  []*ftp.Entry
	loginErr error
	user     string
	password string
	quits    int
}

func (f *fakeFTP) Login(user, password string) error {
	f.user, f.password = user, password
	return f.loginErr
}

func (f *fakeFTP) List(string) ([]*ftp.Entry, error) {
	return f.entries, nil
}

func (f *fakeFTP) Retr(path string) (io.ReadCloser, error) {
	body, ok := f.files[path]
	if !ok {
		return nil, errors.New("550 not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeFTP) Quit() error {
	f.quits++
	return nil
}

func newFakeFTPS(fake *fakeFTP, captured **tls.Config) *FTPS {
	s := NewFTPS(config.RemoteConfig{AllowTestCertificates: true, Timeout: time.Second})
	s.dial = func(_ context.Context, addr string, tlsConfig *tls.Config, _ time.Duration) (ftpConn, error) {
		if captured != nil {
			*captured = tlsConfig
		}
		return fake, nil
	}
	return s
}

func TestFTPSListFiles(t *testing.T) {
	fake := &fakeFTP{
		entries: []*ftp.Entry{
			{Name: "b.csv", Type: ftp.EntryTypeFile},
			{Name: "a.csv", Type: ftp.EntryTypeFile},
			{Name: "archive", Type: ftp.EntryTypeFolder},
			{Name: "notes.txt", Type: ftp.EntryTypeFile},
		},
	}
	var tlsConfig *tls.Config
	s := newFakeFTPS(fake, &tlsConfig)

	agent := ledgerdb.Agent{Name: "ftps1", Url: "ftp.example.com", Username: "u", Password: "p", Directory: "/out", FilePattern: "*.csv"}
	files, err := s.ListFiles(context.Background(), agent)
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/a.csv", "/out/b.csv"}, files)
	assert.Equal(t, "u", fake.user)
	assert.Equal(t, "p", fake.password)
	assert.Equal(t, 1, fake.quits)
	require.NotNil(t, tlsConfig)
	assert.True(t, tlsConfig.InsecureSkipVerify)
	assert.Equal(t, "ftp.example.com", tlsConfig.ServerName)
}

func TestFTPSLoginFailure(t *testing.T) {
	fake := &fakeFTP{loginErr: errors.New("530 login incorrect")}
	s := newFakeFTPS(fake, nil)

	_, err := s.ListFiles(context.Background(), ledgerdb.Agent{Url: "h", Username: "u"})
	assert.ErrorContains(t, err, "530")
	assert.Equal(t, 1, fake.quits)
}

func TestFTPSFetchQuitsOnClose(t *testing.T) {
	fake := &fakeFTP{files: map[string]string{"/out/a.csv": "id\n1\n"}}
	s := newFakeFTPS(fake, nil)

	r, err := s.Fetch(context.Background(), ledgerdb.Agent{Url: "h"}, "/out/a.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(body))
	assert.Equal(t, 0, fake.quits)
	require.NoError(t, r.Close())
	assert.Equal(t, 1, fake.quits)

	_, err = s.Fetch(context.Background(), ledgerdb.Agent{Url: "h"}, "/out/missing.csv")
	assert.Error(t, err)
	assert.Equal(t, 2, fake.quits)
}
