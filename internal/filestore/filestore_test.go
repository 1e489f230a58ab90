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

package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/internal/cloudstorage"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

func newLocalStore(t *testing.T, production bool) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := New(context.Background(), config.StorageConfig{
		FileMode:   config.FileModeLocal,
		Root:       root,
		Production: production,
	}, nil)
	require.NoError(t, err)
	s.tmpdir = t.TempDir()
	s.newID = func() string { return "0000-fixed" }
	return s, root
}

func TestLocalStoreLayout(t *testing.T) {
	s, root := newLocalStore(t, false)
	agent := ledgerdb.Agent{ID: 7, Name: "ftps1"}

	url, rows, err := s.Store(context.Background(), "orders.csv", strings.NewReader("id,total\n1,10\n2,20\n"), agent)
	require.NoError(t, err)
	assert.Equal(t, int32(2), rows)

	want := filepath.Join(root, "Local", "dataimport", "agent-7", "0000-fixed-orders.csv")
	assert.Equal(t, "file://"+filepath.ToSlash(want), url)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "id,total\n1,10\n2,20\n", string(data))
}

func TestLocalStoreProductionOmitsMode(t *testing.T) {
	s, root := newLocalStore(t, true)

	url, _, err := s.Store(context.Background(), "a.txt", strings.NewReader("x\n"), ledgerdb.Agent{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(root, "dataimport", "agent-1", "0000-fixed-a.txt")), url)
}

func TestLocalStoreDownloadAndDelete(t *testing.T) {
	s, root := newLocalStore(t, false)
	s.newID = func() string { return "abc" }

	url, rows, err := s.Store(context.Background(), "b.txt", strings.NewReader("l1\nl2\nl3"), ledgerdb.Agent{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, int32(3), rows)

	file := ledgerdb.File{ID: 11, AgentID: 3, FileName: "b.txt", Url: url}
	local, err := s.Download(context.Background(), file)
	require.NoError(t, err)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "l1\nl2\nl3", string(data))
	require.NoError(t, os.Remove(local))

	require.NoError(t, s.Delete(context.Background(), file))
	_, err = os.Stat(filepath.Join(root, "Local", "dataimport", "agent-3"))
	assert.True(t, os.IsNotExist(err))

	_, err = s.Download(context.Background(), file)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestStoreRejectsForeignURL(t *testing.T) {
	s, _ := newLocalStore(t, false)
	err := s.Delete(context.Background(), ledgerdb.File{ID: 1, Url: "s3://bucket/key.csv"})
	assert.Error(t, err)
}

func TestCloudStoreUsesBucketAndPrefix(t *testing.T) {
	base := t.TempDir()
	s, err := New(context.Background(), config.StorageConfig{
		FileMode: config.FileModeCloud,
		Root:     "imports",
		Cloud:    config.CloudStorageConfig{Provider: "aws", Bucket: "bucket-a"},
	}, cloudstorage.NewFileClientProvider(base))
	require.NoError(t, err)
	s.tmpdir = t.TempDir()
	s.newID = func() string { return "u1" }

	_, rows, err := s.Store(context.Background(), "c.csv", strings.NewReader("h\n1\n"), ledgerdb.Agent{ID: 9})
	require.NoError(t, err)
	assert.Equal(t, int32(1), rows)

	_, err = os.Stat(filepath.Join(base, "bucket-a", "imports", "Cloud", "dataimport", "agent-9", "u1-c.csv"))
	assert.NoError(t, err)
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{FileMode: "Tape"}, nil)
	assert.Error(t, err)
}
