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

package cloudstorage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dataimport/config"
)

func TestFileClientLifecycle(t *testing.T) {
	base := t.TempDir()
	provider := NewFileClientProvider(base)
	client, err := provider.NewClient(context.Background(), config.CloudStorageConfig{})
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	require.NoError(t, client.UploadObject(context.Background(), "bucket", "path/file.txt", src))

	tmp := t.TempDir()
	dst, size, notFound, err := client.DownloadObject(context.Background(), tmp, "bucket", "path/file.txt")
	require.NoError(t, err)
	require.False(t, notFound)
	require.Equal(t, int64(5), size)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	require.NoError(t, client.DeleteObject(context.Background(), "bucket", "path/file.txt"))
	_, _, notFound, err = client.DownloadObject(context.Background(), tmp, "bucket", "path/file.txt")
	require.NoError(t, err)
	require.True(t, notFound)
}

func TestFileClientDeletePrunesEmptyDirectories(t *testing.T) {
	base := t.TempDir()
	client, err := NewFileClient(base)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "src.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n1,2\n"), 0o644))

	require.NoError(t, client.UploadObject(context.Background(), "", "Local/dataimport/agent-1/x-a.csv", src))
	require.NoError(t, client.UploadObject(context.Background(), "", "Local/dataimport/agent-2/y-b.csv", src))

	require.NoError(t, client.DeleteObject(context.Background(), "", "Local/dataimport/agent-1/x-a.csv"))

	_, err = os.Stat(filepath.Join(base, "Local", "dataimport", "agent-1"))
	assert.True(t, os.IsNotExist(err), "emptied agent directory should be removed")
	_, err = os.Stat(filepath.Join(base, "Local", "dataimport", "agent-2", "y-b.csv"))
	assert.NoError(t, err, "sibling agent files must survive")

	require.NoError(t, client.DeleteObject(context.Background(), "", "Local/dataimport/agent-2/y-b.csv"))
	_, err = os.Stat(filepath.Join(base, "Local"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(base)
	assert.NoError(t, err, "base directory is never removed")
}

func TestFileClientDeleteMissingObject(t *testing.T) {
	client, err := NewFileClient(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, client.DeleteObject(context.Background(), "", "nope/missing.csv"))
}

func TestFileClientObjectURL(t *testing.T) {
	base := t.TempDir()
	client, err := NewFileClient(base)
	require.NoError(t, err)

	u := client.ObjectURL("", "Local/dataimport/agent-3/abc-data.csv")
	assert.True(t, strings.HasPrefix(u, "file:///"), u)
	assert.True(t, strings.HasSuffix(u, "/Local/dataimport/agent-3/abc-data.csv"), u)

	key, ok := client.ObjectKey("", u)
	assert.True(t, ok)
	assert.Equal(t, "Local/dataimport/agent-3/abc-data.csv", key)
}

func TestFileClientObjectKeyWithSpaces(t *testing.T) {
	client, err := NewFileClient(t.TempDir())
	require.NoError(t, err)

	u := client.ObjectURL("", "agent-1/abc-my report.csv")
	assert.Contains(t, u, "my%20report.csv")

	key, ok := client.ObjectKey("", u)
	assert.True(t, ok)
	assert.Equal(t, "agent-1/abc-my report.csv", key)
}

func TestFileClientObjectKeyRejectsForeignURLs(t *testing.T) {
	client, err := NewFileClient(t.TempDir())
	require.NoError(t, err)

	_, ok := client.ObjectKey("", "s3://bucket/key.csv")
	assert.False(t, ok)
	_, ok = client.ObjectKey("", "file:///somewhere/else/key.csv")
	assert.False(t, ok)
}

func TestS3ObjectURLRoundTrip(t *testing.T) {
	c := &s3Client{}
	u := c.ObjectURL("imports", "prod/dataimport/agent-4/x-a.csv")
	assert.Equal(t, "s3://imports/prod/dataimport/agent-4/x-a.csv", u)

	key, ok := c.ObjectKey("imports", u)
	assert.True(t, ok)
	assert.Equal(t, "prod/dataimport/agent-4/x-a.csv", key)

	_, ok = c.ObjectKey("other", u)
	assert.False(t, ok)
}

func TestAzureObjectURLRoundTrip(t *testing.T) {
	c := &azureClient{endpoint: "https://acct.blob.core.windows.net"}
	u := c.ObjectURL("container", "dataimport/agent-4/x-a.csv")
	assert.Equal(t, "https://acct.blob.core.windows.net/container/dataimport/agent-4/x-a.csv", u)

	key, ok := c.ObjectKey("container", u)
	assert.True(t, ok)
	assert.Equal(t, "dataimport/agent-4/x-a.csv", key)
}

func TestFileClientPreservesFileNames(t *testing.T) {
	client, err := NewFileClient(t.TempDir())
	require.NoError(t, err)

	testCases := []struct {
		name    string
		key     string
		content []byte
	}{
		{"csv", "agent-1/abc-orders.csv", []byte("id\n1\n")},
		{"text", "agent-1/abc-notes.txt", []byte("line one\nline two\n")},
		{"no extension", "agent-1/abc-README", []byte("readme")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := filepath.Join(t.TempDir(), "src")
			require.NoError(t, os.WriteFile(src, tc.content, 0o644))
			require.NoError(t, client.UploadObject(context.Background(), "", tc.key, src))

			dst, size, notFound, err := client.DownloadObject(context.Background(), t.TempDir(), "", tc.key)
			require.NoError(t, err)
			require.False(t, notFound)
			require.Equal(t, int64(len(tc.content)), size)
			require.True(t, strings.HasSuffix(filepath.Base(dst), filepath.Base(tc.key)))
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("a/b/FILE.CSV"))
	assert.Equal(t, "application/octet-stream", contentType("a/b/file.txt"))
}

func TestCloudManagersRejectUnknownProvider(t *testing.T) {
	_, err := NewCloudManagers().NewClient(context.Background(), config.CloudStorageConfig{Provider: "gcp", Bucket: "b"})
	assert.ErrorContains(t, err, "unsupported cloud provider: gcp")
}
