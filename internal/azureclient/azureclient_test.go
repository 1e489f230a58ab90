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
package azureclient

import (
	"context"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dataimport/config"
)

type staticCredential struct{}

func (staticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func TestBlobEndpoint(t *testing.T) {
	assert.Equal(t, "https://acct.blob.core.windows.net/",
		BlobEndpoint(config.CloudStorageConfig{StorageAccount: "acct"}))
	assert.Equal(t, "http://127.0.0.1:10000/devstoreaccount1",
		BlobEndpoint(config.CloudStorageConfig{StorageAccount: "devstoreaccount1", Endpoint: "http://127.0.0.1:10000/devstoreaccount1"}))
}

func TestBlobForRequiresAccount(t *testing.T) {
	m := newManager(staticCredential{})
	_, err := m.BlobFor(context.Background(), config.CloudStorageConfig{Provider: "azure", Bucket: "imports"})
	assert.ErrorContains(t, err, "storage account or endpoint is required")
}

func TestBlobForCachesPerEndpoint(t *testing.T) {
	m := newManager(staticCredential{})
	ctx := context.Background()

	a, err := m.BlobFor(ctx, config.CloudStorageConfig{StorageAccount: "acct"})
	require.NoError(t, err)
	b, err := m.BlobFor(ctx, config.CloudStorageConfig{StorageAccount: "acct", Bucket: "other"})
	require.NoError(t, err)
	c, err := m.BlobFor(ctx, config.CloudStorageConfig{StorageAccount: "second"})
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Len(t, m.clients, 2)
}
