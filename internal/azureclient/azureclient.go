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
// Package azureclient builds Azure Blob clients for the Cloud file store.
package azureclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/dataimport/config"
)

// BlobClient is an azblob client with the tracer used for storage spans.
type BlobClient struct {
	Client *azblob.Client
	Tracer trace.Tracer
}

// Manager shares one credential across storage accounts and caches a
// client per service endpoint.
type Manager struct {
	cred   azcore.TokenCredential
	tracer trace.Tracer

	mu      sync.Mutex
	clients map[string]*BlobClient
}

// NewManager uses the default Azure credential chain (environment, workload
// identity, managed identity, Azure CLI).
func NewManager(_ context.Context) (*Manager, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("loading Azure credentials: %w", err)
	}
	return newManager(cred), nil
}

func newManager(cred azcore.TokenCredential) *Manager {
	return &Manager{
		cred:    cred,
		tracer:  otel.Tracer("github.com/cardinalhq/dataimport/internal/azureclient"),
		clients: map[string]*BlobClient{},
	}
}

// BlobEndpoint returns the service URL for a storage account, honoring an
// explicit endpoint override (Azurite, sovereign clouds).
func BlobEndpoint(c config.CloudStorageConfig) string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", c.StorageAccount)
}

// BlobFor returns the client for the storage account described by c.
func (m *Manager) BlobFor(_ context.Context, c config.CloudStorageConfig) (*BlobClient, error) {
	if c.StorageAccount == "" && c.Endpoint == "" {
		return nil, errors.New("azure storage account or endpoint is required")
	}
	endpoint := BlobEndpoint(c)

	m.mu.Lock()
	defer m.mu.Unlock()
	if bc, ok := m.clients[endpoint]; ok {
		return bc, nil
	}
	client, err := azblob.NewClient(endpoint, m.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client for %s: %w", endpoint, err)
	}
	bc := &BlobClient{Client: client, Tracer: m.tracer}
	m.clients[endpoint] = bc
	return bc, nil
}
