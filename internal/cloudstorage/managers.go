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
	"fmt"
	"sync"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/internal/awsclient"
	"github.com/cardinalhq/dataimport/internal/azureclient"
)

// CloudManagers creates provider managers on first use, so an AWS-only
// deployment never loads Azure credentials and vice versa.
type CloudManagers struct {
	mu    sync.Mutex
	aws   *awsclient.Manager
	azure *azureclient.Manager
}

var _ ClientProvider = (*CloudManagers)(nil)

func NewCloudManagers() *CloudManagers {
	return &CloudManagers{}
}

func (m *CloudManagers) NewClient(ctx context.Context, cfg config.CloudStorageConfig) (Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch cfg.Provider {
	case providerS3, "":
		if m.aws == nil {
			mgr, err := awsclient.NewManager(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create AWS manager: %w", err)
			}
			m.aws = mgr
		}
		sc, err := m.aws.S3For(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return &s3Client{s3: sc}, nil
	case providerAzure:
		if m.azure == nil {
			mgr, err := azureclient.NewManager(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create Azure manager: %w", err)
			}
			m.azure = mgr
		}
		bc, err := m.azure.BlobFor(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
		return newAzureClient(bc, azureclient.BlobEndpoint(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported cloud provider: %s", cfg.Provider)
	}
}
