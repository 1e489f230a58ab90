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

	"github.com/cardinalhq/dataimport/config"
)

// Client provides a unified interface for object storage operations across providers.
type Client interface {
	// DownloadObject downloads an object to a temp file in tmpdir.
	// Returns the temp filename, size, whether object was not found, and error
	DownloadObject(ctx context.Context, tmpdir, bucket, key string) (filename string, size int64, notFound bool, err error)

	// UploadObject uploads a local file to bucket/key.
	UploadObject(ctx context.Context, bucket, key, sourceFilename string) error

	// DeleteObject deletes an object. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, key string) error

	// ObjectURL returns the durable URL recorded in the file ledger.
	ObjectURL(bucket, key string) string

	// ObjectKey reverses ObjectURL. ok is false when objectURL does not
	// address an object in bucket.
	ObjectKey(bucket, objectURL string) (key string, ok bool)
}

// ClientProvider creates storage clients for a cloud storage configuration.
type ClientProvider interface {
	NewClient(ctx context.Context, cfg config.CloudStorageConfig) (Client, error)
}
