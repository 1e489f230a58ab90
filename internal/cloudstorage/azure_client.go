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
	"io"
	"os"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/dataimport/internal/azureclient"
)

const providerAzure = "azure"

// azureClient stores objects as blobs. The bucket is the container and
// URLs are the blob's https URL.
type azureClient struct {
	blob     *azureclient.BlobClient
	endpoint string
}

func newAzureClient(bc *azureclient.BlobClient, endpoint string) *azureClient {
	return &azureClient{blob: bc, endpoint: strings.TrimRight(endpoint, "/")}
}

func (c *azureClient) ObjectURL(bucket, key string) string {
	return c.endpoint + "/" + bucket + "/" + key
}

func (c *azureClient) ObjectKey(bucket, objectURL string) (string, bool) {
	key, ok := strings.CutPrefix(objectURL, c.endpoint+"/"+bucket+"/")
	return key, ok && key != ""
}

func (c *azureClient) span(ctx context.Context, op, bucket, key string) (context.Context, trace.Span) {
	return c.blob.Tracer.Start(ctx, "cloudstorage.azure."+op,
		trace.WithAttributes(
			attribute.String("container", bucket),
			attribute.String("blob", key),
		),
	)
}

func (c *azureClient) DownloadObject(ctx context.Context, tmpdir, bucket, key string) (string, int64, bool, error) {
	ctx, span := c.span(ctx, "download", bucket, key)
	defer span.End()

	resp, err := c.blob.Client.DownloadStream(ctx, bucket, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			recordOp(ctx, providerAzure, "download", resultNotFound, 0)
			return "", 0, true, nil
		}
		recordOp(ctx, providerAzure, "download", resultError, 0)
		span.RecordError(err)
		return "", 0, false, fmt.Errorf("download blob %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	f, err := os.CreateTemp(tmpdir, "*-"+path.Base(key))
	if err != nil {
		return "", 0, false, fmt.Errorf("create temp file: %w", err)
	}
	size, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		recordOp(ctx, providerAzure, "download", resultError, 0)
		span.RecordError(err)
		return "", 0, false, fmt.Errorf("copy blob %s/%s: %w", bucket, key, err)
	}

	recordOp(ctx, providerAzure, "download", resultOK, size)
	return f.Name(), size, false, nil
}

func (c *azureClient) UploadObject(ctx context.Context, bucket, key, sourceFilename string) error {
	ctx, span := c.span(ctx, "upload", bucket, key)
	defer span.End()

	f, err := os.Open(sourceFilename)
	if err != nil {
		return fmt.Errorf("open %s: %w", sourceFilename, err)
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", sourceFilename, err)
	}

	_, err = c.blob.Client.UploadStream(ctx, bucket, key, f, &azblob.UploadStreamOptions{
		Metadata: map[string]*string{"writer": to.Ptr("dataimport")},
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(contentType(key)),
		},
	})
	if err != nil {
		recordOp(ctx, providerAzure, "upload", resultError, 0)
		span.RecordError(err)
		return fmt.Errorf("upload blob %s/%s: %w", bucket, key, err)
	}
	recordOp(ctx, providerAzure, "upload", resultOK, st.Size())
	return nil
}

func (c *azureClient) DeleteObject(ctx context.Context, bucket, key string) error {
	ctx, span := c.span(ctx, "delete", bucket, key)
	defer span.End()

	_, err := c.blob.Client.DeleteBlob(ctx, bucket, key, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		recordOp(ctx, providerAzure, "delete", resultError, 0)
		span.RecordError(err)
		return fmt.Errorf("delete blob %s/%s: %w", bucket, key, err)
	}
	recordOp(ctx, providerAzure, "delete", resultOK, 0)
	return nil
}
