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
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/dataimport/internal/awsclient"
)

const providerS3 = "aws"

// s3Client stores objects in an S3 or S3-compatible bucket. URLs are s3://bucket/key.
type s3Client struct {
	s3 *awsclient.S3Client
}

func (c *s3Client) ObjectURL(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

func (c *s3Client) ObjectKey(bucket, objectURL string) (string, bool) {
	key, ok := strings.CutPrefix(objectURL, "s3://"+bucket+"/")
	return key, ok && key != ""
}

func (c *s3Client) span(ctx context.Context, op, bucket, key string) (context.Context, trace.Span) {
	return c.s3.Tracer.Start(ctx, "cloudstorage.s3."+op,
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
}

func (c *s3Client) DownloadObject(ctx context.Context, tmpdir, bucket, key string) (string, int64, bool, error) {
	ctx, span := c.span(ctx, "download", bucket, key)
	defer span.End()

	f, err := os.CreateTemp(tmpdir, "*-"+path.Base(key))
	if err != nil {
		return "", 0, false, fmt.Errorf("create temp file: %w", err)
	}

	size, err := manager.NewDownloader(c.s3.Client).Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	_ = f.Close()
	if err != nil {
		_ = os.Remove(f.Name())
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			recordOp(ctx, providerS3, "download", resultNotFound, 0)
			return "", 0, true, nil
		}
		recordOp(ctx, providerS3, "download", resultError, 0)
		span.RecordError(err)
		return "", 0, false, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}

	recordOp(ctx, providerS3, "download", resultOK, size)
	return f.Name(), size, false, nil
}

func (c *s3Client) UploadObject(ctx context.Context, bucket, key, sourceFilename string) error {
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

	_, err = manager.NewUploader(c.s3.Client).Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(key)),
		Metadata:    map[string]string{"writer": "dataimport"},
	})
	if err != nil {
		recordOp(ctx, providerS3, "upload", resultError, 0)
		span.RecordError(err)
		return fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
	}
	recordOp(ctx, providerS3, "upload", resultOK, st.Size())
	return nil
}

// DeleteObject succeeds for missing keys; S3 DeleteObject is idempotent.
func (c *s3Client) DeleteObject(ctx context.Context, bucket, key string) error {
	ctx, span := c.span(ctx, "delete", bucket, key)
	defer span.End()

	_, err := c.s3.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		recordOp(ctx, providerS3, "delete", resultError, 0)
		span.RecordError(err)
		return fmt.Errorf("delete s3://%s/%s: %w", bucket, key, err)
	}
	recordOp(ctx, providerS3, "delete", resultOK, 0)
	return nil
}
