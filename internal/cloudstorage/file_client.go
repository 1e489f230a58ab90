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
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cardinalhq/dataimport/config"
)

// FileClientProvider creates clients that operate on the local filesystem.
// Bucket names become subdirectories under the base path; an empty bucket
// addresses the base path itself.
type FileClientProvider struct {
	base string
}

// NewFileClientProvider returns a new provider rooted at base.
func NewFileClientProvider(base string) ClientProvider {
	return &FileClientProvider{base: base}
}

func (p *FileClientProvider) NewClient(ctx context.Context, cfg config.CloudStorageConfig) (Client, error) {
	return NewFileClient(p.base)
}

// NewFileClient returns a client rooted at base, which is made absolute so
// recorded URLs stay valid regardless of the working directory.
func NewFileClient(base string) (Client, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	return &fileClient{base: abs}, nil
}

type fileClient struct {
	base string
}

func (c *fileClient) path(bucket, key string) string {
	return filepath.Join(c.base, bucket, filepath.FromSlash(key))
}

func (c *fileClient) ObjectURL(bucket, key string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(c.path(bucket, key))}
	return u.String()
}

func (c *fileClient) ObjectKey(bucket, objectURL string) (string, bool) {
	u, err := url.Parse(objectURL)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	rel, err := filepath.Rel(filepath.Join(c.base, bucket), filepath.FromSlash(u.Path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// DownloadObject copies the requested object to a temp file and returns the filename.
func (c *fileClient) DownloadObject(ctx context.Context, tmpdir, bucket, key string) (string, int64, bool, error) {
	src := c.path(bucket, key)
	fi, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, true, nil
		}
		return "", 0, false, err
	}
	dst, err := os.CreateTemp(tmpdir, "*-"+filepath.Base(key))
	if err != nil {
		return "", 0, false, err
	}
	defer func() { _ = dst.Close() }()

	f, err := os.Open(src)
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", 0, false, err
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(dst, f); err != nil {
		_ = os.Remove(dst.Name())
		return "", 0, false, err
	}
	return dst.Name(), fi.Size(), false, nil
}

// UploadObject copies a local file into the bucket/key location.
func (c *fileClient) UploadObject(ctx context.Context, bucket, key, sourceFilename string) error {
	dst := c.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	src, err := os.Open(sourceFilename)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// DeleteObject removes the file at bucket/key if it exists, then removes
// any parent directories the deletion left empty, stopping at the base.
func (c *fileClient) DeleteObject(ctx context.Context, bucket, key string) error {
	path := c.path(bucket, key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return c.pruneEmptyDirs(filepath.Dir(path))
}

func (c *fileClient) pruneEmptyDirs(dir string) error {
	for {
		rel, err := filepath.Rel(c.base, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				dir = filepath.Dir(dir)
				continue
			}
			return err
		}
		if len(entries) > 0 {
			return nil
		}
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			return err
		}
		dir = filepath.Dir(dir)
	}
}
