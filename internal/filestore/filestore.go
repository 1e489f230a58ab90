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

// Package filestore keeps transported files in durable storage under an
// agent-scoped layout and hands them back to the processor.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"

	"github.com/google/uuid"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/internal/cloudstorage"
	"github.com/cardinalhq/dataimport/internal/logctx"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

// ErrObjectNotFound is returned by Download when the stored object is gone.
var ErrObjectNotFound = errors.New("stored object not found")

// FileStore is the storage backend used by the transporter and processor.
type FileStore interface {
	// Store copies r into storage under the agent's directory and returns the
	// durable URL and the row count of the content.
	Store(ctx context.Context, name string, r io.Reader, agent ledgerdb.Agent) (url string, rows int32, err error)
	// Download returns a local temp copy of the file's stored object. The
	// caller removes it.
	Download(ctx context.Context, file ledgerdb.File) (string, error)
	// Delete removes the file's stored object.
	Delete(ctx context.Context, file ledgerdb.File) error
}

// Store implements FileStore over a cloudstorage.Client. The Local file mode
// uses the filesystem client rooted at the storage root; Cloud uses the
// configured provider with the root as a key prefix.
type Store struct {
	client     cloudstorage.Client
	bucket     string
	prefix     string
	mode       string
	production bool
	tmpdir     string
	newID      func() string
}

var _ FileStore = (*Store)(nil)

// New selects the backend for cfg.FileMode.
func New(ctx context.Context, cfg config.StorageConfig, provider cloudstorage.ClientProvider) (*Store, error) {
	s := &Store{
		mode:       cfg.FileMode,
		production: cfg.Production,
		newID:      uuid.NewString,
	}

	switch cfg.FileMode {
	case config.FileModeLocal:
		client, err := cloudstorage.NewFileClient(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("local storage root %q: %w", cfg.Root, err)
		}
		s.client = client
	case config.FileModeCloud:
		client, err := provider.NewClient(ctx, cfg.Cloud)
		if err != nil {
			return nil, err
		}
		s.client = client
		s.bucket = cfg.Cloud.Bucket
		s.prefix = cfg.Root
	default:
		return nil, fmt.Errorf("unsupported file mode: %q", cfg.FileMode)
	}
	return s, nil
}

// AgentDirectory is the per-agent directory below the mode segment.
func AgentDirectory(agentID int64) string {
	return path.Join("dataimport", "agent-"+strconv.FormatInt(agentID, 10))
}

func (s *Store) objectKey(agentID int64, name string) string {
	parts := []string{s.prefix}
	if !s.production {
		parts = append(parts, s.mode)
	}
	parts = append(parts, AgentDirectory(agentID), s.newID()+"-"+path.Base(name))
	return path.Join(parts...)
}

func (s *Store) Store(ctx context.Context, name string, r io.Reader, agent ledgerdb.Agent) (string, int32, error) {
	tmp, err := os.CreateTemp(s.tmpdir, "*-"+path.Base(name))
	if err != nil {
		return "", 0, fmt.Errorf("create staging file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", 0, fmt.Errorf("read %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("stage %s: %w", name, err)
	}

	rows, err := CountRowsFile(tmp.Name(), name)
	if err != nil {
		return "", 0, fmt.Errorf("count rows in %s: %w", name, err)
	}

	key := s.objectKey(agent.ID, name)
	if err := s.client.UploadObject(ctx, s.bucket, key, tmp.Name()); err != nil {
		return "", 0, fmt.Errorf("store %s: %w", name, err)
	}

	url := s.client.ObjectURL(s.bucket, key)
	logctx.FromContext(ctx).Debug("Stored file",
		"agentID", agent.ID,
		"fileName", name,
		"url", url,
		"rows", rows)
	return url, rows, nil
}

func (s *Store) key(file ledgerdb.File) (string, error) {
	key, ok := s.client.ObjectKey(s.bucket, file.Url)
	if !ok {
		return "", fmt.Errorf("file %d: url %q is not served by this store", file.ID, file.Url)
	}
	return key, nil
}

func (s *Store) Download(ctx context.Context, file ledgerdb.File) (string, error) {
	key, err := s.key(file)
	if err != nil {
		return "", err
	}
	filename, _, notFound, err := s.client.DownloadObject(ctx, s.tmpdir, s.bucket, key)
	if err != nil {
		return "", fmt.Errorf("download file %d: %w", file.ID, err)
	}
	if notFound {
		return "", fmt.Errorf("file %d (%s): %w", file.ID, file.Url, ErrObjectNotFound)
	}
	return filename, nil
}

func (s *Store) Delete(ctx context.Context, file ledgerdb.File) error {
	key, err := s.key(file)
	if err != nil {
		return err
	}
	if err := s.client.DeleteObject(ctx, s.bucket, key); err != nil {
		return fmt.Errorf("delete file %d: %w", file.ID, err)
	}
	return nil
}
