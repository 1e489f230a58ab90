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

package remotesource

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

type ftpConn interface {
	Login(user, password string) error
	List(path string) ([]*ftp.Entry, error)
	Retr(path string) (io.ReadCloser, error)
	Quit() error
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retr(path string) (io.ReadCloser, error) {
	return c.ServerConn.Retr(path)
}

// FTPS talks implicit-TLS FTP.
type FTPS struct {
	timeout        time.Duration
	allowTestCerts bool
	dial           func(ctx context.Context, addr string, tlsConfig *tls.Config, timeout time.Duration) (ftpConn, error)
}

func NewFTPS(cfg config.RemoteConfig) *FTPS {
	return &FTPS{
		timeout:        cfg.Timeout,
		allowTestCerts: cfg.AllowTestCertificates,
		dial:           dialFTPS,
	}
}

func dialFTPS(ctx context.Context, addr string, tlsConfig *tls.Config, timeout time.Duration) (ftpConn, error) {
	c, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(timeout),
		ftp.DialWithTLS(tlsConfig),
	)
	if err != nil {
		return nil, err
	}
	return serverConn{c}, nil
}

func (s *FTPS) connect(ctx context.Context, agent ledgerdb.Agent) (ftpConn, error) {
	addr := hostPort(agent, DefaultFTPSPort)
	tlsConfig := &tls.Config{
		ServerName:         hostOnly(addr),
		InsecureSkipVerify: s.allowTestCerts,
	}
	if s.allowTestCerts {
		slog.Warn("Accepting unverified FTPS certificate", slog.String("agent", agent.Name), slog.String("addr", addr))
	}

	c, err := s.dial(ctx, addr, tlsConfig, s.timeout)
	if err != nil {
		return nil, fmt.Errorf("ftps dial %s: %w", addr, err)
	}
	if err := c.Login(agent.Username, agent.Password); err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("ftps login %s as %s: %w", addr, agent.Username, err)
	}
	return c, nil
}

func (s *FTPS) ListFiles(ctx context.Context, agent ledgerdb.Agent) ([]string, error) {
	c, err := s.connect(ctx, agent)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Quit() }()

	entries, err := c.List(agent.Directory)
	if err != nil {
		return nil, fmt.Errorf("ftps list %s: %w", agent.Directory, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == ftp.EntryTypeFile {
			names = append(names, e.Name)
		}
	}
	return selectFiles(agent.Directory, agent.FilePattern, names)
}

func (s *FTPS) Fetch(ctx context.Context, agent ledgerdb.Agent, remotePath string) (io.ReadCloser, error) {
	c, err := s.connect(ctx, agent)
	if err != nil {
		return nil, err
	}
	r, err := c.Retr(remotePath)
	if err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("ftps retr %s: %w", remotePath, err)
	}
	return &ftpReader{ReadCloser: r, conn: c}, nil
}

// ftpReader ends the control connection once the transfer is closed.
type ftpReader struct {
	io.ReadCloser
	conn ftpConn
}

func (r *ftpReader) Close() error {
	err := r.ReadCloser.Close()
	if qerr := r.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}
