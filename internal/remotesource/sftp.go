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
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

// SFTP talks SFTP over SSH with password authentication.
type SFTP struct {
	timeout        time.Duration
	knownHostsFile string
	connect        func(ctx context.Context, agent ledgerdb.Agent) (*sftp.Client, io.Closer, error)
}

func NewSFTP(cfg config.RemoteConfig) *SFTP {
	s := &SFTP{
		timeout:        cfg.Timeout,
		knownHostsFile: cfg.KnownHostsFile,
	}
	s.connect = s.dialSSH
	return s
}

func (s *SFTP) hostKeyCallback(agent ledgerdb.Agent) (ssh.HostKeyCallback, error) {
	if s.knownHostsFile == "" {
		slog.Warn("SFTP host key not verified, remote.known_hosts_file is unset", slog.String("agent", agent.Name))
		return ssh.InsecureIgnoreHostKey(), nil
	}
	return knownhosts.New(s.knownHostsFile)
}

func (s *SFTP) dialSSH(ctx context.Context, agent ledgerdb.Agent) (*sftp.Client, io.Closer, error) {
	addr := hostPort(agent, DefaultSFTPPort)
	hostKeys, err := s.hostKeyCallback(agent)
	if err != nil {
		return nil, nil, fmt.Errorf("sftp known hosts: %w", err)
	}

	d := net.Dialer{Timeout: s.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("sftp dial %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            agent.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(agent.Password)},
		HostKeyCallback: hostKeys,
		Timeout:         s.timeout,
	})
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("sftp handshake %s as %s: %w", addr, agent.Username, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, nil, fmt.Errorf("sftp session %s: %w", addr, err)
	}
	return client, sshClient, nil
}

func (s *SFTP) ListFiles(ctx context.Context, agent ledgerdb.Agent) ([]string, error) {
	client, closer, err := s.connect(ctx, agent)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = client.Close()
		_ = closer.Close()
	}()

	dir := agent.Directory
	if dir == "" {
		dir = "."
	}
	infos, err := client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sftp list %s: %w", dir, err)
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.Mode().IsRegular() {
			names = append(names, fi.Name())
		}
	}
	return selectFiles(agent.Directory, agent.FilePattern, names)
}

func (s *SFTP) Fetch(ctx context.Context, agent ledgerdb.Agent, remotePath string) (io.ReadCloser, error) {
	client, closer, err := s.connect(ctx, agent)
	if err != nil {
		return nil, err
	}
	f, err := client.Open(remotePath)
	if err != nil {
		_ = client.Close()
		_ = closer.Close()
		return nil, fmt.Errorf("sftp open %s: %w", remotePath, err)
	}
	return &sftpReader{File: f, client: client, closer: closer}, nil
}

type sftpReader struct {
	*sftp.File
	client *sftp.Client
	closer io.Closer
}

func (r *sftpReader) Close() error {
	err := r.File.Close()
	_ = r.client.Close()
	_ = r.closer.Close()
	return err
}
