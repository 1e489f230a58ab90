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
// Package awsclient builds S3 clients for the Cloud file store.
package awsclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/dataimport/config"
)

// S3Client is an S3 API client with the tracer used for storage spans.
type S3Client struct {
	Client *s3.Client
	Tracer trace.Tracer
}

// Manager holds the default AWS configuration and one credentials provider
// per (region, role) pair, so assumed-role sessions are reused.
type Manager struct {
	base        aws.Config
	sts         *sts.Client
	sessionName string
	tracer      trace.Tracer

	mu    sync.Mutex
	creds map[credKey]aws.CredentialsProvider
}

type credKey struct {
	region string
	role   string
}

type Option func(*Manager)

// WithSessionName sets the role session name used when assuming a role.
func WithSessionName(name string) Option {
	return func(m *Manager) { m.sessionName = name }
}

// NewManager loads the default AWS config with otelaws middleware attached.
func NewManager(ctx context.Context, opts ...Option) (*Manager, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)
	return newManager(cfg, opts...), nil
}

func newManager(cfg aws.Config, opts ...Option) *Manager {
	m := &Manager{
		base:        cfg,
		sts:         sts.NewFromConfig(cfg),
		sessionName: "dataimport",
		tracer:      otel.Tracer("github.com/cardinalhq/dataimport/internal/awsclient"),
		creds:       map[credKey]aws.CredentialsProvider{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// S3For returns a client for the bucket described by c.
func (m *Manager) S3For(_ context.Context, c config.CloudStorageConfig) (*S3Client, error) {
	region := c.Region
	if region == "" {
		region = m.base.Region
	}

	cfg := m.base.Copy()
	cfg.Region = region
	cfg.Credentials = m.credentials(region, c.Role)
	if c.InsecureTLS {
		cfg.HTTPClient = insecureHTTPClient()
	}

	return &S3Client{
		Client: s3.NewFromConfig(cfg, s3Options(c)...),
		Tracer: m.tracer,
	}, nil
}

func (m *Manager) credentials(region, role string) aws.CredentialsProvider {
	if role == "" {
		return m.base.Credentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := credKey{region: region, role: role}
	if p, ok := m.creds[key]; ok {
		return p
	}
	p := aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(m.sts, role, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = m.sessionName
	}))
	m.creds[key] = p
	return p
}

// s3Options covers S3-compatible servers such as MinIO.
func s3Options(c config.CloudStorageConfig) []func(*s3.Options) {
	var opts []func(*s3.Options)
	if c.Endpoint != "" {
		endpoint := c.Endpoint
		opts = append(opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	if c.UsePathStyle {
		opts = append(opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	return opts
}

func insecureHTTPClient() *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return &http.Client{Transport: tr}
}
