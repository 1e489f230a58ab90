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

package jobrunner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dataimport/internal/apiclient"
	"github.com/cardinalhq/dataimport/internal/processor"
	"github.com/cardinalhq/dataimport/internal/secrets"
	"github.com/cardinalhq/dataimport/internal/transport"
	"github.com/cardinalhq/dataimport/ledgerdb"
	"github.com/cardinalhq/dataimport/testhelpers"
)

var jobTime = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

type fakeTransporter struct {
	calls []string
	fail  map[string]error
}

func (f *fakeTransporter) Run(_ context.Context, target ledgerdb.ApiServer) (transport.Result, error) {
	f.calls = append(f.calls, target.Name)
	return transport.Result{AgentsDue: 1}, f.fail[target.Name]
}

type fakeProcessor struct {
	calls []apiclient.Config
	fail  map[string]error
}

func (f *fakeProcessor) Run(_ context.Context, api processor.Poster) (processor.Result, error) {
	cfg := api.Config()
	f.calls = append(f.calls, cfg)
	return processor.Result{}, f.fail[cfg.Name]
}

type stubPoster struct{ cfg apiclient.Config }

func (s *stubPoster) Config() apiclient.Config { return s.cfg }
func (s *stubPoster) Post(context.Context, string, []byte) (apiclient.Response, error) {
	return apiclient.Response{StatusCode: 201}, nil
}
func (s *stubPoster) Delete(context.Context, string) (apiclient.Response, error) {
	return apiclient.Response{StatusCode: 204}, nil
}
func (s *stubPoster) PostAndDelete(context.Context, string, []byte) (apiclient.Response, error) {
	return apiclient.Response{StatusCode: 204}, nil
}

type upperDecrypter struct{}

func (upperDecrypter) Decrypt(s string) (string, error) { return strings.ToUpper(s), nil }

type fixture struct {
	ledger  *testhelpers.MemLedger
	tr      *fakeTransporter
	proc    *fakeProcessor
	clients []*stubPoster
	runner  *Runner
}

func newFixture(decrypter secrets.Decrypter) *fixture {
	f := &fixture{
		ledger: testhelpers.NewMemLedger(),
		tr:     &fakeTransporter{fail: map[string]error{}},
		proc:   &fakeProcessor{fail: map[string]error{}},
	}
	f.runner = New(f.ledger, f.tr, f.proc, decrypter,
		WithClock(func() time.Time { return jobTime }),
		WithClientFactory(func(cfg apiclient.Config) processor.Poster {
			c := &stubPoster{cfg: cfg}
			f.clients = append(f.clients, c)
			return c
		}))
	return f
}

func TestRunNoTargets(t *testing.T) {
	f := newFixture(secrets.Plaintext{})

	err := f.runner.Run(context.Background())
	require.ErrorIs(t, err, ErrNoTargets)
	assert.Empty(t, f.tr.calls)
	assert.Empty(t, f.proc.calls)

	job, _ := f.ledger.GetJobStatus(context.Background())
	require.NotNil(t, job.Started)
	require.NotNil(t, job.Completed, "completion is recorded even for a fatal run")
}

func TestRunAllTargetsInOrder(t *testing.T) {
	f := newFixture(upperDecrypter{})
	f.ledger.AddApiServer(ledgerdb.ApiServer{Name: "first", Url: "https://a", ClientID: "key", ClientSecret: "secret"})
	f.ledger.AddApiServer(ledgerdb.ApiServer{Name: "second", Url: "https://b", ClientID: "key2", ClientSecret: "secret2"})

	require.NoError(t, f.runner.Run(context.Background()))
	assert.Equal(t, []string{"first", "second"}, f.tr.calls)
	require.Len(t, f.proc.calls, 2)
	assert.Equal(t, "SECRET", f.proc.calls[0].ClientSecret)
	assert.Equal(t, "KEY2", f.proc.calls[1].ClientID)
	require.Len(t, f.clients, 2)
	assert.NotSame(t, f.clients[0], f.clients[1], "each target gets its own client")

	job, _ := f.ledger.GetJobStatus(context.Background())
	require.NotNil(t, job.Started)
	require.NotNil(t, job.Completed)
	assert.True(t, jobTime.Equal(*job.Completed))
}

func TestRunIsolatesTargetFailures(t *testing.T) {
	f := newFixture(secrets.Plaintext{})
	f.ledger.AddApiServer(ledgerdb.ApiServer{Name: "broken"})
	f.ledger.AddApiServer(ledgerdb.ApiServer{Name: "fine"})
	f.ledger.AddApiServer(ledgerdb.ApiServer{Name: "slow"})
	f.tr.fail["broken"] = errors.New("agents unavailable")
	f.proc.fail["slow"] = errors.New("lookups unavailable")

	err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target broken: transport: agents unavailable")
	assert.Contains(t, err.Error(), "target slow: process: lookups unavailable")
	assert.NotContains(t, err.Error(), "target fine")

	assert.Equal(t, []string{"broken", "fine", "slow"}, f.tr.calls)
	assert.Len(t, f.proc.calls, 3, "a failed transport still lets already uploaded files load")

	job, _ := f.ledger.GetJobStatus(context.Background())
	require.NotNil(t, job.Completed)
}

type failingDecrypter struct{}

func (failingDecrypter) Decrypt(string) (string, error) { return "", errors.New("bad ciphertext") }

func TestRunDecryptFailureSkipsTarget(t *testing.T) {
	f := newFixture(failingDecrypter{})
	f.ledger.AddApiServer(ledgerdb.ApiServer{Name: "locked", ClientSecret: "x"})

	err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
	assert.Empty(t, f.tr.calls)
	assert.Empty(t, f.proc.calls)
}

func TestRunJobStartedFailure(t *testing.T) {
	f := newFixture(secrets.Plaintext{})
	f.ledger.AddApiServer(ledgerdb.ApiServer{Name: "first"})
	f.ledger.FailJobStarted = errors.New("read-only")

	err := f.runner.Run(context.Background())
	assert.ErrorContains(t, err, "record job start")
	assert.Empty(t, f.tr.calls)

	job, _ := f.ledger.GetJobStatus(context.Background())
	assert.NotNil(t, job.Completed)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(secrets.Plaintext{})
	f.ledger.AddApiServer(ledgerdb.ApiServer{Name: "first"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.tr.calls)

	job, _ := f.ledger.GetJobStatus(context.Background())
	assert.NotNil(t, job.Completed)
}
