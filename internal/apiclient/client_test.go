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

package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dataimport/internal/secrets"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

type fakeTarget struct {
	server       *httptest.Server
	tokenCalls   atomic.Int32
	codeCalls    atomic.Int32
	posts        atomic.Int32
	deletes      atomic.Int32
	rejectTokens map[string]bool
	status       int
	deleteStatus int
	location     string
	lastGrant    atomic.Value
	lastDeleted  atomic.Value
}

func newFakeTarget(t *testing.T) *fakeTarget {
	t.Helper()
	ft := &fakeTarget{
		rejectTokens: map[string]bool{},
		status:       http.StatusCreated,
		deleteStatus: http.StatusNoContent,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/authorize", func(w http.ResponseWriter, r *http.Request) {
		ft.codeCalls.Add(1)
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("Client_id") != "key" || r.PostForm.Get("Response_type") != "code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "abc"})
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n := ft.tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		ft.lastGrant.Store(r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("t%d", n),
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/data/v3/students", func(w http.ResponseWriter, r *http.Request) {
		ft.posts.Add(1)
		auth := r.Header.Get("Authorization")
		if len(auth) < 8 || ft.rejectTokens[auth[7:]] {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"expired"}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if ft.location != "" {
			w.Header().Set("Location", ft.location)
		}
		w.WriteHeader(ft.status)
		_, _ = w.Write(body)
	})
	mux.HandleFunc("DELETE /data/v3/students/{id}", func(w http.ResponseWriter, r *http.Request) {
		ft.deletes.Add(1)
		auth := r.Header.Get("Authorization")
		if len(auth) < 8 || ft.rejectTokens[auth[7:]] {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ft.lastDeleted.Store(r.PathValue("id"))
		w.WriteHeader(ft.deleteStatus)
	})
	ft.server = httptest.NewServer(mux)
	t.Cleanup(ft.server.Close)
	return ft
}

func (ft *fakeTarget) config(version string) Config {
	return Config{
		Name:         "ods",
		URL:          ft.server.URL + "/data/v3/",
		AuthorizeURL: ft.server.URL + "/oauth/authorize",
		TokenURL:     ft.server.URL + "/oauth/token",
		ClientID:     "key",
		ClientSecret: "secret",
		APIVersion:   version,
	}
}

func TestPostSuccessReusesToken(t *testing.T) {
	ft := newFakeTarget(t)
	c := New(ft.config("3.1"))
	endpoint := c.Config().ResourceURL("/students")

	for range 3 {
		resp, err := c.Post(context.Background(), endpoint, []byte(`{"id":1}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, `{"id":1}`, resp.Body)
	}
	assert.Equal(t, int32(1), ft.tokenCalls.Load())
	assert.Equal(t, int32(0), ft.codeCalls.Load())
	assert.Equal(t, "client_credentials", ft.lastGrant.Load())
}

func TestPostRefreshesTokenOnUnauthorized(t *testing.T) {
	ft := newFakeTarget(t)
	ft.rejectTokens["t1"] = true
	c := New(ft.config("3.1"))

	resp, err := c.Post(context.Background(), c.Config().ResourceURL("students"), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int32(2), ft.tokenCalls.Load())
	assert.Equal(t, int32(2), ft.posts.Load())
}

func TestPostGivesUpAfterMaxAttempts(t *testing.T) {
	ft := newFakeTarget(t)
	for i := 1; i <= 10; i++ {
		ft.rejectTokens[fmt.Sprintf("t%d", i)] = true
	}
	c := New(ft.config("3.1"), WithMaxAuthAttempts(3))

	resp, err := c.Post(context.Background(), c.Config().ResourceURL("students"), []byte(`{}`))
	require.Error(t, err)
	assert.True(t, IsRecoverable(err))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "expired")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(3), ft.posts.Load())
}

func TestPostReturnsNonAuthStatuses(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			ft := newFakeTarget(t)
			ft.status = status
			c := New(ft.config("3.1"))

			resp, err := c.Post(context.Background(), c.Config().ResourceURL("students"), []byte(`{}`))
			require.NoError(t, err)
			assert.Equal(t, status, resp.StatusCode)
			assert.Equal(t, int32(1), ft.posts.Load())
		})
	}
}

func TestPostAuthorizationCodeFlow(t *testing.T) {
	ft := newFakeTarget(t)
	c := New(ft.config("2.5"))

	resp, err := c.Post(context.Background(), c.Config().ResourceURL("students"), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int32(1), ft.codeCalls.Load())
	assert.Equal(t, "authorization_code", ft.lastGrant.Load())
}

func TestPostTokenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	c := New(Config{Name: "down", URL: server.URL, TokenURL: server.URL + "/token"})
	_, err := c.Post(context.Background(), server.URL+"/x", []byte(`{}`))
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "down", ae.Target)
	assert.False(t, IsRecoverable(err))
}

func TestConfigFromApiServer(t *testing.T) {
	cfg, err := ConfigFromApiServer(ledgerdb.ApiServer{
		ID:           4,
		Name:         "ods",
		Url:          "https://api.example.com/data/v3",
		TokenUrl:     "https://api.example.com/oauth/token",
		ClientID:     "key",
		ClientSecret: "secret",
		ApiVersion:   "3.1",
	}, secrets.Plaintext{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), cfg.TargetID)
	assert.Equal(t, "secret", cfg.ClientSecret)
	assert.Equal(t, "https://api.example.com/data/v3/ed-fi/students", cfg.ResourceURL("/ed-fi/students"))
	assert.False(t, cfg.usesAuthorizationCode())

	cfg.APIVersion = "2.0"
	assert.False(t, cfg.usesAuthorizationCode(), "2.x without an authorize URL uses client credentials")
	cfg.AuthorizeURL = "https://api.example.com/oauth/authorize"
	assert.True(t, cfg.usesAuthorizationCode())
}

func TestStatusErrorRecoverable(t *testing.T) {
	assert.True(t, (&StatusError{StatusCode: 401}).Recoverable())
	assert.False(t, (&StatusError{StatusCode: 400}).Recoverable())
	assert.False(t, IsRecoverable(fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 500})))
	assert.True(t, IsRecoverable(fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 401})))
}

func TestDelete(t *testing.T) {
	ft := newFakeTarget(t)
	ft.rejectTokens["t1"] = true
	c := New(ft.config("3.1"))

	resp, err := c.Delete(context.Background(), c.Config().ResourceURL("students")+"/abc")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "abc", ft.lastDeleted.Load())
	assert.Equal(t, int32(2), ft.deletes.Load(), "401 refreshes the token and retries")
	assert.Equal(t, int32(2), ft.tokenCalls.Load())
}

func TestDeleteGivesUp(t *testing.T) {
	ft := newFakeTarget(t)
	for i := 1; i <= 5; i++ {
		ft.rejectTokens[fmt.Sprintf("t%d", i)] = true
	}
	c := New(ft.config("3.1"), WithMaxAuthAttempts(2))

	_, err := c.Delete(context.Background(), c.Config().ResourceURL("students")+"/abc")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.MethodDelete, se.Method)
	assert.Contains(t, se.Error(), "DELETE ")
	assert.Equal(t, int32(2), ft.deletes.Load())
}

func TestPostAndDelete(t *testing.T) {
	ft := newFakeTarget(t)
	ft.status = http.StatusOK
	ft.location = "/data/v3/students/s-42"
	c := New(ft.config("3.1"))

	resp, err := c.PostAndDelete(context.Background(), c.Config().ResourceURL("students"), []byte(`{"studentUniqueId":"42"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(1), ft.posts.Load())
	assert.Equal(t, int32(1), ft.deletes.Load())
	assert.Equal(t, "s-42", ft.lastDeleted.Load())
}

func TestPostAndDeleteAbsoluteLocation(t *testing.T) {
	ft := newFakeTarget(t)
	ft.location = ft.server.URL + "/data/v3/students/s-7"
	c := New(ft.config("3.1"))

	resp, err := c.PostAndDelete(context.Background(), c.Config().ResourceURL("students"), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "s-7", ft.lastDeleted.Load())
}

func TestPostAndDeleteWithoutLocation(t *testing.T) {
	ft := newFakeTarget(t)
	c := New(ft.config("3.1"))

	_, err := c.PostAndDelete(context.Background(), c.Config().ResourceURL("students"), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Location")
	assert.Equal(t, int32(0), ft.deletes.Load())
}

func TestPostAndDeleteRejectedPost(t *testing.T) {
	ft := newFakeTarget(t)
	ft.status = http.StatusBadRequest
	ft.location = "/data/v3/students/s-1"
	c := New(ft.config("3.1"))

	resp, err := c.PostAndDelete(context.Background(), c.Config().ResourceURL("students"), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(0), ft.deletes.Load())
}

func TestTokenFailureIsCached(t *testing.T) {
	var tokenCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	c := New(Config{Name: "down", URL: server.URL, TokenURL: server.URL + "/token"})
	for range 5 {
		_, err := c.Post(context.Background(), server.URL+"/x", []byte(`{}`))
		var ae *AuthError
		require.ErrorAs(t, err, &ae)
	}
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestTokenFailureExpires(t *testing.T) {
	var tokenCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	c := New(Config{Name: "down", URL: server.URL, TokenURL: server.URL + "/token"},
		WithAuthFailureTTL(10*time.Millisecond))
	_, err := c.Post(context.Background(), server.URL+"/x", []byte(`{}`))
	require.Error(t, err)
	time.Sleep(30 * time.Millisecond)
	_, err = c.Post(context.Background(), server.URL+"/x", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, int32(2), tokenCalls.Load())
}
