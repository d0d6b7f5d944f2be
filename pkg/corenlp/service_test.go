// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package corenlp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const albuquerque = "Albuquerque Business First is located in Albuquerque."

func newLocalService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(Config{EntityCacheTTL: -1}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// remoteConfig points a service at srv.
func remoteConfig(t *testing.T, srv *httptest.Server) RemoteConfig {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return RemoteConfig{
		Host:    "http://" + u.Hostname(),
		Port:    u.Port(),
		Timeout: 5 * time.Second,
	}
}

func TestLocalExtractEntities(t *testing.T) {
	s := newLocalService(t)
	assert.Equal(t, "local", s.Pipeline().Name())

	got, err := s.ExtractEntities(context.Background(), albuquerque, "location,organization")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"location":     {"Albuquerque"},
		"organization": {"Albuquerque Business First"},
	}, got)
}

func TestExtractEntitiesEmptyLabel(t *testing.T) {
	s := newLocalService(t)

	got, err := s.ExtractEntities(context.Background(), albuquerque, "person")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"person": {}}, got)
}

func TestExtractEntitiesLocationDoesNotLeak(t *testing.T) {
	s := newLocalService(t)

	got, err := s.ExtractEntities(context.Background(),
		"Production Resource Group moved from Santa Fe, N.M. to the Rio Grande.", "location,city,organization")
	require.NoError(t, err)
	assert.Equal(t, []string{"Santa Fe", "N.M.", "Rio Grande"}, got["location"])
	assert.Empty(t, got["city"])
	assert.Equal(t, []string{"Production Resource Group"}, got["organization"])
}

func TestRemoteExtractEntities(t *testing.T) {
	backend := newLocalService(t)
	srv := httptest.NewServer(NewAPI(zaptest.NewLogger(t), backend))
	defer srv.Close()

	s, err := NewService(Config{
		Remote:         remoteConfig(t, srv),
		EntityCacheTTL: -1,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.Equal(t, "remote", s.Pipeline().Name())

	got, err := s.ExtractEntities(context.Background(), albuquerque, "location,organization")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"location":     {"Albuquerque"},
		"organization": {"Albuquerque Business First"},
	}, got)

	ok, err := s.CheckStatus(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := remoteConfig(t, srv)
	srv.Close()

	s, err := NewService(Config{Remote: cfg, EntityCacheTTL: -1}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.ExtractEntities(context.Background(), albuquerque, "location")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, client.IsRetriesExhausted(err))

	var urlErr *url.Error
	assert.True(t, errors.As(err, &urlErr), "transport cause should be reachable: %v", err)

	_, err = s.CheckStatus(context.Background(), "http://"+srv.Listener.Addr().String())
	assert.Error(t, err)
}

func TestCheckStatusLocal(t *testing.T) {
	s := newLocalService(t)
	_, err := s.CheckStatus(context.Background(), "http://localhost:9000")
	assert.ErrorIs(t, err, ErrNoRemote)
}

func TestAnnotateDocumentLayers(t *testing.T) {
	s := newLocalService(t)

	doc, err := s.Annotate(context.Background(), albuquerque).Unwrap()
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Tokens)
	assert.Len(t, doc.Sentences, 1)
	assert.Len(t, doc.Mentions, 2)
}

func TestEntityCacheHitsAndSkipsFailures(t *testing.T) {
	backend := newLocalService(t)
	api := NewAPI(zaptest.NewLogger(t), backend)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The first request exhausts every attempt.
		if calls.Add(1) <= client.MaxAttempts {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		api.ServeHTTP(w, r)
	}))
	defer srv.Close()

	s, err := NewService(Config{Remote: remoteConfig(t, srv)}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	_, err = s.ExtractEntities(ctx, albuquerque, "organization")
	require.Error(t, err)

	first, err := s.ExtractEntities(ctx, albuquerque, "organization")
	require.NoError(t, err)
	assert.Equal(t, []string{"Albuquerque Business First"}, first["organization"])

	first["organization"][0] = "mutated"
	second, err := s.ExtractEntities(ctx, albuquerque, "organization")
	require.NoError(t, err)
	assert.Equal(t, []string{"Albuquerque Business First"}, second["organization"])

	stats, ok := s.CacheStats()
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, int32(client.MaxAttempts+1), calls.Load())
}

func TestNewServiceInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"threads", Config{Properties: map[string]string{"threads": "zero"}}},
		{"annotator", Config{Properties: map[string]string{"annotators": "tokenize,coref"}}},
		{"requirement", Config{Properties: map[string]string{"annotators": "ner"}}},
		{"gazetteer", Config{Properties: map[string]string{"gazetteer.files": "testdata/missing.yaml"}}},
		{"empty host", Config{Remote: RemoteConfig{Host: "https://"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.cfg, zaptest.NewLogger(t))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
