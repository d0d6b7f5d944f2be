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

package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClient_ExtractEntities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/extract", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"text":"Visit Santa Fe","entity_types":"location"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entities":{"location":["Santa Fe"]}}`))
	}))
	defer server.Close()

	c, err := NewCoreNLPClient(server.URL+"/", nil)
	require.NoError(t, err)

	got, err := c.ExtractEntities(context.Background(), "Visit Santa Fe", "location")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"location": {"Santa Fe"}}, got)
}

func TestClient_ExtractEntities_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "entity extraction failed: boom", http.StatusBadGateway)
	}))
	defer server.Close()

	c, err := NewCoreNLPClient(server.URL, server.Client())
	require.NoError(t, err)

	_, err = c.ExtractEntities(context.Background(), "text", "location")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "boom")
}

func TestClient_GetVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/version", r.URL.Path)
		_ = json.NewEncoder(w).Encode(VersionResponse{Version: "1.2.3", GoVersion: "go1.25"})
	}))
	defer server.Close()

	c, err := NewCoreNLPClient(server.URL, nil)
	require.NoError(t, err)

	v, err := c.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v.Version)
	assert.Equal(t, "go1.25", v.GoVersion)
}

func TestClient_AgainstServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	service, err := corenlp.NewService(corenlp.Config{EntityCacheTTL: -1}, logger)
	require.NoError(t, err)
	defer func() { _ = service.Close() }()

	server := httptest.NewServer(corenlp.NewAPI(logger, service))
	defer server.Close()

	c, err := NewCoreNLPClient(server.URL, server.Client())
	require.NoError(t, err)

	text := "Albuquerque Business First is located in Albuquerque."
	entities, err := c.ExtractEntities(context.Background(), text, "location,organization,person")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"location":     {"Albuquerque"},
		"organization": {"Albuquerque Business First"},
		"person":       {},
	}, entities)

	doc, err := c.Annotate(context.Background(), annotation.New(text))
	require.NoError(t, err)
	assert.Equal(t, text, doc.Text)
	assert.Len(t, doc.Mentions, 2)
	assert.True(t, doc.Has(annotation.KeyTokens))

	_, err = c.ExtractEntities(context.Background(), text, "")
	assert.Error(t, err)
}

func TestNewCoreNLPClient_RequiresURL(t *testing.T) {
	_, err := NewCoreNLPClient("", nil)
	assert.Error(t, err)
}
