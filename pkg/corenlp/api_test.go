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
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewAPI(zaptest.NewLogger(t), newLocalService(t)))
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIExtract(t *testing.T) {
	srv := newAPIServer(t)

	resp, err := http.Post(srv.URL+"/api/extract", "application/json",
		strings.NewReader(`{"text":"Albuquerque Business First is located in Albuquerque.","entity_types":"location,organization,person"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ExtractResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, map[string][]string{
		"location":     {"Albuquerque"},
		"organization": {"Albuquerque Business First"},
		"person":       {},
	}, out.Entities)
}

func TestAPIExtractBadRequests(t *testing.T) {
	srv := newAPIServer(t)

	for _, body := range []string{`{not json`, `{"text":"hello"}`} {
		resp, err := http.Post(srv.URL+"/api/extract", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestAPIAnnotateDocument(t *testing.T) {
	srv := newAPIServer(t)

	msg, err := codec.Encode(annotation.New(albuquerque))
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/?properties=%7B%7D", codec.MediaType, bytes.NewReader(msg))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, codec.MediaType, resp.Header.Get("Content-Type"))

	doc, err := codec.Read(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, albuquerque, doc.Text)
	require.Len(t, doc.Mentions, 2)
	assert.Equal(t, "ORGANIZATION", doc.Mentions[0].Type)
	assert.Equal(t, "Albuquerque Business First", doc.MentionText(doc.Mentions[0]))
}

func TestAPIAnnotateMalformed(t *testing.T) {
	srv := newAPIServer(t)

	resp, err := http.Post(srv.URL+"/", codec.MediaType, strings.NewReader("\x05ab"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIVersionAndHealth(t *testing.T) {
	srv := newAPIServer(t)

	resp, err := http.Get(srv.URL + "/api/version")
	require.NoError(t, err)
	var version VersionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&version))
	_ = resp.Body.Close()
	assert.Equal(t, Version, version.Version)
	assert.NotEmpty(t, version.GoVersion)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	var ready ReadyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	_ = resp.Body.Close()
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "local", ready.Pipeline)

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPICORSPreflight(t *testing.T) {
	srv := newAPIServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/extract", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPIAnnotateDocumentWithStaleSentences(t *testing.T) {
	service, err := NewService(Config{
		Properties:     map[string]string{PropAnnotators: "tokenize,ner"},
		EntityCacheTTL: -1,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = service.Close() }()

	srv := httptest.NewServer(NewAPI(zaptest.NewLogger(t), service))
	defer srv.Close()

	doc := annotation.New("Visit Santa Fe today.")
	doc.Sentences = []annotation.Sentence{{Index: 0, TokenBegin: 0, TokenEnd: 50, CharBegin: 0, CharEnd: 21}}
	msg, err := codec.Encode(doc)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/", codec.MediaType, bytes.NewReader(msg))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	annotated, err := codec.Read(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, annotated.Sentences)
	require.Len(t, annotated.Mentions, 1)
	assert.Equal(t, "Santa Fe", annotated.MentionText(annotated.Mentions[0]))
}
