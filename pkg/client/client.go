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

// Package client provides a Go SDK for the corenlp annotation server.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/codec"
)

// VersionResponse mirrors GET /api/version.
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

type extractRequest struct {
	Text        string `json:"text"`
	EntityTypes string `json:"entity_types"`
}

type extractResponse struct {
	Entities map[string][]string `json:"entities"`
}

// CoreNLPClient talks to a corenlp server.
type CoreNLPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoreNLPClient creates a new client.
// The baseURL should be the server address (e.g., "http://localhost:9000").
func NewCoreNLPClient(baseURL string, httpClient *http.Client) (*CoreNLPClient, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CoreNLPClient{baseURL: baseURL, httpClient: httpClient}, nil
}

// ExtractEntities returns the mentions of every comma separated label in
// entityTypes found in text.
func (c *CoreNLPClient) ExtractEntities(ctx context.Context, text, entityTypes string) (map[string][]string, error) {
	body, err := json.Marshal(extractRequest{Text: text, EntityTypes: entityTypes})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := c.post(ctx, "/api/extract", "application/json", body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(resp)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return out.Entities, nil
}

// Annotate sends doc in the binary document encoding and returns the
// annotated document.
func (c *CoreNLPClient) Annotate(ctx context.Context, doc *annotation.Document) (*annotation.Document, error) {
	msg, err := codec.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	resp, err := c.post(ctx, "/", codec.MediaType, msg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(resp)
	}

	annotated, err := codec.Read(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return annotated, nil
}

// GetVersion returns server version information.
func (c *CoreNLPClient) GetVersion(ctx context.Context) (*VersionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(resp)
	}

	var out VersionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}

func (c *CoreNLPClient) post(ctx context.Context, path, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

func unexpectedStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
