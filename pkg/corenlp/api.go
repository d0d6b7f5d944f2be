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

//go:build go1.22

package corenlp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/bytedance/sonic/decoder"
	"github.com/bytedance/sonic/encoder"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/codec"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/ner"
	"go.uber.org/zap"
)

// ExtractRequest is the body of POST /api/extract
type ExtractRequest struct {
	Text        string `json:"text"`
	EntityTypes string `json:"entity_types"`
}

// ExtractResponse is the response of POST /api/extract
type ExtractResponse struct {
	Entities map[string][]string `json:"entities"`
}

// VersionResponse is the response of GET /api/version
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// API serves a Service over HTTP.
type API struct {
	logger  *zap.Logger
	service *Service
}

// NewAPI creates the HTTP handler for s, including the health endpoints and
// the annotation endpoint at the root path.
func NewAPI(logger *zap.Logger, s *Service) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &API{logger: logger, service: s}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", api.handleHealthz)
	mux.HandleFunc("GET /readyz", api.handleReadyz)
	mux.HandleFunc("GET /api/version", api.GetVersion)
	mux.HandleFunc("POST /api/extract", api.ExtractEntities)
	mux.HandleFunc("POST /{$}", api.AnnotateDocument)
	mux.HandleFunc("GET /{$}", api.handleRoot)

	return corsMiddleware(mux)
}

// GetVersion returns build information.
func (a *API) GetVersion(w http.ResponseWriter, r *http.Request) {
	resp := VersionResponse{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := encoder.NewStreamEncoder(w).Encode(resp); err != nil {
		a.logger.Error("encoding response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// ExtractEntities handles POST /api/extract.
func (a *API) ExtractEntities(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var req ExtractRequest
	if err := decoder.NewStreamDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.EntityTypes == "" {
		http.Error(w, "entity_types is required", http.StatusBadRequest)
		return
	}

	entities, err := a.service.ExtractEntities(r.Context(), req.Text, req.EntityTypes)
	if err != nil {
		a.logger.Error("Entity extraction failed",
			zap.Int("text_length", len(req.Text)),
			zap.String("entity_types", req.EntityTypes),
			zap.Error(err))
		http.Error(w, fmt.Sprintf("entity extraction failed: %v", err), http.StatusBadGateway)
		return
	}

	a.logger.Info("Extraction request completed",
		zap.String("entity_types", req.EntityTypes),
		zap.Int("mentions", ner.Count(entities)))

	w.Header().Set("Content-Type", "application/json")
	if err := encoder.NewStreamEncoder(w).Encode(ExtractResponse{Entities: entities}); err != nil {
		a.logger.Error("encoding response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// AnnotateDocument handles POST / with a length-delimited binary document,
// answering with the annotated document in the same encoding. Request
// properties are accepted but the service pipeline decides the annotators.
func (a *API) AnnotateDocument(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	if props := r.URL.Query().Get("properties"); props != "" {
		a.logger.Debug("Ignoring request properties", zap.String("properties", props))
	}

	doc, err := codec.Read(http.MaxBytesReader(w, r.Body, codec.MaxMessageSize+binary.MaxVarintLen64))
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, err.Error(), status)
		return
	}

	if _, err := a.service.AnnotateDocument(r.Context(), doc).Unwrap(); err != nil {
		a.logger.Error("Annotation failed", zap.Error(err))
		http.Error(w, fmt.Sprintf("annotation failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", codec.MediaType)
	if err := codec.Write(w, doc); err != nil {
		a.logger.Error("encoding response", zap.Error(err))
	}
}

// handleRoot answers liveness probes against the server root.
func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, "ok")
}

// corsMiddleware adds permissive CORS headers for the API
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept, Origin")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
