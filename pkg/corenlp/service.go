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

// Package corenlp extracts named entities from text through an in-process
// or a remote annotation pipeline and serves the result over HTTP.
package corenlp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/client"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/gazetteer"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/ner"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/pipelines"
	"go.uber.org/zap"
)

// ErrNoRemote is returned by CheckStatus when the service runs locally.
var ErrNoRemote = errors.New("no remote annotation server configured")

// Service annotates text and reduces the result to entity mentions. The
// pipeline variant is chosen once at construction: remote when a host is
// configured, in-process otherwise.
type Service struct {
	props    Properties
	pipeline pipelines.Pipeline
	local    *pipelines.Local
	remote   *client.Client
	cache    *EntityCache
	logger   *zap.Logger
}

// NewService builds the pipeline described by cfg.
func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	props, err := ParseProperties(cfg.Properties)
	if err != nil {
		return nil, err
	}

	s := &Service{props: props, logger: logger}

	if cfg.Remote.Host != "" {
		c, err := client.New(client.Config{
			Properties: props.Map(),
			Host:       cfg.Remote.Host,
			Port:       ParsePort(cfg.Remote.Port, logger),
			Threads:    props.Threads,
			APIKey:     cfg.Remote.APIKey,
			APISecret:  cfg.Remote.APISecret,
			Path:       cfg.Remote.Path,
			Timeout:    cfg.Remote.Timeout,
			Logger:     logger.Named("client"),
			OnRetry: func(uint, error) {
				RecordRemoteRetry()
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		s.remote = c
		s.pipeline = pipelines.NewRemote(c)
		logger.Info("Using remote annotation pipeline",
			zap.Stringer("backend", c.Backends()[0]),
			zap.Int("threads", props.Threads))
	} else {
		local, err := newLocalPipeline(props, logger)
		if err != nil {
			return nil, err
		}
		s.local = local
		s.pipeline = local
	}

	if cfg.EntityCacheTTL >= 0 {
		s.cache = NewEntityCache(cfg.EntityCacheTTL, logger.Named("entity-cache"))
	}
	return s, nil
}

func newLocalPipeline(props Properties, logger *zap.Logger) (*pipelines.Local, error) {
	dict, err := gazetteer.WithFiles(props.GazetteerFiles)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	annotators, err := gazetteer.ParseAnnotators(props.Annotators)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	local, err := pipelines.NewLocal(pipelines.LocalConfig{
		Threads: props.Threads,
		Logger:  logger.Named("local"),
	}, func() (pipelines.Engine, error) {
		return gazetteer.NewEngine(gazetteer.Config{
			Annotators: annotators,
			Gazetteer:  dict,
			Logger:     logger.Named("engine"),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	logger.Info("Using local annotation pipeline",
		zap.Strings("annotators", annotators),
		zap.Int("gazetteer_entries", dict.Len()),
		zap.Int("threads", local.Threads()))
	return local, nil
}

// Properties returns the sanitized properties.
func (s *Service) Properties() Properties { return s.props }

// Pipeline returns the pipeline chosen at construction.
func (s *Service) Pipeline() pipelines.Pipeline { return s.pipeline }

// Annotate runs text through the pipeline.
func (s *Service) Annotate(ctx context.Context, text string) annotation.Result {
	name := s.pipeline.Name()
	RecordAnnotationRequest(name)
	res := pipelines.Process(ctx, s.pipeline, text)
	if !res.OK() {
		RecordAnnotationFailure(name)
	}
	return res
}

// AnnotateDocument runs doc through the pipeline in place.
func (s *Service) AnnotateDocument(ctx context.Context, doc *annotation.Document) annotation.Result {
	name := s.pipeline.Name()
	RecordAnnotationRequest(name)
	s.pipeline.Annotate(ctx, doc)
	res := annotation.ResultOf(doc)
	if !res.OK() {
		RecordAnnotationFailure(name)
	}
	return res
}

// ExtractEntities annotates text and returns the mentions of every label in
// the comma separated entityTypes. Every requested label is a key of the
// result, even when nothing matched. A failed annotation is returned as an
// error and produces no partial result.
func (s *Service) ExtractEntities(ctx context.Context, text, entityTypes string) (map[string][]string, error) {
	if s.cache != nil {
		return s.cache.Extract(ctx, text, entityTypes, s.extract)
	}
	return s.extract(ctx, text, entityTypes)
}

func (s *Service) extract(ctx context.Context, text, entityTypes string) (map[string][]string, error) {
	start := time.Now()
	name := s.pipeline.Name()

	doc, err := s.Annotate(ctx, text).Unwrap()
	if err != nil {
		RecordExtractionDuration(name, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("extracting entities: %w", err)
	}

	result := ner.Extract(ner.Mentions(doc), ner.ParseLabels(entityTypes))

	RecordExtractionDuration(name, "ok", time.Since(start).Seconds())
	RecordEntityCreation(result)
	s.logger.Debug("Extracted entities",
		zap.String("pipeline", name),
		zap.Int("text_length", len(text)),
		zap.Int("mentions", ner.Count(result)))
	return result, nil
}

// CheckStatus reports whether the server at url answers with a 2xx or 3xx
// status, using the remote credentials.
func (s *Service) CheckStatus(ctx context.Context, url string) (bool, error) {
	if s.remote == nil {
		return false, ErrNoRemote
	}
	return s.remote.CheckStatus(ctx, url)
}

// CacheStats returns entity cache statistics, or false when caching is off.
func (s *Service) CacheStats() (EntityCacheStats, bool) {
	if s.cache == nil {
		return EntityCacheStats{}, false
	}
	return s.cache.Stats(), true
}

// Close releases the pipeline and the cache.
func (s *Service) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	if s.local != nil {
		return s.local.Close()
	}
	return nil
}
