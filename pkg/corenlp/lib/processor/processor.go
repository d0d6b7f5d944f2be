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

// Package processor attaches extracted entities to pipeline records. A
// record is routed to success with its content enriched, or to failure
// unchanged.
package processor

import (
	"context"
	"errors"
	"maps"

	"github.com/goccy/go-json"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/jsontext"
	"go.uber.org/zap"
)

// Relationship is the outcome a processed record is routed to.
type Relationship string

const (
	Success Relationship = "success"
	Failure Relationship = "failure"
)

const (
	// AttrOutput holds the JSON entity map on a successful record.
	AttrOutput = "output"
	// AttrEntityTypes overrides the configured entity types for one record.
	AttrEntityTypes = "entityTypes"
)

// ErrNoEntityTypes is returned when a processor is built without entity types.
var ErrNoEntityTypes = errors.New("entity types are required")

// Extractor reduces text to entity label -> mention texts.
type Extractor interface {
	ExtractEntities(ctx context.Context, text, entityTypes string) (map[string][]string, error)
}

// Record is a unit of pipeline data.
type Record struct {
	Content    []byte
	Attributes map[string]string
}

// Config configures a Processor.
type Config struct {
	Extractor   Extractor
	EntityTypes string
	// Path selects the analyzed text from JSON content. Empty analyzes the
	// whole content.
	Path   string
	Logger *zap.Logger
}

// Processor enriches records with named entities.
type Processor struct {
	extractor   Extractor
	entityTypes string
	path        string
	logger      *zap.Logger
}

// New creates a Processor.
func New(cfg Config) (*Processor, error) {
	if cfg.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if cfg.EntityTypes == "" {
		return nil, ErrNoEntityTypes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		extractor:   cfg.Extractor,
		entityTypes: cfg.EntityTypes,
		path:        cfg.Path,
		logger:      logger.Named("processor"),
	}, nil
}

// Process extracts entities from rec. On success the returned record carries
// the entity map in the output attribute and the content merged with the
// entity lists. On failure rec is returned as is.
func (p *Processor) Process(ctx context.Context, rec Record) (Record, Relationship) {
	if len(rec.Content) == 0 {
		p.logger.Debug("Empty record content")
		return rec, Failure
	}

	entityTypes := p.entityTypes
	if v := rec.Attributes[AttrEntityTypes]; v != "" {
		entityTypes = v
	}

	content := string(rec.Content)
	text := jsontext.Extract(content, p.path, p.logger)

	entities, err := p.extractor.ExtractEntities(ctx, text, entityTypes)
	if err != nil {
		p.logger.Error("Failed to extract entities", zap.Error(err))
		return rec, Failure
	}

	merged := make(map[string]any)
	if err := json.Unmarshal(rec.Content, &merged); err != nil || merged == nil {
		p.logger.Warn("Record content is not a JSON object, writing entities only", zap.Error(err))
		merged = make(map[string]any)
	}
	for label, mentions := range entities {
		merged[label] = mentions
	}

	output, err := json.Marshal(entities)
	if err != nil {
		p.logger.Error("Failed to encode entities", zap.Error(err))
		return rec, Failure
	}
	body, err := json.Marshal(merged)
	if err != nil {
		p.logger.Error("Failed to encode record content", zap.Error(err))
		return rec, Failure
	}

	attrs := make(map[string]string, len(rec.Attributes)+1)
	maps.Copy(attrs, rec.Attributes)
	attrs[AttrOutput] = string(output)

	return Record{Content: body, Attributes: attrs}, Success
}
