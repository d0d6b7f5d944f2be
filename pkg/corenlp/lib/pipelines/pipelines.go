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

// Package pipelines provides the uniform annotation contract shared by the
// in-process and remote annotation backends.
package pipelines

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/client"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Pipeline annotates documents in place. Failures are recorded on the
// document's exception marker rather than returned.
type Pipeline interface {
	Annotate(ctx context.Context, doc *annotation.Document)
	Name() string
}

// Engine is an in-process annotator. Implementations need not be safe for
// concurrent use; Local serializes access per engine.
type Engine interface {
	Annotate(ctx context.Context, doc *annotation.Document) error
	Close() error
}

// EngineFactory creates one engine instance.
type EngineFactory func() (Engine, error)

var (
	_ Pipeline = (*Local)(nil)
	_ Pipeline = (*Remote)(nil)
)

// LocalConfig holds configuration for creating a Local pipeline.
type LocalConfig struct {
	// Threads determines how many documents can be annotated concurrently
	// (0 = auto-detect from CPU count).
	Threads int

	// Logger for logging (nil = no logging)
	Logger *zap.Logger
}

// Local runs annotation in-process over a pool of engines.
type Local struct {
	engines []Engine
	sem     *semaphore.Weighted
	free    chan int
	logger  *zap.Logger
}

// NewLocal creates cfg.Threads engines with newEngine.
func NewLocal(cfg LocalConfig, newEngine EngineFactory) (*Local, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	engines := make([]Engine, threads)
	for i := range engines {
		engine, err := newEngine()
		if err != nil {
			for j := 0; j < i; j++ {
				_ = engines[j].Close()
			}
			logger.Error("Failed to create annotation engine",
				zap.Int("index", i),
				zap.Error(err))
			return nil, fmt.Errorf("creating annotation engine %d: %w", i, err)
		}
		engines[i] = engine
	}

	free := make(chan int, threads)
	for i := range threads {
		free <- i
	}

	logger.Info("Created local annotation pipeline", zap.Int("threads", threads))

	return &Local{
		engines: engines,
		sem:     semaphore.NewWeighted(int64(threads)),
		free:    free,
		logger:  logger,
	}, nil
}

// Name implements Pipeline.
func (l *Local) Name() string { return "local" }

// Threads returns the number of engines in the pool.
func (l *Local) Threads() int { return len(l.engines) }

// Annotate implements Pipeline. It blocks while every engine is busy.
func (l *Local) Annotate(ctx context.Context, doc *annotation.Document) {
	if doc == nil {
		return
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		doc.Exception = fmt.Errorf("acquiring engine slot: %w", err)
		return
	}
	defer l.sem.Release(1)

	// A slot guarantees an idle engine.
	idx := <-l.free
	defer func() { l.free <- idx }()

	l.logger.Debug("Using engine for annotation",
		zap.Int("engineIndex", idx),
		zap.Int("text_length", len(doc.Text)))

	if err := l.runEngine(ctx, idx, doc); err != nil {
		l.logger.Error("Local annotation failed",
			zap.Int("engineIndex", idx),
			zap.Error(err))
		doc.Exception = fmt.Errorf("annotating locally: %w", err)
	}
}

// ErrEnginePanic marks an engine that panicked while annotating.
var ErrEnginePanic = errors.New("annotation engine panicked")

func (l *Local) runEngine(ctx context.Context, idx int, doc *annotation.Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrEnginePanic, r)
		}
	}()
	return l.engines[idx].Annotate(ctx, doc)
}

// Close releases every engine.
func (l *Local) Close() error {
	var lastErr error
	for i, engine := range l.engines {
		if err := engine.Close(); err != nil {
			l.logger.Warn("Failed to close engine",
				zap.Int("index", i),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// Remote delegates annotation to a remote server.
type Remote struct {
	client *client.Client
}

// NewRemote wraps c.
func NewRemote(c *client.Client) *Remote {
	return &Remote{client: c}
}

// Name implements Pipeline.
func (r *Remote) Name() string { return "remote" }

// Client returns the underlying client.
func (r *Remote) Client() *client.Client { return r.client }

// Annotate implements Pipeline.
func (r *Remote) Annotate(ctx context.Context, doc *annotation.Document) {
	if doc == nil {
		return
	}
	r.client.Annotate(ctx, doc)
}

// Process annotates text with p and classifies the outcome.
func Process(ctx context.Context, p Pipeline, text string) annotation.Result {
	doc := annotation.New(text)
	p.Annotate(ctx, doc)
	return annotation.ResultOf(doc)
}
