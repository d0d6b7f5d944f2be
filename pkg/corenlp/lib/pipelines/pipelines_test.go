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

package pipelines

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/client"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubEngine struct {
	err     error
	delay   time.Duration
	active  *atomic.Int32
	peak    *atomic.Int32
	closed  atomic.Bool
	invoked atomic.Int32
}

func (s *stubEngine) Annotate(ctx context.Context, doc *annotation.Document) error {
	s.invoked.Add(1)
	if s.active != nil {
		n := s.active.Add(1)
		defer s.active.Add(-1)
		for {
			p := s.peak.Load()
			if n <= p || s.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return s.err
	}
	doc.Mentions = []annotation.Mention{{SentenceIndex: -1, TokenBegin: 0, TokenEnd: 1, Type: "CITY", Text: doc.Text}}
	return nil
}

func (s *stubEngine) Close() error {
	s.closed.Store(true)
	return nil
}

func TestLocalAnnotate(t *testing.T) {
	engine := &stubEngine{}
	p, err := NewLocal(LocalConfig{Threads: 1, Logger: zaptest.NewLogger(t)}, func() (Engine, error) { return engine, nil })
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name())
	assert.Equal(t, 1, p.Threads())

	res := Process(context.Background(), p, "Albuquerque")
	require.True(t, res.OK())
	require.Len(t, res.Document().Mentions, 1)
	assert.Equal(t, "Albuquerque", res.Document().Mentions[0].Text)

	require.NoError(t, p.Close())
	assert.True(t, engine.closed.Load())
}

func TestLocalFoldsEngineErrors(t *testing.T) {
	boom := errors.New("annotator crashed")
	p, err := NewLocal(LocalConfig{Threads: 1}, func() (Engine, error) { return &stubEngine{err: boom}, nil })
	require.NoError(t, err)

	res := Process(context.Background(), p, "text")
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err(), boom)
	assert.ErrorIs(t, res.Document().Exception, boom)
}

func TestLocalLimitsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	var created []*stubEngine
	p, err := NewLocal(LocalConfig{Threads: 2}, func() (Engine, error) {
		e := &stubEngine{delay: 20 * time.Millisecond, active: &active, peak: &peak}
		created = append(created, e)
		return e, nil
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Annotate(context.Background(), annotation.New("text "+strconv.Itoa(i)))
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.EqualValues(t, 8, created[0].invoked.Load()+created[1].invoked.Load())
}

func TestLocalCancelledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	p, err := NewLocal(LocalConfig{Threads: 1}, func() (Engine, error) {
		return blockingEngine(release), nil
	})
	require.NoError(t, err)

	go p.Annotate(context.Background(), annotation.New("busy"))
	require.Eventually(t, func() bool {
		if p.sem.TryAcquire(1) {
			p.sem.Release(1)
			return false
		}
		return true
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	doc := annotation.New("waiting")
	p.Annotate(ctx, doc)
	assert.ErrorIs(t, doc.Exception, context.DeadlineExceeded)
	close(release)
}

type blockingEngine chan struct{}

func (b blockingEngine) Annotate(ctx context.Context, doc *annotation.Document) error {
	<-b
	return nil
}

func (b blockingEngine) Close() error { return nil }

func TestNewLocalEngineFailure(t *testing.T) {
	var made []*stubEngine
	n := 0
	_, err := NewLocal(LocalConfig{Threads: 3}, func() (Engine, error) {
		n++
		if n == 3 {
			return nil, errors.New("no gazetteer")
		}
		e := &stubEngine{}
		made = append(made, e)
		return e, nil
	})
	require.Error(t, err)
	for _, e := range made {
		assert.True(t, e.closed.Load())
	}
}

func TestRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc, err := codec.Read(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		doc.Mentions = []annotation.Mention{{SentenceIndex: -1, Type: "ORGANIZATION", Text: "Production Resource Group"}}
		_ = codec.Write(w, doc)
	}))
	defer srv.Close()

	port, err := strconv.Atoi(srv.URL[strings.LastIndex(srv.URL, ":")+1:])
	require.NoError(t, err)
	c, err := client.New(client.Config{Host: "http://127.0.0.1", Port: port, HTTPClient: srv.Client()})
	require.NoError(t, err)

	p := NewRemote(c)
	assert.Equal(t, "remote", p.Name())
	assert.Same(t, c, p.Client())

	res := Process(context.Background(), p, "The company, Production Resource Group, has worked on movies.")
	require.True(t, res.OK())
	require.Len(t, res.Document().Mentions, 1)
	assert.Equal(t, "ORGANIZATION", res.Document().Mentions[0].Type)
}

func TestRemoteFailureIsTagged(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	port, _ := strconv.Atoi(srv.URL[strings.LastIndex(srv.URL, ":")+1:])
	c, err := client.New(client.Config{Host: "http://127.0.0.1", Port: port, HTTPClient: srv.Client()})
	require.NoError(t, err)

	res := Process(context.Background(), NewRemote(c), "text")
	srv.Close()
	assert.False(t, res.OK())
	assert.True(t, client.IsRetriesExhausted(res.Err()))

	var status *client.StatusError
	require.ErrorAs(t, res.Err(), &status)
	assert.Equal(t, http.StatusNotFound, status.StatusCode)
}

type panickingEngine struct{}

func (panickingEngine) Annotate(context.Context, *annotation.Document) error {
	panic("slice bounds out of range")
}

func (panickingEngine) Close() error { return nil }

func TestLocalFoldsEnginePanics(t *testing.T) {
	p, err := NewLocal(LocalConfig{Threads: 1}, func() (Engine, error) { return panickingEngine{}, nil })
	require.NoError(t, err)

	res := Process(context.Background(), p, "text")
	require.False(t, res.OK())
	assert.ErrorIs(t, res.Err(), ErrEnginePanic)

	// The engine slot is returned after a panic.
	res = Process(context.Background(), p, "again")
	assert.ErrorIs(t, res.Err(), ErrEnginePanic)
}
