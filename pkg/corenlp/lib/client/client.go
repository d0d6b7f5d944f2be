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

// Package client posts annotation documents to a remote CoreNLP-compatible
// server and merges the annotated response back into the caller's document.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/bytedance/sonic"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/backends"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/codec"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	// MaxAttempts is the number of times one annotation request is tried.
	MaxAttempts = 4

	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 60 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "nifi-stanfordcorenlp-processor"

	MaxIdleConns        = 100
	MaxIdleConnsPerHost = 10
	IdleConnTimeout     = 90 * time.Second
)

// Config configures a Client.
type Config struct {
	// Properties are forwarded to the server with every request.
	Properties map[string]string

	// Host and Port address the server when Backends is empty. Host may
	// carry an http:// or https:// prefix.
	Host string
	Port int
	// Threads is the number of backend slots in the pool.
	Threads int
	// Backends overrides Host, Port and Threads.
	Backends backends.Pool

	// APIKey and APISecret enable basic authentication when both are set.
	APIKey    string
	APISecret string

	// Path is the request path on the server, empty for the root.
	Path string

	// Timeout bounds each attempt and defaults to DefaultTimeout. It is
	// ignored when HTTPClient is set.
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string

	Logger *zap.Logger
	// OnRetry is called after every failed attempt that will be retried.
	OnRetry func(attempt uint, err error)
	// Rand shuffles the backend pool.
	Rand *rand.Rand
}

// Client is safe for concurrent use.
type Client struct {
	pool       backends.Pool
	path       string
	propsJSON  string
	apiKey     string
	apiSecret  string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
	onRetry    func(uint, error)
}

// New creates a client. The backend pool is shuffled once here.
func New(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := cfg.Backends
	if len(pool) == 0 {
		var err error
		pool, err = backends.NewPool(cfg.Host, cfg.Port, cfg.Threads, cfg.Rand)
		if err != nil {
			return nil, fmt.Errorf("configuring backends: %w", err)
		}
	} else {
		pool = append(backends.Pool(nil), pool...)
		pool.Shuffle(cfg.Rand)
	}

	propsJSON, err := ServerProperties(cfg.Properties)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(&http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        MaxIdleConns,
				MaxIdleConnsPerHost: MaxIdleConnsPerHost,
				IdleConnTimeout:     IdleConnTimeout,
				ForceAttemptHTTP2:   true,
			}),
		}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		pool:       pool,
		path:       cfg.Path,
		propsJSON:  propsJSON,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     logger,
		onRetry:    cfg.OnRetry,
	}, nil
}

// ServerProperties returns the compact JSON object of props sent to the
// server, with the serialization properties forced to the binary codec.
func ServerProperties(props map[string]string) (string, error) {
	server := make(map[string]string, len(props)+4)
	for k, v := range props {
		server[k] = v
	}
	server["inputFormat"] = "serialized"
	server["outputFormat"] = "serialized"
	server["inputSerializer"] = codec.SerializerClass
	server["outputSerializer"] = codec.SerializerClass

	data, err := sonic.ConfigStd.Marshal(server)
	if err != nil {
		return "", fmt.Errorf("encoding server properties: %w", err)
	}
	return string(data), nil
}

// Backends returns a copy of the shuffled backend pool.
func (c *Client) Backends() backends.Pool {
	return append(backends.Pool(nil), c.pool...)
}

// Properties returns the JSON properties sent with every request.
func (c *Client) Properties() string {
	return c.propsJSON
}

// Annotate sends doc to the primary backend and merges the response into it.
// It does not return an error: when every attempt fails, the last failure is
// recorded on doc.Exception as a *RetriesExhaustedError.
func (c *Client) Annotate(ctx context.Context, doc *annotation.Document) {
	backend, _ := c.pool.Primary()

	msg, err := codec.Encode(doc)
	if err != nil {
		c.logger.Error("Could not annotate via server", zap.Error(err))
		doc.Exception = fmt.Errorf("encoding document: %w", err)
		return
	}
	target := backend.URL(c.path, "properties="+url.QueryEscape(c.propsJSON))

	var (
		attempts uint
		response *annotation.Document
	)
	err = retry.Do(
		func() error {
			attempts++
			resp, err := c.doAnnotation(ctx, target, msg)
			if err != nil {
				return err
			}
			response = resp
			return nil
		},
		retry.Attempts(MaxAttempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			if n+1 >= MaxAttempts {
				return
			}
			c.logger.Warn("Annotation attempt failed, retrying",
				zap.String("backend", backend.String()),
				zap.Uint("attempt", n+1),
				zap.Error(err))
			if c.onRetry != nil {
				c.onRetry(n+1, err)
			}
		}),
	)
	if err != nil {
		exhausted := &RetriesExhaustedError{Attempts: attempts, Err: err}
		c.logger.Error("Could not annotate via server",
			zap.String("backend", backend.String()),
			zap.Error(exhausted))
		doc.Exception = exhausted
		return
	}
	doc.Merge(response)
}

func (c *Client) doAnnotation(ctx context.Context, target *url.URL, msg []byte) (*annotation.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(msg))
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
	}
	req.ContentLength = int64(len(msg))
	req.Header.Set("Content-Type", codec.MediaType)
	req.Header.Set("Content-Length", strconv.Itoa(len(msg)))
	req.Header.Set("Accept-Charset", "utf-8")
	req.Header.Set("User-Agent", c.userAgent)
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", target.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	doc, err := codec.Read(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return doc, nil
}

// CheckStatus reports whether the server at rawURL is alive, meaning it
// answers a GET with a status in [200, 400). Transport failures are returned.
func (c *Client) CheckStatus(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("creating status request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("checking status of %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode >= 200 && resp.StatusCode < 400, nil
}

// Process annotates text and returns the resulting document.
func (c *Client) Process(ctx context.Context, text string) *annotation.Document {
	doc := annotation.New(text)
	c.Annotate(ctx, doc)
	return doc
}

func (c *Client) authenticate(req *http.Request) {
	if c.apiKey != "" && c.apiSecret != "" {
		req.SetBasicAuth(c.apiKey, c.apiSecret)
	}
}

// StatusError is returned for a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// RetriesExhaustedError records the last failure after every attempt failed.
type RetriesExhaustedError struct {
	Attempts uint
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("annotation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

// IsRetriesExhausted reports whether err carries a RetriesExhaustedError.
func IsRetriesExhausted(err error) bool {
	var target *RetriesExhaustedError
	return errors.As(err, &target)
}
