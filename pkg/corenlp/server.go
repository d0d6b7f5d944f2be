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
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout is the default time to wait for graceful shutdown
const DefaultShutdownTimeout = 30 * time.Second

// DefaultAPIURL is used when Config.APIURL is empty.
const DefaultAPIURL = "http://localhost:9000"

// RunAsServer serves the annotation API until ctx is done.
// If readyC is non-nil, it will be closed when the server is ready to accept requests.
func RunAsServer(ctx context.Context, zl *zap.Logger, config Config, readyC chan struct{}) error {
	zl = zl.Named("corenlp")
	zl.Info("Starting annotation server", zap.Any("config", config))

	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return fmt.Errorf("%w: api url %q: %v", ErrInvalidConfig, apiURL, err)
	}

	service, err := NewService(config, zl)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	srv := &http.Server{
		Addr:              u.Host,
		Handler:           NewAPI(zl.Named("api"), service),
		ReadHeaderTimeout: 30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zl.Info("API server starting", zap.String("address", apiURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	if readyC != nil {
		close(readyC)
	}

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		zl.Info("Shutdown signal received, starting graceful shutdown...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer shutdownCancel()

	srv.SetKeepAlivesEnabled(false)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("Graceful shutdown failed, forcing close",
			zap.Error(err),
			zap.Duration("timeout", DefaultShutdownTimeout))
		_ = srv.Close()
	} else {
		zl.Info("Graceful shutdown completed successfully")
	}

	zl.Info("HTTP server stopped")
	return nil
}
