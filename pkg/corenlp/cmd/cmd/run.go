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

package cmd

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/antflydb/antfly-go/libaf/healthserver"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the annotation server",
	Long: `Start the HTTP server exposing entity extraction at /api/extract and a
CoreNLP-compatible binary annotation endpoint at the root path.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("api-url", corenlp.DefaultAPIURL, "address the API server listens on")
	runCmd.Flags().Int("health-port", 4200, "health/metrics server port")
	mustBindPFlag("api_url", runCmd.Flags().Lookup("api-url"))
	mustBindPFlag("health_port", runCmd.Flags().Lookup("health-port"))
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Running as annotation server", zap.String("version", Version))

	cfg := loadConfig(logger)

	ready := &atomic.Bool{}
	ready.Store(false)
	readyC := make(chan struct{})

	healthserver.Start(logger, viper.GetInt("health_port"), ready.Load)

	go func() {
		<-readyC
		ready.Store(true)
		logger.Info("Annotation server is ready")
	}()

	if err := corenlp.RunAsServer(ctx, logger, cfg, readyC); err != nil {
		logger.Error("Annotation server failed", zap.Error(err))
		return err
	}
	return nil
}
