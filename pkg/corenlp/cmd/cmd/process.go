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
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/processor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processCmd = &cobra.Command{
	Use:   "process <file>...",
	Short: "Run files through the record processor",
	Long: `Publish every file as a record, route it through the entity processor and
print each routed record as one JSON line with its relationship, attributes
and content.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().String("entity-types", "location,organization,person", "comma separated entity labels")
	processCmd.Flags().String("path", "", "JSON path selecting the analyzed text")
}

// routedRecord is the printed form of a processed record.
type routedRecord struct {
	Relationship string            `json:"relationship"`
	Attributes   map[string]string `json:"attributes"`
	Content      string            `json:"content"`
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	entityTypes, _ := cmd.Flags().GetString("entity-types")
	path, _ := cmd.Flags().GetString("path")

	service, err := corenlp.NewService(loadConfig(logger), logger)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	p, err := processor.New(processor.Config{
		Extractor:   service,
		EntityTypes: entityTypes,
		Path:        path,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	records := make([]processor.Record, 0, len(args))
	for _, name := range args {
		content, err := os.ReadFile(name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		records = append(records, processor.Record{
			Content:    content,
			Attributes: map[string]string{"filename": filepath.Base(name), "path": name},
		})
	}

	return routeRecords(ctx, p, records, cmd.OutOrStdout(), logger)
}

// routeRecords publishes records through a processor router over an in-memory
// pub/sub and writes every routed record to w.
func routeRecords(ctx context.Context, p *processor.Processor, records []processor.Record, w io.Writer, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	adapter := processor.NewLoggerAdapter(logger)
	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, adapter)
	defer func() { _ = pubSub.Close() }()

	router, err := processor.NewRouter(p, processor.RouterConfig{
		Subscriber: pubSub,
		Publisher:  pubSub,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	success, err := pubSub.Subscribe(ctx, processor.TopicSuccess)
	if err != nil {
		return err
	}
	failure, err := pubSub.Subscribe(ctx, processor.TopicFailure)
	if err != nil {
		return err
	}

	routerErr := make(chan error, 1)
	go func() { routerErr <- processor.Run(ctx, router) }()
	select {
	case <-router.Running():
	case err := <-routerErr:
		return err
	}
	defer func() { _ = router.Close() }()

	for _, rec := range records {
		if err := pubSub.Publish(processor.TopicRecords, rec.Message()); err != nil {
			return fmt.Errorf("publishing record: %w", err)
		}
	}

	enc := json.NewEncoder(w)
	for range records {
		var (
			msg *message.Message
			rel processor.Relationship
		)
		select {
		case msg = <-success:
			rel = processor.Success
		case msg = <-failure:
			rel = processor.Failure
		case <-ctx.Done():
			return ctx.Err()
		}
		if msg == nil {
			return fmt.Errorf("subscription closed before every record was routed")
		}
		msg.Ack()

		rec := processor.RecordFromMessage(msg)
		if err := enc.Encode(routedRecord{
			Relationship: string(rel),
			Attributes:   rec.Attributes,
			Content:      string(rec.Content),
		}); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}
	return nil
}
