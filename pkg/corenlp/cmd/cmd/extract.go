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
	"syscall"

	"github.com/goccy/go-json"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/jsontext"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract entities from a file or stdin",
	Long: `Annotate the text of a file (or stdin) and print the entity map as JSON.

Examples:
  # Extract locations and organizations from a text file
  corenlp extract --entity-types location,organization article.txt

  # Analyze selected fields of a JSON record
  corenlp extract --path "$.['title','content']" record.json

  # Use a remote CoreNLP server
  corenlp extract --host http://localhost --port 9000 article.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("entity-types", "location,organization,person", "comma separated entity labels")
	extractCmd.Flags().String("path", "", "JSON path selecting the analyzed text")
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	entityTypes, _ := cmd.Flags().GetString("entity-types")
	path, _ := cmd.Flags().GetString("path")

	input, err := readInput(cmd, args)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	service, err := corenlp.NewService(loadConfig(logger), logger)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	text := jsontext.Extract(string(input), path, logger)
	entities, err := service.ExtractEntities(ctx, text, entityTypes)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding entities: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
