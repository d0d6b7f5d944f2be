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
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/processor"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRouteRecords(t *testing.T) {
	// Router goroutines can log after the test returns.
	logger := zap.NewNop()
	service, err := corenlp.NewService(corenlp.Config{EntityCacheTTL: -1}, logger)
	require.NoError(t, err)
	defer func() { _ = service.Close() }()

	p, err := processor.New(processor.Config{
		Extractor:   service,
		EntityTypes: "location,organization",
		Path:        "$.content",
		Logger:      logger,
	})
	require.NoError(t, err)

	records := []processor.Record{
		{
			Content:    []byte(`{"content":"Albuquerque Business First is located in Albuquerque."}`),
			Attributes: map[string]string{"filename": "a.json"},
		},
		{
			Attributes: map[string]string{"filename": "empty.json"},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, routeRecords(ctx, p, records, &out, logger))

	routed := map[string]routedRecord{}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var rec routedRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		routed[rec.Attributes["filename"]] = rec
	}
	require.Len(t, routed, 2)

	ok := routed["a.json"]
	assert.Equal(t, "success", ok.Relationship)
	assert.JSONEq(t, `{"location":["Albuquerque"],"organization":["Albuquerque Business First"]}`, ok.Attributes[processor.AttrOutput])
	assert.JSONEq(t, `{"content":"Albuquerque Business First is located in Albuquerque.","location":["Albuquerque"],"organization":["Albuquerque Business First"]}`, ok.Content)

	assert.Equal(t, "failure", routed["empty.json"].Relationship)
	assert.Empty(t, routed["empty.json"].Content)
}

func TestReadInput(t *testing.T) {
	c := &cobra.Command{}
	c.SetIn(strings.NewReader("from stdin"))

	got, err := readInput(c, nil)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", string(got))

	_, err = readInput(c, []string{"testdata/does-not-exist.txt"})
	assert.Error(t, err)
}
