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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParsePropertiesDefaults(t *testing.T) {
	p, err := ParseProperties(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tokenize", "ssplit", "pos", "lemma", "ner"}, p.Annotators)
	assert.Equal(t, 1, p.Threads)
	assert.Empty(t, p.GazetteerFiles)
	assert.Empty(t, p.Overrides)
}

func TestParsePropertiesThreads(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 1, false},
		{"4", 4, false},
		{"4.0", 4, false},
		{"2.7", 2, false},
		{"0", 0, true},
		{"0.5", 0, true},
		{"-3", 0, true},
		{"many", 0, true},
		{"NaN", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParseProperties(map[string]string{PropThreads: tt.in})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Threads)
		})
	}
}

func TestPropertiesMapRoundTrip(t *testing.T) {
	raw := map[string]string{
		PropAnnotators:         " tokenize , ssplit,ner",
		PropThreads:            "3.9",
		PropGazetteerFiles:     "a.yaml, b.yaml",
		"ner.applyFineGrained": "false",
	}
	p, err := ParseProperties(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"tokenize", "ssplit", "ner"}, p.Annotators)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, p.GazetteerFiles)
	assert.Equal(t, map[string]string{"ner.applyFineGrained": "false"}, p.Overrides)

	assert.Equal(t, map[string]string{
		PropAnnotators:         "tokenize,ssplit,ner",
		PropThreads:            "3",
		PropGazetteerFiles:     "a.yaml,b.yaml",
		"ner.applyFineGrained": "false",
	}, p.Map())
}

func TestPropertiesFromJSON(t *testing.T) {
	props, err := PropertiesFromJSON(`{"annotators":"tokenize,ssplit","threads":4,"ner.useSUTime":false,"extra":{"a":1}}`)
	require.NoError(t, err)
	assert.Equal(t, "tokenize,ssplit", props["annotators"])
	assert.Equal(t, "4", props["threads"])
	assert.Equal(t, "false", props["ner.useSUTime"])
	assert.JSONEq(t, `{"a":1}`, props["extra"])

	props, err = PropertiesFromJSON("")
	require.NoError(t, err)
	assert.Empty(t, props)

	props, err = PropertiesFromJSON("{not json")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Empty(t, props)
}

func TestParsePort(t *testing.T) {
	logger := zaptest.NewLogger(t)
	assert.Equal(t, 9001, ParsePort("9001", logger))
	assert.Equal(t, DefaultPort, ParsePort("", logger))
	assert.Equal(t, DefaultPort, ParsePort("ninety", logger))
	assert.Equal(t, DefaultPort, ParsePort("90.5", nil))
}
