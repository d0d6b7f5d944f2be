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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTarget(t *testing.T) {
	tests := []struct {
		raw     string
		host    string
		port    int
		wantErr bool
	}{
		{raw: "http://nlp.local", host: "http://nlp.local", port: 80},
		{raw: "https://nlp.local/status", host: "https://nlp.local", port: 443},
		{raw: "HTTP://nlp.local:9000", host: "http://nlp.local", port: 9000},
		{raw: "ftp://nlp.local", wantErr: true},
		{raw: "file://nlp.local/etc/passwd", wantErr: true},
		{raw: "gopher://nlp.local:70", wantErr: true},
		{raw: "nlp.local:9000", wantErr: true},
		{raw: "http://nlp.local:port", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, port, err := statusTarget(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
		})
	}
}
