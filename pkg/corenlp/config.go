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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// ErrInvalidConfig wraps every configuration error reported at construction.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultAnnotators is used when the annotators property is empty.
const DefaultAnnotators = "tokenize,ssplit,pos,lemma,ner"

// DefaultPort is used when the remote port cannot be parsed.
const DefaultPort = 9000

// Property names understood by the service.
const (
	PropAnnotators     = "annotators"
	PropThreads        = "threads"
	PropGazetteerFiles = "gazetteer.files"
)

// Properties is the sanitized view of the flat NLP property map.
type Properties struct {
	Annotators []string
	Threads    int
	// GazetteerFiles extend the built-in dictionary of the in-process engine.
	GazetteerFiles []string
	// Overrides holds every other property, forwarded as is.
	Overrides map[string]string
}

// ParseProperties sanitizes raw once. Threads must parse as a positive
// number; fractional values are truncated.
func ParseProperties(raw map[string]string) (Properties, error) {
	p := Properties{
		Threads:   1,
		Overrides: make(map[string]string),
	}
	for k, v := range raw {
		switch k {
		case PropAnnotators, PropThreads, PropGazetteerFiles:
		default:
			p.Overrides[k] = v
		}
	}

	annotators := raw[PropAnnotators]
	if strings.TrimSpace(annotators) == "" {
		annotators = DefaultAnnotators
	}
	p.Annotators = splitList(annotators)

	if s := strings.TrimSpace(raw[PropThreads]); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Properties{}, fmt.Errorf("%w: threads %q is not a number", ErrInvalidConfig, s)
		}
		threads := int(f)
		if threads < 1 {
			return Properties{}, fmt.Errorf("%w: threads must be at least 1, got %q", ErrInvalidConfig, s)
		}
		p.Threads = threads
	}

	p.GazetteerFiles = splitList(raw[PropGazetteerFiles])
	return p, nil
}

// Map flattens p back into the property map sent to a remote server.
func (p Properties) Map() map[string]string {
	out := make(map[string]string, len(p.Overrides)+3)
	for k, v := range p.Overrides {
		out[k] = v
	}
	out[PropAnnotators] = strings.Join(p.Annotators, ",")
	out[PropThreads] = strconv.Itoa(p.Threads)
	if len(p.GazetteerFiles) > 0 {
		out[PropGazetteerFiles] = strings.Join(p.GazetteerFiles, ",")
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// PropertiesFromJSON converts a JSON object into a flat property map. Non
// string values are rendered in their JSON form.
func PropertiesFromJSON(s string) (map[string]string, error) {
	props := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return props, nil
	}
	var raw map[string]any
	if err := sonic.ConfigStd.UnmarshalFromString(s, &raw); err != nil {
		return props, fmt.Errorf("%w: reading json properties: %v", ErrInvalidConfig, err)
	}
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			props[k] = val
		case float64:
			props[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case nil:
			props[k] = ""
		default:
			data, err := sonic.ConfigStd.MarshalToString(val)
			if err != nil {
				return props, fmt.Errorf("%w: property %q: %v", ErrInvalidConfig, k, err)
			}
			props[k] = data
		}
	}
	return props, nil
}

// ParsePort parses a remote port, falling back to DefaultPort on error.
func ParsePort(s string, logger *zap.Logger) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPort
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to read port as integer, using default",
				zap.String("port", s),
				zap.Int("default", DefaultPort),
				zap.Error(err))
		}
		return DefaultPort
	}
	return port
}

// RemoteConfig addresses a remote annotation server.
type RemoteConfig struct {
	// Host enables the remote pipeline when set. It may carry an http:// or
	// https:// prefix.
	Host      string        `mapstructure:"host" json:"host,omitempty"`
	Port      string        `mapstructure:"port" json:"port,omitempty"`
	APIKey    string        `mapstructure:"api_key" json:"-"`
	APISecret string        `mapstructure:"api_secret" json:"-"`
	Path      string        `mapstructure:"path" json:"path,omitempty"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout,omitempty"`
}

// Config configures a Service and its server.
type Config struct {
	Properties map[string]string `mapstructure:"properties" json:"properties,omitempty"`
	Remote     RemoteConfig      `mapstructure:"remote" json:"remote"`

	// EntityCacheTTL of zero uses EntityCacheTTL; a negative value disables
	// caching.
	EntityCacheTTL time.Duration `mapstructure:"entity_cache_ttl" json:"entity_cache_ttl,omitempty"`

	APIURL string `mapstructure:"api_url" json:"api_url,omitempty"`
}
