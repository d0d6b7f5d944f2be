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

// Package jsontext selects the text to analyze from a JSON record with a
// JSON path expression.
package jsontext

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/vmware-labs/yaml-jsonpath/pkg/yamlpath"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrNoMatch is returned when a path selects nothing.
var ErrNoMatch = errors.New("json path matched nothing")

// Extract returns the text selected by path from payload. An empty path
// selects the whole payload. Any failure is logged and the whole payload is
// returned.
func Extract(payload, path string, logger *zap.Logger) string {
	if path == "" {
		return payload
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	text, err := Select(payload, path)
	if err != nil {
		logger.Warn("Failed to parse json using specified json path, analyzing payload as text",
			zap.String("path", path),
			zap.Error(err))
		return payload
	}
	return text
}

// Select evaluates path against payload. Scalar matches are joined with a
// space; an object match contributes each of its values prefixed with a
// space.
func Select(payload, path string) (string, error) {
	p, err := yamlpath.NewPath(normalizePath(path))
	if err != nil {
		return "", fmt.Errorf("parsing json path %q: %w", path, err)
	}

	root, err := parse(payload)
	if err != nil {
		return "", err
	}

	nodes, err := p.Find(root)
	if err != nil {
		return "", fmt.Errorf("evaluating json path %q: %w", path, err)
	}
	if len(nodes) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoMatch, path)
	}

	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind == yaml.MappingNode {
			var sb strings.Builder
			for i := 1; i < len(n.Content); i += 2 {
				sb.WriteString(" ")
				sb.WriteString(render(n.Content[i]))
			}
			parts = append(parts, sb.String())
			continue
		}
		if s := render(n); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

// parse reads payload as a YAML node tree, keeping document key order. JSON
// that YAML rejects, such as tab indentation, is decoded as JSON instead.
func parse(payload string) (*yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(payload), &root); err == nil {
		if root.Kind == 0 {
			return nil, errors.New("parsing payload: empty document")
		}
		return &root, nil
	}

	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	if err := root.Encode(v); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	return &root, nil
}

// normalizePath rewrites "$.['a','b']" into the "$['a','b']" form.
func normalizePath(path string) string {
	return strings.ReplaceAll(path, ".[", "[")
}

func render(n *yaml.Node) string {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) > 0 {
			return render(n.Content[0])
		}
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return ""
		}
		return n.Value
	case yaml.AliasNode:
		if n.Alias != nil {
			return render(n.Alias)
		}
	case yaml.SequenceNode:
		parts := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if s := render(c); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case yaml.MappingNode:
		parts := make([]string, 0, len(n.Content)/2)
		for i := 1; i < len(n.Content); i += 2 {
			if s := render(n.Content[i]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}
