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

package gazetteer

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDictionary []byte

// Match is a dictionary hit over tokens [Begin, End).
type Match struct {
	Begin int
	End   int
	Type  string
}

// Gazetteer is a case-insensitive phrase dictionary matched over tokens.
// It is safe for concurrent reads once built.
type Gazetteer struct {
	entries map[string]string
	maxLen  int
}

type dictionaryFile struct {
	Entities []struct {
		Type    string   `yaml:"type"`
		Phrases []string `yaml:"phrases"`
	} `yaml:"entities"`
}

// New returns an empty gazetteer.
func New() *Gazetteer {
	return &Gazetteer{entries: make(map[string]string)}
}

// Default returns the built-in gazetteer.
func Default() (*Gazetteer, error) {
	g := New()
	if err := g.Load(bytes.NewReader(defaultDictionary)); err != nil {
		return nil, fmt.Errorf("loading built-in gazetteer: %w", err)
	}
	return g, nil
}

// WithFiles returns the built-in gazetteer extended by the YAML files at
// paths, applied in order.
func WithFiles(paths []string) (*Gazetteer, error) {
	g, err := Default()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if err := g.LoadFile(p); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Add registers phrase with the entity type typ, replacing any previous type.
func (g *Gazetteer) Add(typ, phrase string) {
	key, n := phraseKey(phrase)
	if n == 0 {
		return
	}
	g.entries[key] = typ
	g.maxLen = max(g.maxLen, n)
}

// Len returns the number of phrases.
func (g *Gazetteer) Len() int { return len(g.entries) }

// Load adds every entry of a YAML dictionary.
func (g *Gazetteer) Load(r io.Reader) error {
	var file dictionaryFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding gazetteer: %w", err)
	}
	for i, e := range file.Entities {
		typ := strings.ToUpper(strings.TrimSpace(e.Type))
		if typ == "" {
			return fmt.Errorf("gazetteer entry %d has no type", i)
		}
		for _, p := range e.Phrases {
			g.Add(typ, p)
		}
	}
	return nil
}

// LoadFile adds every entry of the YAML dictionary at path.
func (g *Gazetteer) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening gazetteer: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := g.Load(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Find returns the longest non-overlapping matches among words, scanning
// left to right.
func (g *Gazetteer) Find(words []string) []Match {
	var matches []Match
	for i := 0; i < len(words); {
		hit := false
		for n := min(g.maxLen, len(words)-i); n > 0; n-- {
			if typ, ok := g.entries[wordsKey(words[i:i+n])]; ok {
				matches = append(matches, Match{Begin: i, End: i + n, Type: typ})
				i += n
				hit = true
				break
			}
		}
		if !hit {
			i++
		}
	}
	return matches
}

func phraseKey(phrase string) (string, int) {
	tokens := Tokenize(phrase)
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Word
	}
	return wordsKey(words), len(words)
}

func wordsKey(words []string) string {
	return strings.ToLower(strings.Join(words, " "))
}
