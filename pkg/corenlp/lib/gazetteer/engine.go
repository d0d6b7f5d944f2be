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

// Package gazetteer is a small dictionary-driven annotation engine used when
// no remote annotation server is configured. It tokenizes, splits sentences,
// assigns coarse part-of-speech tags and lemmas, and tags entity mentions
// found in a phrase dictionary.
package gazetteer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
	"go.uber.org/zap"
)

// Annotator names understood by the engine.
const (
	AnnotatorTokenize = "tokenize"
	AnnotatorSSplit   = "ssplit"
	AnnotatorPOS      = "pos"
	AnnotatorLemma    = "lemma"
	AnnotatorNER      = "ner"
)

// OutsideTag marks tokens that are not part of an entity.
const OutsideTag = "O"

// ErrUnknownAnnotator is returned for annotator names the engine lacks.
var ErrUnknownAnnotator = errors.New("unknown annotator")

// ErrMissingRequirement is returned when an annotator is configured without
// the annotators it depends on.
var ErrMissingRequirement = errors.New("annotator requirement not satisfied")

// Config configures an Engine.
type Config struct {
	Annotators []string
	// Gazetteer defaults to the built-in dictionary.
	Gazetteer *Gazetteer
	Logger    *zap.Logger
}

// Engine runs the configured annotators in order. It is stateless between
// calls and safe for concurrent use.
type Engine struct {
	annotators []string
	gazetteer  *Gazetteer
	logger     *zap.Logger
}

// NewEngine validates cfg and builds an engine.
func NewEngine(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	annotators, err := ParseAnnotators(cfg.Annotators)
	if err != nil {
		return nil, err
	}

	g := cfg.Gazetteer
	if g == nil {
		g, err = Default()
		if err != nil {
			return nil, err
		}
	}

	return &Engine{annotators: annotators, gazetteer: g, logger: logger}, nil
}

// ParseAnnotators normalizes and validates an annotator list.
func ParseAnnotators(names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		switch name {
		case AnnotatorTokenize, AnnotatorSSplit, AnnotatorPOS, AnnotatorLemma, AnnotatorNER:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownAnnotator, name)
		}
		if name != AnnotatorTokenize && !seen[AnnotatorTokenize] {
			return nil, fmt.Errorf("%w: %s requires %s", ErrMissingRequirement, name, AnnotatorTokenize)
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

// Annotators returns the annotators in run order.
func (e *Engine) Annotators() []string {
	return append([]string(nil), e.annotators...)
}

// Annotate runs every annotator over doc.
func (e *Engine) Annotate(ctx context.Context, doc *annotation.Document) error {
	for _, name := range e.annotators {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch name {
		case AnnotatorTokenize:
			doc.Tokens = Tokenize(doc.Text)
			// Layers built on earlier tokens no longer line up.
			doc.Sentences = nil
			doc.Mentions = nil
		case AnnotatorSSplit:
			doc.Sentences = SplitSentences(doc.Tokens)
		case AnnotatorPOS:
			for i := range doc.Tokens {
				doc.Tokens[i].POS = tagPOS(doc.Tokens[i].Word)
			}
		case AnnotatorLemma:
			for i := range doc.Tokens {
				doc.Tokens[i].Lemma = lemmatize(doc.Tokens[i].Word)
			}
		case AnnotatorNER:
			e.tagEntities(doc)
		}
	}
	e.logger.Debug("Annotated document",
		zap.Int("tokens", len(doc.Tokens)),
		zap.Int("sentences", len(doc.Sentences)),
		zap.Int("mentions", len(doc.Mentions)))
	return nil
}

// Close implements pipelines.Engine.
func (e *Engine) Close() error { return nil }

func (e *Engine) tagEntities(doc *annotation.Document) {
	for i := range doc.Tokens {
		doc.Tokens[i].NER = OutsideTag
	}
	doc.Mentions = []annotation.Mention{}

	if len(doc.Sentences) == 0 {
		e.tagRange(doc, -1, 0, len(doc.Tokens))
		return
	}
	for _, s := range doc.Sentences {
		e.tagRange(doc, s.Index, s.TokenBegin, s.TokenEnd)
	}
}

func (e *Engine) tagRange(doc *annotation.Document, sentence, begin, end int) {
	begin = max(0, min(begin, len(doc.Tokens)))
	end = max(begin, min(end, len(doc.Tokens)))
	words := make([]string, 0, end-begin)
	for _, t := range doc.Tokens[begin:end] {
		words = append(words, t.Word)
	}
	for _, m := range e.gazetteer.Find(words) {
		first, last := doc.Tokens[begin+m.Begin], doc.Tokens[begin+m.End-1]
		for i := begin + m.Begin; i < begin+m.End; i++ {
			doc.Tokens[i].NER = m.Type
		}
		mention := annotation.Mention{
			SentenceIndex: sentence,
			TokenBegin:    m.Begin,
			TokenEnd:      m.End,
			Type:          m.Type,
			Text:          doc.Text[first.BeginChar:last.EndChar],
		}
		if sentence < 0 {
			mention.TokenBegin += begin
			mention.TokenEnd += begin
		}
		doc.Mentions = append(doc.Mentions, mention)
	}
}

var closedClass = map[string]string{
	"a": "DT", "an": "DT", "the": "DT", "this": "DT", "that": "DT", "these": "DT", "those": "DT",
	"and": "CC", "or": "CC", "but": "CC", "nor": "CC",
	"in": "IN", "on": "IN", "at": "IN", "of": "IN", "for": "IN", "with": "IN",
	"by": "IN", "from": "IN", "into": "IN", "about": "IN", "as": "IN", "including": "VBG",
	"to": "TO",
	"i": "PRP", "you": "PRP", "he": "PRP", "she": "PRP", "it": "PRP", "we": "PRP", "they": "PRP",
	"his": "PRP$", "her": "PRP$", "its": "PRP$", "their": "PRP$", "our": "PRP$",
	"is": "VBZ", "are": "VBP", "was": "VBD", "were": "VBD", "be": "VB", "been": "VBN",
	"has": "VBZ", "have": "VBP", "had": "VBD", "will": "MD", "can": "MD", "would": "MD",
	"not": "RB", "more": "JJR", "most": "JJS",
}

func tagPOS(word string) string {
	if word == "" {
		return "NN"
	}
	lower := strings.ToLower(word)
	if tag, ok := closedClass[lower]; ok {
		return tag
	}
	first := []rune(word)[0]
	switch {
	case isPunctuation(word):
		switch word {
		case "\"", "“":
			return "``"
		case "”":
			return "''"
		case "(", "[", "{":
			return "-LRB-"
		case ")", "]", "}":
			return "-RRB-"
		case "!", "?":
			return "."
		case "—", "–", "-", ";":
			return ":"
		}
		return word
	case unicode.IsDigit(first):
		return "CD"
	case unicode.IsUpper(first):
		if strings.HasSuffix(word, "s") && len(word) > 3 && !strings.HasSuffix(word, "ss") && word != strings.ToUpper(word) {
			return "NNPS"
		}
		return "NNP"
	case strings.HasSuffix(lower, "ing"):
		return "VBG"
	case strings.HasSuffix(lower, "ed"):
		return "VBN"
	case strings.HasSuffix(lower, "ly"):
		return "RB"
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") && len(lower) > 3:
		return "NNS"
	}
	return "NN"
}

func isPunctuation(word string) bool {
	for _, r := range word {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

var irregularLemmas = map[string]string{
	"is": "be", "are": "be", "was": "be", "were": "be", "been": "be", "am": "be",
	"has": "have", "had": "have",
	"does": "do", "did": "do",
	"went": "go", "gone": "go",
	"made": "make", "said": "say",
}

func lemmatize(word string) string {
	lower := strings.ToLower(word)
	if l, ok := irregularLemmas[lower]; ok {
		return l
	}
	return lower
}
