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

// Package annotation holds the layered document produced by running text
// through an NLP annotation pipeline.
package annotation

import (
	"strings"
)

// Key identifies one annotation layer of a Document.
type Key string

const (
	KeyText      Key = "text"
	KeyDocID     Key = "docID"
	KeyTokens    Key = "tokens"
	KeySentences Key = "sentences"
	KeyPOS       Key = "partOfSpeech"
	KeyLemma     Key = "lemma"
	KeyNER       Key = "namedEntityTag"
	KeyMentions  Key = "mentions"
	KeyParse     Key = "parseTree"
	KeyException Key = "exception"
)

// Token is a single word of the document with the per-token layers
// (part of speech, lemma, named entity tag) attached to it.
type Token struct {
	Word         string
	OriginalText string
	Before       string
	After        string
	// BeginChar and EndChar are byte offsets into Document.Text (end exclusive).
	BeginChar     int
	EndChar       int
	POS           string
	Lemma         string
	NER           string
	NormalizedNER string
}

// ParseTree is a constituency tree node.
type ParseTree struct {
	Value      string
	YieldBegin int
	YieldEnd   int
	Children   []*ParseTree
}

// Sentence references the contiguous token range [TokenBegin, TokenEnd) of
// Document.Tokens.
type Sentence struct {
	Index      int
	TokenBegin int
	TokenEnd   int
	CharBegin  int
	CharEnd    int
	Parse      *ParseTree
}

// Mention is a named-entity mention spanning tokens [TokenBegin, TokenEnd)
// of the sentence at SentenceIndex.
type Mention struct {
	SentenceIndex int
	TokenBegin    int
	TokenEnd      int
	// Type is the NER category, e.g. LOCATION or ORGANIZATION.
	Type          string
	NormalizedNER string
	// Text is the surface form; when empty it is derived from the tokens.
	Text string
}

// Document is the mutable annotation container. Pipelines populate its
// layers in place. A nil Mentions slice means the mentions layer is absent,
// an empty non-nil slice means it was computed and found nothing.
type Document struct {
	Text      string
	DocID     string
	Tokens    []Token
	Sentences []Sentence
	Mentions  []Mention

	// Exception is set instead of returning an error when annotation fails.
	Exception error
}

// New creates a raw document holding only the text layer.
func New(text string) *Document {
	return &Document{Text: text}
}

var keyOrder = []Key{
	KeyText, KeyDocID, KeyTokens, KeySentences, KeyPOS, KeyLemma,
	KeyNER, KeyMentions, KeyParse, KeyException,
}

// Has reports whether the layer identified by key is populated.
func (d *Document) Has(key Key) bool {
	switch key {
	case KeyText:
		return d.Text != ""
	case KeyDocID:
		return d.DocID != ""
	case KeyTokens:
		return len(d.Tokens) > 0
	case KeySentences:
		return len(d.Sentences) > 0
	case KeyPOS:
		return d.anyToken(func(t *Token) bool { return t.POS != "" })
	case KeyLemma:
		return d.anyToken(func(t *Token) bool { return t.Lemma != "" })
	case KeyNER:
		return d.anyToken(func(t *Token) bool { return t.NER != "" })
	case KeyMentions:
		return d.Mentions != nil
	case KeyParse:
		for i := range d.Sentences {
			if d.Sentences[i].Parse != nil {
				return true
			}
		}
		return false
	case KeyException:
		return d.Exception != nil
	}
	return false
}

// Keys returns the populated layers in canonical order.
func (d *Document) Keys() []Key {
	keys := make([]Key, 0, len(keyOrder))
	for _, k := range keyOrder {
		if d.Has(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Merge copies every layer present in src into d, overwriting what d holds
// for that layer. Token level layers travel with the tokens and parse trees
// travel with the sentences.
func (d *Document) Merge(src *Document) {
	if src == nil {
		return
	}
	if src.Has(KeyText) {
		d.Text = src.Text
	}
	if src.Has(KeyDocID) {
		d.DocID = src.DocID
	}
	if src.Has(KeyTokens) {
		d.Tokens = append([]Token(nil), src.Tokens...)
	}
	if src.Has(KeySentences) {
		d.Sentences = append([]Sentence(nil), src.Sentences...)
	}
	if src.Has(KeyMentions) {
		d.Mentions = append([]Mention{}, src.Mentions...)
	}
	if src.Has(KeyException) {
		d.Exception = src.Exception
	}
}

// Failed reports whether annotation recorded an exception marker.
func (d *Document) Failed() bool {
	return d.Exception != nil
}

// MentionText returns the surface form of m, derived from the document when
// the mention carries no explicit text.
func (d *Document) MentionText(m Mention) string {
	if m.Text != "" {
		return m.Text
	}
	begin, end := m.TokenBegin, m.TokenEnd
	if m.SentenceIndex >= 0 && m.SentenceIndex < len(d.Sentences) {
		offset := d.Sentences[m.SentenceIndex].TokenBegin
		begin += offset
		end += offset
	}
	if begin < 0 || end > len(d.Tokens) || begin >= end {
		return ""
	}
	first, last := d.Tokens[begin], d.Tokens[end-1]
	if first.BeginChar >= 0 && last.EndChar <= len(d.Text) && first.BeginChar < last.EndChar {
		return d.Text[first.BeginChar:last.EndChar]
	}

	var sb strings.Builder
	for i := begin; i < end; i++ {
		tok := d.Tokens[i]
		if i > begin {
			sb.WriteString(tok.Before)
		}
		if tok.OriginalText != "" {
			sb.WriteString(tok.OriginalText)
		} else {
			sb.WriteString(tok.Word)
		}
	}
	return sb.String()
}

// SentenceTokens returns the tokens of sentence s.
func (d *Document) SentenceTokens(s Sentence) []Token {
	if s.TokenBegin < 0 || s.TokenEnd > len(d.Tokens) || s.TokenBegin > s.TokenEnd {
		return nil
	}
	return d.Tokens[s.TokenBegin:s.TokenEnd]
}

func (d *Document) anyToken(pred func(*Token) bool) bool {
	for i := range d.Tokens {
		if pred(&d.Tokens[i]) {
			return true
		}
	}
	return false
}
