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

// Package codec serializes annotation documents to the protocol buffer wire
// format used by CoreNLP's ProtobufAnnotationSerializer. Messages are
// length-delimited with a varint size prefix.
package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
	"google.golang.org/protobuf/encoding/protowire"
)

// MediaType is the content type of an encoded document.
const MediaType = "application/x-protobuf"

// SerializerClass is the server-side serializer name that understands this
// wire format.
const SerializerClass = "edu.stanford.nlp.pipeline.ProtobufAnnotationSerializer"

// MaxMessageSize bounds the size prefix accepted by Read.
const MaxMessageSize = 64 << 20

// ErrMalformed is returned when bytes cannot be decoded into a document.
var ErrMalformed = errors.New("malformed annotation document")

// Field numbers of the CoreNLP messages.
const (
	docText              protowire.Number = 1
	docSentence          protowire.Number = 2
	docID                protowire.Number = 4
	docSentencelessToken protowire.Number = 5
	docMentions          protowire.Number = 9
	docHasMentions       protowire.Number = 13

	sentToken      protowire.Number = 1
	sentTokenBegin protowire.Number = 2
	sentTokenEnd   protowire.Number = 3
	sentIndex      protowire.Number = 4
	sentCharBegin  protowire.Number = 5
	sentCharEnd    protowire.Number = 6
	sentParseTree  protowire.Number = 7

	tokWord          protowire.Number = 1
	tokPOS           protowire.Number = 2
	tokBefore        protowire.Number = 5
	tokAfter         protowire.Number = 6
	tokOriginalText  protowire.Number = 7
	tokNER           protowire.Number = 8
	tokNormalizedNER protowire.Number = 9
	tokLemma         protowire.Number = 10
	tokBeginChar     protowire.Number = 11
	tokEndChar       protowire.Number = 12

	treeChild      protowire.Number = 1
	treeValue      protowire.Number = 2
	treeYieldBegin protowire.Number = 3
	treeYieldEnd   protowire.Number = 4

	mentionSentenceIndex protowire.Number = 1
	mentionTokenBegin    protowire.Number = 2
	mentionTokenEnd      protowire.Number = 3
	mentionNER           protowire.Number = 4
	mentionNormalizedNER protowire.Number = 5
	mentionText          protowire.Number = 12
)

// Encode serializes doc into a length-delimited message. The exception
// marker is process local and is never written.
func Encode(doc *annotation.Document) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("encoding nil document")
	}
	msg := appendDocument(nil, doc)
	out := make([]byte, 0, len(msg)+binary.MaxVarintLen64)
	out = protowire.AppendVarint(out, uint64(len(msg)))
	return append(out, msg...), nil
}

// Decode parses the first length-delimited document in data.
func Decode(data []byte) (*annotation.Document, error) {
	size, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, fmt.Errorf("%w: reading size prefix: %w", ErrMalformed, protowire.ParseError(n))
	}
	data = data[n:]
	if uint64(len(data)) < size {
		return nil, fmt.Errorf("%w: message truncated: want %d bytes, have %d", ErrMalformed, size, len(data))
	}
	return decodeDocument(data[:size])
}

// Write encodes doc onto w.
func Write(w io.Writer, doc *annotation.Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

// Read reads one length-delimited document from r.
func Read(r io.Reader) (*annotation.Document, error) {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	size, err := binary.ReadUvarint(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: reading size prefix: %w", ErrMalformed, err)
	}
	if size > MaxMessageSize {
		return nil, fmt.Errorf("%w: message of %d bytes exceeds limit", ErrMalformed, size)
	}
	msg := make([]byte, size)
	if _, err := io.ReadFull(br, msg); err != nil {
		return nil, fmt.Errorf("%w: reading message: %w", ErrMalformed, err)
	}
	return decodeDocument(msg)
}

// tokensNested reports whether the sentences exactly partition the tokens,
// in which case tokens are written inside their sentence.
func tokensNested(doc *annotation.Document) bool {
	if len(doc.Sentences) == 0 {
		return false
	}
	next := 0
	for _, s := range doc.Sentences {
		if s.TokenBegin != next || s.TokenEnd < s.TokenBegin {
			return false
		}
		next = s.TokenEnd
	}
	return next == len(doc.Tokens)
}

func appendDocument(b []byte, doc *annotation.Document) []byte {
	b = appendString(b, docText, doc.Text)
	nested := tokensNested(doc)
	for _, s := range doc.Sentences {
		var toks []annotation.Token
		if nested {
			toks = doc.Tokens[s.TokenBegin:s.TokenEnd]
		}
		b = appendMessage(b, docSentence, appendSentence(nil, s, toks))
	}
	b = appendString(b, docID, doc.DocID)
	if !nested {
		for i := range doc.Tokens {
			b = appendMessage(b, docSentencelessToken, appendToken(nil, &doc.Tokens[i]))
		}
	}
	for _, m := range doc.Mentions {
		b = appendMessage(b, docMentions, appendMention(nil, m))
	}
	if doc.Mentions != nil {
		b = protowire.AppendTag(b, docHasMentions, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b
}

func appendSentence(b []byte, s annotation.Sentence, toks []annotation.Token) []byte {
	for i := range toks {
		b = appendMessage(b, sentToken, appendToken(nil, &toks[i]))
	}
	b = appendUint(b, sentTokenBegin, s.TokenBegin)
	b = appendUint(b, sentTokenEnd, s.TokenEnd)
	b = appendUint(b, sentIndex, s.Index)
	b = appendUint(b, sentCharBegin, s.CharBegin)
	b = appendUint(b, sentCharEnd, s.CharEnd)
	if s.Parse != nil {
		b = appendMessage(b, sentParseTree, appendTree(nil, s.Parse))
	}
	return b
}

func appendToken(b []byte, t *annotation.Token) []byte {
	b = appendString(b, tokWord, t.Word)
	b = appendString(b, tokPOS, t.POS)
	b = appendString(b, tokBefore, t.Before)
	b = appendString(b, tokAfter, t.After)
	b = appendString(b, tokOriginalText, t.OriginalText)
	b = appendString(b, tokNER, t.NER)
	b = appendString(b, tokNormalizedNER, t.NormalizedNER)
	b = appendString(b, tokLemma, t.Lemma)
	b = appendUint(b, tokBeginChar, t.BeginChar)
	b = appendUint(b, tokEndChar, t.EndChar)
	return b
}

func appendTree(b []byte, t *annotation.ParseTree) []byte {
	for _, c := range t.Children {
		if c != nil {
			b = appendMessage(b, treeChild, appendTree(nil, c))
		}
	}
	b = appendString(b, treeValue, t.Value)
	b = appendUint(b, treeYieldBegin, t.YieldBegin)
	b = appendUint(b, treeYieldEnd, t.YieldEnd)
	return b
}

func appendMention(b []byte, m annotation.Mention) []byte {
	b = appendUint(b, mentionSentenceIndex, m.SentenceIndex)
	b = appendUint(b, mentionTokenBegin, m.TokenBegin)
	b = appendUint(b, mentionTokenEnd, m.TokenEnd)
	b = appendString(b, mentionNER, m.Type)
	b = appendString(b, mentionNormalizedNER, m.NormalizedNER)
	b = appendString(b, mentionText, m.Text)
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// appendUint writes non-negative integers; negative values mean unset.
func appendUint(b []byte, num protowire.Number, v int) []byte {
	if v < 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
