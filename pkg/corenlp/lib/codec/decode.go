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

package codec

import (
	"fmt"

	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
	"google.golang.org/protobuf/encoding/protowire"
)

// fieldFunc handles one field of a message. It returns the number of bytes
// consumed from b, or a negative protowire error code.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) int

func consumeMessage(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n = fn(num, typ, b)
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func decodeDocument(b []byte) (*annotation.Document, error) {
	doc := &annotation.Document{}
	var (
		nestedErr       error
		sentenceTokens  [][]annotation.Token
		sentencelessTok []annotation.Token
		hasMentions     bool
	)
	err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == docText && typ == protowire.BytesType:
			return consumeString(b, &doc.Text)
		case num == docID && typ == protowire.BytesType:
			return consumeString(b, &doc.DocID)
		case num == docSentence && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			s, toks, err := decodeSentence(v)
			if err != nil {
				nestedErr = fmt.Errorf("sentence %d: %w", len(doc.Sentences), err)
				return -1
			}
			doc.Sentences = append(doc.Sentences, s)
			sentenceTokens = append(sentenceTokens, toks)
			return n
		case num == docSentencelessToken && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			tok, err := decodeToken(v)
			if err != nil {
				nestedErr = fmt.Errorf("token %d: %w", len(sentencelessTok), err)
				return -1
			}
			sentencelessTok = append(sentencelessTok, tok)
			return n
		case num == docMentions && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			m, err := decodeMention(v)
			if err != nil {
				nestedErr = fmt.Errorf("mention %d: %w", len(doc.Mentions), err)
				return -1
			}
			doc.Mentions = append(doc.Mentions, m)
			return n
		case num == docHasMentions && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n
			}
			hasMentions = protowire.DecodeBool(v)
			return n
		}
		return 0
	})
	if nestedErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, nestedErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	for _, toks := range sentenceTokens {
		doc.Tokens = append(doc.Tokens, toks...)
	}
	doc.Tokens = append(doc.Tokens, sentencelessTok...)
	if hasMentions && doc.Mentions == nil {
		doc.Mentions = []annotation.Mention{}
	}
	return doc, nil
}

func decodeSentence(b []byte) (annotation.Sentence, []annotation.Token, error) {
	s := annotation.Sentence{TokenBegin: -1, TokenEnd: -1, Index: -1, CharBegin: -1, CharEnd: -1}
	var (
		toks      []annotation.Token
		nestedErr error
	)
	err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ == protowire.VarintType {
			switch num {
			case sentTokenBegin:
				return consumeInt(b, &s.TokenBegin)
			case sentTokenEnd:
				return consumeInt(b, &s.TokenEnd)
			case sentIndex:
				return consumeInt(b, &s.Index)
			case sentCharBegin:
				return consumeInt(b, &s.CharBegin)
			case sentCharEnd:
				return consumeInt(b, &s.CharEnd)
			}
			return 0
		}
		if typ != protowire.BytesType {
			return 0
		}
		switch num {
		case sentToken:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			tok, err := decodeToken(v)
			if err != nil {
				nestedErr = err
				return -1
			}
			toks = append(toks, tok)
			return n
		case sentParseTree:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			tree, err := decodeTree(v, 0)
			if err != nil {
				nestedErr = err
				return -1
			}
			s.Parse = tree
			return n
		}
		return 0
	})
	if nestedErr != nil {
		return s, nil, nestedErr
	}
	return s, toks, err
}

func decodeToken(b []byte) (annotation.Token, error) {
	t := annotation.Token{BeginChar: -1, EndChar: -1}
	err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ == protowire.VarintType {
			switch num {
			case tokBeginChar:
				return consumeInt(b, &t.BeginChar)
			case tokEndChar:
				return consumeInt(b, &t.EndChar)
			}
			return 0
		}
		if typ != protowire.BytesType {
			return 0
		}
		switch num {
		case tokWord:
			return consumeString(b, &t.Word)
		case tokPOS:
			return consumeString(b, &t.POS)
		case tokBefore:
			return consumeString(b, &t.Before)
		case tokAfter:
			return consumeString(b, &t.After)
		case tokOriginalText:
			return consumeString(b, &t.OriginalText)
		case tokNER:
			return consumeString(b, &t.NER)
		case tokNormalizedNER:
			return consumeString(b, &t.NormalizedNER)
		case tokLemma:
			return consumeString(b, &t.Lemma)
		}
		return 0
	})
	return t, err
}

// maxTreeDepth guards against stack exhaustion on hostile input.
const maxTreeDepth = 1000

func decodeTree(b []byte, depth int) (*annotation.ParseTree, error) {
	if depth > maxTreeDepth {
		return nil, fmt.Errorf("parse tree deeper than %d", maxTreeDepth)
	}
	t := &annotation.ParseTree{YieldBegin: -1, YieldEnd: -1}
	var nestedErr error
	err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == treeChild && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			child, err := decodeTree(v, depth+1)
			if err != nil {
				nestedErr = err
				return -1
			}
			t.Children = append(t.Children, child)
			return n
		case num == treeValue && typ == protowire.BytesType:
			return consumeString(b, &t.Value)
		case num == treeYieldBegin && typ == protowire.VarintType:
			return consumeInt(b, &t.YieldBegin)
		case num == treeYieldEnd && typ == protowire.VarintType:
			return consumeInt(b, &t.YieldEnd)
		}
		return 0
	})
	if nestedErr != nil {
		return nil, nestedErr
	}
	return t, err
}

func decodeMention(b []byte) (annotation.Mention, error) {
	m := annotation.Mention{SentenceIndex: -1, TokenBegin: -1, TokenEnd: -1}
	err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == mentionSentenceIndex && typ == protowire.VarintType:
			return consumeInt(b, &m.SentenceIndex)
		case num == mentionTokenBegin && typ == protowire.VarintType:
			return consumeInt(b, &m.TokenBegin)
		case num == mentionTokenEnd && typ == protowire.VarintType:
			return consumeInt(b, &m.TokenEnd)
		case num == mentionNER && typ == protowire.BytesType:
			return consumeString(b, &m.Type)
		case num == mentionNormalizedNER && typ == protowire.BytesType:
			return consumeString(b, &m.NormalizedNER)
		case num == mentionText && typ == protowire.BytesType:
			return consumeString(b, &m.Text)
		}
		return 0
	})
	return m, err
}

func consumeString(b []byte, dst *string) int {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return n
	}
	*dst = v
	return n
}

func consumeInt(b []byte, dst *int) int {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return n
	}
	*dst = int(v)
	return n
}
