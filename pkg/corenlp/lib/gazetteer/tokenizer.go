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
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
)

// abbreviations keep their trailing period as part of the word.
var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true,
	"jr.": true, "sr.": true, "st.": true, "ave.": true, "blvd.": true,
	"rd.": true, "inc.": true, "corp.": true, "co.": true, "ltd.": true,
	"llc.": true, "dept.": true, "gov.": true, "gen.": true, "sen.": true,
	"rep.": true, "etc.": true, "vs.": true, "jan.": true, "feb.": true,
	"aug.": true, "sept.": true, "oct.": true, "nov.": true, "dec.": true,
	"ariz.": true, "calif.": true, "colo.": true, "fla.": true, "tex.": true,
}

func isOpening(r rune) bool {
	switch r {
	case '"', '\'', '(', '[', '{', '“', '‘', '`':
		return true
	}
	return false
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’',
		'.', ',', ';', ':', '!', '?':
		return true
	}
	return false
}

// isInitialism matches dotted letter sequences such as "N.M." or "U.S.".
func isInitialism(s string) bool {
	if len(s) < 2 || !strings.HasSuffix(s, ".") {
		return false
	}
	expectLetter := true
	for _, r := range s {
		if expectLetter {
			if !unicode.IsLetter(r) {
				return false
			}
		} else if r != '.' {
			return false
		}
		expectLetter = !expectLetter
	}
	return expectLetter
}

func keepsPeriod(word string) bool {
	return isInitialism(word) || abbreviations[strings.ToLower(word)]
}

type span struct{ begin, end int }

// splitChunk breaks a whitespace-free chunk at byte offset base into
// leading punctuation, the core word and trailing punctuation.
func splitChunk(chunk string, base int) []span {
	var lead, trail []span

	start := 0
	for start < len(chunk) {
		r, w := utf8.DecodeRuneInString(chunk[start:])
		if !isOpening(r) || start+w == len(chunk) {
			break
		}
		lead = append(lead, span{base + start, base + start + w})
		start += w
	}

	end := len(chunk)
	for end > start {
		r, w := utf8.DecodeLastRuneInString(chunk[start:end])
		if !isClosing(r) || end-w == start {
			break
		}
		if r == '.' && keepsPeriod(chunk[start:end]) {
			break
		}
		trail = append(trail, span{base + end - w, base + end})
		end -= w
	}

	out := lead
	if start < end {
		out = append(out, span{base + start, base + end})
	}
	for i := len(trail) - 1; i >= 0; i-- {
		out = append(out, trail[i])
	}
	return out
}

// Tokenize splits text into tokens carrying byte offsets and the whitespace
// around them.
func Tokenize(text string) []annotation.Token {
	var spans []span
	i := 0
	for i < len(text) {
		for i < len(text) {
			r, w := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += w
		}
		start := i
		for i < len(text) {
			r, w := utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(r) {
				break
			}
			i += w
		}
		if start < i {
			spans = append(spans, splitChunk(text[start:i], start)...)
		}
	}

	tokens := make([]annotation.Token, len(spans))
	for k, s := range spans {
		word := text[s.begin:s.end]
		tok := annotation.Token{
			Word:         word,
			OriginalText: word,
			BeginChar:    s.begin,
			EndChar:      s.end,
		}
		if k == 0 {
			tok.Before = text[:s.begin]
		} else {
			tok.Before = text[spans[k-1].end:s.begin]
		}
		if k == len(spans)-1 {
			tok.After = text[s.end:]
		} else {
			tok.After = text[s.end:spans[k+1].begin]
		}
		tokens[k] = tok
	}
	return tokens
}

func isTerminator(word string) bool {
	switch word {
	case ".", "!", "?":
		return true
	}
	return false
}

// SplitSentences groups tokens into sentences ending at a terminator.
// Closing quotes or brackets attached to the terminator stay with it.
func SplitSentences(tokens []annotation.Token) []annotation.Sentence {
	var sentences []annotation.Sentence
	begin := 0
	flush := func(end int) {
		if end <= begin {
			return
		}
		sentences = append(sentences, annotation.Sentence{
			Index:      len(sentences),
			TokenBegin: begin,
			TokenEnd:   end,
			CharBegin:  tokens[begin].BeginChar,
			CharEnd:    tokens[end-1].EndChar,
		})
		begin = end
	}
	for i := 0; i < len(tokens); i++ {
		if !isTerminator(tokens[i].Word) {
			continue
		}
		end := i + 1
		for end < len(tokens) && tokens[end].Before == "" && isClosingWord(tokens[end].Word) {
			end++
		}
		flush(end)
		i = end - 1
	}
	flush(len(tokens))
	return sentences
}

func isClosingWord(word string) bool {
	r, w := utf8.DecodeRuneInString(word)
	return w == len(word) && isClosing(r) && !isTerminator(word) && r != ',' && r != ';' && r != ':'
}
