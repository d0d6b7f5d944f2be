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

// Package ner reduces annotated documents to entity-category mention lists.
package ner

import (
	"strings"

	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/annotation"
)

// LocationLabel is the requested label that aggregates every location type.
const LocationLabel = "location"

// NER types folded into LocationLabel.
const (
	TypeLocation        = "LOCATION"
	TypeCity            = "CITY"
	TypeCountry         = "COUNTRY"
	TypeStateOrProvince = "STATE_OR_PROVINCE"
)

// LocationTypes lists the NER types aggregated under LocationLabel.
var LocationTypes = []string{TypeLocation, TypeCity, TypeCountry, TypeStateOrProvince}

// Mention is a read-only view of one entity mention.
type Mention struct {
	// Text is the mention's surface form (e.g., "Albuquerque Business First")
	Text string `json:"text"`
	// Type is the NER category (e.g., "ORGANIZATION", "CITY")
	Type string `json:"type"`
}

// Mentions lists the mentions of doc in document order. An absent mentions
// layer yields an empty list.
func Mentions(doc *annotation.Document) []Mention {
	if doc == nil || doc.Mentions == nil {
		return []Mention{}
	}
	out := make([]Mention, len(doc.Mentions))
	for i, m := range doc.Mentions {
		out[i] = Mention{Text: doc.MentionText(m), Type: m.Type}
	}
	return out
}

// ParseLabels splits a comma-separated label list. Labels are not trimmed.
func ParseLabels(csv string) []string {
	return strings.Split(csv, ",")
}

// IsLocationType reports whether typ is aggregated under LocationLabel.
func IsLocationType(typ string) bool {
	switch typ {
	case TypeLocation, TypeCity, TypeCountry, TypeStateOrProvince:
		return true
	}
	return false
}

// Extract buckets mention texts by requested label. The result holds exactly
// one entry per distinct label, empty when nothing matched. When "location"
// is requested, every location type goes to that bucket and nowhere else;
// any other label collects mentions whose type equals the upper-cased label.
func Extract(mentions []Mention, labels []string) map[string][]string {
	result := make(map[string][]string, len(labels))
	aggregateLocations := false
	byType := make(map[string][]string)

	for _, label := range labels {
		if _, ok := result[label]; ok {
			continue
		}
		result[label] = []string{}
		if label == LocationLabel {
			aggregateLocations = true
			continue
		}
		typ := strings.ToUpper(label)
		byType[typ] = append(byType[typ], label)
	}

	for _, m := range mentions {
		if aggregateLocations && IsLocationType(m.Type) {
			result[LocationLabel] = append(result[LocationLabel], m.Text)
			continue
		}
		for _, label := range byType[m.Type] {
			result[label] = append(result[label], m.Text)
		}
	}
	return result
}

// Count returns the total number of mention texts in result.
func Count(result map[string][]string) int {
	n := 0
	for _, texts := range result {
		n += len(texts)
	}
	return n
}
