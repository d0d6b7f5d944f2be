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

import "github.com/prometheus/client_golang/prometheus"

var (
	annotationRequestOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "corenlp",
			Name:      "annotation_request_ops_total",
			Help:      "The total number of annotation requests.",
		},
		[]string{"pipeline"},
	)
	annotationFailureOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "corenlp",
			Name:      "annotation_failure_ops_total",
			Help:      "The total number of annotations that ended with an exception.",
		},
		[]string{"pipeline"},
	)
	remoteRetryOps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "corenlp",
			Name:      "remote_retry_ops_total",
			Help:      "The total number of retried remote annotation attempts.",
		},
	)

	entityCreationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "corenlp",
			Name:      "entity_creation_ops_total",
			Help:      "The total number of entity mentions extracted.",
		},
		[]string{"label"},
	)

	extractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "corenlp",
			Name:      "extraction_duration_seconds",
			Help:      "Time taken to annotate a text and extract its entities.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"pipeline", "status"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "corenlp",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits.",
		},
		[]string{"type"},
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "corenlp",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(annotationRequestOps)
	prometheus.MustRegister(annotationFailureOps)
	prometheus.MustRegister(remoteRetryOps)
	prometheus.MustRegister(entityCreationOps)
	prometheus.MustRegister(extractionDuration)
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
}

// RecordAnnotationRequest increments the annotation request counter
func RecordAnnotationRequest(pipeline string) {
	annotationRequestOps.WithLabelValues(pipeline).Inc()
}

// RecordAnnotationFailure increments the annotation failure counter
func RecordAnnotationFailure(pipeline string) {
	annotationFailureOps.WithLabelValues(pipeline).Inc()
}

// RecordRemoteRetry increments the remote retry counter
func RecordRemoteRetry() {
	remoteRetryOps.Inc()
}

// RecordEntityCreation records the number of mentions extracted per label
func RecordEntityCreation(result map[string][]string) {
	for label, mentions := range result {
		entityCreationOps.WithLabelValues(label).Add(float64(len(mentions)))
	}
}

// RecordExtractionDuration records how long an extraction took
func RecordExtractionDuration(pipeline, status string, seconds float64) {
	extractionDuration.WithLabelValues(pipeline, status).Observe(seconds)
}

// RecordCacheHit increments the cache hit counter
func RecordCacheHit(cacheType string) {
	cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments the cache miss counter
func RecordCacheMiss(cacheType string) {
	cacheMisses.WithLabelValues(cacheType).Inc()
}
