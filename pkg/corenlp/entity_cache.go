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
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// EntityCacheTTL is the default TTL for cached extraction results
const EntityCacheTTL = 2 * time.Minute

type extractFunc func(ctx context.Context, text, entityTypes string) (map[string][]string, error)

// EntityCache caches extraction results keyed by text and requested labels.
// Failed extractions are never cached.
type EntityCache struct {
	cache   *ttlcache.Cache[string, map[string][]string]
	sfGroup *singleflight.Group
	logger  *zap.Logger
	cancel  context.CancelFunc

	hits   atomic.Uint64
	misses atomic.Uint64
	sfHits atomic.Uint64
}

// NewEntityCache creates and starts an entity cache
func NewEntityCache(ttl time.Duration, logger *zap.Logger) *EntityCache {
	if ttl <= 0 {
		ttl = EntityCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, map[string][]string](ttl),
	)
	go cache.Start()

	ctx, cancel := context.WithCancel(context.Background())
	ec := &EntityCache{
		cache:   cache,
		sfGroup: &singleflight.Group{},
		logger:  logger,
		cancel:  cancel,
	}

	go ec.logStats(ctx)

	return ec
}

// Extract returns the cached result for text and entityTypes or computes it
// with extract. Concurrent identical requests share one computation.
func (ec *EntityCache) Extract(ctx context.Context, text, entityTypes string, extract extractFunc) (map[string][]string, error) {
	key := cacheKey(text, entityTypes)

	if item := ec.cache.Get(key); item != nil {
		ec.hits.Add(1)
		RecordCacheHit("entities")
		ec.logger.Debug("Entity cache hit", zap.String("entity_types", entityTypes))
		return copyResult(item.Value()), nil
	}

	// The computation is shared, so one caller giving up must not fail the rest.
	sharedCtx := context.WithoutCancel(ctx)
	result, err, shared := ec.sfGroup.Do(key, func() (any, error) {
		ec.misses.Add(1)
		RecordCacheMiss("entities")

		entities, err := extract(sharedCtx, text, entityTypes)
		if err != nil {
			return nil, err
		}
		ec.cache.Set(key, entities, ttlcache.DefaultTTL)
		return entities, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		ec.sfHits.Add(1)
		ec.logger.Debug("Singleflight hit for extraction request")
	}

	return copyResult(result.(map[string][]string)), nil
}

// copyResult keeps callers from mutating cached slices.
func copyResult(src map[string][]string) map[string][]string {
	out := make(map[string][]string, len(src))
	for k, v := range src {
		out[k] = append([]string{}, v...)
	}
	return out
}

// cacheKey length-prefixes entityTypes so no split of the same bytes
// between the two fields hashes alike.
func cacheKey(text, entityTypes string) string {
	h := xxhash.New()
	_, _ = h.Write(binary.AppendUvarint(nil, uint64(len(entityTypes))))
	_, _ = h.WriteString(entityTypes)
	_, _ = h.WriteString(text)

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return string(buf[:])
}

// Close stops the cache
func (ec *EntityCache) Close() {
	ec.cancel()
	ec.cache.Stop()
}

// Stats returns cache statistics
func (ec *EntityCache) Stats() EntityCacheStats {
	return EntityCacheStats{
		Hits:             ec.hits.Load(),
		Misses:           ec.misses.Load(),
		SingleflightHits: ec.sfHits.Load(),
		Items:            ec.cache.Len(),
	}
}

// EntityCacheStats holds entity cache statistics
type EntityCacheStats struct {
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	SingleflightHits uint64 `json:"singleflight_hits"`
	Items            int    `json:"items"`
}

func (ec *EntityCache) logStats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hits, misses := ec.hits.Load(), ec.misses.Load()
			if total := hits + misses; total > 0 {
				ec.logger.Info("Entity cache stats",
					zap.Uint64("hits", hits),
					zap.Uint64("misses", misses),
					zap.Float64("hit_rate_pct", float64(hits)/float64(total)*100),
					zap.Int("items", ec.cache.Len()))
			}
		}
	}
}
