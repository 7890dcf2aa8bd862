package adblock

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"adshield/internal/util"
)

const defaultDecisionCacheSize = 4096

// DecisionCache memoizes engine verdicts per (type, source host, url). It sits
// below the allowlist, so only engine rebuilds invalidate it.
//
// Purge swaps in a fresh LRU. A lookup writes its verdict into the LRU it
// started with, so a verdict computed by the old engine while a rebuild ran
// lands in the discarded cache.
type DecisionCache struct {
	next  Matcher
	size  int
	cache atomic.Pointer[lru.Cache]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewDecisionCache wraps next with an LRU of size entries.
func NewDecisionCache(next Matcher, size int) (*DecisionCache, error) {
	if size <= 0 {
		size = defaultDecisionCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	d := &DecisionCache{next: next, size: size}
	d.cache.Store(c)
	return d, nil
}

func decisionKey(req *Request) string {
	return string(req.Type) + "\x00" + util.HostnameOf(req.SourceURL) + "\x00" + req.URL
}

func (d *DecisionCache) Match(req *Request) MatchResult {
	if req == nil {
		return MatchResult{}
	}
	key := decisionKey(req)
	c := d.cache.Load()
	if v, ok := c.Get(key); ok {
		d.hits.Add(1)
		return v.(MatchResult)
	}
	d.misses.Add(1)
	res := d.next.Match(req)
	c.Add(key, res)
	return res
}

// Purge drops every cached verdict, including ones still being computed.
func (d *DecisionCache) Purge() {
	c, err := lru.New(d.size)
	if err != nil {
		// size is validated in NewDecisionCache
		d.cache.Load().Purge()
		return
	}
	d.cache.Store(c)
}

// CacheStats 缓存命中情况
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func (d *DecisionCache) Stats() CacheStats {
	return CacheStats{
		Entries: d.cache.Load().Len(),
		Hits:    d.hits.Load(),
		Misses:  d.misses.Load(),
	}
}
