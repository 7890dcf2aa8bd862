package adblock

import (
	"sync"
	"sync/atomic"
	"time"
)

// BlockCounter counts blocked requests per web contents (page).
type BlockCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewBlockCounter creates an empty counter.
func NewBlockCounter() *BlockCounter {
	return &BlockCounter{counts: make(map[string]int)}
}

// Inc adds one block for id and returns the new count.
func (c *BlockCounter) Inc(id string) int {
	if id == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[id]++
	return c.counts[id]
}

// Get returns the count for id, zero when unknown.
func (c *BlockCounter) Get(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[id]
}

// Reset forgets id.
func (c *BlockCounter) Reset(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, id)
}

// AdBlockStats holds statistics about adblock activity.
type AdBlockStats struct {
	Enabled      bool       `json:"enabled"`
	Engine       string     `json:"engine"`
	TotalRules   int        `json:"total_rules"`
	BlockedToday int64      `json:"blocked_today"`
	BlockedTotal int64      `json:"blocked_total"`
	LastUpdate   *time.Time `json:"last_update"`
	ListsCount   int        `json:"lists_count"`
	Sessions     []string   `json:"sessions"`
	Allowlist    []string   `json:"allowlist"`
	Cache        CacheStats `json:"cache"`
}

// Stats keeps process-wide block totals with a daily rollover.
type Stats struct {
	blockedTotal int64
	blockedToday int64
	lastReset    time.Time
	mu           sync.Mutex
	now          func() time.Time
}

// NewStats creates a new Stats manager.
func NewStats() *Stats {
	return &Stats{
		lastReset: time.Now(),
		now:       time.Now,
	}
}

// RecordBlock increments the block counters.
func (s *Stats) RecordBlock() {
	atomic.AddInt64(&s.blockedTotal, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.YearDay() != s.lastReset.YearDay() || now.Year() != s.lastReset.Year() {
		atomic.StoreInt64(&s.blockedToday, 0)
		s.lastReset = now
	}
	atomic.AddInt64(&s.blockedToday, 1)
}

// Totals returns blocked-today and blocked-total.
func (s *Stats) Totals() (today, total int64) {
	return atomic.LoadInt64(&s.blockedToday), atomic.LoadInt64(&s.blockedTotal)
}
