package adblock

import "sync"

const recentlyBlockedMax = 20

// RecentlyBlockedTracker keeps the last blocked request URLs, newest last.
type RecentlyBlockedTracker struct {
	mu      sync.RWMutex
	urls    []string
	maxSize int
}

// NewRecentlyBlockedTracker creates a tracker holding at most 20 entries.
func NewRecentlyBlockedTracker() *RecentlyBlockedTracker {
	return &RecentlyBlockedTracker{
		urls:    make([]string, 0, recentlyBlockedMax),
		maxSize: recentlyBlockedMax,
	}
}

// Add appends url, dropping the oldest entry once full.
func (r *RecentlyBlockedTracker) Add(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.urls = append(r.urls, url)
	if len(r.urls) > r.maxSize {
		r.urls = r.urls[1:]
	}
}

// GetAll returns a copy of the list.
func (r *RecentlyBlockedTracker) GetAll() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.urls))
	copy(result, r.urls)
	return result
}

// Clear empties the list.
func (r *RecentlyBlockedTracker) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = make([]string, 0, r.maxSize)
}

// Len returns the current number of entries.
func (r *RecentlyBlockedTracker) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.urls)
}
