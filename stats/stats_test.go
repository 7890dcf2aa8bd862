package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"adshield/config"
)

func testConfig() config.StatsConfig {
	return config.StatsConfig{
		TopHostsWindowHours:   1,
		TopHostsBucketMinutes: 30,
		TopHostsShardCount:    4,
		TopHostsMaxPerBucket:  100,
	}
}

func TestGetTopBlockedHosts(t *testing.T) {
	s := NewStats(testConfig())
	defer s.Stop()

	for _, h := range []string{
		"ads.example.com", "ads.example.com", "ads.example.com",
		"tracker.net", "tracker.net",
		"pixel.io",
		"banner.org", "banner.org",
		"cdn.ads.com",
	} {
		s.RecordBlocked(h, "script")
	}

	top5 := s.GetTopBlockedHosts(5)
	assert.Len(t, top5, 5)
	assert.Equal(t, HostCount{Host: "ads.example.com", Count: 3}, top5[0])
	// 次数相同按主机名排序
	assert.Equal(t, "banner.org", top5[1].Host)
	assert.Equal(t, "tracker.net", top5[2].Host)

	top2 := s.GetTopBlockedHosts(2)
	assert.Len(t, top2, 2)
	assert.Equal(t, "ads.example.com", top2[0].Host)

	assert.Empty(t, s.GetTopBlockedHosts(0))

	s.Reset()
	assert.Empty(t, s.GetTopBlockedHosts(5))
}

func TestBlockedByType(t *testing.T) {
	s := NewStats(testConfig())
	defer s.Stop()

	s.RecordBlocked("a.com", "script")
	s.RecordBlocked("b.com", "image")
	s.RecordBlocked("c.com", "script")
	s.RecordBlocked("d.com", "")

	assert.Equal(t, map[string]int64{"script": 2, "image": 1, "other": 1}, s.BlockedByType())
	assert.Equal(t, int64(4), s.GetStats()["blocked_requests"])
}

func TestRotationExpiresOldBuckets(t *testing.T) {
	tr := NewBlockedHostsTracker(testConfig())
	defer tr.Stop()

	tr.Record("old.com")
	tr.rotate()
	tr.Record("new.com")
	assert.Len(t, tr.Top(10), 2, "two buckets cover the window")

	tr.rotate()
	top := tr.Top(10)
	assert.Equal(t, []HostCount{{Host: "new.com", Count: 1}}, top)
}

func TestBucketCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.TopHostsShardCount = 1
	cfg.TopHostsMaxPerBucket = 2
	tr := NewBlockedHostsTracker(cfg)
	defer tr.Stop()

	tr.Record("a.com")
	tr.Record("b.com")
	tr.Record("c.com")
	tr.Record("a.com")
	tr.Record("")

	assert.Equal(t, []HostCount{{Host: "a.com", Count: 2}, {Host: "b.com", Count: 1}}, tr.Top(10))
	tr.Stop()
}

func TestSystemStatsKeys(t *testing.T) {
	sys := SystemStats()
	for _, k := range []string{"cpu_cores", "cpu_usage_pct", "mem_total_mb", "go_mem_alloc_mb", "goroutines"} {
		assert.Contains(t, sys, k)
	}
}
