package stats

import (
	"container/heap"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"adshield/config"
)

// BlockedHostsTracker 在滑动窗口内统计被拦截请求的主机
type BlockedHostsTracker struct {
	cfg      config.StatsConfig
	mu       sync.RWMutex
	buckets  []*hostBucket
	current  int
	stopChan chan struct{}
	stopOnce sync.Once
}

type hostBucket struct {
	timestamp time.Time
	shards    []*hostShard
}

type hostShard struct {
	mu    sync.RWMutex
	hosts map[string]*int64
	size  int
}

// HostCount 主机与拦截次数
type HostCount struct {
	Host  string `json:"host"`
	Count int64  `json:"count"`
}

// NewBlockedHostsTracker 创建追踪器并启动桶轮转
func NewBlockedHostsTracker(cfg config.StatsConfig) *BlockedHostsTracker {
	if cfg.TopHostsBucketMinutes <= 0 {
		cfg.TopHostsBucketMinutes = 60
	}
	if cfg.TopHostsShardCount <= 0 {
		cfg.TopHostsShardCount = 1
	}
	numBuckets := (cfg.TopHostsWindowHours * 60) / cfg.TopHostsBucketMinutes
	if numBuckets < 1 {
		numBuckets = 1
	}

	t := &BlockedHostsTracker{
		cfg:      cfg,
		buckets:  make([]*hostBucket, numBuckets),
		stopChan: make(chan struct{}),
	}
	for i := range t.buckets {
		t.buckets[i] = newHostBucket(cfg.TopHostsShardCount)
	}
	t.buckets[0].timestamp = time.Now()

	go t.startRotation()
	return t
}

func newHostBucket(shardCount int) *hostBucket {
	b := &hostBucket{shards: make([]*hostShard, shardCount)}
	for i := range b.shards {
		b.shards[i] = &hostShard{hosts: make(map[string]*int64)}
	}
	return b
}

// Stop 停止桶轮转，可重复调用
func (t *BlockedHostsTracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// Record 记录一次拦截
func (t *BlockedHostsTracker) Record(host string) {
	if host == "" {
		return
	}
	t.mu.RLock()
	bucket := t.buckets[t.current]
	t.mu.RUnlock()

	h := fnv.New32a()
	h.Write([]byte(host))
	shard := bucket.shards[h.Sum32()%uint32(len(bucket.shards))]

	// 快路径：已存在
	shard.mu.RLock()
	counter, ok := shard.hosts[host]
	shard.mu.RUnlock()
	if ok {
		atomic.AddInt64(counter, 1)
		return
	}

	shard.mu.Lock()
	if counter, ok = shard.hosts[host]; ok {
		shard.mu.Unlock()
		atomic.AddInt64(counter, 1)
		return
	}
	limit := t.cfg.TopHostsMaxPerBucket
	if limit <= 0 || shard.size < limit {
		n := int64(1)
		shard.hosts[host] = &n
		shard.size++
	}
	// 桶已满时丢弃新主机
	shard.mu.Unlock()
}

// Top 返回窗口内拦截次数最多的 k 个主机，次数相同按主机名升序
func (t *BlockedHostsTracker) Top(k int) []HostCount {
	if k <= 0 {
		return nil
	}
	aggregated := make(map[string]int64)

	t.mu.RLock()
	for _, bucket := range t.buckets {
		for _, shard := range bucket.shards {
			shard.mu.RLock()
			for host, counter := range shard.hosts {
				aggregated[host] += atomic.LoadInt64(counter)
			}
			shard.mu.RUnlock()
		}
	}
	t.mu.RUnlock()

	h := &hostHeap{}
	heap.Init(h)
	for host, count := range aggregated {
		if h.Len() < k {
			heap.Push(h, HostCount{Host: host, Count: count})
			continue
		}
		top := (*h)[0]
		if count > top.Count || (count == top.Count && host < top.Host) {
			heap.Pop(h)
			heap.Push(h, HostCount{Host: host, Count: count})
		}
	}

	result := make([]HostCount, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(HostCount)
	}
	return result
}

func (t *BlockedHostsTracker) startRotation() {
	ticker := time.NewTicker(time.Duration(t.cfg.TopHostsBucketMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.rotate()
		case <-t.stopChan:
			return
		}
	}
}

// rotate 前进到下一个桶并清空它，最旧的数据随之过期
func (t *BlockedHostsTracker) rotate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = (t.current + 1) % len(t.buckets)
	bucket := t.buckets[t.current]
	bucket.timestamp = time.Now()
	for _, shard := range bucket.shards {
		shard.mu.Lock()
		shard.hosts = make(map[string]*int64)
		shard.size = 0
		shard.mu.Unlock()
	}
}

// Reset 清空所有桶
func (t *BlockedHostsTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, bucket := range t.buckets {
		for _, shard := range bucket.shards {
			shard.mu.Lock()
			shard.hosts = make(map[string]*int64)
			shard.size = 0
			shard.mu.Unlock()
		}
	}
}

// hostHeap 小顶堆，堆顶是当前 Top-K 中最差的一项
type hostHeap []HostCount

func (h hostHeap) Len() int { return len(h) }
func (h hostHeap) Less(i, j int) bool {
	if h[i].Count != h[j].Count {
		return h[i].Count < h[j].Count
	}
	return h[i].Host > h[j].Host
}
func (h hostHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hostHeap) Push(x interface{}) {
	*h = append(*h, x.(HostCount))
}

func (h *hostHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
