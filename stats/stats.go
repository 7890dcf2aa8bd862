// Package stats 记录拦截热点并采集进程与系统资源状态
package stats

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"adshield/config"
	"adshield/logger"
)

// Stats 运行统计
type Stats struct {
	mu     sync.RWMutex
	byType map[string]*int64

	blocked int64
	hosts   *BlockedHostsTracker

	startTime time.Time
}

// NewStats 创建新的统计实例
func NewStats(cfg config.StatsConfig) *Stats {
	// 第一次调用 Percent 会返回 0，先预热
	go func() {
		if _, err := cpu.Percent(time.Second, false); err != nil {
			logger.Warnf("无法初始化 CPU 使用率统计: %v", err)
		}
	}()

	return &Stats{
		byType:    make(map[string]*int64),
		hosts:     NewBlockedHostsTracker(cfg),
		startTime: time.Now(),
	}
}

func (s *Stats) typeCounter(resourceType string) *int64 {
	s.mu.RLock()
	counter, ok := s.byType[resourceType]
	s.mu.RUnlock()
	if ok {
		return counter
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if counter, ok := s.byType[resourceType]; ok {
		return counter
	}
	n := int64(0)
	s.byType[resourceType] = &n
	return &n
}

// RecordBlocked 记录一次被拦截的请求
func (s *Stats) RecordBlocked(host, resourceType string) {
	atomic.AddInt64(&s.blocked, 1)
	if resourceType == "" {
		resourceType = "other"
	}
	atomic.AddInt64(s.typeCounter(resourceType), 1)
	s.hosts.Record(host)
}

// GetTopBlockedHosts 获取窗口内被拦截最多的主机
func (s *Stats) GetTopBlockedHosts(limit int) []HostCount {
	return s.hosts.Top(limit)
}

// BlockedByType 按资源类型汇总的拦截次数
func (s *Stats) BlockedByType() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.byType))
	for k, v := range s.byType {
		out[k] = atomic.LoadInt64(v)
	}
	return out
}

// SystemStats 读取 CPU、内存与 Go 运行时状态
func SystemStats() map[string]interface{} {
	// CPU 采样放到后台，超时后按 0 处理，避免阻塞接口
	cpuUsageCh := make(chan float64, 1)
	go func() {
		usage, err := cpu.Percent(200*time.Millisecond, false)
		if err != nil || len(usage) == 0 {
			if err != nil {
				logger.Warnf("无法获取 CPU 使用率: %v", err)
			}
			cpuUsageCh <- 0
			return
		}
		cpuUsageCh <- usage[0]
	}()

	var cpuUsage float64
	select {
	case cpuUsage = <-cpuUsageCh:
	case <-time.After(100 * time.Millisecond):
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	sys := map[string]interface{}{
		"cpu_cores":       runtime.NumCPU(),
		"cpu_usage_pct":   cpuUsage,
		"mem_total_mb":    uint64(0),
		"mem_used_mb":     uint64(0),
		"mem_usage_pct":   0.0,
		"go_mem_alloc_mb": memStats.Alloc / 1024 / 1024,
		"goroutines":      runtime.NumGoroutine(),
	}
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		logger.Warnf("无法获取内存信息: %v", err)
		return sys
	}
	sys["mem_total_mb"] = memInfo.Total / 1024 / 1024
	sys["mem_used_mb"] = memInfo.Used / 1024 / 1024
	sys["mem_usage_pct"] = memInfo.UsedPercent
	return sys
}

// GetStats 获取所有统计数据
func (s *Stats) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"blocked_requests":  atomic.LoadInt64(&s.blocked),
		"blocked_by_type":   s.BlockedByType(),
		"top_blocked_hosts": s.GetTopBlockedHosts(10),
		"system_stats":      SystemStats(),
		"uptime_seconds":    time.Since(s.startTime).Seconds(),
	}
}

// Reset 重置统计
func (s *Stats) Reset() {
	atomic.StoreInt64(&s.blocked, 0)
	s.mu.Lock()
	s.byType = make(map[string]*int64)
	s.mu.Unlock()
	s.hosts.Reset()
}

// Stop 停止统计服务
func (s *Stats) Stop() {
	s.hosts.Stop()
}
