package adblock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"adshield/internal/util"
	"adshield/logger"
)

type settingsFile struct {
	Enabled   bool     `json:"enabled"`
	Allowlist []string `json:"allowlist"`
}

// SettingsStore 持久化全局开关与按主机名的白名单。
// 每次修改在返回前同步落盘；落盘失败时内存状态仍然生效。
type SettingsStore struct {
	path      string
	enabled   bool
	allowlist map[string]struct{}
	mu        sync.RWMutex
}

// NewSettingsStore 从 path 加载设置，文件缺失或损坏时使用默认值
func NewSettingsStore(path string, defaultEnabled bool) *SettingsStore {
	s := &SettingsStore{
		path:      path,
		enabled:   defaultEnabled,
		allowlist: make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("[AdBlock] Failed to read settings %s: %v", path, err)
		}
		return s
	}

	var f settingsFile
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warnf("[AdBlock] Settings file is corrupt, using defaults: %v", err)
		return s
	}
	s.enabled = f.Enabled
	for _, h := range f.Allowlist {
		if h = util.NormalizeDomain(h); h != "" {
			s.allowlist[h] = struct{}{}
		}
	}
	return s
}

// IsEnabled 全局开关
func (s *SettingsStore) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled 设置全局开关并落盘
func (s *SettingsStore) SetEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	return s.saveLocked()
}

// ToggleEnabled 在同一把锁内翻转全局开关并落盘，返回翻转后的值
func (s *SettingsStore) ToggleEnabled() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = !s.enabled
	return s.enabled, s.saveLocked()
}

// IsAllowlisted 主机名是否在白名单中
func (s *SettingsStore) IsAllowlisted(host string) bool {
	host = util.NormalizeDomain(host)
	if host == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.allowlist[host]
	return ok
}

// ToggleAllowlist 切换主机名的白名单状态，返回切换后是否在白名单中
func (s *SettingsStore) ToggleAllowlist(host string) (bool, error) {
	host = util.NormalizeDomain(host)
	if host == "" {
		return false, fmt.Errorf("empty hostname")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, listed := s.allowlist[host]
	if listed {
		delete(s.allowlist, host)
	} else {
		s.allowlist[host] = struct{}{}
	}
	return !listed, s.saveLocked()
}

// Allowlist 返回排序后的白名单
func (s *SettingsStore) Allowlist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

func (s *SettingsStore) sortedLocked() []string {
	out := make([]string, 0, len(s.allowlist))
	for h := range s.allowlist {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func (s *SettingsStore) saveLocked() error {
	data, err := json.MarshalIndent(settingsFile{
		Enabled:   s.enabled,
		Allowlist: s.sortedLocked(),
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		logger.Errorf("[AdBlock] Failed to save settings: %v", err)
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// writeFileAtomic 先写临时文件再 rename，避免读到半个文件
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
