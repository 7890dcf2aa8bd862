package adblock

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"adshield/logger"
)

var listNamePattern = regexp.MustCompile(`^[a-z0-9_\-]+$`)

// ListStorage 管理 <dataDir>/lists/<name>.txt 与 metadata.json
type ListStorage struct {
	dir      string
	metaFile string
	meta     ListMetadata
	mu       sync.RWMutex
}

// NewListStorage 创建存储并加载元数据，损坏的元数据视为空
func NewListStorage(dataDir string) (*ListStorage, error) {
	dir := filepath.Join(dataDir, "lists")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	ls := &ListStorage{
		dir:      dir,
		metaFile: filepath.Join(dataDir, "metadata.json"),
		meta:     ListMetadata{Lists: make(map[string]ListInfo)},
	}
	if err := ls.loadMeta(); err != nil && !os.IsNotExist(err) {
		logger.Warnf("[Lists] Metadata unreadable, starting clean: %v", err)
	}
	return ls, nil
}

func (ls *ListStorage) loadMeta() error {
	data, err := os.ReadFile(ls.metaFile)
	if err != nil {
		return err
	}

	var meta ListMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}
	if meta.Lists == nil {
		meta.Lists = make(map[string]ListInfo)
	}

	ls.mu.Lock()
	ls.meta = meta
	ls.mu.Unlock()
	return nil
}

func (ls *ListStorage) saveMetaLocked() error {
	data, err := json.MarshalIndent(ls.meta, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(ls.metaFile, data)
}

func (ls *ListStorage) listPath(name string) (string, error) {
	if !listNamePattern.MatchString(name) {
		return "", fmt.Errorf("invalid list name %q", name)
	}
	return filepath.Join(ls.dir, name+".txt"), nil
}

// SaveList 整体替换某个列表的内容并记录大小
func (ls *ListStorage) SaveList(name, content string) error {
	path, err := ls.listPath(name)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("save list %s: %w", name, err)
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.meta.Lists[name] = ListInfo{Size: len(content), Updated: time.Now()}
	return ls.saveMetaLocked()
}

// MarkUpdated 记录一次成功的更新时间
func (ls *ListStorage) MarkUpdated(t time.Time) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.meta.LastUpdated = &t
	return ls.saveMetaLocked()
}

// LoadList 读取单个列表
func (ls *ListStorage) LoadList(name string) (string, error) {
	path, err := ls.listPath(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListNames 返回磁盘上已有的列表名（排序）
func (ls *ListStorage) ListNames() []string {
	entries, err := os.ReadDir(ls.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(names)
	return names
}

// HasAnyList 是否至少存在一个列表文件
func (ls *ListStorage) HasAnyList() bool {
	return len(ls.ListNames()) > 0
}

// Metadata 返回元数据的拷贝
func (ls *ListStorage) Metadata() ListMetadata {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	out := ListMetadata{Lists: make(map[string]ListInfo, len(ls.meta.Lists))}
	for k, v := range ls.meta.Lists {
		out.Lists[k] = v
	}
	if ls.meta.LastUpdated != nil {
		t := *ls.meta.LastUpdated
		out.LastUpdated = &t
	}
	return out
}

// LastUpdated 上次成功更新的时间，从未更新时返回 nil
func (ls *ListStorage) LastUpdated() *time.Time {
	return ls.Metadata().LastUpdated
}

// ReadAllRules 并发读取所有列表文件，按列表名顺序拼接
func (ls *ListStorage) ReadAllRules() []string {
	names := ls.ListNames()
	results := make([][]string, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			lines, err := readLines(filepath.Join(ls.dir, name+".txt"))
			if err != nil {
				logger.Warnf("[Lists] Failed to read %s: %v", name, err)
				return
			}
			results[i] = lines
		}(i, name)
	}
	wg.Wait()

	var all []string
	for _, lines := range results {
		all = append(all, lines...)
	}
	return all
}

// ClearAll 删除所有列表文件与元数据
func (ls *ListStorage) ClearAll() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for _, name := range ls.ListNames() {
		if err := os.Remove(filepath.Join(ls.dir, name+".txt")); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	ls.meta = ListMetadata{Lists: make(map[string]ListInfo)}
	if err := os.Remove(ls.metaFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
