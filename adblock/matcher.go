package adblock

import (
	"strings"
	"sync"

	radix "github.com/hashicorp/go-immutable-radix"
)

// HostMatcher 定义按主机名匹配的规则集合
type HostMatcher interface {
	// Match 检查主机名是否匹配规则，返回命中的规则文本
	Match(host string) (bool, string)
	// AddRule 添加规则
	AddRule(rule string)
	// Count 返回规则数量
	Count() int
}

// ExactMatcher 精确匹配器 (纯主机名行)
type ExactMatcher struct {
	rules map[string]struct{}
	mu    sync.RWMutex
}

// NewExactMatcher 创建一个新的精确匹配器
func NewExactMatcher() *ExactMatcher {
	return &ExactMatcher{
		rules: make(map[string]struct{}),
	}
}

// Match 检查主机名是否在列表中
func (m *ExactMatcher) Match(host string) (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.rules[host]; ok {
		return true, host
	}
	return false, ""
}

// AddRule 添加一条精确匹配规则
func (m *ExactMatcher) AddRule(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[strings.ToLower(host)] = struct{}{}
}

// Count 返回规则数量
func (m *ExactMatcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// SuffixMatcher 后缀匹配器 (用于 ||example.com^ 类型的规则)
// 使用 Radix Tree 实现：主机名按标签倒序存储，后缀匹配变成前缀匹配
type SuffixMatcher struct {
	tree *radix.Tree
	mu   sync.Mutex // 仅用于保护写操作（更新 tree 指针）
}

// NewSuffixMatcher 创建一个新的后缀匹配器
func NewSuffixMatcher() *SuffixMatcher {
	return &SuffixMatcher{
		tree: radix.New(),
	}
}

func reverseLabels(host string) string {
	parts := strings.Split(host, ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// Match 检查主机名是否匹配后缀规则
// 规则 example.com 匹配 example.com 与 sub.example.com，但不匹配 badexample.com
func (m *SuffixMatcher) Match(host string) (bool, string) {
	reversed := reverseLabels(strings.ToLower(host))

	m.mu.Lock()
	tree := m.tree
	m.mu.Unlock()

	// WalkPath 依次访问 reversed 的所有前缀 key，只接受落在标签边界上的
	var hit string
	tree.Root().WalkPath([]byte(reversed), func(k []byte, _ interface{}) bool {
		if len(k) == len(reversed) || reversed[len(k)] == '.' {
			hit = string(k)
			return true
		}
		return false
	})

	if hit != "" {
		return true, "||" + reverseLabels(hit) + "^"
	}
	return false, ""
}

// AddRule 添加一条后缀匹配规则
// 输入应该是纯主机名部分，例如 "example.com" (来自 ||example.com^)
func (m *SuffixMatcher) AddRule(host string) {
	reversed := reverseLabels(strings.ToLower(host))

	m.mu.Lock()
	defer m.mu.Unlock()

	// Insert 返回一个新的树，读者持有的旧树不受影响
	newTree, _, _ := m.tree.Insert([]byte(reversed), true)
	m.tree = newTree
}

// Count 返回规则数量
func (m *SuffixMatcher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.Len()
}

// HostsMatcher Hosts 文件匹配器
// 格式: 0.0.0.0 example.com
type HostsMatcher struct {
	rules map[string]string // host -> ip
	mu    sync.RWMutex
}

// NewHostsMatcher 创建一个新的 Hosts 匹配器
func NewHostsMatcher() *HostsMatcher {
	return &HostsMatcher{
		rules: make(map[string]string),
	}
}

// Match 检查主机名是否在 Hosts 列表中
func (m *HostsMatcher) Match(host string) (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if ip, ok := m.rules[host]; ok {
		return true, ip + " " + host
	}
	return false, ""
}

// AddRule 添加一条 Hosts 规则
func (m *HostsMatcher) AddRule(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return
	}
	ip, host := fields[0], strings.ToLower(fields[1])
	// hosts 文件里常见的自引用条目不是拦截规则
	if host == "localhost" || host == "localhost.localdomain" || host == "broadcasthost" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[host] = ip
}

// Count 返回规则数量
func (m *HostsMatcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}
