package adblock

import (
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"

	"adshield/internal/util"
)

const selectorsPerRule = 500

type cosmeticKind int

const (
	kindHide cosmeticKind = iota
	kindCSS
	kindScript
)

type cosmeticRule struct {
	kind    cosmeticKind
	value   string
	exclude []string
}

// CosmeticIndex 元素隐藏规则索引：##、#@#、#$#、#%#。
// uBO 的 ##+js、过程式 #?# 与 HTML 过滤 ##^ 不在支持范围内，解析时跳过。
type CosmeticIndex struct {
	generic    []cosmeticRule
	byDomain   map[string][]cosmeticRule
	exceptions map[string]map[string]struct{} // domain -> value, "" 表示全局
	genericOff map[string]struct{}            // $generichide
	allOff     map[string]struct{}            // $elemhide / $document
	count      int
}

// NewCosmeticIndex 创建空索引
func NewCosmeticIndex() *CosmeticIndex {
	return &CosmeticIndex{
		byDomain:   make(map[string][]cosmeticRule),
		exceptions: make(map[string]map[string]struct{}),
		genericOff: make(map[string]struct{}),
		allOff:     make(map[string]struct{}),
	}
}

var cosmeticSeparators = []struct {
	sep       string
	kind      cosmeticKind
	exception bool
}{
	{"#@$#", kindCSS, true},
	{"#@%#", kindScript, true},
	{"#@#", kindHide, true},
	{"#$#", kindCSS, false},
	{"#%#", kindScript, false},
	{"##", kindHide, false},
}

// IsCosmeticRule 判断一行是否为元素隐藏类规则
func IsCosmeticRule(line string) bool {
	for _, s := range cosmeticSeparators {
		if strings.Contains(line, s.sep) {
			return true
		}
	}
	return strings.Contains(line, "#?#") || strings.Contains(line, "#@?#")
}

// AddLine 解析一行规则，返回是否被收录
func (ci *CosmeticIndex) AddLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '!' || line[0] == '[' {
		return false
	}
	if strings.HasPrefix(line, "@@") {
		return ci.addNetworkException(line)
	}
	if strings.Contains(line, "#?#") || strings.Contains(line, "#@?#") {
		return false
	}

	for _, s := range cosmeticSeparators {
		idx := strings.Index(line, s.sep)
		if idx < 0 {
			continue
		}
		domains, rest := line[:idx], line[idx+len(s.sep):]
		// hosts 文件里的 "## 注释"
		if domains == "" && strings.HasPrefix(rest, " ") {
			return false
		}
		value := strings.TrimSpace(rest)
		if value == "" || strings.HasPrefix(value, "+js(") || strings.HasPrefix(value, "^") {
			return false
		}
		// 脚本规则必须限定域名
		if s.kind == kindScript && domains == "" {
			return false
		}
		include, exclude := splitDomains(domains)
		if s.exception {
			ci.addException(include, value)
		} else {
			ci.addRule(cosmeticRule{kind: s.kind, value: value, exclude: exclude}, include)
		}
		ci.count++
		return true
	}
	return false
}

func splitDomains(list string) (include, exclude []string) {
	if list == "" {
		return nil, nil
	}
	for _, d := range strings.Split(list, ",") {
		d = strings.TrimSpace(d)
		if strings.HasPrefix(d, "~") {
			if d = util.NormalizeDomain(d[1:]); d != "" {
				exclude = append(exclude, d)
			}
			continue
		}
		if d = util.NormalizeDomain(d); d != "" {
			include = append(include, d)
		}
	}
	return include, exclude
}

func (ci *CosmeticIndex) addRule(r cosmeticRule, include []string) {
	if len(include) == 0 {
		ci.generic = append(ci.generic, r)
		return
	}
	for _, d := range include {
		ci.byDomain[d] = append(ci.byDomain[d], r)
	}
}

func (ci *CosmeticIndex) addException(include []string, value string) {
	if len(include) == 0 {
		include = []string{""}
	}
	for _, d := range include {
		set, ok := ci.exceptions[d]
		if !ok {
			set = make(map[string]struct{})
			ci.exceptions[d] = set
		}
		set[value] = struct{}{}
	}
}

// addNetworkException 收录 @@||example.com^$generichide / $elemhide 这类页面级例外
func (ci *CosmeticIndex) addNetworkException(line string) bool {
	idx := strings.LastIndex(line, "$")
	if idx < 0 || !strings.HasPrefix(line, "@@||") {
		return false
	}
	host := strings.TrimSuffix(strings.TrimSuffix(line[4:idx], "^"), "/")
	if host == "" || strings.ContainsAny(host, "/*") {
		return false
	}
	host = util.NormalizeDomain(host)

	added := false
	for _, opt := range strings.Split(line[idx+1:], ",") {
		switch strings.TrimSpace(opt) {
		case "generichide", "ghide":
			ci.genericOff[host] = struct{}{}
			added = true
		case "elemhide", "ehide", "document", "doc":
			ci.allOff[host] = struct{}{}
			added = true
		}
	}
	return added
}

// Count 已收录的元素隐藏规则数
func (ci *CosmeticIndex) Count() int {
	return ci.count
}

// Lookup 计算页面 URL 适用的样式与脚本
func (ci *CosmeticIndex) Lookup(pageURL string) Cosmetic {
	host := util.HostnameOf(pageURL)
	if host == "" {
		return Cosmetic{}
	}
	chain := util.ParentDomains(host)
	for _, d := range chain {
		if _, off := ci.allOff[d]; off {
			return Cosmetic{}
		}
	}

	excepted := make(map[string]struct{})
	for v := range ci.exceptions[""] {
		excepted[v] = struct{}{}
	}
	for _, d := range chain {
		for v := range ci.exceptions[d] {
			excepted[v] = struct{}{}
		}
	}

	genericOff := false
	for _, d := range chain {
		if _, off := ci.genericOff[d]; off {
			genericOff = true
			break
		}
	}

	var hide, css []string
	var scripts []string
	seen := make(map[string]struct{})
	collect := func(rules []cosmeticRule) {
		for _, r := range rules {
			if _, ok := excepted[r.value]; ok {
				continue
			}
			if excludedFor(host, r.exclude) {
				continue
			}
			key := strconv.Itoa(int(r.kind)) + r.value
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			switch r.kind {
			case kindHide:
				hide = append(hide, r.value)
			case kindCSS:
				css = append(css, r.value)
			case kindScript:
				scripts = append(scripts, r.value)
			}
		}
	}

	if !genericOff {
		collect(ci.generic)
	}
	for _, d := range chain {
		collect(ci.byDomain[d])
	}

	return Cosmetic{
		Styles:  buildStylesheet(hide, css),
		Scripts: scripts,
	}
}

func excludedFor(host string, exclude []string) bool {
	for _, d := range exclude {
		if util.IsSubdomainOf(host, d) {
			return true
		}
	}
	return false
}

// buildStylesheet 把隐藏选择器按块合并成 display:none 规则。
// cascadia 无法解析的选择器单独成块，避免一条坏选择器让整块失效。
func buildStylesheet(hide, css []string) string {
	if len(hide) == 0 && len(css) == 0 {
		return ""
	}

	var good, odd []string
	for _, sel := range hide {
		if _, err := cascadia.Compile(sel); err != nil {
			odd = append(odd, sel)
			continue
		}
		good = append(good, sel)
	}
	sort.Strings(odd)

	var b strings.Builder
	for i := 0; i < len(good); i += selectorsPerRule {
		end := i + selectorsPerRule
		if end > len(good) {
			end = len(good)
		}
		b.WriteString(strings.Join(good[i:end], ",\n"))
		b.WriteString(" { display: none !important; }\n")
	}
	for _, sel := range odd {
		b.WriteString(sel)
		b.WriteString(" { display: none !important; }\n")
	}
	for _, rule := range css {
		b.WriteString(rule)
		b.WriteString("\n")
	}
	return b.String()
}
