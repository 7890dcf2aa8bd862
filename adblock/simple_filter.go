package adblock

import (
	"strings"

	"adshield/internal/util"
)

// SimpleFilter is a hostname-only engine: ||host^ rules, hosts-file lines and
// bare hostnames, with @@||host^ exceptions. Rules with path patterns or
// type options are ignored. Element hiding uses the same CosmeticIndex as the
// urlfilter engine.
type SimpleFilter struct {
	exactMatcher     *ExactMatcher
	suffixMatcher    *SuffixMatcher
	hostsMatcher     *HostsMatcher
	thirdPartyOnly   *SuffixMatcher
	exceptionMatcher *SuffixMatcher
	cosmetic         *CosmeticIndex
}

// NewSimpleFilter creates a new SimpleFilter.
func NewSimpleFilter() *SimpleFilter {
	return &SimpleFilter{
		exactMatcher:     NewExactMatcher(),
		suffixMatcher:    NewSuffixMatcher(),
		hostsMatcher:     NewHostsMatcher(),
		thirdPartyOnly:   NewSuffixMatcher(),
		exceptionMatcher: NewSuffixMatcher(),
		cosmetic:         NewCosmeticIndex(),
	}
}

// Match checks the request host against the loaded host rules.
func (f *SimpleFilter) Match(req *Request) MatchResult {
	if req == nil {
		return MatchResult{}
	}
	host := util.HostnameOf(req.URL)
	if host == "" {
		return MatchResult{}
	}

	// 1. 例外规则优先
	if matched, rule := f.exceptionMatcher.Match(host); matched {
		return MatchResult{Exception: true, Filter: "@@" + rule}
	}

	// 2. 精确匹配
	if matched, rule := f.exactMatcher.Match(host); matched {
		return MatchResult{Matched: true, Filter: rule}
	}

	// 3. Hosts 匹配
	if matched, rule := f.hostsMatcher.Match(host); matched {
		return MatchResult{Matched: true, Filter: rule}
	}

	// 4. 后缀匹配 (||example.com^)
	if matched, rule := f.suffixMatcher.Match(host); matched {
		return MatchResult{Matched: true, Filter: rule}
	}

	// 5. $third-party 规则只在跨站请求时生效
	if src := util.HostnameOf(req.SourceURL); src != "" && !util.SameSite(host, src) {
		if matched, rule := f.thirdPartyOnly.Match(host); matched {
			return MatchResult{Matched: true, Filter: rule + "$third-party"}
		}
	}

	return MatchResult{}
}

func (f *SimpleFilter) Cosmetic(pageURL string) Cosmetic {
	return f.cosmetic.Lookup(pageURL)
}

// LoadRules parses rules and adds them to the appropriate matcher.
func (f *SimpleFilter) LoadRules(rules []string) error {
	f.exactMatcher = NewExactMatcher()
	f.suffixMatcher = NewSuffixMatcher()
	f.hostsMatcher = NewHostsMatcher()
	f.thirdPartyOnly = NewSuffixMatcher()
	f.exceptionMatcher = NewSuffixMatcher()
	f.cosmetic = NewCosmeticIndex()

	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule == "" || strings.HasPrefix(rule, "!") || strings.HasPrefix(rule, "[") {
			continue
		}
		if IsCosmeticRule(rule) {
			f.cosmetic.AddLine(rule)
			continue
		}
		if strings.HasPrefix(rule, "#") {
			continue
		}

		if strings.HasPrefix(rule, "@@||") {
			f.cosmetic.AddLine(rule)
			if host, _, ok := plainHostRule(rule[2:]); ok {
				f.exceptionMatcher.AddRule(host)
			}
			continue
		}

		// AdBlock Plus style rules
		if strings.HasPrefix(rule, "||") {
			if host, thirdParty, ok := plainHostRule(rule); ok {
				if thirdParty {
					f.thirdPartyOnly.AddRule(host)
				} else {
					f.suffixMatcher.AddRule(host)
				}
			}
			continue
		}

		// Hosts file style rules
		if strings.ContainsAny(rule, " \t") {
			if i := strings.IndexByte(rule, '#'); i >= 0 {
				rule = rule[:i]
			}
			if len(strings.Fields(rule)) >= 2 {
				f.hostsMatcher.AddRule(rule)
			}
			continue
		}

		// Plain hostname (exact match)
		if util.IsValidDomain(rule) {
			f.exactMatcher.AddRule(rule)
		}
	}
	return nil
}

// plainHostRule accepts ||host^ and ||host^$third-party style rules whose
// options do not narrow the match beyond the hostname.
func plainHostRule(rule string) (host string, thirdParty bool, ok bool) {
	rule = strings.TrimPrefix(rule, "||")
	if i := strings.IndexByte(rule, '$'); i >= 0 {
		for _, opt := range strings.Split(rule[i+1:], ",") {
			switch opt {
			case "third-party", "3p":
				thirdParty = true
			case "important", "all":
			default:
				return "", false, false
			}
		}
		rule = rule[:i]
	}
	if !strings.HasSuffix(rule, "^") {
		return "", false, false
	}
	host = strings.TrimSuffix(rule, "^")
	if !util.IsValidDomain(host) {
		return "", false, false
	}
	return host, thirdParty, true
}

// Count implements the FilterEngine interface.
func (f *SimpleFilter) Count() int {
	return f.exactMatcher.Count() + f.suffixMatcher.Count() + f.hostsMatcher.Count() +
		f.thirdPartyOnly.Count() + f.exceptionMatcher.Count() + f.cosmetic.Count()
}
