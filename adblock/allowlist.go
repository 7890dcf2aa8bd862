package adblock

import "adshield/internal/util"

// Matcher decides whether a request should be blocked.
type Matcher interface {
	Match(req *Request) MatchResult
}

// Toggles is the subset of SettingsStore the allowlist decorator needs.
type Toggles interface {
	IsEnabled() bool
	IsAllowlisted(host string) bool
}

// AllowlistMatcher wraps the compiled matcher with the global switch and the
// per-site allowlist. The compiled matcher itself never changes when users
// toggle sites.
type AllowlistMatcher struct {
	toggles Toggles
	next    Matcher
}

// NewAllowlistMatcher decorates next.
func NewAllowlistMatcher(toggles Toggles, next Matcher) *AllowlistMatcher {
	return &AllowlistMatcher{toggles: toggles, next: next}
}

func (m *AllowlistMatcher) Match(req *Request) MatchResult {
	if req == nil || !m.toggles.IsEnabled() {
		return MatchResult{}
	}
	if host := util.HostnameOf(req.URL); host != "" && m.toggles.IsAllowlisted(host) {
		return MatchResult{}
	}
	if src := util.HostnameOf(req.SourceURL); src != "" && m.toggles.IsAllowlisted(src) {
		return MatchResult{}
	}
	return m.next.Match(req)
}
