package adblock

import (
	"strings"

	"github.com/AdguardTeam/urlfilter"
	"github.com/AdguardTeam/urlfilter/filterlist"
	"github.com/AdguardTeam/urlfilter/rules"
)

// URLFilterEngine matches network requests with AdGuard's urlfilter and
// element hiding with a CosmeticIndex.
type URLFilterEngine struct {
	engine    *urlfilter.NetworkEngine
	cosmetic  *CosmeticIndex
	ruleCount int
}

func NewURLFilterEngine() (*URLFilterEngine, error) {
	return &URLFilterEngine{cosmetic: NewCosmeticIndex()}, nil
}

func (e *URLFilterEngine) LoadRules(lines []string) error {
	network := make([]string, 0, len(lines))
	cosmetic := NewCosmeticIndex()
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '!' || line[0] == '[' {
			continue
		}
		if IsCosmeticRule(line) {
			cosmetic.AddLine(line)
			continue
		}
		// @@||x^$generichide 既是网络例外也是页面级元素隐藏开关
		if strings.HasPrefix(line, "@@") {
			cosmetic.AddLine(line)
		}
		network = append(network, line)
	}

	rulesStr := strings.Join(network, "\n")
	config := &filterlist.StringConfig{
		RulesText:      rulesStr,
		ID:             1,
		IgnoreCosmetic: true,
	}
	stringList := filterlist.NewString(config)

	storage, err := filterlist.NewRuleStorage([]filterlist.Interface{stringList})
	if err != nil {
		return err
	}

	e.engine = urlfilter.NewNetworkEngine(storage)
	e.cosmetic = cosmetic

	actualCount := 0
	ruleScanner := filterlist.NewRuleScanner(strings.NewReader(rulesStr), 1, true)
	for ruleScanner.Scan() {
		actualCount++
	}
	e.ruleCount = actualCount + cosmetic.Count()
	return nil
}

func (e *URLFilterEngine) Match(req *Request) MatchResult {
	if e.engine == nil || req == nil {
		return MatchResult{}
	}

	r := rules.NewRequest(req.URL, req.SourceURL, requestType(req.Type))
	rule, ok := e.engine.Match(r)
	if !ok || rule == nil {
		return MatchResult{}
	}
	return resultForRule(rule.Text())
}

func (e *URLFilterEngine) Cosmetic(pageURL string) Cosmetic {
	return e.cosmetic.Lookup(pageURL)
}

func (e *URLFilterEngine) Count() int {
	return e.ruleCount
}

func requestType(t ResourceType) rules.RequestType {
	switch t {
	case TypeDocument:
		return rules.TypeDocument
	case TypeSubdocument:
		return rules.TypeSubdocument
	case TypeScript:
		return rules.TypeScript
	case TypeStylesheet:
		return rules.TypeStylesheet
	case TypeImage:
		return rules.TypeImage
	case TypeMedia:
		return rules.TypeMedia
	case TypeFont:
		return rules.TypeFont
	case TypeXHR:
		return rules.TypeXmlhttprequest
	case TypeWebSocket:
		return rules.TypeWebsocket
	case TypePing:
		return rules.TypePing
	default:
		return rules.TypeOther
	}
}
