package adblock

import (
	"fmt"
	"strings"
)

// FilterEngine is a compiled rule set. Implementations are immutable after
// LoadRules returns and safe for concurrent readers.
type FilterEngine interface {
	LoadRules(rules []string) error
	Match(req *Request) MatchResult
	Cosmetic(pageURL string) Cosmetic
	Count() int
}

const (
	EngineURLFilter = "urlfilter"
	EngineSimple    = "simple"
)

// NewFilterEngine creates an empty engine of the named kind.
func NewFilterEngine(kind string) (FilterEngine, error) {
	switch strings.ToLower(kind) {
	case EngineURLFilter, "":
		return NewURLFilterEngine()
	case EngineSimple:
		return NewSimpleFilter(), nil
	default:
		return nil, fmt.Errorf("unknown adblock engine: %s", kind)
	}
}
