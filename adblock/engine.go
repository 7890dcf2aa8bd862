package adblock

import (
	"fmt"
	"sync/atomic"
	"time"

	"adshield/logger"
)

type engineState struct {
	filter  FilterEngine
	builtAt time.Time
}

// Engine holds the compiled filter behind an atomic pointer. Build prepares a
// new filter without touching the current one and swaps it in on success, so
// readers never observe a half-built engine.
type Engine struct {
	kind      string
	newFilter func(kind string) (FilterEngine, error)
	current   atomic.Pointer[engineState]
}

// NewEngine creates an engine that builds filters of the given kind.
func NewEngine(kind string) *Engine {
	return &Engine{kind: kind, newFilter: NewFilterEngine}
}

// Build compiles rules into a new filter and swaps it in. On any error,
// including a panic inside the rule compiler, the previous filter stays active.
func (e *Engine) Build(lines []string) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine build panicked: %v", r)
		}
		if err != nil {
			logger.Errorf("[Engine] Build failed, keeping previous engine: %v", err)
		}
	}()

	filter, err := e.newFilter(e.kind)
	if err != nil {
		return err
	}
	if err := filter.LoadRules(lines); err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	e.current.Store(&engineState{filter: filter, builtAt: time.Now()})
	logger.Infof("[Engine] Built %s engine with %d rules in %v", e.kind, filter.Count(), time.Since(start).Round(time.Millisecond))
	return nil
}

// Ready reports whether a filter has been built successfully.
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

// Match delegates to the current filter.
func (e *Engine) Match(req *Request) MatchResult {
	st := e.current.Load()
	if st == nil {
		return MatchResult{}
	}
	return st.filter.Match(req)
}

// Cosmetic delegates to the current filter.
func (e *Engine) Cosmetic(pageURL string) Cosmetic {
	st := e.current.Load()
	if st == nil {
		return Cosmetic{}
	}
	return st.filter.Cosmetic(pageURL)
}

// Count returns the rule count of the current filter.
func (e *Engine) Count() int {
	st := e.current.Load()
	if st == nil {
		return 0
	}
	return st.filter.Count()
}

// BuiltAt returns when the current filter was swapped in.
func (e *Engine) BuiltAt() time.Time {
	st := e.current.Load()
	if st == nil {
		return time.Time{}
	}
	return st.builtAt
}
