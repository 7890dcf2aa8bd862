package adblock

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"adshield/config"
	"adshield/internal/util"
	"adshield/logger"
)

// Manager owns the adblock pipeline: settings, list acquisition, the compiled
// engine and its attachment to browser sessions.
type Manager struct {
	cfg       *config.AdBlockConfig
	settings  *SettingsStore
	storage   *ListStorage
	updater   *ListUpdater
	engine    *Engine
	decisions *DecisionCache
	matcher   Matcher
	tracker   *SessionTracker
	counter   *BlockCounter
	stats     *Stats
	recent    *RecentlyBlockedTracker
	rebuildMu sync.Mutex
	lastError atomic.Value

	onBlock func(req InterceptedRequest, res MatchResult)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager wires the pipeline from cfg. Nothing touches the network until Start.
func NewManager(cfg *config.AdBlockConfig) (*Manager, error) {
	storage, err := NewListStorage(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("error creating list storage: %w", err)
	}
	if _, err := NewFilterEngine(cfg.Engine); err != nil {
		return nil, err
	}

	sources := make([]ListSource, 0, len(cfg.Lists))
	for _, l := range cfg.Lists {
		sources = append(sources, ListSource{Name: l.Name, URL: l.URL})
	}
	loader := NewRuleLoader(cfg.UserAgent, cfg.DownloadTimeout(), cfg.MinListBytes)

	m := &Manager{
		cfg:      cfg,
		settings: NewSettingsStore(filepath.Join(cfg.DataDir, "settings.json"), cfg.Enable),
		storage:  storage,
		updater:  NewListUpdater(sources, storage, loader, cfg.UpdateInterval(), cfg.MaxConcurrentDownloads),
		engine:   NewEngine(cfg.Engine),
		counter:  NewBlockCounter(),
		stats:    NewStats(),
		recent:   NewRecentlyBlockedTracker(),
	}
	decisions, err := NewDecisionCache(m.engine, cfg.DecisionCacheSize)
	if err != nil {
		return nil, err
	}
	m.decisions = decisions
	m.matcher = NewAllowlistMatcher(m.settings, m.decisions)
	m.tracker = NewSessionTracker(m.Intercept)
	m.lastError.Store("")
	return m, nil
}

// Start builds the engine from cached lists, then keeps lists fresh in the
// background until ctx is cancelled or Close is called.
func (m *Manager) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	if err := m.Rebuild(ctx); err != nil {
		m.setError(err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.backgroundLoop(ctx)
	}()
	return nil
}

func (m *Manager) backgroundLoop(ctx context.Context) {
	hadLists := m.storage.HasAnyList()
	if !m.updater.EnsureListsExist(ctx) {
		m.setError(ErrNoLists)
		logger.Warnf("[AdBlock] No filter lists available, running with built-in rules only")
	} else if !hadLists {
		if err := m.Rebuild(ctx); err != nil {
			m.setError(err)
		}
	}

	select {
	case <-time.After(m.cfg.StartupUpdateDelay()):
		m.UpdateFilterLists(ctx, false)
	case <-ctx.Done():
		return
	}

	interval := m.cfg.UpdateInterval()
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.UpdateFilterLists(ctx, false)
		case <-ctx.Done():
			return
		}
	}
}

// Close stops background work and detaches every session.
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.tracker.DetachAll()
}

// SetBlockHook installs a callback invoked for every blocked request. Call it
// before Start.
func (m *Manager) SetBlockHook(fn func(req InterceptedRequest, res MatchResult)) {
	m.onBlock = fn
}

func (m *Manager) setError(err error) {
	if err == nil {
		m.lastError.Store("")
		return
	}
	m.lastError.Store(err.Error())
}

// Rebuild detaches all sessions, recompiles the engine from the stored lists
// and re-attaches exactly the previously attached sessions. A failed compile
// keeps the previous engine; sessions are re-attached either way.
func (m *Manager) Rebuild(ctx context.Context) error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	sessions := m.tracker.DetachAll()
	err := m.engine.Build(m.updater.CombinedRules())
	m.decisions.Purge()
	if n := m.tracker.AttachAll(sessions); n != len(sessions) {
		logger.Warnf("[AdBlock] Re-attached %d of %d sessions", n, len(sessions))
	}
	if err == nil {
		m.setError(nil)
	}
	return err
}

// Attach starts blocking on s.
func (m *Manager) Attach(s Session) error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()
	return m.tracker.Attach(s)
}

// Detach stops blocking on s.
func (m *Manager) Detach(s Session) error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()
	return m.tracker.Detach(s)
}

// AttachedSessions returns the ids of sessions with blocking enabled.
func (m *Manager) AttachedSessions() []string {
	return m.tracker.Attached()
}

// Intercept is the handler registered on every attached session.
func (m *Manager) Intercept(req InterceptedRequest) Verdict {
	if !util.IsWebURL(req.URL) {
		return Verdict{}
	}
	res := m.matcher.Match(&Request{URL: req.URL, SourceURL: req.SourceURL, Type: req.ResourceType})
	if !res.Matched {
		return Verdict{}
	}

	m.counter.Inc(req.WebContentsID)
	m.stats.RecordBlock()
	m.recent.Add(req.URL)
	if m.onBlock != nil {
		m.onBlock(req, res)
	}
	logger.Debugf("[AdBlock] Blocked %s (%s) by %s", req.URL, req.ResourceType, res.Filter)

	if res.Redirect != "" {
		return Verdict{RedirectURL: res.Redirect}
	}
	return Verdict{Block: true}
}

// Match runs the allowlist-decorated matcher.
func (m *Manager) Match(req *Request) MatchResult {
	return m.matcher.Match(req)
}

// TestRequest reports what would happen to a request without counting it.
func (m *Manager) TestRequest(url, sourceURL string, typ ResourceType) MatchResult {
	if typ == "" {
		typ = TypeOther
	}
	return m.matcher.Match(&Request{URL: url, SourceURL: sourceURL, Type: typ})
}

// CosmeticFilters returns the engine's element hiding output for pageURL,
// empty when blocking is off for that page.
func (m *Manager) CosmeticFilters(pageURL string) Cosmetic {
	if !m.settings.IsEnabled() {
		return Cosmetic{}
	}
	if host := util.HostnameOf(pageURL); host == "" || m.settings.IsAllowlisted(host) {
		return Cosmetic{}
	}
	return m.engine.Cosmetic(pageURL)
}

// IsEnabled reports the global switch.
func (m *Manager) IsEnabled() bool {
	return m.settings.IsEnabled()
}

// IsAllowlisted reports whether host is on the allowlist.
func (m *Manager) IsAllowlisted(host string) bool {
	return m.settings.IsAllowlisted(host)
}

// GetStatus describes blocking from the point of view of one page.
func (m *Manager) GetStatus(webContentsID, pageURL string) Status {
	host := util.HostnameOf(pageURL)
	st := Status{
		Enabled:      m.settings.IsEnabled(),
		SiteEnabled:  host == "" || !m.settings.IsAllowlisted(host),
		Host:         host,
		BlockedCount: m.counter.Get(webContentsID),
		LastUpdated:  m.storage.LastUpdated(),
		ListsCount:   len(m.storage.ListNames()),
		Ready:        m.engine.Ready(),
	}
	if msg, _ := m.lastError.Load().(string); msg != "" {
		st.Error = msg
	} else if !st.Ready {
		st.Error = ErrNotReady.Error()
	}
	return st
}

// ToggleGlobal flips the global switch and returns the new value. The new
// value is in effect even when saving it fails.
func (m *Manager) ToggleGlobal() (bool, error) {
	enabled, err := m.settings.ToggleEnabled()
	logger.Infof("[AdBlock] Global blocking %s", map[bool]string{true: "enabled", false: "disabled"}[enabled])
	return enabled, err
}

// SetEnabled sets the global switch.
func (m *Manager) SetEnabled(enabled bool) error {
	return m.settings.SetEnabled(enabled)
}

// ToggleSite flips the allowlist entry for hostname.
func (m *Manager) ToggleSite(hostname string) (SiteToggle, error) {
	host := util.NormalizeDomain(hostname)
	listed, err := m.settings.ToggleAllowlist(host)
	if host != "" {
		logger.Infof("[AdBlock] Site %s allowlisted=%v", host, listed)
	}
	return SiteToggle{Allowlisted: listed, Hostname: host}, err
}

// Allowlist returns the allowlisted hostnames.
func (m *Manager) Allowlist() []string {
	return m.settings.Allowlist()
}

// UpdateFilterLists refreshes the lists and rebuilds the engine when anything
// was downloaded.
func (m *Manager) UpdateFilterLists(ctx context.Context, force bool) UpdateResult {
	res := m.updater.UpdateLists(ctx, force)
	if !res.Success {
		m.setError(ErrNoLists)
		return res
	}
	m.setError(nil)
	if res.Updated {
		if err := m.Rebuild(ctx); err != nil {
			m.setError(err)
			res.Message = "Lists updated but engine rebuild failed: " + err.Error()
		}
	}
	return res
}

// GetListsInfo returns the list metadata.
func (m *Manager) GetListsInfo() ListMetadata {
	return m.storage.Metadata()
}

// ClearAllLists removes every stored list and rebuilds with the built-in rules.
func (m *Manager) ClearAllLists(ctx context.Context) error {
	if err := m.updater.ClearAllLists(); err != nil {
		return err
	}
	return m.Rebuild(ctx)
}

// GetBlockedCount returns the number of requests blocked for a page.
func (m *Manager) GetBlockedCount(webContentsID string) int {
	return m.counter.Get(webContentsID)
}

// ResetBlockedCount zeroes the counter for a page.
func (m *Manager) ResetBlockedCount(webContentsID string) {
	m.counter.Reset(webContentsID)
}

// RecentlyBlocked returns the last blocked URLs, newest last.
func (m *Manager) RecentlyBlocked() []string {
	return m.recent.GetAll()
}

// Stats returns aggregate numbers for the control API.
func (m *Manager) Stats() AdBlockStats {
	today, total := m.stats.Totals()
	return AdBlockStats{
		Enabled:      m.settings.IsEnabled(),
		Engine:       m.cfg.Engine,
		TotalRules:   m.engine.Count(),
		BlockedToday: today,
		BlockedTotal: total,
		LastUpdate:   m.storage.LastUpdated(),
		ListsCount:   len(m.storage.ListNames()),
		Sessions:     m.tracker.Attached(),
		Allowlist:    m.settings.Allowlist(),
		Cache:        m.decisions.Stats(),
	}
}
