// Package browser hosts Chromium through the DevTools protocol and wires the
// adblock pipeline into every session and tab it creates.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"adshield/adblock"
	"adshield/addetect"
	"adshield/config"
	"adshield/cosmetic"
	"adshield/internal/util"
	"adshield/logger"
	"adshield/popup"
)

// Browser owns the Chromium process and its sessions.
type Browser struct {
	opts     config.BrowserConfig
	launcher *launcher.Launcher
	root     *rod.Browser

	manager  *adblock.Manager
	injector *cosmetic.Injector
	popups   *popup.Policy

	cosmeticEnabled bool
	popupEnabled    bool
	detectorEnabled bool
	detectorOpts    addetect.Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// Launch starts Chromium per cfg.Browser and prepares the page-side
// components from the remaining sections.
func Launch(cfg *config.Config, manager *adblock.Manager) (*Browser, error) {
	injector, err := cosmetic.NewInjector(manager, cosmetic.Options{
		ScanInterval: msDuration(cfg.Cosmetic.ScanIntervalMs),
	})
	if err != nil {
		return nil, err
	}
	popups, err := popup.NewPolicy(popup.ThresholdsFromConfig(&cfg.Popup))
	if err != nil {
		return nil, err
	}

	l := launcher.New().
		Headless(cfg.Browser.Headless).
		NoSandbox(cfg.Browser.NoSandbox)
	if cfg.Browser.Bin != "" {
		l = l.Bin(cfg.Browser.Bin)
	}
	if cfg.Browser.Proxy != "" {
		l = l.Proxy(cfg.Browser.Proxy)
	}
	if cfg.Browser.Stealth {
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
	}
	// popups are judged by the target watcher instead of Chromium's blocker
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("disable-default-apps"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	logger.Infof("[Browser] Launched, control url %s", controlURL)

	root := rod.New().ControlURL(controlURL)
	if err := root.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{
		opts:            cfg.Browser,
		launcher:        l,
		root:            root,
		manager:         manager,
		injector:        injector,
		popups:          popups,
		cosmeticEnabled: cfg.Cosmetic.Enabled,
		popupEnabled:    cfg.Popup.Enabled,
		detectorEnabled: cfg.Detector.Enabled,
		detectorOpts:    addetect.OptionsFromConfig(&cfg.Detector),
		sessions:        make(map[string]*Session),
	}, nil
}

// NewSession creates an incognito context and attaches the adblock manager
// to it.
func (b *Browser) NewSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	incognito, err := b.root.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      "session-" + uuid.NewString(),
		host:    b,
		browser: incognito,
		ctx:     sctx,
		cancel:  cancel,
		tabs:    make(map[proto.TargetTargetID]*Tab),
	}
	s.watchTargets()

	if err := b.manager.Attach(s); err != nil {
		_ = s.Close()
		return nil, err
	}

	b.mu.Lock()
	b.sessions[s.id] = s
	b.mu.Unlock()
	logger.Infof("[Browser] Session %s created", s.id)
	return s, nil
}

// Sessions returns the live sessions ordered by id.
func (b *Browser) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// TabInfo describes an open tab.
type TabInfo struct {
	ID           string `json:"id"`
	Session      string `json:"session"`
	URL          string `json:"url"`
	BlockedCount int    `json:"blockedCount"`
}

// Tabs lists every open tab with its blocked request count.
func (b *Browser) Tabs() []TabInfo {
	var out []TabInfo
	for _, s := range b.Sessions() {
		for _, t := range s.Tabs() {
			out = append(out, TabInfo{
				ID:           t.id,
				Session:      s.id,
				URL:          t.URL(),
				BlockedCount: b.manager.GetBlockedCount(t.id),
			})
		}
	}
	return out
}

// CloseSession detaches and closes one session.
func (b *Browser) CloseSession(s *Session) error {
	b.mu.Lock()
	delete(b.sessions, s.id)
	b.mu.Unlock()

	var errs []error
	if err := b.manager.Detach(s); err != nil {
		errs = append(errs, err)
	}
	if err := s.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close closes every session and kills the browser process.
func (b *Browser) Close() error {
	var errs []error
	for _, s := range b.Sessions() {
		if err := b.CloseSession(s); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.id, err))
		}
	}
	if err := b.root.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	b.launcher.Kill()
	b.launcher.Cleanup()
	logger.Info("[Browser] Closed")
	return errors.Join(errs...)
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// activeFor reports whether blocking applies to pages at url.
func (b *Browser) activeFor(url string) bool {
	return b.manager.IsEnabled() && !b.manager.IsAllowlisted(util.HostnameOf(url))
}

func (b *Browser) shouldBlockPopup(openerURL, targetURL string) bool {
	if !b.popupEnabled || !b.activeFor(openerURL) {
		return false
	}
	return b.popups.ShouldBlock(openerURL, targetURL)
}
