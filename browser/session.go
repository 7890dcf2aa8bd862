package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"adshield/adblock"
	"adshield/logger"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session closed")

type handlerEntry struct {
	fn adblock.InterceptFunc
}

// Session is an incognito browser context. Every tab in it shares the
// interception handler registered through Intercept.
type Session struct {
	id      string
	host    *Browser
	browser *rod.Browser

	handler atomic.Pointer[handlerEntry]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tabs   map[proto.TargetTargetID]*Tab
	closed bool
}

var _ adblock.Session = (*Session)(nil)

type listener struct {
	s     *Session
	entry *handlerEntry
}

// Remove unregisters the handler unless a newer one replaced it.
func (l *listener) Remove() error {
	l.s.handler.CompareAndSwap(l.entry, nil)
	return nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Intercept registers handler for every request of every tab.
func (s *Session) Intercept(handler adblock.InterceptFunc) (adblock.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	e := &handlerEntry{fn: handler}
	s.handler.Store(e)
	return &listener{s: s, entry: e}, nil
}

func (s *Session) intercept(req adblock.InterceptedRequest) adblock.Verdict {
	e := s.handler.Load()
	if e == nil {
		return adblock.Verdict{}
	}
	return e.fn(req)
}

// OpenTab creates a tab and navigates it to url.
func (s *Session) OpenTab(ctx context.Context, url string) (*Tab, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	tab, err := s.adopt(page)
	if err != nil {
		_ = page.Close()
		return nil, err
	}
	if url != "" {
		if err := tab.Navigate(ctx, url); err != nil {
			return tab, err
		}
	}
	return tab, nil
}

// Tabs returns the open tabs ordered by id.
func (s *Session) Tabs() []*Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Tab, 0, len(s.tabs))
	for _, t := range s.tabs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *Session) tab(id proto.TargetTargetID) *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs[id]
}

func (s *Session) adopt(page *rod.Page) (*Tab, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if t, ok := s.tabs[page.TargetID]; ok {
		s.mu.Unlock()
		return t, nil
	}
	ctx, cancel := context.WithCancel(s.ctx)
	t := &Tab{session: s, page: page, id: string(page.TargetID), ctx: ctx, cancel: cancel}
	s.tabs[page.TargetID] = t
	s.mu.Unlock()

	if err := s.host.prepareTab(t); err != nil {
		s.forget(page.TargetID)
		t.detach()
		return nil, err
	}
	return t, nil
}

func (s *Session) forget(id proto.TargetTargetID) *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tabs[id]
	delete(s.tabs, id)
	return t
}

// watchTargets follows targets of this context: popups are judged and either
// closed or adopted, destroyed targets are forgotten.
func (s *Session) watchTargets() {
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(s.browser); err != nil {
		logger.Warnf("[Browser] Target discovery unavailable for session %s: %v", s.id, err)
		return
	}

	wait := s.browser.Context(s.ctx).EachEvent(
		func(e *proto.TargetTargetCreated) {
			s.onTarget(e.TargetInfo, true)
		},
		func(e *proto.TargetTargetInfoChanged) {
			s.onTarget(e.TargetInfo, false)
		},
		func(e *proto.TargetTargetDestroyed) {
			if t := s.forget(e.TargetID); t != nil {
				go t.detach()
			}
		},
	)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		wait()
	}()
}

func (s *Session) onTarget(info *proto.TargetTargetInfo, created bool) {
	if info == nil || info.Type != proto.TargetTargetInfoTypePage || info.BrowserContextID != s.browser.BrowserContextID {
		return
	}
	if info.OpenerID == "" {
		return
	}

	openerURL := ""
	if opener := s.tab(info.OpenerID); opener != nil {
		openerURL = opener.URL()
	}
	if s.host.shouldBlockPopup(openerURL, info.URL) {
		logger.Infof("[Browser] Blocked popup %s opened by %s", info.URL, openerURL)
		if t := s.forget(info.TargetID); t != nil {
			go t.detach()
		}
		if _, err := (proto.TargetCloseTarget{TargetID: info.TargetID}).Call(s.browser); err != nil {
			logger.Debugf("[Browser] Close popup target failed: %v", err)
		}
		return
	}

	if !created {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		page, err := s.browser.PageFromTarget(info.TargetID)
		if err != nil {
			logger.Debugf("[Browser] Attach to popup %s failed: %v", info.TargetID, err)
			return
		}
		if _, err := s.adopt(page); err != nil {
			logger.Debugf("[Browser] Adopt popup %s failed: %v", info.TargetID, err)
		}
	}()
}

// Close closes every tab and disposes the browser context.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tabs := make([]*Tab, 0, len(s.tabs))
	for _, t := range s.tabs {
		tabs = append(tabs, t)
	}
	s.tabs = make(map[proto.TargetTargetID]*Tab)
	s.mu.Unlock()

	var errs []error
	for _, t := range tabs {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.cancel()
	s.wg.Wait()
	s.handler.Store(nil)

	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("dispose context: %w", err))
	}
	return errors.Join(errs...)
}
