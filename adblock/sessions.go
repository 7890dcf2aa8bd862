package adblock

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"adshield/logger"
)

// InterceptedRequest is what a session's interception surface reports for one
// outgoing request.
type InterceptedRequest struct {
	URL           string
	SourceURL     string
	ResourceType  ResourceType
	WebContentsID string
}

// Verdict is the handler's decision. A zero Verdict lets the request through.
type Verdict struct {
	Block       bool
	RedirectURL string
}

// InterceptFunc handles one request.
type InterceptFunc func(req InterceptedRequest) Verdict

// Listener is a registered interception handler.
type Listener interface {
	Remove() error
}

// Session is an isolated browsing partition with its own interception surface.
type Session interface {
	ID() string
	Intercept(handler InterceptFunc) (Listener, error)
}

// SessionTracker records which sessions currently have the blocking listener
// registered. At most one listener exists per session id.
type SessionTracker struct {
	handler   InterceptFunc
	mu        sync.Mutex
	sessions  map[string]Session
	listeners map[string]Listener
}

// NewSessionTracker creates a tracker that registers handler on attach.
func NewSessionTracker(handler InterceptFunc) *SessionTracker {
	return &SessionTracker{
		handler:   handler,
		sessions:  make(map[string]Session),
		listeners: make(map[string]Listener),
	}
}

// Attach registers the handler on s. Attaching an attached session is a no-op.
func (t *SessionTracker) Attach(s Session) error {
	if s == nil {
		return errors.New("nil session")
	}
	id := s.ID()

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.listeners[id]; ok {
		return nil
	}
	l, err := s.Intercept(t.handler)
	if err != nil {
		return fmt.Errorf("attach session %s: %w", id, err)
	}
	t.sessions[id] = s
	t.listeners[id] = l
	logger.Debugf("[AdBlock] Attached session %s", id)
	return nil
}

// Detach removes the listener from s. Detaching an unknown session is a no-op.
// The tracker forgets the session even when removing the listener fails.
func (t *SessionTracker) Detach(s Session) error {
	if s == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.detachLocked(s.ID())
}

func (t *SessionTracker) detachLocked(id string) error {
	l, ok := t.listeners[id]
	if !ok {
		return nil
	}
	delete(t.listeners, id)
	delete(t.sessions, id)
	if err := l.Remove(); err != nil {
		return fmt.Errorf("detach session %s: %w", id, err)
	}
	logger.Debugf("[AdBlock] Detached session %s", id)
	return nil
}

// DetachAll detaches every session and returns them in id order so the
// caller can re-attach exactly the same set.
func (t *SessionTracker) DetachAll() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.sessions[id])
		if err := t.detachLocked(id); err != nil {
			logger.Warnf("[AdBlock] %v", err)
		}
	}
	return out
}

// AttachAll attaches each session, logging and skipping failures.
func (t *SessionTracker) AttachAll(sessions []Session) int {
	attached := 0
	for _, s := range sessions {
		if err := t.Attach(s); err != nil {
			logger.Warnf("[AdBlock] %v", err)
			continue
		}
		attached++
	}
	return attached
}

// IsAttached reports whether id currently has a listener.
func (t *SessionTracker) IsAttached(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.listeners[id]
	return ok
}

// Attached returns the sorted ids of attached sessions.
func (t *SessionTracker) Attached() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.listeners))
	for id := range t.listeners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
