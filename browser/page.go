package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"adshield/adblock"
	"adshield/addetect"
	"adshield/cosmetic"
	"adshield/logger"
)

const isolatedWorldName = "adshield"

// Tab is one page of a session. It implements cosmetic.Page and
// addetect.Player.
type Tab struct {
	session  *Session
	page     *rod.Page
	id       string
	router   *rod.HijackRouter
	detector *addetect.Detector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	url          string
	navigating   bool
	world        proto.RuntimeExecutionContextID
	stopDetector context.CancelFunc
	closed       bool
}

var (
	_ cosmetic.Page   = (*Tab)(nil)
	_ addetect.Player = (*Tab)(nil)
)

// ID is the web contents id used by the blocked request counter.
func (t *Tab) ID() string { return t.id }

// SessionID returns the owning session's id.
func (t *Tab) SessionID() string { return t.session.id }

// URL returns the committed main frame URL.
func (t *Tab) URL() string {
	t.mu.Lock()
	u := t.url
	t.mu.Unlock()
	if u != "" {
		return u
	}
	info, err := t.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Navigate loads url in the tab.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	t.setNavigating(true)
	if err := t.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (t *Tab) setURL(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.url = url
	t.world = 0
}

func (t *Tab) setNavigating(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.navigating = v
}

func (t *Tab) isNavigating() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.navigating
}

// handleRequest is the hijack handler for every request of the tab.
func (t *Tab) handleRequest(h *rod.Hijack) {
	typ := resourceType(h.Request.Type(), t.isNavigating())
	req := adblock.InterceptedRequest{
		URL:           h.Request.URL().String(),
		ResourceType:  typ,
		WebContentsID: t.id,
	}
	if typ != adblock.TypeDocument {
		req.SourceURL = t.URL()
	}

	v := t.session.intercept(req)
	switch {
	case v.RedirectURL != "":
		if mime, body, ok := decodeDataURL(v.RedirectURL); ok {
			h.Response.Payload().ResponseCode = http.StatusOK
			h.Response.SetHeader("Content-Type", mime, "Access-Control-Allow-Origin", "*")
			h.Response.SetBody(body)
			return
		}
		h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
	case v.Block:
		h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
	default:
		h.ContinueRequest(&proto.FetchContinueRequest{})
	}
}

// InsertCSS adds a style element from the isolated world.
func (t *Tab) InsertCSS(ctx context.Context, css string) error {
	lit, err := json.Marshal(css)
	if err != nil {
		return err
	}
	js := `(function(css){
  var s = document.createElement('style');
  s.setAttribute('data-adshield', '');
  s.textContent = css;
  (document.head || document.documentElement).appendChild(s);
})(` + string(lit) + `);`
	return t.ExecuteJS(ctx, js, cosmetic.WorldIsolated)
}

// ExecuteJS evaluates js in the requested world of the main frame.
func (t *Tab) ExecuteJS(ctx context.Context, js string, world cosmetic.World) error {
	page := t.page.Context(ctx)
	eval := proto.RuntimeEvaluate{Expression: js}
	if world == cosmetic.WorldIsolated {
		id, err := t.isolatedWorld(page)
		if err != nil {
			return err
		}
		eval.ContextID = id
	}

	res, err := eval.Call(page)
	if err != nil {
		return fmt.Errorf("evaluate in %s world: %w", world, err)
	}
	if res.ExceptionDetails != nil {
		return fmt.Errorf("script threw in %s world: %s", world, res.ExceptionDetails.Text)
	}
	return nil
}

// isolatedWorld returns the tab's isolated context for the current document.
func (t *Tab) isolatedWorld(page *rod.Page) (proto.RuntimeExecutionContextID, error) {
	t.mu.Lock()
	id := t.world
	t.mu.Unlock()
	if id != 0 {
		return id, nil
	}

	res, err := proto.PageCreateIsolatedWorld{
		FrameID:   proto.PageFrameID(t.page.TargetID),
		WorldName: isolatedWorldName,
	}.Call(page)
	if err != nil {
		return 0, fmt.Errorf("create isolated world: %w", err)
	}

	t.mu.Lock()
	t.world = res.ExecutionContextID
	t.mu.Unlock()
	return res.ExecutionContextID, nil
}

// startDetector runs the ad-state detector until the tab closes or
// stopAdDetector is called.
func (t *Tab) startAdDetector() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.stopDetector != nil || t.detector == nil {
		return
	}
	ctx, cancel := context.WithCancel(t.ctx)
	t.stopDetector = cancel
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.detector.Run(ctx)
	}()
	logger.Debugf("[Browser] Ad detector started on tab %s", t.id)
}

func (t *Tab) stopAdDetector() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopDetector == nil {
		return
	}
	t.stopDetector()
	t.stopDetector = nil
	if st := t.detector.Stats(); st.AdsSeen > 0 {
		logger.Named("detector").Infow("ad detector stopped",
			"tab", t.id, "ads", st.AdsSeen, "skips", st.SkipAttempts)
	}
}

// Close stops the tab's background work and closes the page.
func (t *Tab) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	var errs []error
	if t.router != nil {
		if err := t.router.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop router: %w", err))
		}
	}
	t.wg.Wait()
	if err := t.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close page: %w", err))
	}
	return errors.Join(errs...)
}

// detach forgets the tab after its target is gone.
func (t *Tab) detach() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	if t.router != nil {
		_ = t.router.Stop()
	}
	t.wg.Wait()
}
