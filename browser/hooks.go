package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"adshield/addetect"
	"adshield/cosmetic"
	"adshield/internal/util"
	"adshield/logger"
)

const injectTimeout = 10 * time.Second

// prepareTab installs everything a tab needs before its first navigation:
// document-start scripts, the request router and the lifecycle listeners.
func (b *Browser) prepareTab(t *Tab) error {
	if b.opts.Stealth {
		if _, err := t.page.EvalOnNewDocument(stealth.JS); err != nil {
			return err
		}
	}
	// registered per tab at creation; toggles apply to tabs opened afterwards
	if b.manager.IsEnabled() {
		if _, err := t.page.EvalOnNewDocument(cosmetic.DocumentStartScript()); err != nil {
			return err
		}
	}

	if b.detectorEnabled {
		t.detector = addetect.NewDetector(t, b.detectorOpts)
	}

	t.router = t.page.HijackRequests()
	if err := t.router.Add("*", "", t.handleRequest); err != nil {
		return err
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.router.Run()
	}()

	b.watchTab(t)
	logger.Debugf("[Browser] Tab %s ready in session %s", t.id, t.session.id)
	return nil
}

func (b *Browser) watchTab(t *Tab) {
	mainFrame := proto.PageFrameID(t.page.TargetID)

	wait := t.page.Context(t.ctx).EachEvent(
		func(e *proto.PageFrameStartedLoading) {
			if e.FrameID == mainFrame {
				t.setNavigating(true)
			}
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			b.onNavigated(t, e.Frame.URL)
		},
		func(e *proto.PageLoadEventFired) {
			t.setNavigating(false)
			t.wg.Add(1)
			go func() {
				defer t.wg.Done()
				b.onLoad(t)
			}()
		},
	)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		wait()
	}()
}

// onNavigated runs on main frame commits.
func (b *Browser) onNavigated(t *Tab, url string) {
	t.setURL(url)
	b.manager.ResetBlockedCount(t.id)
	if t.detector != nil {
		t.detector.Reset()
	}
}

// onLoad injects cosmetic filtering and popup suppression and starts the ad
// detector on the video platform.
func (b *Browser) onLoad(t *Tab) {
	ctx, cancel := context.WithTimeout(t.ctx, injectTimeout)
	defer cancel()

	url := t.URL()
	if !util.IsWebURL(url) {
		t.stopAdDetector()
		return
	}

	if b.cosmeticEnabled {
		b.injector.Inject(ctx, t)
	}
	b.injector.InjectVideoPlatform(ctx, t)

	active := b.activeFor(url)
	if b.popupEnabled && active {
		if js := b.popups.Script(url); js != "" {
			if err := t.ExecuteJS(ctx, js, cosmetic.WorldMain); err != nil {
				logger.Debugf("[Browser] Popup script into %s failed: %v", url, err)
			}
		}
	}

	if t.detector != nil && active && util.IsVideoPlatformURL(url) {
		t.startAdDetector()
	} else {
		t.stopAdDetector()
	}
}
