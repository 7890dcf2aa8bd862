package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"adshield/addetect"
)

const (
	playerSelector = "#movie_player, .html5-video-player"
	videoSelector  = "video.html5-main-video, video.video-stream, #movie_player video"
	clickTimeout   = 2 * time.Second
)

var skipSelectors = []string{
	".ytp-skip-ad-button",
	".ytp-ad-skip-button",
	".ytp-ad-skip-button-modern",
	".videoAdUiSkipButton",
	".ytp-ad-skip-button-slot button",
	".ytp-ad-skip-button-container button",
}

func (t *Tab) eval(ctx context.Context, out interface{}, js string, args ...interface{}) error {
	res, err := t.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := res.Value.Unmarshal(out); err != nil {
		return fmt.Errorf("decode eval result: %w", err)
	}
	return nil
}

// PlayerClasses returns the class list of the player container.
func (t *Tab) PlayerClasses(ctx context.Context) ([]string, error) {
	var classes []string
	err := t.eval(ctx, &classes, `(sel) => {
  const p = document.querySelector(sel);
  return p ? Array.from(p.classList) : [];
}`, playerSelector)
	return classes, err
}

type mediaJSON struct {
	Present      bool    `json:"present"`
	Muted        bool    `json:"muted"`
	PlaybackRate float64 `json:"playbackRate"`
	Paused       bool    `json:"paused"`
	CurrentTime  float64 `json:"currentTime"`
}

// Media reads the main video element.
func (t *Tab) Media(ctx context.Context) (addetect.MediaState, error) {
	var m mediaJSON
	err := t.eval(ctx, &m, `(sel) => {
  const v = document.querySelector(sel);
  if (!v) return { present: false };
  return {
    present: true,
    muted: v.muted,
    playbackRate: v.playbackRate,
    paused: v.paused,
    currentTime: v.currentTime,
  };
}`, videoSelector)
	if err != nil {
		return addetect.MediaState{}, err
	}
	return addetect.MediaState(m), nil
}

// SetMedia applies mute and playback rate to the main video element.
func (t *Tab) SetMedia(ctx context.Context, muted bool, rate float64) error {
	return t.eval(ctx, nil, `(sel, muted, rate) => {
  const v = document.querySelector(sel);
  if (!v) return;
  v.muted = muted;
  v.playbackRate = rate;
}`, videoSelector, muted, rate)
}

type skipJSON struct {
	Present  bool   `json:"present"`
	Visible  bool   `json:"visible"`
	Disabled bool   `json:"disabled"`
	Text     string `json:"text"`
}

// SkipControl describes the first skip button found.
func (t *Tab) SkipControl(ctx context.Context) (addetect.SkipControl, error) {
	var s skipJSON
	err := t.eval(ctx, &s, `(selectors) => {
  for (const sel of selectors) {
    const el = document.querySelector(sel);
    if (!el) continue;
    const style = getComputedStyle(el);
    const rect = el.getBoundingClientRect();
    return {
      present: true,
      visible: el.offsetParent !== null && rect.width > 0 && rect.height > 0 &&
        style.visibility !== 'hidden' && parseFloat(style.opacity || '1') > 0,
      disabled: !!el.disabled || el.getAttribute('aria-disabled') === 'true' ||
        style.pointerEvents === 'none',
      text: (el.innerText || el.textContent || ''),
    };
  }
  return { present: false };
}`, skipSelectors)
	if err != nil {
		return addetect.SkipControl{}, err
	}
	return addetect.SkipControl(s), nil
}

// ClickSkip clicks the skip button with a real mouse event.
func (t *Tab) ClickSkip(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, clickTimeout)
	defer cancel()
	page := t.page.Context(ctx)

	for _, sel := range skipSelectors {
		has, el, err := page.Has(sel)
		if err != nil {
			return err
		}
		if !has {
			continue
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	}
	return fmt.Errorf("skip control vanished")
}

// ShowOverlay covers or uncovers the player while an ad runs. The overlay
// ignores pointer events so the skip button stays clickable.
func (t *Tab) ShowOverlay(ctx context.Context, show bool) error {
	return t.eval(ctx, nil, `(sel, show) => {
  const id = 'adshield-ad-overlay';
  const existing = document.getElementById(id);
  if (!show) {
    if (existing) existing.remove();
    return;
  }
  const player = document.querySelector(sel);
  if (!player || existing) return;
  const o = document.createElement('div');
  o.id = id;
  o.textContent = 'Ad muted';
  o.style.cssText = 'position:absolute;inset:0;z-index:1000;background:#000;color:#888;' +
    'display:flex;align-items:center;justify-content:center;font:14px sans-serif;pointer-events:none;';
  player.appendChild(o);
}`, playerSelector, show)
}
