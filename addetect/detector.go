// Package addetect drives the video player through ad breaks: it mutes and
// accelerates ads, covers them with an overlay and clicks the skip control
// once the platform allows it.
package addetect

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"adshield/config"
	"adshield/logger"
)

// MediaState is the observable state of the main media element.
type MediaState struct {
	Present      bool
	Muted        bool
	PlaybackRate float64
	Paused       bool
	CurrentTime  float64
}

// SkipControl describes the skip button as rendered.
type SkipControl struct {
	Present  bool
	Visible  bool
	Disabled bool
	Text     string
}

// Player is the page side of the detector.
type Player interface {
	PlayerClasses(ctx context.Context) ([]string, error)
	Media(ctx context.Context) (MediaState, error)
	SetMedia(ctx context.Context, muted bool, rate float64) error
	SkipControl(ctx context.Context) (SkipControl, error)
	ClickSkip(ctx context.Context) error
	ShowOverlay(ctx context.Context, show bool) error
}

// State of the ad state machine.
type State int

const (
	Inactive State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "inactive"
}

var adClasses = []string{"ad-showing", "ad-interrupting"}

// Options 检测器参数，零值字段使用默认值
type Options struct {
	PollInterval     time.Duration
	SkipPollInterval time.Duration
	MinSkipElapsed   time.Duration
	MinPlayback      float64
	SkipTimeoutPolls int
	AdPlaybackRate   float64
	Mute             bool
}

// DefaultOptions returns the detector defaults.
func DefaultOptions() Options {
	return Options{
		PollInterval:     250 * time.Millisecond,
		SkipPollInterval: 200 * time.Millisecond,
		MinSkipElapsed:   500 * time.Millisecond,
		MinPlayback:      0.1,
		SkipTimeoutPolls: 150,
		AdPlaybackRate:   16,
		Mute:             true,
	}
}

// OptionsFromConfig converts the detector section of the config file.
func OptionsFromConfig(cfg *config.DetectorConfig) Options {
	o := DefaultOptions()
	if cfg == nil {
		return o
	}
	if cfg.PollIntervalMs > 0 {
		o.PollInterval = time.Duration(cfg.PollIntervalMs) * time.Millisecond
	}
	if cfg.SkipPollIntervalMs > 0 {
		o.SkipPollInterval = time.Duration(cfg.SkipPollIntervalMs) * time.Millisecond
	}
	if cfg.MinSkipElapsedMs > 0 {
		o.MinSkipElapsed = time.Duration(cfg.MinSkipElapsedMs) * time.Millisecond
	}
	if cfg.MinPlaybackSeconds > 0 {
		o.MinPlayback = cfg.MinPlaybackSeconds
	}
	if cfg.SkipTimeoutPolls > 0 {
		o.SkipTimeoutPolls = cfg.SkipTimeoutPolls
	}
	if cfg.AdPlaybackRate > 0 {
		o.AdPlaybackRate = cfg.AdPlaybackRate
	}
	o.Mute = cfg.Mute
	return o
}

func (o *Options) fill() {
	d := DefaultOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.SkipPollInterval <= 0 {
		o.SkipPollInterval = d.SkipPollInterval
	}
	if o.SkipTimeoutPolls <= 0 {
		o.SkipTimeoutPolls = d.SkipTimeoutPolls
	}
	if o.AdPlaybackRate <= 0 {
		o.AdPlaybackRate = 1
	}
}

// Stats counts what the detector did on its page.
type Stats struct {
	AdsSeen      int `json:"adsSeen"`
	SkipAttempts int `json:"skipAttempts"`
}

// Detector is the per-page ad state machine.
type Detector struct {
	player Player
	opts   Options
	now    func() time.Time

	mu          sync.Mutex
	state       State
	adStart     time.Time
	snapshot    MediaState
	hasSnapshot bool
	skipPolls   int
	stats       Stats
}

// NewDetector creates an inactive detector for player.
func NewDetector(player Player, opts Options) *Detector {
	opts.fill()
	return &Detector{player: player, opts: opts, now: time.Now}
}

// State returns the current state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Stats returns the counters since the detector was created.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Reset forgets the current ad and snapshot. Called on navigation.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Inactive
	d.adStart = time.Time{}
	d.snapshot = MediaState{}
	d.hasSnapshot = false
	d.skipPolls = 0
}

func adShowing(classes []string) bool {
	for _, c := range classes {
		for _, ad := range adClasses {
			if c == ad {
				return true
			}
		}
	}
	return false
}

// Detect runs one detection cycle.
func (d *Detector) Detect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	classes, err := d.player.PlayerClasses(ctx)
	if err != nil {
		return fmt.Errorf("read player classes: %w", err)
	}
	media, err := d.player.Media(ctx)
	if err != nil {
		return fmt.Errorf("read media state: %w", err)
	}
	ad := adShowing(classes)

	switch {
	case d.state == Inactive && !ad:
		// the platform swaps the media element when an ad starts, so the
		// user's state is only trustworthy before the transition
		if media.Present {
			d.snapshot = media
			d.hasSnapshot = true
		}
		return nil

	case d.state == Inactive && ad:
		d.state = Active
		d.adStart = d.now()
		d.skipPolls = 0
		d.stats.AdsSeen++
		if !d.hasSnapshot {
			d.snapshot = MediaState{Present: true, PlaybackRate: 1}
			d.hasSnapshot = true
		}
		logger.Debugf("[Detector] Ad started (muted=%v rate=%.2f saved)", d.snapshot.Muted, d.snapshot.PlaybackRate)
		if err := d.player.ShowOverlay(ctx, true); err != nil {
			logger.Debugf("[Detector] Show overlay failed: %v", err)
		}
		return d.suppress(ctx, media)

	case d.state == Active && ad:
		return d.suppress(ctx, media)

	default:
		d.state = Inactive
		logger.Debugf("[Detector] Ad ended after %v", d.now().Sub(d.adStart).Round(time.Millisecond))
		if err := d.player.ShowOverlay(ctx, false); err != nil {
			logger.Debugf("[Detector] Hide overlay failed: %v", err)
		}
		restore := d.snapshot
		d.hasSnapshot = false
		if !media.Present {
			return nil
		}
		if err := d.player.SetMedia(ctx, restore.Muted, restore.PlaybackRate); err != nil {
			return fmt.Errorf("restore media state: %w", err)
		}
		return nil
	}
}

// suppress re-asserts mute and rate; the page resets them on its own.
func (d *Detector) suppress(ctx context.Context, media MediaState) error {
	if !media.Present {
		return nil
	}
	muted := media.Muted || d.opts.Mute
	if media.Muted == muted && media.PlaybackRate == d.opts.AdPlaybackRate {
		return nil
	}
	if err := d.player.SetMedia(ctx, muted, d.opts.AdPlaybackRate); err != nil {
		return fmt.Errorf("suppress ad media: %w", err)
	}
	return nil
}

// PollSkip runs one skip poll. It only clicks when every guard passes.
func (d *Detector) PollSkip(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != Active || d.skipPolls >= d.opts.SkipTimeoutPolls {
		return nil
	}
	d.skipPolls++
	if d.skipPolls == d.opts.SkipTimeoutPolls {
		logger.Debugf("[Detector] Giving up on skip after %d polls", d.skipPolls)
	}

	if d.now().Sub(d.adStart) < d.opts.MinSkipElapsed {
		return nil
	}

	media, err := d.player.Media(ctx)
	if err != nil {
		return fmt.Errorf("read media state: %w", err)
	}
	if !media.Present || media.Paused || media.CurrentTime < d.opts.MinPlayback {
		return nil
	}

	ctrl, err := d.player.SkipControl(ctx)
	if err != nil {
		return fmt.Errorf("read skip control: %w", err)
	}
	if !skippable(ctrl) {
		return nil
	}

	d.stats.SkipAttempts++
	if err := d.player.ClickSkip(ctx); err != nil {
		return fmt.Errorf("click skip: %w", err)
	}
	logger.Debugf("[Detector] Skip clicked (attempt %d)", d.stats.SkipAttempts)
	return nil
}

func skippable(c SkipControl) bool {
	if !c.Present || !c.Visible || c.Disabled {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(c.Text), "skip")
}

// Run drives detection and skip polling until ctx is done. Errors of single
// cycles are logged; the page may be mid-navigation.
func (d *Detector) Run(ctx context.Context) {
	detect := time.NewTicker(d.opts.PollInterval)
	defer detect.Stop()
	skip := time.NewTicker(d.opts.SkipPollInterval)
	defer skip.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-detect.C:
			if err := d.Detect(ctx); err != nil && ctx.Err() == nil {
				logger.Debugf("[Detector] Detect: %v", err)
			}
		case <-skip.C:
			if err := d.PollSkip(ctx); err != nil && ctx.Err() == nil {
				logger.Debugf("[Detector] Skip poll: %v", err)
			}
		}
	}
}
