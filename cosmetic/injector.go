package cosmetic

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"adshield/adblock"
	"adshield/internal/util"
	"adshield/logger"
)

// World selects the JavaScript context a script runs in.
type World int

const (
	// WorldIsolated runs beside the page scripts and shares only the DOM.
	WorldIsolated World = iota
	// WorldMain runs in the page's own context.
	WorldMain
)

func (w World) String() string {
	if w == WorldMain {
		return "main"
	}
	return "isolated"
}

// Page is the injection surface of one web contents.
type Page interface {
	URL() string
	InsertCSS(ctx context.Context, css string) error
	ExecuteJS(ctx context.Context, js string, world World) error
}

// Filters is the part of the adblock manager the injector consults.
type Filters interface {
	IsEnabled() bool
	IsAllowlisted(host string) bool
	CosmeticFilters(pageURL string) adblock.Cosmetic
}

// Options 注入器参数
type Options struct {
	ScanInterval time.Duration
}

const (
	defaultScanInterval  = 2 * time.Second
	mutationThrottle     = 100 * time.Millisecond
	largeSectionChildren = 10
	configPlaceholder    = "__ADSHIELD_CONFIG__"
)

var (
	//go:embed assets/generic.js
	genericTemplate string

	//go:embed assets/video_start.js
	videoStartScript string
)

// Injector pushes cosmetic CSS and scripts into pages after they load.
type Injector struct {
	filters       Filters
	genericScript string
}

// NewInjector renders the generic countermeasure script once for opts.
func NewInjector(filters Filters, opts Options) (*Injector, error) {
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = defaultScanInterval
	}
	script, err := renderGenericScript(opts)
	if err != nil {
		return nil, err
	}
	return &Injector{filters: filters, genericScript: script}, nil
}

type scriptConfig struct {
	ScanIntervalMs       int64    `json:"scanIntervalMs"`
	ThrottleMs           int64    `json:"throttleMs"`
	LargeSectionChildren int      `json:"largeSectionChildren"`
	Selectors            []string `json:"selectors"`
	Heuristics           []string `json:"heuristics"`
}

func renderGenericScript(opts Options) (string, error) {
	data, err := json.Marshal(scriptConfig{
		ScanIntervalMs:       opts.ScanInterval.Milliseconds(),
		ThrottleMs:           mutationThrottle.Milliseconds(),
		LargeSectionChildren: largeSectionChildren,
		Selectors:            knownSelectors,
		Heuristics:           heuristicSelectors,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode cosmetic script config: %w", err)
	}
	return strings.Replace(genericTemplate, configPlaceholder, string(data), 1), nil
}

// GenericScript returns the rendered countermeasure script.
func (in *Injector) GenericScript() string { return in.genericScript }

// ShouldInject reports whether generic cosmetic filtering applies to url.
func (in *Injector) ShouldInject(rawURL string) bool {
	if !in.filters.IsEnabled() {
		return false
	}
	host := util.HostnameOf(rawURL)
	if host == "" {
		return false
	}
	if util.IsVideoPlatformHost(host) {
		return false
	}
	return !in.filters.IsAllowlisted(host)
}

// Inject runs the full cosmetic pass against page. Failures are logged at
// debug level and reported as false.
func (in *Injector) Inject(ctx context.Context, page Page) bool {
	if page == nil {
		return false
	}
	url := page.URL()
	if url == "" || !in.ShouldInject(url) {
		return false
	}
	logger.Debugf("[Cosmetic] Injecting into %s", url)

	if err := in.inject(ctx, page, url); err != nil {
		logger.Debugf("[Cosmetic] Injection into %s failed: %v", url, err)
		return false
	}
	return true
}

func (in *Injector) inject(ctx context.Context, page Page, url string) error {
	if err := page.InsertCSS(ctx, universalCSS); err != nil {
		return fmt.Errorf("universal css: %w", err)
	}

	filters := in.filters.CosmeticFilters(url)
	if filters.Styles != "" {
		if err := page.InsertCSS(ctx, filters.Styles); err != nil {
			return fmt.Errorf("engine css: %w", err)
		}
	}

	if err := page.ExecuteJS(ctx, in.genericScript, WorldIsolated); err != nil {
		return fmt.Errorf("generic script: %w", err)
	}

	for _, script := range filters.Scripts {
		if err := page.ExecuteJS(ctx, wrapScriptlet(script), WorldMain); err != nil {
			return fmt.Errorf("scriptlet: %w", err)
		}
	}
	return nil
}

// wrapScriptlet keeps a throwing rule from aborting the evaluation.
func wrapScriptlet(js string) string {
	return "(function(){try{\n" + js + "\n}catch(e){}})();"
}

// ShouldInjectVideoPlatform is the counterpart of ShouldInject for the video
// platform exception domain.
func (in *Injector) ShouldInjectVideoPlatform(rawURL string) bool {
	if !in.filters.IsEnabled() {
		return false
	}
	host := util.HostnameOf(rawURL)
	if !util.IsVideoPlatformHost(host) {
		return false
	}
	return !in.filters.IsAllowlisted(host)
}

// InjectVideoPlatform hides the platform's ad renderers. Playback ads are
// handled by the ad-state detector.
func (in *Injector) InjectVideoPlatform(ctx context.Context, page Page) bool {
	if page == nil {
		return false
	}
	url := page.URL()
	if !in.ShouldInjectVideoPlatform(url) {
		return false
	}
	if err := page.InsertCSS(ctx, videoPlatformCSS); err != nil {
		logger.Debugf("[Cosmetic] Video platform css into %s failed: %v", url, err)
		return false
	}
	logger.Debugf("[Cosmetic] Video platform css injected into %s", url)
	return true
}

// DocumentStartScript strips ad payloads from the video platform's initial
// data before the page consumes it. It must be registered for the main world
// before navigation and is inert on other hosts.
func DocumentStartScript() string { return videoStartScript }
