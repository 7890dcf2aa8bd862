// Package popup decides which popups and overlays get suppressed. The Go side
// judges new browser targets; the rendered page script handles window.open,
// link clicks and positioned overlays inside the page.
package popup

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"adshield/config"
	"adshield/internal/util"
)

// Thresholds controls the overlay scan of the page script.
type Thresholds struct {
	ScanInterval     time.Duration
	IframeZIndex     int
	OverlayZIndex    int
	OverlayArea      float64
	FullscreenZIndex int
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		ScanInterval:     1500 * time.Millisecond,
		IframeZIndex:     999,
		OverlayZIndex:    50,
		OverlayArea:      0.15,
		FullscreenZIndex: 100,
	}
}

// ThresholdsFromConfig fills zero values from DefaultThresholds.
func ThresholdsFromConfig(cfg *config.PopupConfig) Thresholds {
	t := DefaultThresholds()
	if cfg == nil {
		return t
	}
	if cfg.ScanIntervalMs > 0 {
		t.ScanInterval = time.Duration(cfg.ScanIntervalMs) * time.Millisecond
	}
	if cfg.IframeZIndex > 0 {
		t.IframeZIndex = cfg.IframeZIndex
	}
	if cfg.OverlayZIndex > 0 {
		t.OverlayZIndex = cfg.OverlayZIndex
	}
	if cfg.OverlayArea > 0 {
		t.OverlayArea = cfg.OverlayArea
	}
	if cfg.FullscreenZIndex > 0 {
		t.FullscreenZIndex = cfg.FullscreenZIndex
	}
	return t
}

// adDomains 弹窗广告网络，按父域逐级匹配
var adDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"advertising.com":       {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"popads.net":            {},
	"popcash.net":           {},
	"propellerads.com":      {},
	"adsterra.com":          {},
	"exoclick.com":          {},
	"juicyads.com":          {},
	"trafficjunky.net":      {},
	"adcash.com":            {},
	"hilltopads.net":        {},
	"clickadu.com":          {},
	"onclickads.net":        {},
	"mgid.com":              {},
	"revcontent.com":        {},
	"zedo.com":              {},
	"serving-sys.com":       {},
	"media.net":             {},
}

// suspiciousHostParts flag ad redirectors that rotate domains.
var suspiciousHostParts = []string{
	"adclick", "adserver", "popunder", "popads", "clicktrack", "monetize", "adredirect",
}

var trackingParams = []string{"gclid", "fbclid", "clickid", "zoneid", "campaignid", "affid"}

// IsAdDomain reports whether host or one of its parents is a known popup
// network, or the host carries a redirector signature.
func IsAdDomain(host string) bool {
	host = util.NormalizeDomain(host)
	if host == "" {
		return false
	}
	for _, d := range util.ParentDomains(host) {
		if _, ok := adDomains[d]; ok {
			return true
		}
	}
	for _, part := range suspiciousHostParts {
		if strings.Contains(host, part) {
			return true
		}
	}
	return false
}

// HasTrackingParams reports whether rawURL carries ad click tracking
// parameters.
func HasTrackingParams(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for key := range u.Query() {
		key = strings.ToLower(key)
		if strings.HasPrefix(key, "utm_") {
			return true
		}
		for _, p := range trackingParams {
			if key == p {
				return true
			}
		}
	}
	return false
}

//go:embed assets/popup.js
var scriptTemplate string

const configPlaceholder = "__ADSHIELD_POPUP_CONFIG__"

// Policy is the popup decision shared by every page of the browser.
type Policy struct {
	thresholds Thresholds
	script     string
}

// NewPolicy renders the page script for t.
func NewPolicy(t Thresholds) (*Policy, error) {
	script, err := renderScript(t)
	if err != nil {
		return nil, err
	}
	return &Policy{thresholds: t, script: script}, nil
}

// Thresholds returns the overlay scan thresholds in use.
func (p *Policy) Thresholds() Thresholds { return p.thresholds }

// ShouldBlock decides whether a new target opened by openerURL towards
// targetURL is an ad popup.
func (p *Policy) ShouldBlock(openerURL, targetURL string) bool {
	if util.IsVideoPlatformURL(openerURL) {
		return false
	}
	if !util.IsWebURL(targetURL) {
		return false
	}
	if IsAdDomain(util.HostnameOf(targetURL)) {
		return true
	}
	return HasTrackingParams(targetURL)
}

// Script returns the page script for pageURL, or "" where popups are left
// alone.
func (p *Policy) Script(pageURL string) string {
	if util.IsVideoPlatformURL(pageURL) {
		return ""
	}
	return p.script
}

type scriptConfig struct {
	ScanIntervalMs   int64    `json:"scanIntervalMs"`
	IframeZIndex     int      `json:"iframeZIndex"`
	OverlayZIndex    int      `json:"overlayZIndex"`
	OverlayArea      float64  `json:"overlayArea"`
	FullscreenZIndex int      `json:"fullscreenZIndex"`
	AdDomains        []string `json:"adDomains"`
	SuspiciousParts  []string `json:"suspiciousParts"`
	TrackingParams   []string `json:"trackingParams"`
}

func renderScript(t Thresholds) (string, error) {
	domains := make([]string, 0, len(adDomains))
	for d := range adDomains {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	data, err := json.Marshal(scriptConfig{
		ScanIntervalMs:   t.ScanInterval.Milliseconds(),
		IframeZIndex:     t.IframeZIndex,
		OverlayZIndex:    t.OverlayZIndex,
		OverlayArea:      t.OverlayArea,
		FullscreenZIndex: t.FullscreenZIndex,
		AdDomains:        domains,
		SuspiciousParts:  suspiciousHostParts,
		TrackingParams:   trackingParams,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode popup script config: %w", err)
	}
	return strings.Replace(scriptTemplate, configPlaceholder, string(data), 1), nil
}
