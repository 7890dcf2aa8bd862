package cosmetic

import (
	"strings"

	"github.com/andybalholm/cascadia"

	"adshield/logger"
)

// selectorGroup 一组按广告来源划分的静态选择器
type selectorGroup struct {
	name      string
	selectors []string
}

var knownGroups = []selectorGroup{
	{
		name: "google",
		selectors: []string{
			"ins.adsbygoogle",
			".adsbygoogle",
			".adsbygoogle-noablate",
			`div[id^="google_ads_iframe"]`,
			`iframe[id^="google_ads_"]`,
			`iframe[id^="aswift_"]`,
			`iframe[name^="google_ads_"]`,
			"div[data-google-query-id]",
		},
	},
	{
		name: "youtube-renderers",
		selectors: []string{
			"ytd-display-ad-renderer",
			"ytd-promoted-video-renderer",
			"ytd-promoted-sparkles-web-renderer",
			"ytd-promoted-sparkles-text-search-renderer",
			"ytd-companion-slot-renderer",
			"ytd-ad-slot-renderer",
			"ytd-banner-promo-renderer",
			"ytd-in-feed-ad-layout-renderer",
			".ytp-ad-overlay-container",
			".ytp-ad-player-overlay",
			".video-ads.ytp-ad-module",
		},
	},
	{
		name: "native-widgets",
		selectors: []string{
			".trc_rbox",
			".trc_rbox_outer",
			".trc_rbox_container",
			".trc-content-sponsored",
			".ob-widget",
			".ob_what",
			".OUTBRAIN",
			`div[id*="taboola-"]`,
			`div[id*="outbrain-"]`,
			"div[data-taboola-container]",
			"div[data-ob-template]",
			"div[data-outbrain-container]",
		},
	},
	{
		name: "ad-iframes",
		selectors: []string{
			`iframe[src*="doubleclick.net"]`,
			`iframe[src*="googlesyndication.com"]`,
			`iframe[src*="googleadservices.com"]`,
			`iframe[src*="taboola.com"]`,
			`iframe[src*="outbrain.com"]`,
			`iframe[src*="advertising.com"]`,
			`iframe[src*="serving-sys.com"]`,
			`iframe[src*="smartadserver.com"]`,
			`iframe[src*="pubmatic.com"]`,
			`iframe[src*="casalemedia.com"]`,
			`iframe[id*="google_ads"]`,
			`iframe[name*="google_ads"]`,
		},
	},
	{
		name: "ad-slots",
		selectors: []string{
			`div[id^="ad-slot-"]`,
			`div[id^="ad_slot_"]`,
			`div[id^="google_ads_"]`,
			`div[class*="ad-slot-"]`,
			`div[class*="ad_slot_"]`,
			"div[data-ad-name]",
			"div[data-ad-id]",
			"#ad-container",
			"#advertisement-container",
			".advertisement-wrapper",
			".ad-wrapper",
			".ad-unit",
			".bbccom_advert_container",
			".bbccom_adsense",
			".bbccom_slot",
			`div[class*="bbccom_ad"]`,
		},
	},
	{
		name: "video-stickies",
		selectors: []string{
			".mol-video-ad",
			".mol-video-sticky",
			`div[class*="video-ad"]`,
			`div[id*="video-ad"]`,
			".sticky-video-wrapper",
			".sticky-video-container",
			"#floating-video-container",
			".floating-video-wrapper",
		},
	},
	{
		name: "interstitials",
		selectors: []string{
			`div[class*="download-popup"]`,
			`div[class*="file-ready"]`,
			".ad-interstitial",
			`[id*="interstitial"]`,
		},
	},
}

var videoPlatformSelectors = []string{
	"#secondary ytd-display-ad-renderer",
	"#secondary ytd-promoted-video-renderer",
	"#secondary ytd-compact-promoted-video-renderer",
	"#masthead-ad",
	"#player-ads",
	"ytd-ad-slot-renderer",
	"ytd-in-feed-ad-layout-renderer",
	"ytd-companion-slot-renderer",
	"ytd-banner-promo-renderer",
	"ytd-statement-banner-renderer",
	"ytd-action-companion-ad-renderer",
	"ytd-primetime-promo-renderer",
	"ytd-merch-shelf-renderer",
	"ytd-reel-video-renderer[is-ad]",
	".ytp-ad-overlay-container",
	".ytp-ad-overlay-slot",
	".ytp-ad-image-overlay",
	".ytp-ad-text-overlay",
	".ytp-ad-player-overlay-flyout-cta",
	".ytp-ad-visit-advertiser-button",
}

// heuristicPatterns are substring selectors the page script removes after
// checking structural exclusions. They never go into a stylesheet.
var heuristicPatterns = []string{
	`[class*="-ad-"]`, `[class*="_ad_"]`, `[class^="ad-"]`, `[class$="-ad"]`,
	`[class*="banner"]`, `[class*="sponsor"]`, `[class*="promo-"]`, `[class*="advertisement"]`,
	`[id*="-ad-"]`, `[id*="_ad_"]`, `[id^="ad-"]`, `[id^="ad_"]`,
	`[id*="banner"]`, `[id*="sponsor"]`, `[id*="promo-"]`, `[id*="advertisement"]`,
}

var (
	knownSelectors     []string
	videoSelectors     []string
	heuristicSelectors []string
	universalCSS       string
	videoPlatformCSS   string
)

func init() {
	var groups []string
	for _, g := range knownGroups {
		valid := validSelectors(g.name, g.selectors)
		knownSelectors = append(knownSelectors, valid...)
		groups = append(groups, hideRule(valid, true))
	}
	universalCSS = strings.Join(groups, "\n")

	videoSelectors = validSelectors("video-platform", videoPlatformSelectors)
	videoPlatformCSS = hideRule(videoSelectors, true) + "\n.ad-showing video { opacity: 0.01 !important; }\n"

	heuristicSelectors = validSelectors("heuristic", heuristicPatterns)
}

// validSelectors 过滤掉 cascadia 无法解析的选择器，一条坏选择器会让整条 CSS 规则失效
func validSelectors(group string, in []string) []string {
	out := make([]string, 0, len(in))
	for _, sel := range in {
		if _, err := cascadia.Compile(sel); err != nil {
			logger.Warnf("[Cosmetic] Dropping invalid selector %q in group %s: %v", sel, group, err)
			continue
		}
		out = append(out, sel)
	}
	return out
}

func hideRule(selectors []string, invisible bool) string {
	if len(selectors) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.Join(selectors, ",\n"))
	b.WriteString(" {\n  display: none !important;\n")
	if invisible {
		b.WriteString("  visibility: hidden !important;\n")
	}
	b.WriteString("}\n")
	return b.String()
}

// UniversalCSS returns the stylesheet injected into every eligible page.
func UniversalCSS() string { return universalCSS }

// VideoPlatformCSS returns the stylesheet for the video platform exception.
func VideoPlatformCSS() string { return videoPlatformCSS }
