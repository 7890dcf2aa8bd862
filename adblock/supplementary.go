package adblock

// supplementaryRules is appended after the downloaded lists. It covers video
// platform ad endpoints and the big ad networks so that blocking still works
// when no list could be fetched.
var supplementaryRules = []string{
	"! video platform ad endpoints",
	"||youtube.com/api/stats/ads$important",
	"||youtube.com/pagead/$important",
	"||youtube.com/ptracking$important",
	"||youtube.com/get_midroll_info$important",
	"||youtube.com/api/stats/atr$important",
	"||youtube.com/ad_break$important",
	"||youtube.com/youtubei/v1/player/ad_break$important",
	"||googlevideo.com/videoplayback*&oad=$important",
	"||googlevideo.com/videoplayback*&adformat=$important",
	"||googlevideo.com/videoplayback*&ctier=$important",
	"||googlevideo.com/videoplayback*ad_break$important",
	"||googlevideo.com/videoplayback*&ad_cpn=$important",
	"||ads.youtube.com^",
	"||imasdk.googleapis.com/js/sdkloader/ima3.js",
	"||imasdk.googleapis.com/js/sdkloader/ima3_dai.js",
	"||imasdk.googleapis.com/*/preroll",
	"||video-ad-stats.googlesyndication.com^",

	"! google ad network",
	"||doubleclick.net^$third-party",
	"||googlesyndication.com^$third-party",
	"||googleadservices.com^$third-party",
	"||adservice.google.com^$third-party",
	"||pagead2.googlesyndication.com^",
	"||tpc.googlesyndication.com^",
	"||pubads.g.doubleclick.net^",
	"||securepubads.g.doubleclick.net^",
	"||googletagservices.com/tag/js/gpt.js",
	"||googletagmanager.com/gtm.js$third-party",

	"! social trackers",
	"||static.ads-twitter.com^",
	"||ads-api.twitter.com^",
	"||facebook.com/tr^$third-party",
	"||connect.facebook.net/*/fbevents.js",

	"! native ad widgets",
	"||outbrain.com^$third-party",
	"||taboola.com^$third-party",

	"! ad exchanges",
	"||serving-sys.com^",
	"||smartadserver.com^",
	"||pubmatic.com^",
	"||openx.net^",
	"||advertising.com^",
	"||rubiconproject.com^",
	"||contextweb.com^",
	"||casalemedia.com^",
	"||criteo.com^$third-party",
	"||criteo.net^",
	"||adsrvr.org^",
	"||adnxs.com^",
	"||ads.twitch.tv^",
}

// SupplementaryRules returns a copy of the built-in rule block.
func SupplementaryRules() []string {
	return append([]string(nil), supplementaryRules...)
}
