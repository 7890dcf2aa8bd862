package adblock

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildIndex(lines ...string) *CosmeticIndex {
	ci := NewCosmeticIndex()
	for _, l := range lines {
		ci.AddLine(l)
	}
	return ci
}

func TestCosmeticGenericAndSpecific(t *testing.T) {
	ci := buildIndex(
		"##.ad-banner",
		"example.com##.sidebar-promo",
		"other.org##.never-here",
	)

	styles := ci.Lookup("https://www.example.com/page").Styles
	assert.Contains(t, styles, ".ad-banner")
	assert.Contains(t, styles, ".sidebar-promo")
	assert.NotContains(t, styles, ".never-here")
	assert.Contains(t, styles, "{ display: none !important; }")
}

func TestCosmeticExceptions(t *testing.T) {
	ci := buildIndex(
		"##.ad-banner",
		"##.sponsor",
		"example.com#@#.ad-banner",
		"#@#.sponsor",
	)

	assert.NotContains(t, ci.Lookup("https://example.com/").Styles, ".ad-banner")
	assert.Contains(t, ci.Lookup("https://other.com/").Styles, ".ad-banner")
	assert.NotContains(t, ci.Lookup("https://other.com/").Styles, ".sponsor")
}

func TestCosmeticNegatedDomains(t *testing.T) {
	ci := buildIndex("example.com,~shop.example.com##.promo")

	assert.Contains(t, ci.Lookup("https://example.com/").Styles, ".promo")
	assert.Empty(t, ci.Lookup("https://shop.example.com/").Styles)
	assert.Empty(t, ci.Lookup("https://a.shop.example.com/").Styles)
}

func TestCosmeticPageLevelExceptions(t *testing.T) {
	ci := buildIndex(
		"##.generic-ad",
		"docs.example.com##.specific-ad",
		"@@||docs.example.com^$generichide",
		"@@||bank.example.org^$elemhide",
		"bank.example.org##.specific-ad",
	)

	docs := ci.Lookup("https://docs.example.com/").Styles
	assert.NotContains(t, docs, ".generic-ad")
	assert.Contains(t, docs, ".specific-ad")

	assert.Equal(t, Cosmetic{}, ci.Lookup("https://bank.example.org/login"))
}

func TestCosmeticScriptsAndCSSInjection(t *testing.T) {
	ci := buildIndex(
		"example.com#%#window.adsDisabled = true;",
		"#%#window.everywhere = true;",
		"example.com#$#body { overflow: auto !important; }",
	)

	c := ci.Lookup("https://example.com/")
	assert.Equal(t, []string{"window.adsDisabled = true;"}, c.Scripts)
	assert.Contains(t, c.Styles, "body { overflow: auto !important; }")

	assert.Empty(t, ci.Lookup("https://other.com/").Scripts, "scripts need a domain")
}

func TestCosmeticSkipsUnsupportedSyntax(t *testing.T) {
	ci := NewCosmeticIndex()
	assert.False(t, ci.AddLine("example.com##+js(set-constant, ads, false)"))
	assert.False(t, ci.AddLine("example.com#?#div:has-text(Sponsored)"))
	assert.False(t, ci.AddLine("example.com##^script:has-text(ad)"))
	assert.False(t, ci.AddLine("## hosts file heading"))
	assert.False(t, ci.AddLine("! comment"))
	assert.Equal(t, 0, ci.Count())
}

func TestCosmeticChunksSelectors(t *testing.T) {
	ci := NewCosmeticIndex()
	for i := 0; i < 1200; i++ {
		ci.AddLine(fmt.Sprintf("##.ad-slot-%d", i))
	}

	styles := ci.Lookup("https://example.com/").Styles
	assert.Equal(t, 3, strings.Count(styles, "{ display: none !important; }"))
}

func TestCosmeticIsolatesUnparsableSelectors(t *testing.T) {
	ci := buildIndex("##.ok-one", "##.ok-two", "##div:-abp-has(.sponsored)")

	styles := ci.Lookup("https://example.com/").Styles
	assert.Contains(t, styles, ".ok-one,\n.ok-two { display: none !important; }")
	assert.Contains(t, styles, "div:-abp-has(.sponsored) { display: none !important; }")
}

func TestCosmeticUnparsableURL(t *testing.T) {
	ci := buildIndex("##.ad")
	assert.Equal(t, Cosmetic{}, ci.Lookup("not a url"))
}
