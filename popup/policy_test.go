package popup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adshield/config"
)

func TestIsAdDomain(t *testing.T) {
	cases := map[string]bool{
		"doubleclick.net":                true,
		"ad.doubleclick.net":             true,
		"Pagead2.Googlesyndication.com.": true,
		"go.adclick-tracker.io":          true,
		"cdn.popunder-network.biz":       true,
		"news.example.com":               false,
		"notdoubleclick.net":             false,
		"":                               false,
		"taboola.com.evil.example":       false,
	}
	for host, want := range cases {
		assert.Equal(t, want, IsAdDomain(host), host)
	}
}

func TestHasTrackingParams(t *testing.T) {
	assert.True(t, HasTrackingParams("https://shop.example.com/?utm_source=x"))
	assert.True(t, HasTrackingParams("https://shop.example.com/?UTM_Campaign=x"))
	assert.True(t, HasTrackingParams("https://shop.example.com/p?id=1&gclid=abc"))
	assert.True(t, HasTrackingParams("https://lp.example.net/?zoneid=12"))
	assert.True(t, HasTrackingParams("https://lp.example.net/?affid=7"))
	assert.False(t, HasTrackingParams("https://shop.example.com/?id=1&q=utm"))
	assert.False(t, HasTrackingParams("https://shop.example.com/"))
	assert.False(t, HasTrackingParams("%zz"))
}

func TestShouldBlock(t *testing.T) {
	p, err := NewPolicy(DefaultThresholds())
	require.NoError(t, err)

	opener := "https://stream.example.org/watch/1"
	assert.True(t, p.ShouldBlock(opener, "https://go.popads.net/click?id=1"))
	assert.True(t, p.ShouldBlock(opener, "https://offers.example.biz/?clickid=99"))
	assert.False(t, p.ShouldBlock(opener, "https://docs.example.org/help"))
	assert.False(t, p.ShouldBlock(opener, "about:blank"))
	assert.False(t, p.ShouldBlock(opener, ""))

	assert.False(t, p.ShouldBlock("https://www.youtube.com/watch?v=1", "https://go.popads.net/"),
		"video platform popups are left alone")
}

func TestScript(t *testing.T) {
	p, err := NewPolicy(DefaultThresholds())
	require.NoError(t, err)

	js := p.Script("https://stream.example.org/")
	assert.NotContains(t, js, configPlaceholder)
	assert.Contains(t, js, `"scanIntervalMs":1500`)
	assert.Contains(t, js, `"iframeZIndex":999`)
	assert.Contains(t, js, `"overlayArea":0.15`)
	assert.Contains(t, js, `"popads.net"`)

	assert.Empty(t, p.Script("https://m.youtube.com/"))
}

func TestThresholdsFromConfig(t *testing.T) {
	assert.Equal(t, DefaultThresholds(), ThresholdsFromConfig(nil))
	assert.Equal(t, DefaultThresholds(), ThresholdsFromConfig(&config.PopupConfig{}))

	got := ThresholdsFromConfig(&config.PopupConfig{ScanIntervalMs: 500, OverlayZIndex: 10, OverlayArea: 0.3})
	assert.Equal(t, 500*time.Millisecond, got.ScanInterval)
	assert.Equal(t, 10, got.OverlayZIndex)
	assert.Equal(t, 0.3, got.OverlayArea)
	assert.Equal(t, 999, got.IframeZIndex)
}
