package cosmetic

import (
	"context"
	"errors"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adshield/adblock"
)

type call struct {
	kind  string
	body  string
	world World
}

type fakePage struct {
	url     string
	calls   []call
	failCSS bool
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) InsertCSS(_ context.Context, css string) error {
	if p.failCSS {
		return errors.New("target closed")
	}
	p.calls = append(p.calls, call{kind: "css", body: css})
	return nil
}

func (p *fakePage) ExecuteJS(_ context.Context, js string, world World) error {
	p.calls = append(p.calls, call{kind: "js", body: js, world: world})
	return nil
}

type fakeFilters struct {
	disabled  bool
	allowlist map[string]bool
	cosmetic  adblock.Cosmetic
}

func (f *fakeFilters) IsEnabled() bool                { return !f.disabled }
func (f *fakeFilters) IsAllowlisted(host string) bool { return f.allowlist[host] }
func (f *fakeFilters) CosmeticFilters(string) adblock.Cosmetic {
	return f.cosmetic
}

func newTestInjector(t *testing.T, f *fakeFilters) *Injector {
	in, err := NewInjector(f, Options{})
	require.NoError(t, err)
	return in
}

func TestShouldInject(t *testing.T) {
	f := &fakeFilters{allowlist: map[string]bool{"bank.example.org": true}}
	in := newTestInjector(t, f)

	assert.True(t, in.ShouldInject("https://news.example.com/a"))
	assert.False(t, in.ShouldInject("https://bank.example.org/"))
	assert.False(t, in.ShouldInject("not a url"))
	for _, u := range []string{"https://youtube.com/", "https://www.youtube.com/watch?v=x", "https://m.youtube.com/", "https://music.youtube.com/"} {
		assert.False(t, in.ShouldInject(u), u)
	}

	f.disabled = true
	assert.False(t, in.ShouldInject("https://news.example.com/a"))
}

func TestInjectOrder(t *testing.T) {
	f := &fakeFilters{cosmetic: adblock.Cosmetic{
		Styles:  ".promo { display: none !important; }",
		Scripts: []string{"window.adsDisabled = true;"},
	}}
	in := newTestInjector(t, f)
	page := &fakePage{url: "https://news.example.com/story"}

	require.True(t, in.Inject(context.Background(), page))
	require.Len(t, page.calls, 4)

	assert.Equal(t, call{kind: "css", body: UniversalCSS()}, page.calls[0])
	assert.Equal(t, call{kind: "css", body: f.cosmetic.Styles}, page.calls[1])
	assert.Equal(t, "js", page.calls[2].kind)
	assert.Equal(t, WorldIsolated, page.calls[2].world)
	assert.Equal(t, in.GenericScript(), page.calls[2].body)
	assert.Equal(t, WorldMain, page.calls[3].world)
	assert.Contains(t, page.calls[3].body, "window.adsDisabled = true;")
}

func TestInjectSkipsEmptyEngineCSS(t *testing.T) {
	in := newTestInjector(t, &fakeFilters{})
	page := &fakePage{url: "https://news.example.com/"}

	require.True(t, in.Inject(context.Background(), page))
	require.Len(t, page.calls, 2)
	assert.Equal(t, "css", page.calls[0].kind)
	assert.Equal(t, "js", page.calls[1].kind)
}

func TestInjectFailureIsSwallowed(t *testing.T) {
	in := newTestInjector(t, &fakeFilters{})
	page := &fakePage{url: "https://news.example.com/", failCSS: true}

	assert.False(t, in.Inject(context.Background(), page))
	assert.Empty(t, page.calls)
	assert.False(t, in.Inject(context.Background(), nil))
}

func TestInjectVideoPlatform(t *testing.T) {
	f := &fakeFilters{allowlist: map[string]bool{"music.youtube.com": true}}
	in := newTestInjector(t, f)

	page := &fakePage{url: "https://www.youtube.com/watch?v=abc"}
	assert.False(t, in.Inject(context.Background(), page), "generic pass skips the platform")
	assert.True(t, in.InjectVideoPlatform(context.Background(), page))
	require.Len(t, page.calls, 1)
	assert.Contains(t, page.calls[0].body, "ytd-ad-slot-renderer")

	assert.False(t, in.InjectVideoPlatform(context.Background(), &fakePage{url: "https://music.youtube.com/"}))
	assert.False(t, in.InjectVideoPlatform(context.Background(), &fakePage{url: "https://news.example.com/"}))
}

func TestGenericScriptRendersConfig(t *testing.T) {
	in := newTestInjector(t, &fakeFilters{})
	script := in.GenericScript()

	assert.NotContains(t, script, configPlaceholder)
	assert.Contains(t, script, `"scanIntervalMs":2000`)
	assert.Contains(t, script, `"ins.adsbygoogle"`)
	assert.Contains(t, script, `[class*=\"sponsor\"]`)
}

func TestStaticSelectorsCompile(t *testing.T) {
	for _, sel := range append(append([]string{}, knownSelectors...), videoSelectors...) {
		_, err := cascadia.Compile(sel)
		assert.NoError(t, err, sel)
	}
	assert.Len(t, heuristicSelectors, len(heuristicPatterns))
	assert.Equal(t, []string{".ok"}, validSelectors("test", []string{".ok", "div["}))
}

func TestDocumentStartScriptGuardsHost(t *testing.T) {
	js := DocumentStartScript()
	assert.Contains(t, js, "youtube\\.com")
	assert.Contains(t, js, "ytInitialPlayerResponse")
	assert.Contains(t, js, "adPlacements")
}
