package adblock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adshield/config"
)

func newTestManager(t *testing.T, srv *listServer) *Manager {
	cfg, err := config.Parse([]byte(config.DefaultConfigContent))
	require.NoError(t, err)

	cfg.AdBlock.DataDir = t.TempDir()
	cfg.AdBlock.Lists = nil
	for _, n := range testListNames {
		cfg.AdBlock.Lists = append(cfg.AdBlock.Lists, config.FilterListSource{Name: n, URL: srv.URL + "/" + n + ".txt"})
	}

	m, err := NewManager(&cfg.AdBlock)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestManagerStartDownloadsAndBlocks(t *testing.T) {
	srv := newListServer(t)
	m := newTestManager(t, srv)

	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.GetStatus("", "").Ready, "built-in rules are compiled synchronously")

	require.Eventually(t, func() bool {
		return m.GetStatus("", "").ListsCount == 8 && m.TestRequest("https://ad3.easylist.example/a.js", "", TypeScript).Matched
	}, 10*time.Second, 20*time.Millisecond)

	v := m.Intercept(InterceptedRequest{
		URL:           "https://ad3.easylist.example/a.js",
		SourceURL:     "https://news.example.org/",
		ResourceType:  TypeScript,
		WebContentsID: "tab-1",
	})
	assert.True(t, v.Block)
	assert.Equal(t, 1, m.GetBlockedCount("tab-1"))
	assert.Equal(t, []string{"https://ad3.easylist.example/a.js"}, m.RecentlyBlocked())

	m.ResetBlockedCount("tab-1")
	assert.Equal(t, 0, m.GetBlockedCount("tab-1"))
}

func TestManagerInterceptIgnoresNonWebURLs(t *testing.T) {
	srv := newListServer(t)
	m := newTestManager(t, srv)
	require.NoError(t, m.Rebuild(context.Background()))

	assert.Equal(t, Verdict{}, m.Intercept(InterceptedRequest{URL: "data:text/plain,hi", WebContentsID: "tab"}))
	assert.Equal(t, Verdict{}, m.Intercept(InterceptedRequest{URL: "devtools://devtools/x", WebContentsID: "tab"}))
	assert.Equal(t, 0, m.GetBlockedCount("tab"))
}

func TestManagerToggles(t *testing.T) {
	srv := newListServer(t)
	m := newTestManager(t, srv)
	require.NoError(t, m.Rebuild(context.Background()))

	req := InterceptedRequest{
		URL:           "https://securepubads.g.doubleclick.net/tag/js/gpt.js",
		SourceURL:     "https://news.example.org/article",
		ResourceType:  TypeScript,
		WebContentsID: "tab",
	}
	assert.True(t, m.Intercept(req).Block)

	enabled, err := m.ToggleGlobal()
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.False(t, m.Intercept(req).Block)
	assert.False(t, m.GetStatus("tab", req.SourceURL).Enabled)

	enabled, err = m.ToggleGlobal()
	require.NoError(t, err)
	assert.True(t, enabled)

	toggle, err := m.ToggleSite("News.Example.org")
	require.NoError(t, err)
	assert.Equal(t, SiteToggle{Allowlisted: true, Hostname: "news.example.org"}, toggle)
	assert.False(t, m.Intercept(req).Block)

	st := m.GetStatus("tab", req.SourceURL)
	assert.False(t, st.SiteEnabled)
	assert.Equal(t, "news.example.org", st.Host)
	assert.Equal(t, 1, st.BlockedCount)
	assert.Equal(t, Cosmetic{}, m.CosmeticFilters(req.SourceURL))

	toggle, err = m.ToggleSite("news.example.org")
	require.NoError(t, err)
	assert.False(t, toggle.Allowlisted)
	assert.True(t, m.Intercept(req).Block)
}

func TestManagerRebuildPreservesAttachments(t *testing.T) {
	srv := newListServer(t)
	m := newTestManager(t, srv)

	a, b := &fakeSession{id: "a"}, &fakeSession{id: "b"}
	require.NoError(t, m.Attach(a))
	require.NoError(t, m.Attach(b))
	require.NoError(t, m.Attach(a))

	require.NoError(t, m.Rebuild(context.Background()))
	require.NoError(t, m.Rebuild(context.Background()))

	assert.Equal(t, []string{"a", "b"}, m.AttachedSessions())
	for _, s := range []*fakeSession{a, b} {
		assert.Len(t, s.live(), 1, s.id)
		assert.Equal(t, 3, s.intercepts, s.id)
		assert.Equal(t, 2, s.removes, s.id)
	}

	v := a.send(InterceptedRequest{URL: "https://ads.youtube.com/x", WebContentsID: "tab"})
	assert.True(t, v.Block, "re-attached listener uses the new engine")

	require.NoError(t, m.Detach(a))
	assert.Equal(t, []string{"b"}, m.AttachedSessions())
	assert.Empty(t, a.live())
}

func TestManagerUpdateFilterLists(t *testing.T) {
	srv := newListServer(t)
	m := newTestManager(t, srv)
	require.NoError(t, m.Rebuild(context.Background()))

	res := m.UpdateFilterLists(context.Background(), true)
	require.True(t, res.Success)
	assert.Equal(t, 8, res.ListsCount)
	assert.True(t, m.TestRequest("https://ad1.peter-lowe.example/", "", TypeOther).Matched)

	again := m.UpdateFilterLists(context.Background(), false)
	assert.True(t, again.Success)
	assert.False(t, again.Updated)

	info := m.GetListsInfo()
	assert.Len(t, info.Lists, 8)
	assert.NotNil(t, info.LastUpdated)

	require.NoError(t, m.ClearAllLists(context.Background()))
	assert.Equal(t, 0, m.GetStatus("", "").ListsCount)
	assert.False(t, m.TestRequest("https://ad1.peter-lowe.example/", "", TypeOther).Matched)
}

func TestManagerTotalFailureReportsError(t *testing.T) {
	srv := newListServer(t)
	srv.fail(testListNames...)
	m := newTestManager(t, srv)
	require.NoError(t, m.Rebuild(context.Background()))

	res := m.UpdateFilterLists(context.Background(), true)
	assert.False(t, res.Success)

	st := m.GetStatus("", "")
	assert.True(t, st.Ready, "built-in rules keep the engine usable")
	assert.Equal(t, ErrNoLists.Error(), st.Error)
	assert.True(t, m.TestRequest("https://ads.youtube.com/x", "", TypeOther).Matched)
}

func TestManagerStatusBeforeFirstBuild(t *testing.T) {
	srv := newListServer(t)
	m := newTestManager(t, srv)

	st := m.GetStatus("", "https://news.example.org/")
	assert.False(t, st.Ready)
	assert.Equal(t, ErrNotReady.Error(), st.Error)
}

func TestManagerConcurrentToggleGlobal(t *testing.T) {
	srv := newListServer(t)
	m := newTestManager(t, srv)
	start := m.IsEnabled()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.ToggleGlobal()
		}()
	}
	wg.Wait()
	assert.Equal(t, start, m.IsEnabled())
}

func TestManagerSuccessfulUpdateClearsError(t *testing.T) {
	srv := newListServer(t)
	m := newTestManager(t, srv)
	require.NoError(t, m.Rebuild(context.Background()))
	require.True(t, m.UpdateFilterLists(context.Background(), true).Success)

	srv.fail(testListNames...)
	require.False(t, m.UpdateFilterLists(context.Background(), true).Success)
	require.Equal(t, ErrNoLists.Error(), m.GetStatus("", "").Error)

	// lists on disk are still fresh, so this succeeds without downloading
	srv.heal()
	res := m.UpdateFilterLists(context.Background(), false)
	require.True(t, res.Success)
	require.False(t, res.Updated)
	assert.Empty(t, m.GetStatus("", "").Error)
}
