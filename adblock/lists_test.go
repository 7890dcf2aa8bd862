package adblock

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listServer serves /<name>.txt; names in failing answer 500. While held,
// responses wait until released.
type listServer struct {
	*httptest.Server
	hits     atomic.Int64
	mu       sync.Mutex
	failing  map[string]bool
	lastUA   atomic.Value
	tooShort bool
	held     chan struct{}
}

func newListServer(t *testing.T) *listServer {
	ls := &listServer{failing: make(map[string]bool)}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls.hits.Add(1)
		ls.lastUA.Store(r.Header.Get("User-Agent"))
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".txt")

		ls.mu.Lock()
		fail, short, held := ls.failing[name], ls.tooShort, ls.held
		ls.mu.Unlock()
		if held != nil {
			<-held
		}

		switch {
		case fail:
			http.Error(w, "boom", http.StatusInternalServerError)
		case short:
			fmt.Fprint(w, "||x.com^")
		default:
			fmt.Fprint(w, sampleList(name))
		}
	}))
	t.Cleanup(ls.Close)
	return ls
}

func (ls *listServer) fail(names ...string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for _, n := range names {
		ls.failing[n] = true
	}
}

func (ls *listServer) heal() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.failing = make(map[string]bool)
}

// hold makes responses wait until the returned func is called.
func (ls *listServer) hold(t *testing.T) func() {
	ch := make(chan struct{})
	ls.mu.Lock()
	ls.held = ch
	ls.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			ls.mu.Lock()
			ls.held = nil
			ls.mu.Unlock()
			close(ch)
		})
	}
	t.Cleanup(release)
	return release
}

func sampleList(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "! Title: %s\n", name)
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "||ad%d.%s.example^\n", i, strings.ReplaceAll(name, "_", "-"))
	}
	return b.String()
}

var testListNames = []string{
	"easylist", "easyprivacy", "ublock_filters", "ublock_privacy",
	"ublock_annoyances", "ublock_unbreak", "brave_unbreak", "peter_lowe",
}

func newTestUpdater(t *testing.T, srv *listServer) (*ListUpdater, *ListStorage) {
	storage, err := NewListStorage(t.TempDir())
	require.NoError(t, err)

	sources := make([]ListSource, 0, len(testListNames))
	for _, n := range testListNames {
		sources = append(sources, ListSource{Name: n, URL: srv.URL + "/" + n + ".txt"})
	}
	loader := NewRuleLoader("", 5*time.Second, 0)
	return NewListUpdater(sources, storage, loader, 24*time.Hour, 8), storage
}

func TestUpdateListsDownloadsAll(t *testing.T) {
	srv := newListServer(t)
	u, storage := newTestUpdater(t, srv)

	res := u.UpdateLists(context.Background(), false)
	assert.True(t, res.Success)
	assert.True(t, res.Updated)
	assert.Equal(t, 8, res.ListsCount)
	assert.Empty(t, res.FailedLists)
	assert.EqualValues(t, 8, srv.hits.Load())
	assert.Equal(t, "adshield/1.0", srv.lastUA.Load())

	assert.Len(t, storage.ListNames(), 8)
	assert.NotNil(t, storage.LastUpdated())
}

func TestUpdateListsFreshnessSkipsNetwork(t *testing.T) {
	srv := newListServer(t)
	u, _ := newTestUpdater(t, srv)

	first := u.UpdateLists(context.Background(), false)
	require.True(t, first.Updated)
	before := srv.hits.Load()

	second := u.UpdateLists(context.Background(), false)
	assert.True(t, second.Success)
	assert.False(t, second.Updated)
	assert.Equal(t, "Lists are up to date", second.Message)
	assert.Equal(t, before, srv.hits.Load(), "no requests for fresh lists")
}

func TestUpdateListsForceAndStaleBypassFreshness(t *testing.T) {
	srv := newListServer(t)
	u, _ := newTestUpdater(t, srv)

	require.True(t, u.UpdateLists(context.Background(), false).Updated)

	forced := u.UpdateLists(context.Background(), true)
	assert.True(t, forced.Updated)
	assert.EqualValues(t, 16, srv.hits.Load())

	u.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	stale := u.UpdateLists(context.Background(), false)
	assert.True(t, stale.Updated)
	assert.EqualValues(t, 24, srv.hits.Load())
}

func TestUpdateListsPartialFailure(t *testing.T) {
	cases := []struct {
		failing []string
		want    int
	}{
		{failing: testListNames[:5], want: 3},
		{failing: testListNames[:3], want: 5},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d failing", len(tc.failing)), func(t *testing.T) {
			srv := newListServer(t)
			srv.fail(tc.failing...)
			u, storage := newTestUpdater(t, srv)

			res := u.UpdateLists(context.Background(), true)
			assert.True(t, res.Success)
			assert.Equal(t, tc.want, res.ListsCount)
			assert.ElementsMatch(t, tc.failing, res.FailedLists)
			assert.Len(t, storage.ListNames(), tc.want)
		})
	}
}

func TestUpdateListsTotalFailure(t *testing.T) {
	srv := newListServer(t)
	srv.fail(testListNames...)
	u, storage := newTestUpdater(t, srv)

	res := u.UpdateLists(context.Background(), true)
	assert.False(t, res.Success)
	assert.Equal(t, ErrNoLists.Error(), res.Error)
	assert.Len(t, res.FailedLists, 8)
	assert.Nil(t, storage.LastUpdated())
}

func TestUpdateListsRejectsShortBodies(t *testing.T) {
	srv := newListServer(t)
	srv.tooShort = true
	u, _ := newTestUpdater(t, srv)

	res := u.UpdateLists(context.Background(), true)
	assert.False(t, res.Success)
}

func TestUpdateListsFailedListKeepsPreviousCopy(t *testing.T) {
	srv := newListServer(t)
	u, storage := newTestUpdater(t, srv)
	require.True(t, u.UpdateLists(context.Background(), true).Success)

	srv.fail("easylist")
	res := u.UpdateLists(context.Background(), true)
	assert.Equal(t, 7, res.ListsCount)

	content, err := storage.LoadList("easylist")
	require.NoError(t, err)
	assert.Equal(t, sampleList("easylist"), content)
}

func TestUpdateListsCoalescesConcurrentCallers(t *testing.T) {
	srv := newListServer(t)
	u, _ := newTestUpdater(t, srv)

	var wg sync.WaitGroup
	results := make([]UpdateResult, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = u.UpdateLists(context.Background(), false)
		}(i)
	}
	wg.Wait()

	// callers either shared the in-flight update or found fresh lists afterwards
	assert.EqualValues(t, 8, srv.hits.Load())
	for _, r := range results {
		assert.True(t, r.Success)
	}
}

func TestUpdateListsSharesInFlightUpdateAcrossForce(t *testing.T) {
	srv := newListServer(t)
	u, storage := newTestUpdater(t, srv)
	release := srv.hold(t)

	var wg sync.WaitGroup
	results := make([]UpdateResult, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = u.UpdateLists(context.Background(), i%2 == 0)
		}(i)
	}

	// the first download is parked in the server; give the rest time to join
	require.Eventually(t, func() bool { return srv.hits.Load() > 0 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	release()
	wg.Wait()

	assert.EqualValues(t, len(testListNames), srv.hits.Load(), "forced and unforced callers share one download round")
	for _, r := range results {
		assert.True(t, r.Success)
		assert.True(t, r.Updated)
	}
	assert.Len(t, storage.ListNames(), len(testListNames))
}

func TestUpdateListsSurvivesCallerCancel(t *testing.T) {
	srv := newListServer(t)
	u, storage := newTestUpdater(t, srv)
	release := srv.hold(t)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan UpdateResult, 1)
	go func() { first <- u.UpdateLists(ctx, true) }()
	require.Eventually(t, func() bool { return srv.hits.Load() > 0 }, 2*time.Second, 5*time.Millisecond)

	second := make(chan UpdateResult, 1)
	go func() { second <- u.UpdateLists(context.Background(), true) }()
	time.Sleep(50 * time.Millisecond)

	cancel()
	release()

	for _, ch := range []chan UpdateResult{first, second} {
		select {
		case r := <-ch:
			assert.True(t, r.Success)
			assert.Equal(t, len(testListNames), r.ListsCount)
		case <-time.After(5 * time.Second):
			t.Fatal("update did not finish")
		}
	}
	assert.Len(t, storage.ListNames(), len(testListNames))
}

func TestEnsureListsExist(t *testing.T) {
	srv := newListServer(t)
	u, storage := newTestUpdater(t, srv)

	assert.True(t, u.EnsureListsExist(context.Background()))
	assert.EqualValues(t, 8, srv.hits.Load())

	assert.True(t, u.EnsureListsExist(context.Background()))
	assert.EqualValues(t, 8, srv.hits.Load(), "existing lists short-circuit")

	require.NoError(t, storage.ClearAll())
	srv.fail(testListNames...)
	assert.False(t, u.EnsureListsExist(context.Background()))
}

func TestCombinedRulesAppendsSupplementary(t *testing.T) {
	srv := newListServer(t)
	u, _ := newTestUpdater(t, srv)

	assert.Equal(t, SupplementaryRules(), u.CombinedRules())

	require.True(t, u.UpdateLists(context.Background(), true).Success)
	combined := u.CombinedRules()
	assert.Contains(t, combined, "||ad0.easylist.example^")
	assert.Equal(t, supplementaryRules[len(supplementaryRules)-1], combined[len(combined)-1])
	assert.Contains(t, u.CombinedRulesText(), "\n||ads.youtube.com^\n")
}
