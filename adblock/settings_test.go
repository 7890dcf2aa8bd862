package adblock

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsDefaults(t *testing.T) {
	s := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"), true)

	assert.True(t, s.IsEnabled())
	assert.Empty(t, s.Allowlist())
	assert.False(t, s.IsAllowlisted("example.com"))
}

func TestSettingsPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := NewSettingsStore(path, true)

	require.NoError(t, s.SetEnabled(false))
	listed, err := s.ToggleAllowlist("News.Example.COM")
	require.NoError(t, err)
	assert.True(t, listed)
	_, err = s.ToggleAllowlist("a.org")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled":false,"allowlist":["a.org","news.example.com"]}`, string(data))

	reloaded := NewSettingsStore(path, true)
	assert.False(t, reloaded.IsEnabled())
	assert.True(t, reloaded.IsAllowlisted("news.example.com"))
	assert.Equal(t, []string{"a.org", "news.example.com"}, reloaded.Allowlist())
}

func TestSettingsToggleTwiceRemoves(t *testing.T) {
	s := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"), true)

	listed, err := s.ToggleAllowlist("example.com")
	require.NoError(t, err)
	assert.True(t, listed)

	listed, err = s.ToggleAllowlist("example.com")
	require.NoError(t, err)
	assert.False(t, listed)
	assert.False(t, s.IsAllowlisted("example.com"))
}

func TestSettingsRejectsEmptyHost(t *testing.T) {
	s := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"), true)
	_, err := s.ToggleAllowlist("  ")
	assert.Error(t, err)
}

func TestSettingsCorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewSettingsStore(path, true)
	assert.True(t, s.IsEnabled())
	assert.Empty(t, s.Allowlist())
}

func TestSettingsSaveFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	// parent "directory" is a regular file, so every save fails
	s := NewSettingsStore(filepath.Join(blocker, "settings.json"), true)

	err := s.SetEnabled(false)
	assert.Error(t, err)
	assert.False(t, s.IsEnabled())

	listed, err := s.ToggleAllowlist("example.com")
	assert.Error(t, err)
	assert.True(t, listed)
	assert.True(t, s.IsAllowlisted("example.com"))
}

func TestSettingsConcurrentTogglesAllApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := NewSettingsStore(path, true)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ToggleEnabled()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// an even number of flips lands back where it started
	assert.True(t, s.IsEnabled())
	assert.True(t, NewSettingsStore(path, false).IsEnabled(), "persisted state matches memory")

	enabled, err := s.ToggleEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)
}
