package adblock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListStorageSaveLoad(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewListStorage(dir)
	require.NoError(t, err)
	assert.False(t, ls.HasAnyList())
	assert.Nil(t, ls.LastUpdated())

	require.NoError(t, ls.SaveList("easylist", "||ads.example.com^\n##.banner\n"))
	require.NoError(t, ls.SaveList("peter_lowe", "||tracker.example.net^\n"))

	content, err := ls.LoadList("easylist")
	require.NoError(t, err)
	assert.Equal(t, "||ads.example.com^\n##.banner\n", content)

	assert.True(t, ls.HasAnyList())
	assert.Equal(t, []string{"easylist", "peter_lowe"}, ls.ListNames())
	assert.Equal(t,
		[]string{"||ads.example.com^", "##.banner", "||tracker.example.net^"},
		ls.ReadAllRules())

	meta := ls.Metadata()
	assert.Equal(t, len("||tracker.example.net^\n"), meta.Lists["peter_lowe"].Size)
}

func TestListStorageMetadataSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewListStorage(dir)
	require.NoError(t, err)

	require.NoError(t, ls.SaveList("easylist", "||ads.example.com^\n"))
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, ls.MarkUpdated(when))

	reopened, err := NewListStorage(dir)
	require.NoError(t, err)
	require.NotNil(t, reopened.LastUpdated())
	assert.True(t, when.Equal(*reopened.LastUpdated()))
	assert.Contains(t, reopened.Metadata().Lists, "easylist")
}

func TestListStorageRejectsBadNames(t *testing.T) {
	ls, err := NewListStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../escape", "Upper", "a b", ""} {
		assert.Error(t, ls.SaveList(name, "x"), name)
	}
}

func TestListStorageCorruptMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("[]"), 0644))

	ls, err := NewListStorage(dir)
	require.NoError(t, err)
	assert.Nil(t, ls.LastUpdated())
	assert.Empty(t, ls.Metadata().Lists)
}

func TestListStorageClearAll(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewListStorage(dir)
	require.NoError(t, err)
	require.NoError(t, ls.SaveList("easylist", "||ads.example.com^\n"))
	require.NoError(t, ls.MarkUpdated(time.Now()))

	require.NoError(t, ls.ClearAll())
	assert.False(t, ls.HasAnyList())
	assert.Nil(t, ls.LastUpdated())
	_, err = os.Stat(filepath.Join(dir, "metadata.json"))
	assert.True(t, os.IsNotExist(err))
}
