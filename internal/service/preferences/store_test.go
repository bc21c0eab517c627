package preferences

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type applied struct {
	mu     sync.Mutex
	themes []Theme
}

func (a *applied) record(t Theme) {
	a.mu.Lock()
	a.themes = append(a.themes, t)
	a.mu.Unlock()
}

func (a *applied) last() Theme {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.themes) == 0 {
		return ""
	}
	return a.themes[len(a.themes)-1]
}

func TestParseTheme(t *testing.T) {
	assert.Equal(t, ThemeLight, ParseTheme(" Light "))
	assert.Equal(t, ThemeDark, ParseTheme("dark"))
	assert.Equal(t, ThemeDark, ParseTheme(""))
	assert.Equal(t, ThemeDark, ParseTheme("solarized"))
}

func TestLoadMissingFileAppliesDefault(t *testing.T) {
	rec := &applied{}
	store := NewStore(filepath.Join(t.TempDir(), "prefs.toml"), rec.record)

	theme, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
	assert.Equal(t, ThemeDark, rec.last())
}

func TestLoadInvalidValueFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	require.NoError(t, os.WriteFile(path, []byte(`theme = "purple"`+"\n"), 0o644))

	theme, err := NewStore(path, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
}

func TestSetThemePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.toml")
	rec := &applied{}
	store := NewStore(path, rec.record)

	require.NoError(t, store.SetTheme(ThemeLight))
	assert.Equal(t, ThemeLight, rec.last())

	reloaded, err := NewStore(path, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, reloaded)

	next, err := store.Toggle()
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, next)

	assert.ErrorIs(t, store.SetTheme("blue"), ErrInvalidTheme)
}

func TestWatchPicksUpExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	rec := &applied{}
	store := NewStore(path, rec.record)
	store.debounce = 10 * time.Millisecond
	_, err := store.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`theme = "light"`+"\n"), 0o644))

	assert.Eventually(t, func() bool { return store.Theme() == ThemeLight }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, ThemeLight, rec.last())

	cancel()
	require.NoError(t, <-done)
}
