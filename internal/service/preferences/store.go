package preferences

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// Theme is the colour scheme shown by every view.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"

	DefaultTheme = ThemeDark
)

var ErrInvalidTheme = errors.New("theme must be dark or light")

// ParseTheme returns the stored theme, falling back to the default for
// anything unrecognised.
func ParseTheme(raw string) Theme {
	switch Theme(strings.ToLower(strings.TrimSpace(raw))) {
	case ThemeLight:
		return ThemeLight
	case ThemeDark:
		return ThemeDark
	default:
		return DefaultTheme
	}
}

type file struct {
	Theme string `toml:"theme"`
}

// Store persists preferences to a TOML file and applies changes, including
// edits made by other processes, through the apply callback.
type Store struct {
	path     string
	apply    func(Theme)
	debounce time.Duration

	mu    sync.Mutex
	theme Theme
}

// NewStore creates a store with the default theme. apply may be nil.
func NewStore(path string, apply func(Theme)) *Store {
	return &Store{
		path:     path,
		apply:    apply,
		debounce: 100 * time.Millisecond,
		theme:    DefaultTheme,
	}
}

// Load reads the file and applies the theme it holds. A missing file is not
// an error.
func (s *Store) Load() (Theme, error) {
	theme, err := s.read()
	if err != nil {
		log.Printf("[preferences] %v, using %s", err, theme)
	}
	s.set(theme, true)
	return theme, err
}

// Theme returns the current theme.
func (s *Store) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetTheme applies and persists theme.
func (s *Store) SetTheme(theme Theme) error {
	if theme != ThemeDark && theme != ThemeLight {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}

	s.mu.Lock()
	err := s.write(theme)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.set(theme, false)
	return nil
}

// Toggle switches between dark and light.
func (s *Store) Toggle() (Theme, error) {
	next := ThemeLight
	if s.Theme() == ThemeLight {
		next = ThemeDark
	}
	return next, s.SetTheme(next)
}

// Watch re-applies the file whenever it changes on disk, until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	// Watch the directory: editors replace files by renaming over them.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			theme, err := s.read()
			if err != nil {
				log.Printf("[preferences] reload failed: %v", err)
			}
			s.set(theme, false)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[preferences] watcher error: %v", err)
		}
	}
}

func (s *Store) read() (Theme, error) {
	var f file
	if _, err := toml.DecodeFile(s.path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultTheme, nil
		}
		return DefaultTheme, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return ParseTheme(f.Theme), nil
}

func (s *Store) write(theme Theme) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".preferences-*.toml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(file{Theme: string(theme)}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// set stores theme and calls apply when it changed, or always when force.
func (s *Store) set(theme Theme, force bool) {
	s.mu.Lock()
	changed := s.theme != theme
	s.theme = theme
	s.mu.Unlock()

	if (changed || force) && s.apply != nil {
		s.apply(theme)
	}
}
