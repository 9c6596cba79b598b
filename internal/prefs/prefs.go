// Package prefs keeps the learner's interface language and theme.
package prefs

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/storage"
)

const storageKey = "preferences"

const (
	LangVI = "vi"
	LangEN = "en"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

type Preferences struct {
	Language string `json:"language"`
	Theme    string `json:"theme"`
}

func Defaults() Preferences { return Preferences{Language: LangVI, Theme: ThemeLight} }

// Store is safe for concurrent use; Language is read on every API request.
type Store struct {
	kv storage.KV

	mu  sync.RWMutex
	cur Preferences
}

// New returns a store holding the defaults, with lang overriding the default
// language when set.
func New(kv storage.KV, lang string) *Store {
	p := Defaults()
	if lang == LangEN || lang == LangVI {
		p.Language = lang
	}
	return &Store{kv: kv, cur: p}
}

// Load replaces the defaults with what was saved, if anything.
func (s *Store) Load(ctx context.Context) error {
	var p Preferences
	err := storage.GetJSON(ctx, s.kv, storageKey, &p)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "load preferences")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Language != "" {
		s.cur.Language = p.Language
	}
	if p.Theme != "" {
		s.cur.Theme = p.Theme
	}
	return nil
}

func (s *Store) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *Store) Language() string { return s.Get().Language }

func (s *Store) SetLanguage(ctx context.Context, lang string) error {
	if lang != LangVI && lang != LangEN {
		return errors.Errorf("unsupported language %q", lang)
	}
	return s.update(ctx, func(p *Preferences) { p.Language = lang })
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return errors.Errorf("unsupported theme %q", theme)
	}
	return s.update(ctx, func(p *Preferences) { p.Theme = theme })
}

// ToggleTheme flips between light and dark and returns the new theme.
func (s *Store) ToggleTheme(ctx context.Context) (string, error) {
	next := ThemeDark
	if s.Get().Theme == ThemeDark {
		next = ThemeLight
	}
	return next, s.SetTheme(ctx, next)
}

func (s *Store) update(ctx context.Context, fn func(*Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur
	fn(&next)
	if err := storage.PutJSON(ctx, s.kv, storageKey, next); err != nil {
		return errors.Wrap(err, "save preferences")
	}
	s.cur = next
	return nil
}
