package template

import (
	"log/slog"
	"sync"
)

// Store is the process-wide template cache: loaded lazily on first use, safe
// for concurrent readers, reset only between test cases.
type Store struct {
	dir    string
	logger *slog.Logger

	mu        sync.Mutex
	loaded    bool
	templates []*Template
}

// NewStore creates a store over a templates directory. Nothing is read until
// the first Templates or Match call.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Templates returns the cached templates, loading them on first call.
func (s *Store) Templates() ([]*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.templates, nil
	}
	templates, err := LoadDir(s.dir, s.logger)
	if err != nil {
		return nil, err
	}
	s.templates = templates
	s.loaded = true
	return s.templates, nil
}

// Match selects the first template (in load order) whose keywords all occur in
// the text and whose exclude keywords do not. ok is false when nothing matches;
// that is a recoverable outcome, not an error.
func (s *Store) Match(text string) (*Template, bool, error) {
	templates, err := s.Templates()
	if err != nil {
		return nil, false, err
	}
	for _, tpl := range templates {
		if tpl.MatchesInput(text) {
			return tpl, true, nil
		}
	}
	return nil, false, nil
}

// Reset drops the cache so the next call reloads from disk. Intended for test
// isolation; callers must not race it against in-flight reads.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.templates = nil
}
