// Package shell is the top-level container switching between the single and
// bulk workflows. It owns the active tab and the dark-mode flag.
package shell

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dogcoloringbooks/coloringbook/internal/bulk"
	"github.com/dogcoloringbooks/coloringbook/internal/config"
	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/dogcoloringbooks/coloringbook/internal/preferences"
	"github.com/dogcoloringbooks/coloringbook/internal/schedule"
	"github.com/dogcoloringbooks/coloringbook/internal/single"
	"github.com/dogcoloringbooks/coloringbook/internal/storage"
	"github.com/google/uuid"
)

// ErrUnknownTab is returned by SetTab for anything but single or bulk.
var ErrUnknownTab = errors.New("unknown tab")

// Tab selects the visible workflow.
type Tab string

const (
	TabSingle Tab = "single"
	TabBulk   Tab = "bulk"
)

// Backend serves both workflows. The webhook client satisfies it.
type Backend interface {
	single.Backend
	bulk.Backend
}

// State is what the shell exposes to clients.
type State struct {
	ActiveTab Tab           `json:"active_tab"`
	DarkMode  bool          `json:"dark_mode"`
	Counts    models.Counts `json:"counts"`
	Sessions  int           `json:"sessions"`
}

// Shell wires the controllers to one backend and one preference store.
type Shell struct {
	backend  Backend
	prefs    preferences.Store
	errorTTL time.Duration

	bulk     *bulk.Controller
	sessions *storage.SessionStore[*single.Controller]

	mu   sync.RWMutex
	tab  Tab
	dark bool
}

// New builds a shell from configuration. The stored dark-mode preference is
// loaded once here.
func New(backend Backend, prefs preferences.Store, cfg config.Config) (*Shell, error) {
	planner, err := schedule.New(cfg.ScheduleCron, cfg.ScheduleInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to configure schedule: %w", err)
	}

	dark, err := prefs.DarkMode()
	if err != nil {
		slog.Warn("Unable to load dark mode preference", "err", err)
	}

	return &Shell{
		backend:  backend,
		prefs:    prefs,
		errorTTL: cfg.ErrorTTL,
		bulk: bulk.New(backend,
			bulk.WithPlanner(planner),
			bulk.WithRateLimit(cfg.BulkRatePerSecond),
		),
		sessions: storage.NewSessionStore[*single.Controller](),
		tab:      TabSingle,
		dark:     dark,
	}, nil
}

// State returns the current shell state.
func (s *Shell) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		ActiveTab: s.tab,
		DarkMode:  s.dark,
		Counts:    s.bulk.Counts(),
		Sessions:  len(s.sessions.GetAll()),
	}
}

// SetTab switches the visible workflow.
func (s *Shell) SetTab(tab Tab) error {
	if tab != TabSingle && tab != TabBulk {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tab = tab
	return nil
}

// SetDarkMode updates and persists the flag. The in-memory value changes even
// when persisting fails.
func (s *Shell) SetDarkMode(enabled bool) error {
	s.mu.Lock()
	s.dark = enabled
	s.mu.Unlock()
	if err := s.prefs.SetDarkMode(enabled); err != nil {
		return fmt.Errorf("failed to save dark mode: %w", err)
	}
	return nil
}

// Bulk returns the bulk controller.
func (s *Shell) Bulk() *bulk.Controller {
	return s.bulk
}

// NewSingle starts a single-mode session.
func (s *Shell) NewSingle() (string, *single.Controller) {
	id := uuid.NewString()
	c := single.New(s.backend, single.WithErrorTTL(s.errorTTL))
	s.sessions.Set(id, c)
	slog.Info("Started single session", "session_id", id)
	return id, c
}

// Single looks up a single-mode session.
func (s *Shell) Single(id string) (*single.Controller, bool) {
	return s.sessions.Get(id)
}

// EndSingle drops a single-mode session.
func (s *Shell) EndSingle(id string) {
	if c, ok := s.sessions.Get(id); ok {
		c.Reset()
	}
	s.sessions.Delete(id)
}
