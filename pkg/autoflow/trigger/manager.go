package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/randalmurphal/autoflow/pkg/autoflow/config"
)

// Config declares a trigger in configuration. Type selects the
// implementation; the remaining fields apply per type.
type Config struct {
	Type     string `yaml:"type" json:"type"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
	Addr     string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Schedule string `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	RepoPath string `yaml:"repo_path,omitempty" json:"repo_path,omitempty"`
}

// Manager owns the lifecycle of a set of named triggers.
type Manager struct {
	mu       sync.RWMutex
	triggers map[string]Trigger
	logger   *slog.Logger
}

// NewManager creates an empty trigger manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		triggers: make(map[string]Trigger),
		logger:   logger,
	}
}

// Add registers a trigger. Returns ErrDuplicateTrigger if a trigger
// with the same name already exists.
func (m *Manager) Add(t Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.triggers[t.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTrigger, t.Name())
	}
	m.triggers[t.Name()] = t
	return nil
}

// Get returns the trigger registered under name, or nil.
func (m *Manager) Get(name string) Trigger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.triggers[name]
}

// Triggers returns all registered triggers, sorted by name.
func (m *Manager) Triggers() []Trigger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Trigger, 0, len(m.triggers))
	for _, t := range m.triggers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// StartAll starts every registered trigger. Triggers that fail to
// start are reported in the joined error; the rest keep running.
func (m *Manager) StartAll(ctx context.Context) error {
	var errs []error
	for _, t := range m.Triggers() {
		if err := t.Start(ctx); err != nil {
			errs = append(errs, fmt.Errorf("start trigger %s: %w", t.Name(), err))
			continue
		}
		if m.logger != nil {
			m.logger.Info("trigger started",
				slog.String("trigger", t.Name()),
				slog.String("type", t.Type()),
			)
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every registered trigger, collecting any errors.
func (m *Manager) StopAll() error {
	var errs []error
	for _, t := range m.Triggers() {
		if err := t.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop trigger %s: %w", t.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds a manager from declarative trigger configs.
// Returns ErrUnknownTriggerType for a config entry naming a type with
// no implementation.
func FromConfig(cfgs map[string]Config, logger *slog.Logger) (*Manager, error) {
	m := NewManager(logger)

	// Sort names so construction errors are deterministic.
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := cfgs[name]
		var t Trigger
		switch cfg.Type {
		case TypeWebhook:
			t = NewWebhookTrigger(name, WebhookConfig{Path: cfg.Path, Addr: cfg.Addr, Logger: logger})
		case TypeCron:
			t = NewCronTrigger(name, CronConfig{Schedule: cfg.Schedule, Logger: logger})
		case TypeFilesystem:
			t = NewFilesystemTrigger(name, FilesystemConfig{Path: cfg.Path, Logger: logger})
		case TypeGit:
			t = NewGitTrigger(name, GitConfig{RepoPath: cfg.RepoPath, Logger: logger})
		default:
			return nil, fmt.Errorf("%w: %q for trigger %s", ErrUnknownTriggerType, cfg.Type, name)
		}
		if err := m.Add(t); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FromConfigSection builds a manager from a loaded configuration
// section, typically cfg.Sub("triggers") of an autoflow config file:
//
//	triggers:
//	  on_push:
//	    type: webhook
//	    path: /hooks/push
//	  nightly:
//	    type: cron
//	    schedule: "0 0 * * *"
func FromConfigSection(section config.Config, logger *slog.Logger) (*Manager, error) {
	cfgs := make(map[string]Config, len(section.Keys()))
	for _, name := range section.Keys() {
		tc := section.Sub(name)
		cfgs[name] = Config{
			Type:     tc.String("type", ""),
			Path:     tc.String("path", ""),
			Addr:     tc.String("addr", ""),
			Schedule: tc.String("schedule", ""),
			RepoPath: tc.String("repo_path", ""),
		}
	}
	return FromConfig(cfgs, logger)
}
