// Package engine tracks watched projects and drives their builds: file
// changes come in from the watch source, are debounced on the scheduler,
// and end up as script runs whose outcome goes to the notifier.
package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jesspatton/watson/config"
	"github.com/jesspatton/watson/filesystem"
	"github.com/jesspatton/watson/notify"
	"github.com/jesspatton/watson/runner"
	"github.com/jesspatton/watson/scheduler"
)

// Version is reported by Hello.
const Version = "0.1.0"

// sourceTimeout bounds how long Shutdown waits for the watch source loop.
const sourceTimeout = 5 * time.Second

var (
	// ErrShuttingDown is returned by operations called during or after Shutdown.
	ErrShuttingDown = errors.New("engine: registry is shutting down")
	// ErrUnknownProject is returned for a project name that is not tracked.
	ErrUnknownProject = errors.New("engine: unknown project")
)

// TaskScheduler is the scheduler the registry owns.
type TaskScheduler interface {
	Scheduler
	Stop()
	Join(timeout time.Duration) bool
}

// Source is the watch source the registry owns.
type Source interface {
	WatchSource
	Close() error
	Done() <-chan struct{}
}

// Registry owns the shared scheduler, runner, watch source and notifier,
// and maps project names to their watchers.
type Registry struct {
	global    *config.Config
	scheduler TaskScheduler
	runner    ScriptRunner
	source    Source
	notifier  notify.Notifier
	logger    *log.Logger

	mu       sync.Mutex
	projects map[string]*Project
	closed   bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures a Registry.
type Option func(*Registry)

// WithScheduler replaces the default scheduler.
func WithScheduler(s TaskScheduler) Option {
	return func(r *Registry) { r.scheduler = s }
}

// WithRunner replaces the default script runner.
func WithRunner(run ScriptRunner) Option {
	return func(r *Registry) { r.runner = run }
}

// WithSource replaces the default fsnotify watch source.
func WithSource(src Source) Option {
	return func(r *Registry) { r.source = src }
}

// WithNotifier sets where build results are reported. The registry closes
// it on Shutdown.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// WithLogger sets the registry's logger. Default collaborators and projects
// log through loggers derived from it.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a registry whose projects are layered under global.
// Collaborators not supplied as options are created with their defaults.
func NewRegistry(global *config.Config, opts ...Option) (*Registry, error) {
	if global == nil {
		global = config.New()
	}
	r := &Registry{
		global:   global,
		logger:   log.Default().WithPrefix("registry"),
		projects: make(map[string]*Project),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.source == nil {
		w, err := filesystem.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watch source: %w", err)
		}
		r.source = w
	}
	if r.scheduler == nil {
		r.scheduler = scheduler.New(scheduler.WithLogger(r.logger.WithPrefix("scheduler")))
	}
	if r.runner == nil {
		r.runner = runner.NewRunner().WithLogger(r.logger.WithPrefix("runner"))
	}
	if r.notifier == nil {
		r.notifier = notify.Nop{}
	}

	return r, nil
}

// Hello returns the server identity string.
func (r *Registry) Hello() string {
	return "Watson server " + Version
}

// AddProject starts watching dir, or updates the config of the project with
// the same name if it is already tracked. Either way an immediate build is
// scheduled. A project whose config does not validate is not added.
func (r *Registry) AddProject(dir string, layer map[string]any) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("add project %s: %w", dir, err)
	}

	// Only the project's own layer names it; a name in the global config
	// would fold every project into one.
	name, ok := config.New(layer).Name()
	if !ok {
		name = config.ProjectName(abs)
	}
	cfg := r.global.Push(layer)
	logger := r.logger.With("project", name)

	if err := config.Validate(cfg); err != nil {
		logger.Error("rejecting project", "dir", abs, "err", err)
		return fmt.Errorf("add project %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrShuttingDown
	}

	if p, ok := r.projects[name]; ok {
		if p.Dir() != abs {
			logger.Warn("project already tracked under another directory", "dir", p.Dir(), "requested", abs)
		}
		if err := p.SetConfig(cfg); err != nil {
			logger.Error("cannot update project", "err", err)
			return fmt.Errorf("add project %s: %w", name, err)
		}
		logger.Info("updated project config")
		p.ScheduleBuild(0)
		return nil
	}

	p, err := NewProject(name, abs, cfg, r.scheduler, r.runner, r.notifier, r.logger.WithPrefix(name))
	if err != nil {
		logger.Error("cannot create project", "err", err)
		return fmt.Errorf("add project %s: %w", name, err)
	}
	if err := p.Watch(r.source); err != nil {
		logger.Error("cannot watch project", "dir", abs, "err", err)
		return fmt.Errorf("add project %s: %w", name, err)
	}
	r.projects[name] = p

	logger.Info("watching project", "dir", abs)
	p.ScheduleBuild(0)
	return nil
}

// Project returns the tracked project called name.
func (r *Registry) Project(name string) (*Project, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[name]
	return p, ok
}

// Build forces an immediate build of the named project.
func (r *Registry) Build(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrShuttingDown
	}
	p, ok := r.projects[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProject, name)
	}
	p.ScheduleBuild(0)
	return nil
}

// Status returns a snapshot of every project, sorted by name.
func (r *Registry) Status() []ProjectStatus {
	r.mu.Lock()
	projects := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		projects = append(projects, p)
	}
	r.mu.Unlock()

	statuses := make([]ProjectStatus, 0, len(projects))
	for _, p := range projects {
		statuses = append(statuses, p.Status())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// Shutdown stops every project, the watch source and the scheduler, and
// waits for their goroutines to exit. A build already running is allowed to
// finish first. Later calls return the first call's result.
func (r *Registry) Shutdown() error {
	r.shutdownOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		projects := make([]*Project, 0, len(r.projects))
		for _, p := range r.projects {
			projects = append(projects, p)
		}
		r.mu.Unlock()

		r.logger.Info("shutting down", "projects", len(projects))

		var errs []error
		for _, p := range projects {
			if err := p.Shutdown(); err != nil {
				errs = append(errs, fmt.Errorf("project %s: %w", p.Name(), err))
			}
		}
		if err := r.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close watch source: %w", err))
		}
		r.scheduler.Stop()

		// Builds are never pre-empted, so this waits for a running one.
		r.scheduler.Join(0)
		select {
		case <-r.source.Done():
		case <-time.After(sourceTimeout):
			errs = append(errs, errors.New("watch source did not stop in time"))
		}
		if err := r.notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close notifier: %w", err))
		}

		r.shutdownErr = errors.Join(errs...)
	})
	return r.shutdownErr
}
