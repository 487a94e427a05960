package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jesspatton/watson/config"
	"github.com/jesspatton/watson/filesystem"
	"github.com/jesspatton/watson/notify"
	"github.com/jesspatton/watson/runner"
	"github.com/jesspatton/watson/scheduler"
)

// Scheduler is the part of the debounce scheduler a project uses.
type Scheduler interface {
	Schedule(prev *scheduler.Event, delay time.Duration, fn func()) *scheduler.Event
	Cancel(ev *scheduler.Event) bool
	Pending(ev *scheduler.Event) bool
}

// ScriptRunner runs a build script in a directory.
type ScriptRunner interface {
	Execute(ctx context.Context, dir string, script []string) (bool, runner.Result)
}

// WatchSource delivers filesystem changes to subscribed handlers.
type WatchSource interface {
	Subscribe(handler filesystem.Handler, path string, recursive bool) (*filesystem.Subscription, error)
	Unsubscribe(sub *filesystem.Subscription) error
}

// Project watches one working directory and rebuilds it after changes
// settle.
type Project struct {
	name string
	dir  string

	scheduler Scheduler
	runner    ScriptRunner
	notifier  notify.Notifier
	logger    *log.Logger

	mu      sync.Mutex
	cfg     *config.Config
	ignorer *filesystem.Ignorer
	pending *scheduler.Event
	phase   Phase
	last    ProjectStatus
	builds  int
	source  WatchSource
	sub     *filesystem.Subscription
	closed  bool

	shutdownOnce sync.Once
}

// NewProject creates a project for dir. cfg must already be layered under
// the global config; its ignore patterns are compiled here. A nil logger
// uses the default one prefixed with name.
func NewProject(name, dir string, cfg *config.Config, sched Scheduler, run ScriptRunner, n notify.Notifier, logger *log.Logger) (*Project, error) {
	if n == nil {
		n = notify.Nop{}
	}
	if logger == nil {
		logger = log.Default().WithPrefix(name)
	}
	p := &Project{
		name:      name,
		dir:       dir,
		scheduler: sched,
		runner:    run,
		notifier:  n,
		logger:    logger,
	}
	if err := p.SetConfig(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the project name.
func (p *Project) Name() string {
	return p.name
}

// Dir returns the absolute working directory.
func (p *Project) Dir() string {
	return p.dir
}

// Config returns the effective configuration.
func (p *Project) Config() *config.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Subscription returns the live watch subscription, or nil.
func (p *Project) Subscription() *filesystem.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sub
}

// Watch subscribes the project recursively to src.
func (p *Project) Watch(src WatchSource) error {
	sub, err := src.Subscribe(p, p.dir, true)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = src
	p.sub = sub
	return nil
}

// SetConfig swaps the active configuration. It does not schedule a build.
func (p *Project) SetConfig(cfg *config.Config) error {
	patterns, err := cfg.Ignore()
	if err != nil {
		return err
	}
	ignorer, err := filesystem.NewIgnorer(patterns)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrConfigMalformed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.ignorer = ignorer
	return nil
}

// OnChange handles a filesystem event under the working directory. Ignored
// paths have no effect; anything else re-arms the debounce timer.
func (p *Project) OnChange(ev filesystem.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	rel, ok := filesystem.RelPath(p.dir, ev.Path)
	if !ok {
		return
	}
	if p.ignorer.Match(rel) {
		p.logger.Debug("ignoring change", "path", rel)
		return
	}

	if config.IsConfigFile(rel) {
		p.reloadLocked()
	}

	delay, err := p.cfg.BuildTimeout()
	if err != nil {
		p.logger.Warn("invalid build_timeout, building immediately", "err", err)
		delay = 0
	}
	p.logger.Debug("change detected", "path", rel, "op", ev.Op.String(), "delay", delay)
	p.scheduleLocked(delay)
}

// ScheduleBuild re-arms the debounce timer with an explicit delay. A zero
// delay builds as soon as the scheduler worker is free.
func (p *Project) ScheduleBuild(delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.scheduleLocked(delay)
}

func (p *Project) scheduleLocked(delay time.Duration) {
	p.pending = p.scheduler.Schedule(p.pending, delay, p.build)
	if p.pending != nil && p.phase != PhaseBuilding {
		p.phase = PhaseScheduled
	}
}

// reloadLocked replaces the most specific config layer with the project's
// config file. A file that cannot be loaded or validated leaves the current
// config in place.
func (p *Project) reloadLocked() {
	layer, err := config.LoadProject(p.dir)
	if err != nil {
		p.logger.Error("cannot reload config", "err", err)
		return
	}
	// The registry keys projects by name; a rename on disk does not move it.
	layer[config.KeyName] = p.name

	cfg := p.cfg.Replace(layer)
	if err := config.Validate(cfg); err != nil {
		p.logger.Error("reloaded config is invalid", "err", err)
		return
	}
	patterns, _ := cfg.Ignore()
	ignorer, err := filesystem.NewIgnorer(patterns)
	if err != nil {
		p.logger.Error("reloaded config is invalid", "err", err)
		return
	}

	p.cfg = cfg
	p.ignorer = ignorer
	p.logger.Info("config reloaded")
}

// build runs on the scheduler worker.
func (p *Project) build() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	// A change that arrived after this event fired may already have
	// re-armed the timer; keep that handle.
	if !p.scheduler.Pending(p.pending) {
		p.pending = nil
	}
	script, err := p.cfg.Script()
	p.phase = PhaseBuilding
	p.mu.Unlock()

	p.logger.Info("building", "dir", p.dir)

	start := time.Now()
	var ok bool
	var result runner.Result
	if err != nil {
		result = runner.Result{ExitCode: -1, Stderr: err.Error()}
	} else {
		ok, result = p.runner.Execute(context.Background(), p.dir, script)
	}
	elapsed := time.Since(start)

	status := StatusFailure
	if ok {
		status = StatusSuccess
	}

	p.mu.Lock()
	p.builds++
	p.last = ProjectStatus{
		Status:     status,
		Command:    result.Command,
		ExitCode:   result.ExitCode,
		Output:     result.Output(),
		FinishedAt: time.Now(),
		Duration:   elapsed,
	}
	if p.scheduler.Pending(p.pending) {
		p.phase = PhaseScheduled
	} else {
		p.phase = PhaseIdle
	}
	p.mu.Unlock()

	if ok {
		p.logger.Info("build succeeded", "duration", elapsed.Round(time.Millisecond))
		p.notifier.Notify(fmt.Sprintf("Build of %s was successful", p.name), result.Output(), notify.Info)
		return
	}
	p.logger.Warn("build failed", "command", result.Command, "exit", result.ExitCode)
	p.notifier.Notify(fmt.Sprintf("Build of %s has failed", p.name), result.Output(), notify.Error)
}

// Status returns a snapshot of the project.
func (p *Project) Status() ProjectStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.last
	st.Name = p.name
	st.Dir = p.dir
	st.Phase = p.phase
	st.Builds = p.builds
	return st
}

// Shutdown unsubscribes from the watch source and cancels any pending
// build. A running build is allowed to finish. Only the first call has an
// effect.
func (p *Project) Shutdown() error {
	var err error
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		if p.pending != nil {
			p.scheduler.Cancel(p.pending)
			p.pending = nil
		}
		if p.phase == PhaseScheduled {
			p.phase = PhaseIdle
		}
		src, sub := p.source, p.sub
		p.sub = nil
		p.mu.Unlock()

		if src != nil && sub != nil {
			err = src.Unsubscribe(sub)
		}
		p.logger.Debug("project shut down")
	})
	return err
}
