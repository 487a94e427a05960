package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ErrClosed is returned when operations are called on a closed Watcher.
var ErrClosed = errors.New("filesystem: watcher is closed")

// Event is a single change under a subscribed directory tree.
type Event struct {
	// Path is the absolute path of the changed file or directory.
	Path string
	Op   fsnotify.Op
}

// Handler receives change events. OnChange is called from the watcher's
// event loop and must not block for long.
type Handler interface {
	OnChange(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

// OnChange calls f(ev).
func (f HandlerFunc) OnChange(ev Event) { f(ev) }

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	path      string
	recursive bool
	handler   Handler
	dirs      map[string]struct{}
}

// Path returns the subscribed root.
func (s *Subscription) Path() string {
	return s.path
}

// Watcher is a filesystem-watch source shared by many subscribers. It owns
// one fsnotify watcher and one event loop.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    *log.Logger

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	refs   map[string]int
	closed bool
	done   chan struct{}
}

// NewWatcher creates a Watcher and starts its event loop.
func NewWatcher() (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		logger:    log.Default().WithPrefix("watcher"),
		subs:      make(map[*Subscription]struct{}),
		refs:      make(map[string]int),
		done:      make(chan struct{}),
	}

	go w.startLoop()

	return w, nil
}

// Subscribe delivers changes under path to handler. With recursive set,
// every directory below path is watched, including ones created later.
func (w *Watcher) Subscribe(handler Handler, path string, recursive bool) (*Subscription, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("filesystem: %s is not a directory", root)
	}

	dirs := []string{root}
	if recursive {
		dirs, err = Directories(root)
		if err != nil {
			return nil, err
		}
	}

	sub := &Subscription{
		path:      root,
		recursive: recursive,
		handler:   handler,
		dirs:      make(map[string]struct{}, len(dirs)),
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	for _, dir := range dirs {
		if err := w.addLocked(sub, dir); err != nil {
			w.removeLocked(sub)
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.subs[sub] = struct{}{}

	w.logger.Info("observing", "dir", root, "dirs", len(dirs))
	return sub, nil
}

// Unsubscribe stops delivering events to sub's handler and releases the
// directories only it was watching.
func (w *Watcher) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.subs[sub]; !ok {
		return nil
	}
	delete(w.subs, sub)
	if w.closed {
		return nil
	}
	w.removeLocked(sub)

	w.logger.Info("stopped observing", "dir", sub.path)
	return nil
}

// Close stops the event loop and releases all watches.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.subs = make(map[*Subscription]struct{})
	w.mu.Unlock()

	return w.fsWatcher.Close()
}

// Done is closed once the event loop has exited after Close.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) addLocked(sub *Subscription, dir string) error {
	if _, ok := sub.dirs[dir]; ok {
		return nil
	}
	if w.refs[dir] == 0 {
		if err := w.fsWatcher.Add(dir); err != nil {
			return err
		}
	}
	w.refs[dir]++
	sub.dirs[dir] = struct{}{}
	return nil
}

func (w *Watcher) removeLocked(sub *Subscription) {
	for dir := range sub.dirs {
		w.refs[dir]--
		if w.refs[dir] <= 0 {
			delete(w.refs, dir)
			// The directory may already be gone; fsnotify drops those itself.
			_ = w.fsWatcher.Remove(dir)
		}
	}
	sub.dirs = make(map[string]struct{})
}

func (w *Watcher) startLoop() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			// Ignore CHMOD events which can be noisy
			if event.Op == fsnotify.Chmod {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.watchNewDirectory(event.Name)
				}
			}

			w.dispatch(Event{Path: event.Name, Op: event.Op})

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "err", err)
		}
	}
}

// watchNewDirectory extends recursive subscriptions to a directory that
// appeared after Subscribe, along with every directory already inside it.
// Files already present were written before the watch existed, so each one
// is reported as a Create.
func (w *Watcher) watchNewDirectory(dir string) {
	if skipDirectory(filepath.Base(dir)) {
		return
	}

	w.mu.Lock()
	var subs []*Subscription
	for sub := range w.subs {
		if sub.recursive && within(sub.path, dir) {
			subs = append(subs, sub)
		}
	}
	if len(subs) == 0 {
		w.mu.Unlock()
		return
	}

	// Each directory is watched before its entries are read, so a
	// subdirectory created mid-walk is either seen here or raises its own
	// Create.
	dirs := 0
	err := walkDirectories(dir, func(d string) {
		dirs++
		for _, sub := range subs {
			if err := w.addLocked(sub, d); err != nil {
				w.logger.Warn("cannot watch new directory", "dir", d, "err", err)
			}
		}
	})
	w.mu.Unlock()
	if err != nil {
		w.logger.Warn("cannot walk new directory", "dir", dir, "err", err)
		return
	}

	w.logger.Debug("watching new directory", "dir", dir, "dirs", dirs)
	for f := range StreamFiles(dir) {
		w.dispatch(Event{Path: f.Location, Op: fsnotify.Create})
	}
}

func (w *Watcher) dispatch(ev Event) {
	w.mu.Lock()
	handlers := make([]Handler, 0, len(w.subs))
	for sub := range w.subs {
		if within(sub.path, ev.Path) {
			handlers = append(handlers, sub.handler)
		}
	}
	w.mu.Unlock()

	for _, h := range handlers {
		h.OnChange(ev)
	}
}

// within reports whether path is root or below it.
func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
