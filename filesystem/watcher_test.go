package filesystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func channelHandler() (Handler, chan Event) {
	events := make(chan Event, 64)
	return HandlerFunc(func(ev Event) {
		events <- ev
	}), events
}

// waitFor drains events until one for path arrives.
func waitFor(t *testing.T, events <-chan Event, path string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Path == path {
				return
			}
		case <-timeout:
			t.Fatalf("timeout waiting for event on %s", path)
		}
	}
}

func TestWatcherSubscribe(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "src", "keep.go"), []byte("package src"), 0644); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t)
	handler, events := channelHandler()

	sub, err := w.Subscribe(handler, tmpDir, true)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if sub.Path() != tmpDir {
		t.Errorf("Path() = %s, want %s", sub.Path(), tmpDir)
	}

	// Create a file in a nested directory
	testFile := filepath.Join(tmpDir, "src", "a.go")
	if err := os.WriteFile(testFile, []byte("package src"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, testFile)
}

func TestWatcherNewDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	w := newTestWatcher(t)
	handler, events := channelHandler()
	if _, err := w.Subscribe(handler, tmpDir, true); err != nil {
		t.Fatal(err)
	}

	newDir := filepath.Join(tmpDir, "pkg")
	if err := os.Mkdir(newDir, 0755); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, newDir)

	// Give the loop a moment to add the new directory.
	time.Sleep(100 * time.Millisecond)

	nested := filepath.Join(newDir, "b.go")
	if err := os.WriteFile(nested, []byte("package pkg"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, nested)
}

func TestWatcherEmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src")
	if err := os.Mkdir(src, 0755); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t)
	handler, events := channelHandler()
	if _, err := w.Subscribe(handler, tmpDir, true); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(src, "a.py")
	if err := os.WriteFile(testFile, []byte("x = 1"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, testFile)
}

func TestWatcherMovedInTree(t *testing.T) {
	tmpDir := t.TempDir()
	staging := t.TempDir()

	// A tree built elsewhere and moved in arrives as a single Create.
	existing := filepath.Join(staging, "pkg", "sub", "deeper", "c.py")
	if err := os.MkdirAll(filepath.Dir(existing), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("x = 1"), 0644); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t)
	handler, events := channelHandler()
	if _, err := w.Subscribe(handler, tmpDir, true); err != nil {
		t.Fatal(err)
	}

	pkg := filepath.Join(tmpDir, "pkg")
	if err := os.Rename(filepath.Join(staging, "pkg"), pkg); err != nil {
		t.Fatal(err)
	}

	// Files already inside the moved tree are reported.
	waitFor(t, events, filepath.Join(pkg, "sub", "deeper", "c.py"))

	// And its subdirectories are watched.
	nested := filepath.Join(pkg, "sub", "b.py")
	if err := os.WriteFile(nested, []byte("y = 2"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, nested)
}

func TestWatcherNestedMkdir(t *testing.T) {
	tmpDir := t.TempDir()

	w := newTestWatcher(t)
	handler, events := channelHandler()
	if _, err := w.Subscribe(handler, tmpDir, true); err != nil {
		t.Fatal(err)
	}

	deep := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, filepath.Join(tmpDir, "a"))
	time.Sleep(100 * time.Millisecond)

	testFile := filepath.Join(deep, "d.py")
	if err := os.WriteFile(testFile, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, testFile)
}

func TestWatcherUnsubscribe(t *testing.T) {
	tmpDir := t.TempDir()

	w := newTestWatcher(t)
	handler, events := channelHandler()
	sub, err := w.Subscribe(handler, tmpDir, false)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Unsubscribe(sub); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	// Unsubscribing twice is harmless.
	if err := w.Unsubscribe(sub); err != nil {
		t.Fatalf("second Unsubscribe failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "late.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		t.Errorf("unexpected event after Unsubscribe: %s", ev.Path)
	case <-time.After(300 * time.Millisecond):
		// Success, no event received
	}
}

func TestWatcherSharedDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	w := newTestWatcher(t)
	h1, events1 := channelHandler()
	h2, events2 := channelHandler()

	sub1, err := w.Subscribe(h1, tmpDir, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Subscribe(h2, tmpDir, false); err != nil {
		t.Fatal(err)
	}

	// Dropping one subscriber must keep the directory watched for the other.
	if err := w.Unsubscribe(sub1); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "shared.txt")
	if err := os.WriteFile(testFile, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events2, testFile)

	select {
	case ev := <-events1:
		t.Errorf("unsubscribed handler received %s", ev.Path)
	default:
	}
}

func TestWatcherSubscribeErrors(t *testing.T) {
	w := newTestWatcher(t)
	handler, _ := channelHandler()

	if _, err := w.Subscribe(handler, filepath.Join(t.TempDir(), "missing"), true); err == nil {
		t.Error("expected error for missing directory")
	}

	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Subscribe(handler, file, false); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("expected not a directory error, got %v", err)
	}

	w.Close()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("event loop did not exit after Close")
	}
	if _, err := w.Subscribe(handler, t.TempDir(), false); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestWithin(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "p")
	tests := []struct {
		path string
		want bool
	}{
		{root, true},
		{filepath.Join(root, "a"), true},
		{filepath.Join(string(filepath.Separator), "pp"), false},
		{string(filepath.Separator), false},
	}
	for _, tt := range tests {
		if got := within(root, tt.path); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", root, tt.path, got, tt.want)
		}
	}
}
