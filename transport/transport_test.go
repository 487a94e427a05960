package transport

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jesspatton/watson/engine"
)

type fakeRegistry struct {
	mu     sync.Mutex
	dirs   []string
	layers []map[string]any
	builds []string
}

func (f *fakeRegistry) Hello() string { return "Watson server test" }

func (f *fakeRegistry) AddProject(dir string, layer map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := layer["script"]; !ok {
		return errors.New("no script configured")
	}
	f.dirs = append(f.dirs, dir)
	f.layers = append(f.layers, layer)
	return nil
}

func (f *fakeRegistry) Build(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name != "demo" {
		return engine.ErrUnknownProject
	}
	f.builds = append(f.builds, name)
	return nil
}

func (f *fakeRegistry) Status() []engine.ProjectStatus {
	return []engine.ProjectStatus{{
		Name:     "demo",
		Dir:      "/p",
		Phase:    engine.PhaseBuilding,
		Status:   engine.StatusFailure,
		ExitCode: 2,
		Output:   "boom",
		Duration: 1500 * time.Millisecond,
		Builds:   3,
	}}
}

func startServer(t *testing.T, reg Registry) (*Server, *Client) {
	t.Helper()
	srv, err := NewServer(reg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()
	t.Cleanup(func() {
		srv.Close()
		select {
		case err := <-served:
			if err != nil {
				t.Errorf("Serve returned %v after Close", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after Close")
		}
	})

	client, err := Dial(srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestHello(t *testing.T) {
	_, client := startServer(t, &fakeRegistry{})

	got, err := client.Hello()
	if err != nil {
		t.Fatalf("Hello failed: %v", err)
	}
	if got != "Watson server test" {
		t.Errorf("Hello() = %q", got)
	}
}

func TestAddProject(t *testing.T) {
	reg := &fakeRegistry{}
	_, client := startServer(t, reg)

	layer := map[string]any{
		"name":          "demo",
		"script":        []string{"make", "make test"},
		"build_timeout": 2,
	}
	if err := client.AddProject("/p", layer); err != nil {
		t.Fatalf("AddProject failed: %v", err)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if len(reg.dirs) != 1 || reg.dirs[0] != "/p" {
		t.Fatalf("registry saw dirs %v", reg.dirs)
	}
	got := reg.layers[0]
	// JSON decoding yields []any and float64; config normalises both.
	script, ok := got["script"].([]any)
	if !ok || len(script) != 2 || script[1] != "make test" {
		t.Errorf("script arrived as %#v", got["script"])
	}
	if got["build_timeout"] != float64(2) {
		t.Errorf("build_timeout arrived as %#v", got["build_timeout"])
	}
}

func TestAddProjectErrors(t *testing.T) {
	_, client := startServer(t, &fakeRegistry{})

	err := client.AddProject("/p", map[string]any{"name": "demo"})
	if err == nil || !strings.Contains(err.Error(), "no script configured") {
		t.Errorf("expected registry error, got %v", err)
	}

	err = client.AddProject("", map[string]any{"script": "make"})
	if err == nil || !strings.Contains(err.Error(), "missing directory") {
		t.Errorf("expected missing directory error, got %v", err)
	}

	// The connection survives failed calls.
	if _, err := client.Hello(); err != nil {
		t.Errorf("Hello after failed calls: %v", err)
	}
}

func TestBuildAndStatus(t *testing.T) {
	reg := &fakeRegistry{}
	_, client := startServer(t, reg)

	if err := client.Build("demo"); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := client.Build("missing"); err == nil || !strings.Contains(err.Error(), "unknown project") {
		t.Errorf("Build(missing) = %v", err)
	}

	statuses, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("got %d statuses, want 1", len(statuses))
	}
	st := statuses[0]
	if st.Name != "demo" || st.Phase != engine.PhaseBuilding || st.Status != engine.StatusFailure {
		t.Errorf("unexpected status %+v", st)
	}
	if st.Duration != 1500*time.Millisecond || st.Builds != 3 || st.Output != "boom" {
		t.Errorf("status fields lost on the wire: %+v", st)
	}
}

func TestShutdownRequested(t *testing.T) {
	srv, client := startServer(t, &fakeRegistry{})

	select {
	case <-srv.ShutdownRequested():
		t.Fatal("shutdown requested before any call")
	default:
	}

	if err := client.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	// A second request is harmless.
	if err := client.Shutdown(); err != nil {
		t.Fatalf("second Shutdown failed: %v", err)
	}

	select {
	case <-srv.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("ShutdownRequested not closed")
	}
}

func TestServeBeforeListen(t *testing.T) {
	srv, err := NewServer(&fakeRegistry{})
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Serve(); err == nil {
		t.Error("Serve before Listen should fail")
	}
	if srv.Addr() != nil {
		t.Error("Addr before Listen should be nil")
	}
}

func TestDialUnreachable(t *testing.T) {
	srv, err := NewServer(&fakeRegistry{})
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	addr := srv.Addr().String()
	srv.Close()

	if _, err := Dial(addr); err == nil {
		t.Error("Dial to a closed listener should fail")
	}
}
