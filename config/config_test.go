package config

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestGetWrapsListKeys(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{"single string", "run_tests.sh", []string{"run_tests.sh"}},
		{"string list", []string{"run_tests.sh"}, []string{"run_tests.sh"}},
		{"decoded list", []any{"make", "make test"}, []string{"make", "make test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(map[string]any{KeyScript: tt.value})

			got, err := c.Get(KeyScript)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Get(script) = %#v, want %#v", got, tt.want)
			}

			// Wrapping an already wrapped value changes nothing.
			again := New(map[string]any{KeyScript: got})
			got2, _ := again.Get(KeyScript)
			if !reflect.DeepEqual(got2, tt.want) {
				t.Errorf("re-wrapped Get(script) = %#v, want %#v", got2, tt.want)
			}
		})
	}
}

func TestGetRejectsNonStringEntries(t *testing.T) {
	c := New(map[string]any{KeyIgnore: []any{"ok", 3}})
	if _, err := c.Get(KeyIgnore); !errors.Is(err, ErrConfigMalformed) {
		t.Errorf("expected ErrConfigMalformed, got %v", err)
	}
}

func TestGetMissingKey(t *testing.T) {
	c := New()
	if _, err := c.Get(KeyScript); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
	if _, ok := c.Name(); ok {
		t.Error("expected no name in default config")
	}
}

func TestLayerPrecedence(t *testing.T) {
	global := New(map[string]any{KeyBuildTimeout: 5, KeyScript: "make"})
	project := global.Push(map[string]any{KeyScript: "go test ./..."})

	script, err := project.Script()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(script, []string{"go test ./..."}) {
		t.Errorf("pushed layer should win, got %v", script)
	}

	timeout, err := project.BuildTimeout()
	if err != nil {
		t.Fatal(err)
	}
	if timeout != 5*time.Second {
		t.Errorf("expected fall-through to global build_timeout, got %v", timeout)
	}

	ignore, err := project.Ignore()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ignore, Defaults()[KeyIgnore]) {
		t.Errorf("expected default ignore, got %v", ignore)
	}

	// Push must not touch the receiver.
	script, _ = global.Script()
	if !reflect.DeepEqual(script, []string{"make"}) {
		t.Errorf("receiver was modified by Push: %v", script)
	}
	if project.Depth() != global.Depth()+1 {
		t.Errorf("Depth() = %d, want %d", project.Depth(), global.Depth()+1)
	}
}

func TestBuildTimeoutNeverMissing(t *testing.T) {
	for _, c := range []*Config{New(), New(map[string]any{}), New().Push(map[string]any{KeyName: "x"})} {
		d, err := c.BuildTimeout()
		if err != nil {
			t.Fatalf("BuildTimeout failed: %v", err)
		}
		if d != 3*time.Second {
			t.Errorf("BuildTimeout() = %v, want 3s", d)
		}
	}
}

func TestReplace(t *testing.T) {
	base := New(map[string]any{KeyBuildTimeout: 1})
	project := base.Push(map[string]any{KeyScript: "old", KeyBuildTimeout: 7})

	replaced := project.Replace(map[string]any{KeyScript: "new"})

	script, _ := replaced.Script()
	if !reflect.DeepEqual(script, []string{"new"}) {
		t.Errorf("expected replaced script, got %v", script)
	}
	timeout, _ := replaced.BuildTimeout()
	if timeout != time.Second {
		t.Errorf("expected deeper layer build_timeout 1s, got %v", timeout)
	}
	if replaced.Depth() != project.Depth() {
		t.Errorf("Replace changed depth: %d vs %d", replaced.Depth(), project.Depth())
	}

	old, _ := project.Script()
	if !reflect.DeepEqual(old, []string{"old"}) {
		t.Errorf("receiver was modified by Replace: %v", old)
	}
}

func TestLayersAreCopied(t *testing.T) {
	layer := map[string]any{KeyScript: "make"}
	c := New(layer)
	layer[KeyScript] = "changed"

	script, _ := c.Script()
	if script[0] != "make" {
		t.Errorf("config observed caller mutation: %v", script)
	}
}

func TestBuildTimeoutValues(t *testing.T) {
	tests := []struct {
		value   any
		want    time.Duration
		wantErr bool
	}{
		{2, 2 * time.Second, false},
		{int64(4), 4 * time.Second, false},
		{0.5, 500 * time.Millisecond, false},
		{"250ms", 250 * time.Millisecond, false},
		{"2", 2 * time.Second, false},
		{0, 0, false},
		{-1, 0, true},
		{"soon", 0, true},
		{[]string{"1"}, 0, true},
	}

	for _, tt := range tests {
		c := New(map[string]any{KeyBuildTimeout: tt.value})
		got, err := c.BuildTimeout()
		if (err != nil) != tt.wantErr {
			t.Errorf("BuildTimeout(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("BuildTimeout(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestEndpoint(t *testing.T) {
	if got := New().Endpoint(); got != DefaultEndpoint {
		t.Errorf("Endpoint() = %q, want %q", got, DefaultEndpoint)
	}
	if got := New(map[string]any{KeyEndpoint: "127.0.0.1:9000"}).Endpoint(); got != "127.0.0.1:9000" {
		t.Errorf("Endpoint() = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		layer   map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{KeyScript: []string{"make", "make test | tee out.log"}}, false},
		{"missing script", map[string]any{}, true},
		{"empty script", map[string]any{KeyScript: []string{}}, true},
		{"blank command", map[string]any{KeyScript: "  "}, true},
		{"unbalanced quote", map[string]any{KeyScript: `echo "oops`}, true},
		{"bad ignore", map[string]any{KeyScript: "make", KeyIgnore: "("}, true},
		{"negative timeout", map[string]any{KeyScript: "make", KeyBuildTimeout: -2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(New(tt.layer))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfigMalformed) {
				t.Errorf("expected ErrConfigMalformed, got %v", err)
			}
		})
	}
}
