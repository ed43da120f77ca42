package repl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"status", []string{"status"}, false},
		{"  admin   create  bob ", []string{"admin", "create", "bob"}, false},
		{`admin create --first-name "Mary Ann" bob`, []string{"admin", "create", "--first-name", "Mary Ann", "bob"}, false},
		{`end --reason 'manual'`, []string{"end", "--reason", "manual"}, false},
		{`login ""`, []string{"login", ""}, false},
		{`login "alice`, nil, true},
		{"   ", nil, true},
	}
	for _, tt := range tests {
		got, err := SplitArgs(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SplitArgs(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestREPL_Run(t *testing.T) {
	var calls [][]string
	exec := func(_ context.Context, args []string) error {
		calls = append(calls, args)
		if args[0] == "fail" {
			return errors.New("boom")
		}
		return nil
	}

	tests := []struct {
		name      string
		input     string
		wantCalls int
		wantOut   string
	}{
		{"exit", "exit\nstatus\n", 0, ""},
		{"quit", "quit\n", 0, ""},
		{"eof", "", 0, ""},
		{"eof after command", "status", 1, ""},
		{"empty lines", "\n\n\nstatus\nexit\n", 1, ""},
		{"error is printed", "fail\nexit\n", 1, "Error: boom"},
		{"bad quoting", "login \"x\nexit\n", 0, "unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = nil
			out := &bytes.Buffer{}
			r := New(Config{Input: strings.NewReader(tt.input), Output: out, Exec: exec})
			if err := r.Run(context.Background()); err != nil {
				t.Fatalf("Run() = %v", err)
			}
			if len(calls) != tt.wantCalls {
				t.Errorf("calls = %v, want %d", calls, tt.wantCalls)
			}
			if tt.wantOut != "" && !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output %q lacks %q", out.String(), tt.wantOut)
			}
		})
	}
}

func TestREPL_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(Config{Input: strings.NewReader("status\n"), Output: &bytes.Buffer{}, Exec: func(context.Context, []string) error {
		t.Error("exec must not run after cancel")
		return nil
	}})
	if err := r.Run(ctx); err != nil {
		t.Errorf("Run() = %v", err)
	}
}

func TestREPL_Builtins(t *testing.T) {
	out := &bytes.Buffer{}
	r := New(Config{
		Input:     strings.NewReader("help admin\nstatus\nhistory\n"),
		Output:    out,
		Exec:      func(context.Context, []string) error { return nil },
		Completer: NewCompleter([]string{"admin create", "admin delete", "status"}),
	})
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	if !strings.Contains(s, "admin create") || !strings.Contains(s, "admin delete") {
		t.Errorf("help output missing commands:\n%s", s)
	}
	if !strings.Contains(s, "   2  status") {
		t.Errorf("history output missing entry:\n%s", s)
	}
}

func TestCompleter_Complete(t *testing.T) {
	c := NewCompleter([]string{"export save", "export", "employee track"})

	tests := []struct {
		prefix string
		want   []string
	}{
		{"exp", []string{"export", "export save"}},
		{"em", []string{"employee track"}},
		{"ex", []string{"exit", "export", "export save"}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		if got := c.Complete(tt.prefix); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Complete(%q) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory("", 3)
	for _, cmd := range []string{"a", "b", "b", "c", "d", "login --password x"} {
		h.Add(cmd)
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	if h.Get(0) != "d" || h.Get(2) != "b" || h.Get(3) != "" || h.Get(-1) != "" {
		t.Errorf("entries = %v", h.entries)
	}
}

func TestHistory_SaveLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".attendmesh", "history")

	h := NewHistory(file, 0)
	h.Add("start")
	h.Add("status")
	if err := h.Save(); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %o", info.Mode().Perm())
	}

	h2 := NewHistory(file, 0)
	if err := h2.Load(); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if h2.Len() != 2 || h2.Get(0) != "status" {
		t.Errorf("loaded %v", h2.entries)
	}

	if err := NewHistory(filepath.Join(t.TempDir(), "missing"), 0).Load(); err != nil {
		t.Errorf("missing file should load empty: %v", err)
	}
}
