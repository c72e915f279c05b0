package main

import (
	"bytes"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "sitescan" {
			t.Errorf("expected use 'sitescan', got %q", cmd.Use)
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has verbose count flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
		if flag.DefValue != "0" {
			t.Errorf("expected default '0', got %q", flag.DefValue)
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{
			"scan":             false,
			"compare":          false,
			"init":             false,
			"import-bookmarks": false,
			"version":          false,
		}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Name()]; ok {
				want[sub.Name()] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})
}

func TestGetVerbosity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "no flag", args: []string{"version"}, want: 0},
		{name: "single flag", args: []string{"-v", "version"}, want: 1},
		{name: "repeated flag", args: []string{"version", "-vv"}, want: 2},
		{name: "long flag", args: []string{"--verbose", "--verbose", "--verbose", "version"}, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := NewRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetArgs(tt.args)
			executed, err := root.ExecuteC()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := getVerbosity(executed); got != tt.want {
				t.Errorf("getVerbosity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetVerbosityStandalone(t *testing.T) {
	t.Parallel()

	// A subcommand built without the root has no verbose flag.
	if got := getVerbosity(NewScanCmd()); got != 0 {
		t.Errorf("getVerbosity() = %d, want 0", got)
	}
}
