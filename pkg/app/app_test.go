package app

import (
	"os"
	"path/filepath"
	"testing"

	cliflag "k8s.io/component-base/cli/flag"
)

type testOptions struct {
	Level string `mapstructure:"level"`
	Port  int    `mapstructure:"port"`
	Sub   struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"sub"`
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("test")
	fs.StringVar(&o.Level, "level", o.Level, "log level")
	fs.IntVar(&o.Port, "port", o.Port, "listen port")
	fs.StringVar(&o.Sub.Name, "sub.name", o.Sub.Name, "nested name")
	return fss
}

func (o *testOptions) Complete() error { return nil }

func (o *testOptions) Validate() error { return nil }

func writeConfigFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	data := []byte("level: filed\nport: 9\nsub:\n  name: filed\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func newTestApp(t *testing.T, opts *testOptions) *App {
	t.Helper()
	a := NewApp("app-test", "test app",
		WithOptions(opts),
		WithRunFunc(func() error { return nil }),
	)
	t.Cleanup(func() { configFile = "" })
	return a
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t)

	opts := &testOptions{Level: "default", Port: 1}
	a := newTestApp(t, opts)

	a.cmd.SetArgs([]string{"--level=flagged", "--sub.name=flagged", "--config", path})
	if err := a.cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if opts.Level != "flagged" {
		t.Errorf("Level = %q, want flag value %q", opts.Level, "flagged")
	}
	if opts.Sub.Name != "flagged" {
		t.Errorf("Sub.Name = %q, want flag value %q", opts.Sub.Name, "flagged")
	}
	// Flags left at their defaults are still filled from the file.
	if opts.Port != 9 {
		t.Errorf("Port = %d, want file value 9", opts.Port)
	}
}

func TestLoadConfigFileFillsUnsetFlags(t *testing.T) {
	path := writeConfigFile(t)

	opts := &testOptions{Level: "default", Port: 1}
	a := newTestApp(t, opts)

	a.cmd.SetArgs([]string{"--config", path})
	if err := a.cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if opts.Level != "filed" {
		t.Errorf("Level = %q, want file value %q", opts.Level, "filed")
	}
	if opts.Port != 9 {
		t.Errorf("Port = %d, want file value 9", opts.Port)
	}
	if opts.Sub.Name != "filed" {
		t.Errorf("Sub.Name = %q, want file value %q", opts.Sub.Name, "filed")
	}
}

func TestLoadConfigNoFileUsesFlags(t *testing.T) {
	opts := &testOptions{Level: "default", Port: 1}
	a := newTestApp(t, opts)

	a.cmd.SetArgs([]string{"--level=flagged"})
	if err := a.cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if opts.Level != "flagged" {
		t.Errorf("Level = %q, want %q", opts.Level, "flagged")
	}
	if opts.Port != 1 {
		t.Errorf("Port = %d, want default 1", opts.Port)
	}
}
