package platform

import (
	"errors"
	"path/filepath"
	"testing"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

// TestBaseDirsWithEnv verifies which variables each platform honors.
func TestBaseDirsWithEnv(t *testing.T) {
	cases := []struct {
		name       string
		goos       string
		env        map[string]string
		wantConfig string
		wantData   string
	}{
		{
			name:       "linux xdg",
			goos:       "linux",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			wantConfig: "/xdg/config",
			wantData:   "/xdg/data",
		},
		{
			name:       "linux blank xdg",
			goos:       "linux",
			env:        map[string]string{"XDG_CONFIG_HOME": "  "},
			wantConfig: "/base/config",
			wantData:   "/base/data",
		},
		{
			name:       "windows appdata",
			goos:       "windows",
			env:        map[string]string{"APPDATA": `C:\Roaming`, "LOCALAPPDATA": `C:\Local`},
			wantConfig: `C:\Roaming`,
			wantData:   `C:\Local`,
		},
		{
			name:       "darwin ignores xdg",
			goos:       "darwin",
			env:        map[string]string{"XDG_CONFIG_HOME": "/ignored", "XDG_DATA_HOME": "/ignored"},
			wantConfig: "/base/config",
			wantData:   "/base/data",
		},
		{
			name:       "unknown platform",
			goos:       "plan9",
			env:        map[string]string{"APPDATA": "/ignored"},
			wantConfig: "/base/config",
			wantData:   "/base/data",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := baseDirs{config: "/base/config", data: "/base/data"}.withEnv(tc.goos, envOf(tc.env))
			if got.config != tc.wantConfig || got.data != tc.wantData {
				t.Fatalf("withEnv() = %+v, want config %q data %q", got, tc.wantConfig, tc.wantData)
			}
		})
	}
}

func TestBaseDirsPathsLayout(t *testing.T) {
	p, err := baseDirs{config: "/cfg", data: "/data"}.paths("tavla")
	if err != nil {
		t.Fatalf("paths() error = %v", err)
	}
	want := Paths{
		ConfigPath: filepath.Join("/cfg", "tavla", "config.toml"),
		DataDir:    filepath.Join("/data", "tavla"),
		DBPath:     filepath.Join("/data", "tavla", "tavla.db"),
		OutboxPath: filepath.Join("/data", "tavla", "tavla-outbox.db"),
	}
	if p != want {
		t.Fatalf("paths() = %+v, want %+v", p, want)
	}

	if _, err := (baseDirs{data: "/data"}).paths("tavla"); !errors.Is(err, errNoBaseDir) {
		t.Fatalf("paths(no config dir) error = %v", err)
	}
	if _, err := (baseDirs{config: "/cfg", data: "/data"}).paths(" "); err == nil {
		t.Fatal("expected error for empty app name")
	}
}

func TestInstanceName(t *testing.T) {
	cases := []struct {
		opts Options
		want string
	}{
		{Options{}, "tavla"},
		{Options{DevMode: true}, "tavla-dev"},
		{Options{AppName: " board "}, "board"},
		{Options{AppName: "board-dev", DevMode: true}, "board-dev"},
	}
	for _, tc := range cases {
		if got := tc.opts.instanceName(); got != tc.want {
			t.Fatalf("instanceName(%+v) = %q, want %q", tc.opts, got, tc.want)
		}
	}
}

func TestDefaultPathsSmoke(t *testing.T) {
	t.Setenv(HomeEnv, "")
	p, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}
	if p.ConfigPath == "" || p.DBPath == "" || p.DataDir == "" || p.OutboxPath == "" {
		t.Fatalf("expected non-empty paths, got %#v", p)
	}
}

// TestDefaultPathsWithOptionsDevMode verifies the -dev suffix on every path.
func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	t.Setenv(HomeEnv, "")
	p, err := DefaultPathsWithOptions(Options{AppName: "tavla", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "tavla-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "tavla-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
	if filepath.Base(p.OutboxPath) != "tavla-dev-outbox.db" {
		t.Fatalf("expected dev outbox name, got %q", p.OutboxPath)
	}
}

func TestDefaultPathsUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	p, err := DefaultPathsWithOptions(Options{DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	root := filepath.Join(home, "tavla-dev")
	if p.ConfigPath != filepath.Join(root, "config.toml") {
		t.Fatalf("config path = %q", p.ConfigPath)
	}
	if p.DataDir != filepath.Join(root, "data") || p.OutboxPath != filepath.Join(root, "data", "tavla-dev-outbox.db") {
		t.Fatalf("data paths = %+v", p)
	}

	explicit := filepath.Join(home, "other")
	p, err = DefaultPathsWithOptions(Options{Home: explicit})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions(home) error = %v", err)
	}
	if p.DBPath != filepath.Join(explicit, "tavla", "data", "tavla.db") {
		t.Fatalf("explicit home db path = %q", p.DBPath)
	}
}
