package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// HomeEnv names the variable that pins every tavla file under one directory.
const HomeEnv = "TAVLA_HOME"

const (
	defaultAppName = "tavla"
	devSuffix      = "-dev"
	configFileName = "config.toml"
)

var errNoBaseDir = errors.New("no base directory")

// Paths are the on-disk locations one tavla instance uses. The server store and
// the client outbox are separate files so a client never opens the server's DB.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	OutboxPath string
}

// Options select which instance to resolve paths for.
type Options struct {
	AppName string
	DevMode bool
	// Home overrides platform lookup; config and data both live below it.
	Home string
}

// instanceName is the directory and file stem for opts, e.g. "tavla-dev".
func (o Options) instanceName() string {
	name := strings.TrimSpace(o.AppName)
	if name == "" {
		name = defaultAppName
	}
	if o.DevMode && !strings.HasSuffix(name, devSuffix) {
		name += devSuffix
	}
	return name
}

// DefaultPaths resolves paths for the production instance.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{})
}

// DefaultPathsWithOptions resolves paths from the running platform. An empty
// opts.Home falls back to $TAVLA_HOME.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	if strings.TrimSpace(opts.Home) == "" {
		opts.Home = os.Getenv(HomeEnv)
	}
	if home := strings.TrimSpace(opts.Home); home != "" {
		return underHome(home, opts.instanceName()), nil
	}
	base, err := systemBaseDirs(runtime.GOOS, os.Getenv)
	if err != nil {
		return Paths{}, err
	}
	return base.paths(opts.instanceName())
}

// underHome lays out one instance inside a single directory.
func underHome(home, name string) Paths {
	root := filepath.Join(filepath.Clean(home), name)
	return layout(filepath.Join(root, configFileName), filepath.Join(root, "data"), name)
}

// baseDirs are the per-user roots config and data directories hang off.
type baseDirs struct {
	config string
	data   string
}

// systemBaseDirs picks the config and data roots for goos. getenv is consulted
// for XDG on linux and APPDATA/LOCALAPPDATA on windows; macOS and anything else
// use os.UserConfigDir for both.
func systemBaseDirs(goos string, getenv func(string) string) (baseDirs, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return baseDirs{}, fmt.Errorf("user config dir: %w", err)
	}
	dirs := baseDirs{config: configDir, data: configDir}
	if goos == "linux" {
		home, err := os.UserHomeDir()
		if err != nil {
			return baseDirs{}, fmt.Errorf("user home dir: %w", err)
		}
		dirs.data = filepath.Join(home, ".local", "share")
	}
	return dirs.withEnv(goos, getenv), nil
}

// withEnv applies the platform's directory variables on top of d.
func (d baseDirs) withEnv(goos string, getenv func(string) string) baseDirs {
	if getenv == nil {
		return d
	}
	pick := func(cur, key string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return cur
	}
	switch goos {
	case "linux":
		d.config = pick(d.config, "XDG_CONFIG_HOME")
		d.data = pick(d.data, "XDG_DATA_HOME")
	case "windows":
		d.config = pick(d.config, "APPDATA")
		d.data = pick(d.data, "LOCALAPPDATA")
	}
	return d
}

func (d baseDirs) paths(name string) (Paths, error) {
	if d.config == "" || d.data == "" {
		return Paths{}, errNoBaseDir
	}
	if strings.TrimSpace(name) == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}
	return layout(filepath.Join(d.config, name, configFileName), filepath.Join(d.data, name), name), nil
}

func layout(configPath, dataDir, name string) Paths {
	return Paths{
		ConfigPath: configPath,
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, name+".db"),
		OutboxPath: filepath.Join(dataDir, name+"-outbox.db"),
	}
}
