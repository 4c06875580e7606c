// Package config loads the project configuration. The config file doubles
// as the project root marker: every state path resolves relative to its
// directory, and a missing file aborts before any subcommand runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/fuliji/spiderctl/internal/logger"
	"github.com/fuliji/spiderctl/internal/supervisor"
	"github.com/fuliji/spiderctl/internal/worker"
)

// DefaultFile is the marker looked up in the invocation root.
const DefaultFile = "spiderctl.toml"

// ErrWrongDirectory means the invocation root does not contain the project
// marker file.
var ErrWrongDirectory = errors.New("not a spiderctl project (spiderctl.toml not found)")

// FileConfig is the raw TOML structure.
type FileConfig struct {
	PIDDir        string        `toml:"pid_dir" mapstructure:"pid_dir"`
	LogDir        string        `toml:"log_dir" mapstructure:"log_dir"`
	GraceInterval time.Duration `toml:"grace_interval" mapstructure:"grace_interval"`
	StopWait      time.Duration `toml:"stop_wait" mapstructure:"stop_wait"`
	PollInterval  time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	KillWait      time.Duration `toml:"kill_wait" mapstructure:"kill_wait"`
	RestartPause  time.Duration `toml:"restart_pause" mapstructure:"restart_pause"`
	LogRetention  time.Duration `toml:"log_retention" mapstructure:"log_retention"`
	HistoryDSN    string        `toml:"history_dsn" mapstructure:"history_dsn"`
	Listen        string        `toml:"listen" mapstructure:"listen"`
	Env           []string      `toml:"env" mapstructure:"env"`
	Log           logger.Config `toml:"log" mapstructure:"log"`
	Workers       []worker.Spec `toml:"workers" mapstructure:"workers"`
}

// Config is the resolved configuration handed to the rest of the program.
type Config struct {
	Root       string // directory containing the config file
	PIDDir     string
	LogDir     string
	Options    supervisor.Options
	HistoryDSN string
	Listen     string
	Env        []string
	Log        logger.Config
	Registry   *worker.Registry
}

// Load reads path (or DefaultFile in the current directory when path is
// empty) and resolves every relative path against the config directory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrWrongDirectory, path)
		}
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	specs := fc.Workers
	if len(specs) == 0 {
		specs = worker.Defaults()
	}
	reg, err := worker.NewRegistry(specs)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg := &Config{
		Root:   root,
		PIDDir: resolve(root, orDefault(fc.PIDDir, "pids")),
		LogDir: resolve(root, orDefault(fc.LogDir, "logs")),
		Options: supervisor.Options{
			GraceInterval: fc.GraceInterval,
			StopWait:      fc.StopWait,
			PollInterval:  fc.PollInterval,
			KillWait:      fc.KillWait,
			RestartPause:  fc.RestartPause,
			LogRetention:  fc.LogRetention,
		},
		HistoryDSN: fc.HistoryDSN,
		Listen:     orDefault(fc.Listen, "127.0.0.1:8571"),
		Env:        fc.Env,
		Log:        fc.Log,
		Registry:   reg,
	}
	if cfg.Log.File != "" {
		cfg.Log.File = resolve(root, cfg.Log.File)
	}
	if cfg.HistoryDSN != "" {
		cfg.HistoryDSN = resolveDSN(root, cfg.HistoryDSN)
	}
	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// resolveDSN anchors bare sqlite paths to the project root; network DSNs
// pass through untouched.
func resolveDSN(root, dsn string) string {
	const prefix = "sqlite://"
	switch {
	case len(dsn) > len(prefix) && dsn[:len(prefix)] == prefix:
		return prefix + resolve(root, dsn[len(prefix):])
	case !containsScheme(dsn) && dsn != ":memory:":
		return resolve(root, dsn)
	}
	return dsn
}

func containsScheme(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		if s[i] == ':' && s[i+1] == '/' && s[i+2] == '/' {
			return true
		}
	}
	return false
}
