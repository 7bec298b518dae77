package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/r0lh/dllinjector/injector"
)

const (
	EnvPrefix = "DLLINJECTOR"

	defaultLogLevel      = "trace"
	defaultWatchDebounce = 500 * time.Millisecond
)

// Config holds the settings of one invocation.
type Config struct {
	PID           bool
	Copy          bool
	Mode          injector.Mode
	LogLevel      zerolog.Level
	Watch         bool
	WatchDebounce time.Duration
}

// RegisterFlags adds every configurable flag to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	mode := injector.ModeInject
	fs.BoolP("pid", "p", false, "Interpret the process argument as PID")
	fs.BoolP("copy", "c", false, "Create a copy of the DLL before injecting to allow for easier overwriting")
	fs.VarP(&mode, "mode", "m", "What mode to run the program in (inject, eject, reload)")
	fs.BoolP("watch", "w", false, "Reload the DLL whenever the file changes")
	fs.Duration("watch-debounce", defaultWatchDebounce, "Quiet period after a change before reloading")
	fs.String("log-level", defaultLogLevel, "Log level (trace, debug, info, warn, error)")
	fs.String("config", "", "Optional config file")
}

// Load resolves the configuration with flags taking precedence over
// DLLINJECTOR_* environment variables, then the config file, then defaults.
func Load(v *viper.Viper, fs *pflag.FlagSet) (Config, error) {
	var cfg Config

	if err := v.BindPFlags(fs); err != nil {
		return cfg, errors.Wrap(err, "bind flags")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, errors.Wrapf(err, "load config %s", path)
		}
	}

	if err := cfg.Mode.Set(v.GetString("mode")); err != nil {
		return cfg, err
	}
	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return cfg, errors.Wrap(err, "parse log-level")
	}
	cfg.LogLevel = level

	cfg.WatchDebounce = v.GetDuration("watch-debounce")
	if cfg.WatchDebounce <= 0 {
		return cfg, errors.New("watch-debounce must be > 0")
	}
	cfg.PID = v.GetBool("pid")
	cfg.Copy = v.GetBool("copy")
	cfg.Watch = v.GetBool("watch")
	return cfg, nil
}
