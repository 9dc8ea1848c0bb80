package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

const (
	AppName    = "odio-nowplaying"
	AppVersion = "0.1.0"
)

const (
	defaultTimeout         = 5 * time.Second
	defaultPollInterval    = 1 * time.Second
	defaultPollConcurrency = 4
	defaultListen          = "127.0.0.1:8018"
	defaultKeepAlive       = 30 * time.Second
	minKeepAlive           = 10 * time.Second
	maxKeepAlive           = 120 * time.Second
)

type Config struct {
	Api           *ApiConfig
	MPRIS         *MPRISConfig
	Systemd       *SystemdConfig
	LogLevel      logger.Level
	PackageLevels map[string]logger.Level
	Journal       bool
}

type ApiConfig struct {
	Enabled      bool
	Listens      []string
	SSEKeepAlive time.Duration
}

type MPRISConfig struct {
	Timeout         time.Duration
	PollInterval    time.Duration
	PollConcurrency int
}

type SystemdConfig struct {
	Notify bool
}

// parseLogLevel converts a string to a logger.Level
func parseLogLevel(levelStr string) logger.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return logger.DEBUG
	case "INFO":
		return logger.INFO
	case "WARN":
		return logger.WARN
	case "ERROR":
		return logger.ERROR
	case "FATAL":
		return logger.FATAL
	default:
		return logger.WARN // default
	}
}

func parsePackageLevels(raw map[string]string) map[string]logger.Level {
	levels := make(map[string]logger.Level, len(raw))
	for component, level := range raw {
		levels[component] = parseLogLevel(level)
	}
	return levels
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen", []string{defaultListen})
	v.SetDefault("api.sse_keepalive", defaultKeepAlive.String())

	v.SetDefault("mpris.timeout", defaultTimeout.String())
	v.SetDefault("mpris.poll_interval", defaultPollInterval.String())
	v.SetDefault("mpris.poll_concurrency", defaultPollConcurrency)

	v.SetDefault("systemd.notify", true)

	v.SetDefault("LogLevel", "WARN")
	v.SetDefault("log.levels", map[string]string{})
	v.SetDefault("log.journal", false)
}

// load builds a Config from the current viper state.
func load(v *viper.Viper) (*Config, error) {
	listens := v.GetStringSlice("api.listen")
	if len(listens) == 0 {
		listens = []string{defaultListen}
	}
	for _, addr := range listens {
		if !strings.Contains(addr, ":") {
			return nil, fmt.Errorf("invalid listen address: %q", addr)
		}
	}

	timeout := v.GetDuration("mpris.timeout")
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pollInterval := v.GetDuration("mpris.poll_interval")
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	pollConcurrency := v.GetInt("mpris.poll_concurrency")
	if pollConcurrency < 1 {
		pollConcurrency = 1
	}

	return &Config{
		Api: &ApiConfig{
			Enabled:      v.GetBool("api.enabled"),
			Listens:      listens,
			SSEKeepAlive: clampDuration(v.GetDuration("api.sse_keepalive"), minKeepAlive, maxKeepAlive),
		},
		MPRIS: &MPRISConfig{
			Timeout:         timeout,
			PollInterval:    pollInterval,
			PollConcurrency: pollConcurrency,
		},
		Systemd: &SystemdConfig{
			Notify: v.GetBool("systemd.notify"),
		},
		LogLevel:      parseLogLevel(v.GetString("LogLevel")),
		PackageLevels: parsePackageLevels(v.GetStringMapString("log.levels")),
		Journal:       v.GetBool("log.journal"),
	}, nil
}

func New() (*Config, error) {
	v := viper.GetViper()
	setDefaults(v)

	v.SetConfigName("config")                       // name of config file (without extension)
	v.SetConfigType("yaml")                         // config file format
	v.AddConfigPath(filepath.Join("/etc", AppName)) // Global configuration path
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", AppName)) // User config path
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, continue with defaults if not found
		if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound {
			logger.Warn("[config] failed to read config: %v", err)
		}
	}

	return load(v)
}

// Watch reloads the configuration file when it changes and hands the new
// Config to apply. Invalid reloads are logged and skipped.
// It is a no-op when no configuration file was found.
func Watch(apply func(*Config)) {
	v := viper.GetViper()
	if v.ConfigFileUsed() == "" {
		logger.Debug("[config] no config file in use, live reload disabled")
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := load(v)
		if err != nil {
			logger.Warn("[config] ignoring invalid reload of %s: %v", e.Name, err)
			return
		}
		logger.Info("[config] reloaded %s", e.Name)
		apply(cfg)
	})
	v.WatchConfig()
}
