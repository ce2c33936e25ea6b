// Package logging configures the process-wide zerolog logger once, with
// environment overrides, the way the teacher lineage configured its
// vendored smplog wrapper.
package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "INDIDRV_LOG_LEVEL"
	EnvLogTimestamp = "INDIDRV_LOG_TIMESTAMP"
	EnvLogNoColor   = "INDIDRV_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

type config struct {
	level     zerolog.Level
	timestamp bool
	noColor   bool
}

var configureOnce sync.Once

// ConfigureRuntime configures the global logger for a driver process.
func ConfigureRuntime(driverName string) {
	Configure(ProfileRuntime, driverName)
}

// ConfigureTests configures the global logger for test binaries.
func ConfigureTests() {
	Configure(ProfileTest, "test")
}

func Configure(profile Profile, driverName string) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)

		noColor := cfg.noColor || !isatty.IsTerminal(os.Stderr.Fd())
		out := colorable.NewColorable(os.Stderr)
		writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: noColor}

		base := zerolog.New(writer).Level(cfg.level).With().Str("driver", driverName)
		if cfg.timestamp {
			base = base.Timestamp()
		}
		log.Logger = base.Logger()
	})
}

func defaultConfig(profile Profile) config {
	switch profile {
	case ProfileTest:
		return config{level: zerolog.DebugLevel, timestamp: false}
	default:
		return config{level: zerolog.InfoLevel, timestamp: true}
	}
}

func applyEnvOverrides(cfg *config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.noColor = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
