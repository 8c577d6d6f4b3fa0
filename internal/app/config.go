package app

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tstirrat/newthreat/internal/net/ws"
	"github.com/tstirrat/newthreat/internal/telemetry"
	"github.com/tstirrat/newthreat/logging"
	"github.com/tstirrat/newthreat/rulesets"
)

// Input formats.
const (
	FormatAuto   = "auto"
	FormatFight  = "fight"
	FormatNDJSON = "ndjson"
)

const envPrefix = "THREATSIM_"

type Config struct {
	Logger   telemetry.Logger
	LogLevel string

	// Input is a fight document or an NDJSON event stream; "-" reads
	// stdin. Empty skips the replay.
	Input  string
	Format string
	// Actors supplies the fight header (actors, combatants, encounter) for
	// NDJSON input.
	Actors string
	// Output receives one augmented event per line; "-" writes stdout.
	Output string

	// Ruleset is a built-in name or a YAML ruleset path.
	Ruleset string

	Logging logging.Config

	Serve            bool
	Addr             string
	StreamHistory    int
	MetricsNamespace string
	ShutdownTimeout  time.Duration

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func DefaultConfig() Config {
	return Config{
		LogLevel:         "info",
		Format:           FormatAuto,
		Output:           "-",
		Ruleset:          rulesets.NameAnniversary,
		Logging:          logging.DefaultConfig(),
		Addr:             ":8080",
		StreamHistory:    ws.DefaultHistory,
		MetricsNamespace: "threatsim",
		ShutdownTimeout:  5 * time.Second,
	}
}

// ApplyEnv overrides cfg from THREATSIM_* variables. Invalid values are
// reported through warn and leave the field untouched.
func ApplyEnv(cfg Config, getenv func(string) string, warn func(format string, args ...any)) Config {
	lookup := func(name string) (string, bool) {
		raw := getenv(envPrefix + name)
		return raw, raw != ""
	}
	invalid := func(name, raw string, err error) {
		if warn != nil {
			warn("invalid %s%s=%q: %v", envPrefix, name, raw, err)
		}
	}

	if raw, ok := lookup("RULESET"); ok {
		cfg.Ruleset = raw
	}
	if raw, ok := lookup("FORMAT"); ok {
		cfg.Format = raw
	}
	if raw, ok := lookup("ADDR"); ok {
		cfg.Addr = raw
	}
	if raw, ok := lookup("LOG_LEVEL"); ok {
		cfg.LogLevel = raw
	}
	if raw, ok := lookup("LOG_SINKS"); ok {
		cfg.Logging.EnabledSinks = splitList(raw)
	}
	if raw, ok := lookup("LOG_FILE"); ok {
		cfg.Logging.JSON.FilePath = raw
	}
	if raw, ok := lookup("LOG_SEVERITY"); ok {
		if severity, known := logging.ParseSeverity(raw); known {
			cfg.Logging.MinimumSeverity = severity
		} else {
			invalid("LOG_SEVERITY", raw, fmt.Errorf("unknown severity"))
		}
	}
	if raw, ok := lookup("SERVE"); ok {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Serve = value
		} else {
			invalid("SERVE", raw, err)
		}
	}
	if raw, ok := lookup("STREAM_HISTORY"); ok {
		if value, err := strconv.Atoi(raw); err == nil {
			cfg.StreamHistory = value
		} else {
			invalid("STREAM_HISTORY", raw, err)
		}
	}
	if raw, ok := lookup("LOG_BUFFER"); ok {
		if value, err := strconv.Atoi(raw); err == nil {
			cfg.Logging.BufferSize = value
		} else {
			invalid("LOG_BUFFER", raw, err)
		}
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
