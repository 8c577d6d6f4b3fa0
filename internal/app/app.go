package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/handlers"

	"github.com/tstirrat/newthreat/combatlog"
	servernet "github.com/tstirrat/newthreat/internal/net"
	"github.com/tstirrat/newthreat/internal/net/ws"
	"github.com/tstirrat/newthreat/internal/sim"
	"github.com/tstirrat/newthreat/internal/telemetry"
	"github.com/tstirrat/newthreat/logging"
	loggingSinks "github.com/tstirrat/newthreat/logging/sinks"
	"github.com/tstirrat/newthreat/rulesets"
	"github.com/tstirrat/newthreat/threat"
)

var (
	errNothingToDo   = errors.New("no input to replay and serving disabled")
	errUnknownFormat = errors.New("unknown input format")
	errUnknownSink   = errors.New("unknown log sink")
)

// Run replays the configured input and, when enabled, serves the live feed
// until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Input == "" && !cfg.Serve {
		return errNothingToDo
	}
	stdout, stderr := cfg.Stdout, cfg.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.NewLogger(stderr, cfg.LogLevel)
	}

	ruleset, err := loadRuleset(cfg.Ruleset)
	if err != nil {
		return err
	}
	telemetryLogger.Printf("using ruleset %s", ruleset.Name)

	router, closeSinks, err := newRouter(cfg.Logging, stderr, telemetryLogger)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
		if stats := router.Stats(); stats.DroppedTotal > 0 {
			telemetryLogger.Printf("logging router dropped %d of %d events: %v", stats.DroppedTotal, stats.EventsTotal+stats.DroppedTotal, stats.DroppedByCategory)
		}
		closeSinks()
	}()

	metrics := telemetry.NewPrometheus(cfg.MetricsNamespace)

	var hub *ws.Hub
	if cfg.Serve {
		hub = ws.NewHub(ws.HubConfig{History: cfg.StreamHistory, Logger: telemetryLogger, Metrics: metrics})
		defer hub.Close()
	}

	if cfg.Input != "" {
		summary, err := replayInput(ctx, cfg, stdout, ruleset, router, metrics, hub)
		if err != nil {
			return err
		}
		telemetryLogger.Printf("replayed %d events (%d changes, %d unmodeled) trace=%s",
			summary.Events, summary.Changes, summary.Unmodeled, summary.TraceID)
	}

	if !cfg.Serve {
		return nil
	}

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		Ruleset:        ruleset,
		Publisher:      router,
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
		Logger:         telemetryLogger,
	})
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(handlers.LoggingHandler(stderr, handler))
	return serve(ctx, cfg, handler, telemetryLogger)
}

func serve(ctx context.Context, cfg Config, handler http.Handler, logger telemetry.Logger) error {
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	logger.Printf("server listening on %s", srv.Addr)

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func replayInput(ctx context.Context, cfg Config, stdout io.Writer, ruleset *threat.Config, publisher logging.Publisher, metrics telemetry.Metrics, hub *ws.Hub) (sim.Summary, error) {
	fight, err := loadFight(cfg)
	if err != nil {
		return sim.Summary{}, err
	}

	out, closeOut, err := openOutput(cfg.Output, stdout)
	if err != nil {
		return sim.Summary{}, err
	}
	defer closeOut()
	writer := combatlog.NewLineWriter(out)

	replay := sim.NewReplay(ruleset, fight, sim.Options{Publisher: publisher, Metrics: metrics})
	if hub != nil {
		if err := hub.Reset(replay.TraceID()); err != nil {
			return sim.Summary{}, err
		}
	}

	summary, err := replay.Run(ctx, fight.Events, func(event sim.AugmentedEvent) error {
		if err := writer.Write(event); err != nil {
			return err
		}
		if hub != nil {
			return hub.PublishEvent(replay.TraceID(), event)
		}
		return nil
	})
	if ferr := writer.Flush(); ferr != nil && err == nil {
		err = fmt.Errorf("flush output: %w", ferr)
	}
	if err != nil {
		return summary, err
	}
	if hub != nil {
		if err := hub.PublishSummary(summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// loadRuleset resolves a built-in ruleset name or a YAML file path.
func loadRuleset(name string) (*threat.Config, error) {
	if cfg, ok := rulesets.ByName(name); ok {
		return cfg, nil
	}
	cfg, err := rulesets.LoadFile(name)
	if err != nil {
		return nil, fmt.Errorf("load ruleset %q: %w", name, err)
	}
	return cfg, nil
}

func loadFight(cfg Config) (combatlog.Fight, error) {
	in, closeIn, err := openInput(cfg.Input, cfg.Stdin)
	if err != nil {
		return combatlog.Fight{}, err
	}
	defer closeIn()

	switch format := resolveFormat(cfg.Format, cfg.Input); format {
	case FormatFight:
		fight, err := combatlog.DecodeFight(in)
		if err != nil {
			return combatlog.Fight{}, fmt.Errorf("read %s: %w", cfg.Input, err)
		}
		return fight, nil
	case FormatNDJSON:
		var fight combatlog.Fight
		if cfg.Actors != "" {
			header, err := os.Open(cfg.Actors)
			if err != nil {
				return combatlog.Fight{}, fmt.Errorf("open actors: %w", err)
			}
			defer header.Close()
			if fight, err = combatlog.DecodeFight(header); err != nil {
				return combatlog.Fight{}, fmt.Errorf("read %s: %w", cfg.Actors, err)
			}
		}
		events, err := combatlog.ReadEvents(in)
		if err != nil {
			return combatlog.Fight{}, fmt.Errorf("read %s: %w", cfg.Input, err)
		}
		fight.Events = events
		return fight, nil
	default:
		return combatlog.Fight{}, fmt.Errorf("%q: %w", format, errUnknownFormat)
	}
}

func resolveFormat(format, input string) string {
	if format != "" && format != FormatAuto {
		return format
	}
	switch strings.ToLower(filepath.Ext(input)) {
	case ".ndjson", ".jsonl":
		return FormatNDJSON
	default:
		return FormatFight
	}
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		return stdin, func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return file, func() { file.Close() }, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return stdout, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return file, func() { file.Close() }, nil
}

// newRouter builds the structured log router. Console output goes to
// stderr so stdout stays a clean NDJSON stream.
func newRouter(cfg logging.Config, stderr io.Writer, fallback logging.Printer) (*logging.Router, func(), error) {
	var named []logging.NamedSink
	var files []*os.File
	closeFiles := func() {
		for _, file := range files {
			file.Close()
		}
	}

	for _, name := range cfg.EnabledSinks {
		switch name {
		case logging.SinkConsole:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsole(stderr, cfg.Console)})
		case logging.SinkJSON:
			var w io.Writer = stderr
			if cfg.JSON.FilePath != "" {
				file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					closeFiles()
					return nil, nil, fmt.Errorf("open json log: %w", err)
				}
				files = append(files, file)
				w = file
			}
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(w, cfg.JSON.FlushInterval)})
		case logging.SinkMemory:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewMemory()})
		default:
			closeFiles()
			return nil, nil, fmt.Errorf("%q: %w", name, errUnknownSink)
		}
	}

	router, err := logging.NewRouter(nil, cfg, fallback, named)
	if err != nil {
		closeFiles()
		return nil, nil, err
	}
	return router, closeFiles, nil
}
