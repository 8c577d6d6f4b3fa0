package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tstirrat/newthreat/internal/app"
)

func main() {
	cfg := app.ApplyEnv(app.DefaultConfig(), os.Getenv, log.Printf)

	flag.StringVar(&cfg.Input, "in", cfg.Input, "fight JSON or NDJSON event file to replay (- for stdin)")
	flag.StringVar(&cfg.Format, "format", cfg.Format, "input format: auto, fight or ndjson")
	flag.StringVar(&cfg.Actors, "actors", cfg.Actors, "fight JSON supplying actors and combatants for NDJSON input")
	flag.StringVar(&cfg.Output, "out", cfg.Output, "augmented NDJSON output path (- for stdout)")
	flag.StringVar(&cfg.Ruleset, "ruleset", cfg.Ruleset, "built-in ruleset (anniversary, sod) or YAML ruleset path")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "process log level")
	flag.BoolVar(&cfg.Serve, "serve", cfg.Serve, "serve the live feed, /replay and /metrics")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address when serving")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "threatsim: %v\n", err)
		os.Exit(1)
	}
}
