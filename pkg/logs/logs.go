// Package logs builds the process-wide slog logger. Records go to stdout, a
// rotating file and Loki as configured, and pick up the request id and caller
// from the context they are logged with.
package logs

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Alijeyrad/clinic_backend/config"
)

// New returns the logger and a stop func that flushes buffered Loki batches.
func New(cfg *config.Config) (*slog.Logger, func()) {
	lc := cfg.Logging
	level := parseLevel(lc.Level)
	stop := func() {}

	handlers := localHandlers(cfg, level)
	if lc.Output.Loki.Enabled {
		h, closeLoki, err := newLokiHandler(cfg, level)
		if err != nil {
			// local sinks still work; report and carry on without Loki
			slog.Error("loki handler disabled", "error", err)
		} else {
			handlers = append(handlers, h)
			stop = closeLoki
		}
	}

	return slog.New(&contextHandler{next: fanOut(handlers, level)}).With(
		slog.String("service", cfg.Observability.ServiceName),
		slog.String("version", cfg.Observability.ServiceVersion),
		slog.String("env", cfg.Server.Environment),
	), stop
}

// localHandlers writes to stdout and the rotating file through one encoder.
// Stdout stays on when no other sink is configured.
func localHandlers(cfg *config.Config, level slog.Level) []slog.Handler {
	out := cfg.Logging.Output
	var writers []io.Writer
	if out.Stdout || (!out.File.Enabled && !out.Loki.Enabled) {
		writers = append(writers, os.Stdout)
	}
	if out.File.Enabled {
		writers = append(writers, &lumberjack.Logger{
			Filename:   out.File.Path,
			MaxSize:    out.File.MaxSizeMB,
			MaxBackups: out.File.MaxBackups,
			MaxAge:     out.File.MaxAgeDays,
			Compress:   out.File.Compress,
		})
	}
	if len(writers) == 0 {
		return nil
	}
	return []slog.Handler{encoder(io.MultiWriter(writers...), cfg, level)}
}

// encoder is text in development unless json is asked for, json otherwise.
func encoder(w io.Writer, cfg *config.Config, level slog.Level) slog.Handler {
	dev := !cfg.Server.IsProduction()
	opts := &slog.HandlerOptions{Level: level, AddSource: dev}
	if dev && !strings.EqualFold(cfg.Logging.Format, "json") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func fanOut(handlers []slog.Handler, level slog.Level) slog.Handler {
	switch len(handlers) {
	case 0:
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	case 1:
		return handlers[0]
	}
	return &multiHandler{handlers: handlers}
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}
