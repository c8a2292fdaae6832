package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
)

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           lvl,
		Prefix:          "oscamd",
	})
	return slog.New(handler), nil
}

// logSink writes every status event to logger.
func logSink(logger *slog.Logger) lib.Sink {
	return lib.SinkFunc(func(running bool, message *string) {
		ev := lib.StatusEvent{Running: running, Message: message}
		logger.Info(ev.Text(), "running", running)
	})
}
