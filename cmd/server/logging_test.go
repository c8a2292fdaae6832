package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
)

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	_, err = newLogger(&buf, "loud")
	require.Error(t, err)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "info")
	require.NoError(t, err)

	sink := logSink(logger)
	sink.OnStatus(true, lib.NewStatusEvent(true, "Launching...").Message)
	sink.OnStatus(false, nil)

	out := buf.String()
	require.Contains(t, out, "Launching...")
	require.Contains(t, out, "running=false")
}
