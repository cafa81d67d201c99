package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologAdapterFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithWriter(&buf, "debug")

	l.Info("frame aligned",
		Int("frame", 3),
		Float64("dy", 1.5),
		String("method", "fft"),
		Bool("cropped", true),
		Duration("elapsed", 2*time.Millisecond),
		Err(errors.New("boom")),
		Any("window", []int{1, 2}),
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "frame aligned", entry["message"])
	assert.Equal(t, 3.0, entry["frame"])
	assert.Equal(t, 1.5, entry["dy"])
	assert.Equal(t, "fft", entry["method"])
	assert.Equal(t, true, entry["cropped"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "elapsed")
	assert.Contains(t, entry, "time")
}

func TestZerologAdapterLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithWriter(&buf, "warn")

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NewNoopLogger()
	l.Debug("x")
	l.Info("x", Int("k", 1))
	l.Warn("x")
	l.Error("x")
}
