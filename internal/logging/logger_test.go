package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: "WARN", want: zerolog.WarnLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "verbose", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWithOutput_FiltersByLevelAndTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("warn", &buf).WithComponent("pricesync")

	logger.Info().Msg("hidden")
	logger.Warn().Str("fund_id", "F1").Msg("skipped")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "pricesync", entry["component"])
	assert.Equal(t, "F1", entry["fund_id"])
	assert.Equal(t, "skipped", entry["message"])
}

func TestOrSilent(t *testing.T) {
	assert.NotNil(t, OrSilent(nil))
	l := NewSilent()
	assert.Same(t, l, OrSilent(l))
}
