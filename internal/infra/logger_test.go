package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		env, level string
		want       zerolog.Level
	}{
		{"production", "", zerolog.InfoLevel},
		{"development", "", zerolog.DebugLevel},
		{"production", "WARN", zerolog.WarnLevel},
		{"production", "nonsense", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		if got := newLogger(&buf, tc.env, tc.level).GetLevel(); got != tc.want {
			t.Fatalf("env=%s level=%q: got %v want %v", tc.env, tc.level, got, tc.want)
		}
	}
}

func TestNewLoggerWritesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "")
	logger.Info().Str("task_id", "t1").Msg("task transition")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["service"] != "ipstudio" || line["env"] != "production" || line["task_id"] != "t1" {
		t.Fatalf("unexpected fields: %v", line)
	}
}
