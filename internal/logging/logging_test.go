package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Dash/internal/config"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestSetLevel(t *testing.T) {
	restoreLogger(t)
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		SetLevel(tt.in)
		if got := zerolog.GlobalLevel(); got != tt.want {
			t.Fatalf("SetLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSetupWritesRotatingFile(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "dash.log")

	closer := Setup("release", config.LogConfig{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1})
	log.Info().Str("module", "test").Msg("hello file")
	log.Debug().Str("module", "test").Msg("filtered")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"message":"hello file"`) {
		t.Fatalf("file = %s", data)
	}
	if strings.Contains(string(data), "filtered") {
		t.Fatal("debug line written at info level")
	}
}

func TestPionFactory(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	l := PionFactory{}.NewLogger("ice")
	l.Warnf("candidate %s failed", "host")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal(err)
	}
	if line["module"] != "pion" || line["scope"] != "ice" || line["level"] != "warn" || line["message"] != "candidate host failed" {
		t.Fatalf("line = %v", line)
	}
}
