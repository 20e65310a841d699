package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupJSON(t *testing.T) {
	orig := log.Logger
	origLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = orig
		zerolog.SetGlobalLevel(origLevel)
	})

	var buf bytes.Buffer
	if err := setup(&buf, "info", "json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Debug().Msg("hidden")
	log.Info().Str("symbol", "EURUSD").Msg("visible")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["symbol"] != "EURUSD" || entry["service"] != "forex-signal-engine" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	origLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(origLevel) })

	if err := setup(&bytes.Buffer{}, "loud", "json"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
