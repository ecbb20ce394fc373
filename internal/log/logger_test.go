package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriterTagsEnvironment(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "staging")
	logger.Debug().Str("conn", "c1").Msg("frame received")

	out := buf.String()
	for _, want := range []string{"frame received", "staging", "c1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestProductionDropsDebug(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "production")
	logger.Debug().Msg("noisy")
	logger.Info().Msg("important")

	out := buf.String()
	if strings.Contains(out, "noisy") {
		t.Errorf("debug line leaked in production: %q", out)
	}
	if !strings.Contains(out, "important") {
		t.Errorf("info line missing: %q", out)
	}
}
