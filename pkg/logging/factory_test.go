package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hogflix/identsync/pkg/logging"
)

type ctxKey string

func TestNew_JSONDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logging.New(logging.WithOutput(&buf))

	log.Info("hello", slog.String("k", "v"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}

func TestNew_InfoLevelByDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logging.New(logging.WithOutput(&buf))

	log.Debug("invisible")
	assert.Zero(t, buf.Len())

	log.Info("visible")
	assert.NotZero(t, buf.Len())
}

func TestNew_TextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logging.New(
		logging.WithOutput(&buf),
		logging.WithFormat(logging.FormatText),
	)

	log.Info("hello")
	assert.True(t, strings.Contains(buf.String(), "msg=hello"))
}

func TestWithFormat_PanicsOnInvalid(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		logging.New(logging.WithFormat(logging.Format("xml")))
	})
}

func TestNew_StaticAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logging.New(
		logging.WithOutput(&buf),
		logging.WithAttr(slog.String("service", "identsync")),
	)

	log.Info("hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "identsync", rec["service"])
}

func TestNew_ContextValueExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	key := ctxKey("trace")
	log := logging.New(
		logging.WithOutput(&buf),
		logging.WithContextValue("trace_id", key),
	)

	ctx := context.WithValue(context.Background(), key, "abc-123")
	log.InfoContext(ctx, "traced")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "abc-123", rec["trace_id"])

	// Without the value in context the attribute is absent.
	buf.Reset()
	rec = nil
	log.Info("untraced")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	_, ok := rec["trace_id"]
	assert.False(t, ok)
}

func TestNew_DevelopmentPreset(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logging.New(
		logging.WithDevelopment("identsync"),
		logging.WithOutput(&buf),
	)

	log.Debug("verbose")
	out := buf.String()
	assert.Contains(t, out, "msg=verbose")
	assert.Contains(t, out, "service=identsync")
	assert.Contains(t, out, "env=development")
}
