//go:build !histdebug

package resolver

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/histcore/internal/history"
)

func TestInvariantViolationLogsToContextLogger(t *testing.T) {
	g := newMemGraph()
	g.add(5, "https://a.test/", 0, history.TransitionLink|start)
	v := g.add(3, "https://b.test/", 5, history.TransitionLink|server|end)

	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	_, ok, err := ChainStart(ctx, g, v)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "forward reference")
	assert.Contains(t, buf.String(), "op=\"chain start\"")
	assert.Contains(t, buf.String(), "referring_visit=5")
}

func TestLoggerFromDefaultsToSlogDefault(t *testing.T) {
	assert.Same(t, slog.Default(), loggerFrom(context.Background()))
	assert.Same(t, slog.Default(), loggerFrom(WithLogger(context.Background(), nil)))
}
