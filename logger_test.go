package rewardsearch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return NewLogger(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf).WithRun("run-1").WithMethod("global").WithProvider("adaface")

	l.LogStep(context.Background(), 4, 2, 0.5, 3)

	out := buf.String()
	assert.Contains(t, out, "step completed")
	assert.Contains(t, out, "run=run-1")
	assert.Contains(t, out, "method=global")
	assert.Contains(t, out, "provider=adaface")
	assert.Contains(t, out, "best=2")
	assert.Contains(t, out, "survivors=3")
}

func TestLoggerErrorLevels(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)
	ctx := context.Background()
	boom := errors.New("boom")

	l.LogReward(ctx, 1, 8, boom)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "reward failed")

	buf.Reset()
	l.LogSearch(ctx, 2, 4, nil)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "group_size=4")

	buf.Reset()
	l.LogTrace(ctx, "run-1", 0, boom)
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	l.LogGradients(ctx, 4, false, nil)
	assert.Contains(t, buf.String(), "supported=false")
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	assert.NotPanics(t, func() {
		l.LogSearch(context.Background(), 1, 1, errors.New("ignored"))
	})
}
