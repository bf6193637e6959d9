package telemetry

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	scoped := NewScopedAPI("vaxijen3", rec)

	scoped.ReportBroken("extract", errors.New("boom"))
	scoped.ReportDebug("polling")
	scoped.ReportCount("submissions", 3)

	broken := rec.Reports("broken")
	require.Len(t, broken, 1)
	require.Equal(t, "vaxijen3: extract", broken[0].ID)
	require.EqualError(t, broken[0].Params[0].(error), "boom")

	require.Equal(t, "vaxijen3: polling", rec.Reports("debug")[0].ID)
	require.Equal(t, []any{int64(3)}, rec.Reports("count")[0].Params)
}

func TestSlogAPI(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buff bytes.Buffer
	InitSlogWriter(&buff, false)

	SlogAPI{}.ReportWarning("session.fill", "missing field")
	SlogAPI{}.ReportDebug("hidden")

	out := buff.String()
	require.Contains(t, out, "id=session.fill")
	require.Contains(t, out, `params.0="missing field"`)
	require.NotContains(t, out, "hidden")
}
