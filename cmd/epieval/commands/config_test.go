package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"epieval/internal/evaluate"
	"epieval/internal/tools"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), configName)
	err := os.WriteFile(path, []byte(contents), 0644)
	require.NoError(t, err)
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		// evaluators run in parallel
		jobs: 2,
		browser: { engine: "firefox" },
		poll: { interval: "2s", timeout: "1m" },
		evaluators: [
			{ label: "v2", tool: "Vaxijen2", params: { target: "virus" } },
			{ tool: "AllerTop2" },
		],
	}`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Jobs)
	require.Equal(t, []evaluate.Request{
		{Label: "v2", Tool: "Vaxijen2", Params: map[string]string{"target": "virus"}},
		{Tool: "AllerTop2"},
	}, cfg.Evaluators)

	poll, err := cfg.Poll.Poll()
	require.NoError(t, err)
	require.Equal(t, tools.Poll{Interval: 2 * time.Second, Timeout: time.Minute}, poll)
}

func TestLoadConfigInvalid(t *testing.T) {
	for _, contents := range []string{
		`{ jobs: -1 }`,
		`{ browser: { engine: "safari" } }`,
		`{ poll: { timeout: "soon" } }`,
		`{ format: "xml" }`,
		`{ notify: { to: ["bob@email.com"] } }`,
		`{ submit_rate: -2 }`,
	} {
		_, err := loadConfig(writeConfig(t, contents))
		require.Error(t, err, contents)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPollConfig(t *testing.T) {
	poll, err := PollConfig{}.Poll()
	require.NoError(t, err)
	require.Equal(t, tools.Poll{}, poll)

	_, err = PollConfig{Interval: "-1s"}.Poll()
	require.Error(t, err)
}
