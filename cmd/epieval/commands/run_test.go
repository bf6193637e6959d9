package commands

import (
	"context"
	"testing"

	"epieval/internal/browser"
	"epieval/internal/evaluate"
	"epieval/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// setFlags sets flags on runCmd and restores them once the test is done.
func setFlags(t *testing.T, values map[string]string) *cobra.Command {
	flags := runCmd.Flags()
	for name, v := range values {
		require.NoError(t, flags.Set(name, v))
	}
	t.Cleanup(func() {
		flags.VisitAll(func(f *pflag.Flag) {
			if !f.Changed {
				return
			}
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				sv.Replace(nil)
			} else {
				f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	})
	return runCmd
}

func TestApplyFlags(t *testing.T) {
	cmd := setFlags(t, map[string]string{
		"jobs":         "3",
		"browser":      "firefox",
		"headful":      "true",
		"poll-timeout": "90s",
		"db":           "out.db",
		"eval":         "v2=Vaxijen2,target=fungal",
	})

	cfg := Config{
		Jobs:       1,
		Evaluators: []evaluate.Request{{Tool: "AllerTop2"}},
	}
	err := applyFlags(cmd, &cfg)
	require.NoError(t, err)

	require.Equal(t, 3, cfg.Jobs)
	require.Equal(t, browser.EngineFirefox, cfg.Browser.Engine)
	require.NotNil(t, cfg.Browser.Headless)
	require.False(t, *cfg.Browser.Headless)
	require.Equal(t, "1m30s", cfg.Poll.Timeout)
	require.Equal(t, store.Config{File: "out.db"}, cfg.Database)
	// --eval replaces the evaluators of the config file
	require.Len(t, cfg.Evaluators, 1)
	require.Equal(t, "v2", cfg.Evaluators[0].Label)
	require.Equal(t, "fungal", cfg.Evaluators[0].Params["target"])
}

func TestApplyFlagsInvalid(t *testing.T) {
	cmd := setFlags(t, map[string]string{"browser": "safari"})
	cfg := Config{}
	require.Error(t, applyFlags(cmd, &cfg))
}

func TestNewOrchestrator(t *testing.T) {
	orch, err := newOrchestrator(Config{})
	require.NoError(t, err)
	require.Equal(t, defaultJobs, orch.Jobs)
	require.NotNil(t, orch.NewSession)
	require.Nil(t, orch.Limiter)
	require.Nil(t, orch.Preflight)
	require.NotEmpty(t, orch.Registry.Names())

	orch, err = newOrchestrator(Config{
		Jobs:       2,
		SubmitRate: 0.5,
		Preflight:  true,
		HttpDump:   t.TempDir(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, orch.Jobs)
	require.NotNil(t, orch.Limiter)
	require.NotNil(t, orch.Preflight)

	_, err = newOrchestrator(Config{Browser: browser.Config{Engine: "firefox", RemoteURL: "ws://x"}})
	require.Error(t, err)

	// the preflight honors a cancelled context without touching the network
	orch, err = newOrchestrator(Config{Preflight: true})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	adapter, err := orch.Registry.Lookup("Vaxijen3")
	require.NoError(t, err)
	require.ErrorIs(t, orch.Preflight(ctx, adapter.Descriptor()), context.Canceled)
}
