package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"epieval/internal/browser"
	"epieval/internal/evaluate"
	"epieval/internal/notify"
	"epieval/internal/report"
	"epieval/internal/sequence"
	"epieval/internal/store"
	"epieval/internal/tools"
	"epieval/lib/osutil"
	"epieval/lib/restyutil"
	"epieval/lib/telemetry"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	runInput        *string
	runEvals        *[]string
	runJobs         *int
	runEngine       *string
	runBrowserPath  *string
	runRemote       *string
	runHeadful      *bool
	runChunk        *int
	runPollInterval *time.Duration
	runPollTimeout  *time.Duration
	runFormat       *string
	runOutput       *string
	runDb           *string
	runPreflight    *bool
	runRate         *float64
	runNotify       *[]string
	runDumpHttp     *string
)

func init() {
	flags := runCmd.Flags()
	runInput = flags.StringP("input", "i", "", "FASTA file to evaluate, - reads stdin. Gzipped files are accepted.")
	runEvals = flags.StringArrayP("eval", "e", nil, "Evaluator as [label=]Tool[,key=value...], may be repeated.")
	runJobs = flags.IntP("jobs", "j", 0, fmt.Sprintf("Evaluators running at once (default %d).", defaultJobs))
	runEngine = flags.String("browser", "", "Browser engine, chrome or firefox.")
	runBrowserPath = flags.String("browser-path", "", "Browser executable, firefox defaults to the build managed by playwright.")
	runRemote = flags.String("remote", "", "DevTools websocket url of a running chrome.")
	runHeadful = flags.Bool("headful", false, "Show the browser windows.")
	runChunk = flags.Int("chunk", 0, "Maximum sequences per submission, overrides the per tool default.")
	runPollInterval = flags.Duration("poll-interval", 0, "Time between checks for results.")
	runPollTimeout = flags.Duration("poll-timeout", 0, "Time to wait for results of one submission.")
	runFormat = flags.StringP("format", "f", "", "Output format: table, csv, markdown or json.")
	runOutput = flags.StringP("output", "o", "", "Write the report to a file instead of stdout.")
	runDb = flags.String("db", "", "Sqlite file the run is recorded in.")
	runPreflight = flags.Bool("preflight", false, "Check that every tool is reachable before starting browsers.")
	runRate = flags.Float64("rate", 0, "Maximum form submissions per second across all workers.")
	runNotify = flags.StringSlice("notify", nil, "Email the summary to these addresses when done.")
	runDumpHttp = flags.String("dump-http", "", "Directory preflight http exchanges are written to.")
	runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}

// applyFlags overrides cfg with every flag that was set on the command line.
func applyFlags(cmd *cobra.Command, cfg *Config) error {
	flags := cmd.Flags()
	if flags.Changed("jobs") {
		cfg.Jobs = *runJobs
	}
	if flags.Changed("browser") {
		cfg.Browser.Engine = browser.Engine(*runEngine)
	}
	if flags.Changed("browser-path") {
		cfg.Browser.Path = *runBrowserPath
	}
	if flags.Changed("remote") {
		cfg.Browser.RemoteURL = *runRemote
	}
	if flags.Changed("headful") {
		headless := !*runHeadful
		cfg.Browser.Headless = &headless
	}
	if flags.Changed("chunk") {
		cfg.ChunkSize = *runChunk
	}
	if flags.Changed("poll-interval") {
		cfg.Poll.Interval = runPollInterval.String()
	}
	if flags.Changed("poll-timeout") {
		cfg.Poll.Timeout = runPollTimeout.String()
	}
	if flags.Changed("format") {
		cfg.Format = *runFormat
	}
	if flags.Changed("db") {
		cfg.Database = store.Config{File: *runDb}
	}
	if flags.Changed("preflight") {
		cfg.Preflight = *runPreflight
	}
	if flags.Changed("rate") {
		cfg.SubmitRate = *runRate
	}
	if flags.Changed("notify") {
		cfg.Notify.To = *runNotify
	}
	if flags.Changed("dump-http") {
		cfg.HttpDump = *runDumpHttp
	}
	if flags.Changed("eval") {
		reqs, err := parseEvals(*runEvals)
		if err != nil {
			return err
		}
		cfg.Evaluators = reqs
	}
	return cfg.Validate()
}

// newOrchestrator builds an orchestrator from a validated config.
func newOrchestrator(cfg Config) (evaluate.Orchestrator, error) {
	poll, err := cfg.Poll.Poll()
	if err != nil {
		return evaluate.Orchestrator{}, err
	}
	browserCfg, err := cfg.Browser.Normalize()
	if err != nil {
		return evaluate.Orchestrator{}, err
	}

	jobs := cfg.Jobs
	if jobs == 0 {
		jobs = defaultJobs
	}

	orch := evaluate.Orchestrator{
		Jobs:       jobs,
		NewSession: browser.NewFactory(browserCfg),
		Registry:   tools.DefaultRegistry(),
		ChunkSize:  cfg.ChunkSize,
		Poll:       poll,
		Tel:        telemetry.SlogAPI{},
	}
	if cfg.SubmitRate > 0 {
		orch.Limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), 1)
	}
	if cfg.Preflight {
		var output restyutil.InstrumentOutput
		if cfg.HttpDump != "" {
			fsOutput, err := restyutil.NewFilesystemOutput(cfg.HttpDump)
			if err != nil {
				return evaluate.Orchestrator{}, err
			}
			output = fsOutput
		}
		client := tools.NewClient(orch.Tel, output)
		orch.Preflight = func(ctx context.Context, desc tools.Descriptor) error {
			return tools.Ping(ctx, client, desc)
		}
	}
	return orch, nil
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

var runCmd = &cobra.Command{
	Use:   "run -i <sequences.fasta> -e <[label=]Tool[,key=value...]>...",
	Short: "Evaluates every sequence of a FASTA file with the configured tools.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := osutil.SignalContext(cmd.Context())
		defer cancel()

		tel, err := telemetry.SetupFromEnv(ctx, "epieval")
		if err != nil {
			slog.Warn("telemetry disabled", "err", err)
		}
		defer func() {
			err := tel.Shutdown(context.Background())
			if err != nil {
				slog.Warn("shutdown telemetry", "err", err)
			}
		}()
		telemetry.InstrumentPerfStats(ctx, 10*time.Second)

		cfg, err := loadConfig(*configPath)
		if err != nil {
			osutil.Fatal("failed to read config", err)
		}
		err = applyFlags(cmd, &cfg)
		if err != nil {
			return err
		}
		if len(cfg.Evaluators) == 0 {
			return fmt.Errorf("no evaluators configured, pass --eval or list them in %s", configName)
		}
		format, err := report.ParseFormat(cfg.Format)
		if err != nil {
			return err
		}

		set, err := sequence.ReadFile(*runInput)
		if err != nil {
			return err
		}
		orch, err := newOrchestrator(cfg)
		if err != nil {
			return err
		}

		slog.Info("evaluating", "sequences", set.Len(), "evaluators", len(cfg.Evaluators), "jobs", orch.Jobs)
		started := time.Now()
		result, err := orch.Evaluate(ctx, set, cfg.Evaluators)
		if err != nil {
			return err
		}
		finished := time.Now()
		slog.Info("evaluation time", "seconds", finished.Sub(started).Seconds())

		out, err := openOutput(*runOutput)
		if err != nil {
			return err
		}
		err = report.Write(out, format, set, result)
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}

		if cfg.Database.Enabled() {
			db, err := store.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			id, err := db.Save(ctx, store.Run{
				StartedAt:  started,
				FinishedAt: finished,
				Set:        set,
				Result:     result,
			})
			if err != nil {
				return fmt.Errorf("save run: %w", err)
			}
			slog.Info("run saved", "id", id)
		}

		if len(cfg.Notify.To) > 0 {
			mailer := notify.Mailer{Smtp: cfg.Notify.Smtp}
			err = mailer.Send(ctx, cfg.Notify.To, "epieval run finished", report.Summary(set, result))
			if err != nil {
				slog.Warn("failed to send notification", "err", err)
			}
		}

		if len(result.Failures) > 0 {
			return fmt.Errorf("%d of %d evaluators failed", len(result.Failures), len(result.Keys()))
		}
		return nil
	},
}
