package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"epieval/internal/browser"
	"epieval/internal/evaluate"
	"epieval/internal/notify"
	"epieval/internal/report"
	"epieval/internal/store"
	"epieval/internal/tools"
	"epieval/lib/configutil"
)

const (
	configName  = "epieval.json5"
	defaultJobs = 4
)

type PollConfig struct {
	// Interval and Timeout are go durations, "5s", "10m".
	Interval string `json:"interval"`
	Timeout  string `json:"timeout"`
}

func (c PollConfig) Poll() (tools.Poll, error) {
	var out tools.Poll
	var err error
	if c.Interval != "" {
		out.Interval, err = time.ParseDuration(c.Interval)
		if err != nil {
			return tools.Poll{}, fmt.Errorf("poll interval: %w", err)
		}
	}
	if c.Timeout != "" {
		out.Timeout, err = time.ParseDuration(c.Timeout)
		if err != nil {
			return tools.Poll{}, fmt.Errorf("poll timeout: %w", err)
		}
	}
	if out.Interval < 0 || out.Timeout < 0 {
		return tools.Poll{}, fmt.Errorf("poll durations must not be negative")
	}
	return out, nil
}

type NotifyConfig struct {
	Smtp notify.SmtpConfig `json:"smtp"`
	To   []string          `json:"to"`
}

type Config struct {
	Browser    browser.Config     `json:"browser"`
	Jobs       int                `json:"jobs"`
	ChunkSize  int                `json:"chunk_size"`
	Poll       PollConfig         `json:"poll"`
	Evaluators []evaluate.Request `json:"evaluators"`
	// Preflight checks every tool page with a plain http request before a browser is started.
	Preflight bool `json:"preflight"`
	// SubmitRate is the maximum form submissions per second across all workers, 0 means
	// unlimited.
	SubmitRate float64 `json:"submit_rate"`
	// HttpDump is a directory preflight requests and responses are written to.
	HttpDump string       `json:"http_dump"`
	Format   string       `json:"format"`
	Database store.Config `json:"database"`
	Notify   NotifyConfig `json:"notify"`
}

func (c *Config) Validate() error {
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must not be negative, got %d", c.ChunkSize)
	}
	if c.SubmitRate < 0 {
		return fmt.Errorf("submit_rate must not be negative, got %v", c.SubmitRate)
	}
	err := c.Browser.Validate()
	if err != nil {
		return err
	}
	_, err = c.Poll.Poll()
	if err != nil {
		return err
	}
	_, err = report.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	if len(c.Notify.To) > 0 {
		err = c.Notify.Smtp.Validate()
		if err != nil {
			return fmt.Errorf("notify: %w", err)
		}
	}
	return nil
}

// loadConfig reads path, or the nearest epieval.json5 when path is empty. A missing
// default file yields the zero config.
func loadConfig(path string) (Config, error) {
	if path != "" {
		return configutil.ReadConfig[Config](path)
	}
	cfg, err := configutil.ReadRecursively[Config](configName)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}
