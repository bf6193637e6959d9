package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNavigation = errors.New("navigation failed")
	ErrSubmission = errors.New("submit control not found")
)

// Session is a single headless browser tab. A session is used by one goroutine at a time.
//
// note: fault injection point
type Session interface {
	// Open navigates to url and waits for the document to load.
	Open(ctx context.Context, url string) error
	// Fill sets form fields by their name attribute, see fieldAction for how each kind of
	// element is handled. Names that match nothing are skipped.
	Fill(ctx context.Context, fields map[string]string) error
	// Submit clicks the first element matching the css selector.
	Submit(ctx context.Context, selector string) error
	// HTML returns the outer HTML of the current document.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Factory creates a new session, each evaluator gets its own.
type Factory func(ctx context.Context) (Session, error)

type Engine string

const (
	EngineChrome  Engine = "chrome"
	EngineFirefox Engine = "firefox"
)

var defaultPaths = map[Engine]string{
	EngineChrome:  "/usr/bin/google-chrome",
	EngineFirefox: "/usr/bin/firefox",
}

type Config struct {
	Engine Engine `json:"engine"`
	// Path is the browser executable, it defaults to the usual install location of the engine.
	Path string `json:"path"`
	// RemoteURL attaches to a running DevTools endpoint instead of launching chrome.
	RemoteURL string `json:"remote_url"`
	Headless  *bool  `json:"headless"`
}

// Normalize resolves the engine name and fills in defaults.
func (c Config) Normalize() (Config, error) {
	engine := Engine(strings.ToLower(strings.TrimSpace(string(c.Engine))))
	if engine == "" {
		engine = EngineChrome
	}
	path, ok := defaultPaths[engine]
	if !ok {
		return Config{}, fmt.Errorf("unsupported browser engine %q", c.Engine)
	}
	if engine != EngineChrome && c.RemoteURL != "" {
		return Config{}, fmt.Errorf("remote_url is only supported by the chrome engine")
	}

	out := c
	out.Engine = engine
	if out.Path == "" {
		out.Path = path
	}
	if out.Headless == nil {
		headless := true
		out.Headless = &headless
	}
	return out, nil
}

func (c Config) Validate() error {
	_, err := c.Normalize()
	return err
}

// New launches a session for cfg.
func New(ctx context.Context, cfg Config) (Session, error) {
	explicitPath := strings.TrimSpace(cfg.Path) != ""
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	switch cfg.Engine {
	case EngineFirefox:
		// playwright only drives its own firefox build, a system install is used only
		// when asked for
		if !explicitPath {
			cfg.Path = ""
		}
		return newFirefox(ctx, cfg)
	default:
		return newChrome(ctx, cfg)
	}
}

// NewFactory returns a Factory that calls New with cfg.
func NewFactory(cfg Config) Factory {
	return func(ctx context.Context) (Session, error) {
		return New(ctx, cfg)
	}
}

type action int

const (
	actionSkip action = iota
	actionSetValue
	actionUpload
	actionClick
)

// fieldAction decides how to apply value to an element with the given tag name, type
// attribute and value attribute.
func fieldAction(tag, inputType, valueAttr, value string) action {
	switch strings.ToLower(tag) {
	case "textarea", "select":
		return actionSetValue
	case "input":
	default:
		return actionSkip
	}

	switch strings.ToLower(inputType) {
	case "file":
		return actionUpload
	case "radio", "checkbox":
		if valueAttr == value {
			return actionClick
		}
		return actionSkip
	case "submit", "button", "image", "reset":
		return actionSkip
	default:
		return actionSetValue
	}
}

func nameSelector(name string) string {
	return fmt.Sprintf(`[name="%s"]`, strings.ReplaceAll(name, `"`, `\"`))
}
