package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/playwright-community/playwright-go"
)

const firefoxTimeout = 60 * time.Second

type firefoxSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func newFirefox(ctx context.Context, cfg Config) (*firefoxSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(&playwright.RunOptions{
		Browsers: []string{"firefox"},
		Verbose:  false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(*cfg.Headless),
		Timeout:  playwright.Float(float64(firefoxTimeout.Milliseconds())),
	}
	if cfg.Path != "" {
		opts.ExecutablePath = playwright.String(cfg.Path)
	}
	browser, err := pw.Firefox.Launch(opts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch firefox %q: %w", cfg.Path, err)
	}

	page, err := browser.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(firefoxTimeout.Milliseconds()))

	return &firefoxSession{
		pw:      pw,
		browser: browser,
		page:    page,
	}, nil
}

func (s *firefoxSession) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}
	return nil
}

func (s *firefoxSession) fillOne(el playwright.Locator, value string) error {
	tag, err := el.Evaluate("e => e.tagName", nil)
	if err != nil {
		return err
	}
	tagName, _ := tag.(string)
	inputType, err := el.GetAttribute("type")
	if err != nil {
		return err
	}
	valueAttr, err := el.GetAttribute("value")
	if err != nil {
		return err
	}

	switch fieldAction(tagName, inputType, valueAttr, value) {
	case actionSetValue:
		if tagName == "SELECT" {
			_, err = el.SelectOption(playwright.SelectOptionValues{
				Values: playwright.StringSlice(value),
			})
			return err
		}
		// hidden inputs cannot be filled through the ui
		_, err = el.Evaluate("(e, v) => { e.value = v }", value)
		return err
	case actionUpload:
		return el.SetInputFiles(value)
	case actionClick:
		return el.Check()
	}
	return nil
}

func (s *firefoxSession) Fill(ctx context.Context, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		locator := s.page.Locator(nameSelector(name))
		count, err := locator.Count()
		if err != nil {
			return fmt.Errorf("query field %s: %w", name, err)
		}
		if count == 0 {
			slog.Debug("form field not found", "name", name)
			continue
		}
		for i := 0; i < count; i++ {
			err = s.fillOne(locator.Nth(i), fields[name])
			if err != nil {
				return fmt.Errorf("fill field %s: %w", name, err)
			}
		}
	}
	return nil
}

func (s *firefoxSession) Submit(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	locator := s.page.Locator(selector)
	count, err := locator.Count()
	if err != nil {
		return fmt.Errorf("query %s: %w", selector, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrSubmission, selector)
	}
	err = locator.First().Click()
	if err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (s *firefoxSession) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

func (s *firefoxSession) Close() error {
	return errors.Join(
		s.page.Close(),
		s.browser.Close(),
		s.pw.Stop(),
	)
}
