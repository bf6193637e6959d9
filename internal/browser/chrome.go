package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

type chromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func newChrome(ctx context.Context, cfg Config) (*chromeSession, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		opts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.ExecPath(cfg.Path),
			chromedp.Flag("headless", *cfg.Headless),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	tabCtx, cancel := chromedp.NewContext(
		allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...))
		}),
	)
	// the first Run allocates the browser and must happen on the tab context itself,
	// running it on a derived context would kill the browser when that context ends.
	err := chromedp.Run(tabCtx)
	if err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome (%s): %w", cfg.Path, err)
	}

	return &chromeSession{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}, nil
}

// run executes actions on the tab while honoring cancellation of ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromeSession) Open(ctx context.Context, url string) error {
	err := s.run(ctx, chromedp.Navigate(url))
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}
	return nil
}

func (s *chromeSession) Fill(ctx context.Context, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := fields[name]

		var nodes []*cdp.Node
		err := s.run(ctx, chromedp.Nodes(
			nameSelector(name),
			&nodes,
			chromedp.ByQueryAll,
			chromedp.AtLeast(0),
		))
		if err != nil {
			return fmt.Errorf("query field %s: %w", name, err)
		}
		if len(nodes) == 0 {
			slog.Debug("form field not found", "name", name)
			continue
		}

		for _, node := range nodes {
			ids := []cdp.NodeID{node.NodeID}

			var act chromedp.Action
			switch fieldAction(
				node.LocalName,
				node.AttributeValue("type"),
				node.AttributeValue("value"),
				value,
			) {
			case actionSetValue:
				act = chromedp.SetValue(ids, value, chromedp.ByNodeID)
			case actionUpload:
				act = chromedp.SetUploadFiles(ids, []string{value}, chromedp.ByNodeID)
			case actionClick:
				act = check(ids)
			default:
				continue
			}
			err = s.run(ctx, act)
			if err != nil {
				return fmt.Errorf("fill field %s: %w", name, err)
			}
		}
	}
	return nil
}

// check selects a radio or checkbox, clicking a checkbox that is already checked would
// clear it.
func check(ids []cdp.NodeID) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var checked bool
		err := chromedp.JavascriptAttribute(ids, "checked", &checked, chromedp.ByNodeID).Do(ctx)
		if err != nil {
			return err
		}
		if checked {
			return nil
		}
		return chromedp.Click(ids, chromedp.ByNodeID).Do(ctx)
	})
}

func (s *chromeSession) Submit(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return fmt.Errorf("query %s: %w", selector, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", ErrSubmission, selector)
	}
	err = s.run(ctx, chromedp.Click([]cdp.NodeID{nodes[0].NodeID}, chromedp.ByNodeID))
	if err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var out string
	err := s.run(ctx, chromedp.OuterHTML("html", &out, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return out, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	s.allocCancel()
	return nil
}
