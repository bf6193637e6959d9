package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"epieval/internal/browser"
	"epieval/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 10 * time.Minute
)

var errNotReady = errors.New("results not rendered yet")

// Poll bounds how results are awaited.
type Poll struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (p Poll) withDefaults() Poll {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultPollTimeout
	}
	return p
}

// ExtractDocument finds the adapter's result container in html and extracts its columns.
// It wraps errNotReady when the container is absent or holds no predictions yet.
func ExtractDocument(adapter Adapter, html string) (map[string][]float64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	container := doc.Find(adapter.Descriptor().ResultSelector)
	if container.Length() == 0 {
		return nil, errNotReady
	}

	columns, err := adapter.Extract(htmlutil.RenderText(container.First()))
	if err != nil {
		return nil, err
	}
	if len(columns[ColumnScore]) == 0 {
		return nil, errNotReady
	}
	return columns, nil
}

// WaitForResults polls the session until the results are rendered and returns them.
// Polling gives up after poll.Timeout with an error wrapping ErrResultTimeout, the deadline
// also bounds a single HTML read that hangs.
func WaitForResults(parent context.Context, session browser.Session, adapter Adapter, poll Poll) (map[string][]float64, error) {
	poll = poll.withDefaults()
	ctx, cancel := context.WithTimeout(parent, poll.Timeout)
	defer cancel()
	backoff := retry.WithMaxDuration(poll.Timeout, retry.NewConstant(poll.Interval))

	var columns map[string][]float64
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		html, err := session.HTML(ctx)
		if err != nil {
			// the page is usually mid navigation right after submitting
			return retry.RetryableError(err)
		}
		columns, err = ExtractDocument(adapter, html)
		if errors.Is(err, errNotReady) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		if errors.Is(err, ErrParse) {
			return nil, err
		}
		return nil, fmt.Errorf(
			"%w: %s after %s: %w",
			ErrResultTimeout, adapter.Descriptor().Name, poll.Timeout, err,
		)
	}
	return columns, nil
}
