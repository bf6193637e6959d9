package tools

import (
	"context"
	"fmt"
	"time"

	"epieval/internal/browser"
	"epieval/lib/restyutil"
	"epieval/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// NewClient creates the http client used to check that tools are reachable.
// output may be nil.
func NewClient(tel telemetry.API, output restyutil.InstrumentOutput) *resty.Client {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(30 * time.Second)
	restyutil.InstrumentClient(client, "epieval/preflight", tel, output)
	return client
}

// Ping checks that the tool's form page answers with a 2xx status.
func Ping(ctx context.Context, client *resty.Client, desc Descriptor) error {
	res, err := client.R().
		SetContext(ctx).
		Get(desc.URL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %w", browser.ErrNavigation, desc.Name, err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("%w: %s: %s returned %s", browser.ErrNavigation, desc.Name, desc.URL, res.Status())
	}
	return nil
}
