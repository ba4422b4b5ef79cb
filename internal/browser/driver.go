// Package browser implements the schemas.BrowserDriver contract on top of
// chromedp. One Driver owns one Chrome tab for one job's whole lifetime.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
	"github.com/applyflow/ds160-runner/internal/config"
)

// Driver is the chromedp-backed browser session.
type Driver struct {
	ctx       context.Context
	cancel    context.CancelFunc
	allocACtx context.Context
	cancelA   context.CancelFunc
	tracker   *networkTracker
	navTimeout time.Duration
	logger    *zap.Logger
}

var _ schemas.BrowserDriver = (*Driver)(nil)

// New launches a fresh Chrome instance and returns a driver bound to it. The
// parent context bounds the session's lifetime.
func New(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	d := &Driver{
		ctx:       ctx,
		cancel:    cancel,
		allocACtx: allocCtx,
		cancelA:   cancelAlloc,
		navTimeout: cfg.NavigationTimeout,
		logger:    logger.With(zap.String("component", "browser")),
	}
	d.tracker = newNetworkTracker(ctx, d.logger)

	// Materialize the browser process up front so a broken Chrome install
	// fails session creation, not the first step.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		cancelAlloc()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return d, nil
}

// run executes chromedp actions against the session, honoring both the
// session context and the caller's context.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := d.ctx.Err(); err != nil {
		return fmt.Errorf("browser session closed: %w", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(d.ctx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate loads a URL and waits for the document to be ready.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.logger.Info("Navigating", zap.String("url", url))
	opCtx, cancel := context.WithTimeout(ctx, d.navTimeout)
	defer cancel()

	err := d.run(opCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
	if err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("loading %q: %w", url, errNavigationTimeout(err))
		}
		return fmt.Errorf("loading %q: %w", url, err)
	}
	return nil
}

// WaitVisible reports whether the selector becomes visible within timeout.
// A timeout is a negative answer, not an error; other faults surface.
func (d *Driver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := d.run(opCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err == nil {
		return true, nil
	}
	if opCtx.Err() == context.DeadlineExceeded {
		return false, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, fmt.Errorf("waiting for %q: %w", selector, err)
}

// Fill clears the target and types the text, then fires input/change events
// so the page's handlers observe the edit.
func (d *Driver) Fill(ctx context.Context, selector, text string) error {
	return d.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
		chromedp.Evaluate(dispatchEventsScript(selector, "input", "change"), nil),
	)
}

// SelectOption sets a select element's value and dispatches change, which is
// what triggers the site's onchange postbacks.
func (d *Driver) SelectOption(ctx context.Context, selector, value string) error {
	if err := d.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("selecting %q on %q: %w", value, selector, err)
	}
	return d.run(ctx, chromedp.Evaluate(dispatchEventsScript(selector, "change"), nil))
}

// Click clicks the element.
func (d *Driver) Click(ctx context.Context, selector string) error {
	if err := d.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	return nil
}

// SetChecked drives a checkbox to the requested state via click, so the
// page's handlers fire like they would for a person.
func (d *Driver) SetChecked(ctx context.Context, selector string, checked bool) error {
	var current bool
	if err := d.run(ctx, chromedp.Evaluate(checkedStateScript(selector), &current)); err != nil {
		return fmt.Errorf("reading checked state of %q: %w", selector, err)
	}
	if current == checked {
		return nil
	}
	return d.Click(ctx, selector)
}

// WaitNetworkIdle blocks until no request has been in flight for quiet, or
// errors with ErrIdleTimeout after timeout.
func (d *Driver) WaitNetworkIdle(ctx context.Context, quiet, timeout time.Duration) error {
	return d.tracker.WaitIdle(ctx, quiet, timeout)
}

// Screenshot captures the full viewport.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var data []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&data)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return data, nil
}

// ScreenshotElement captures just the selected element.
func (d *Driver) ScreenshotElement(ctx context.Context, selector string) ([]byte, error) {
	var data []byte
	if err := d.run(ctx, chromedp.Screenshot(selector, &data, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("capturing element screenshot %q: %w", selector, err)
	}
	return data, nil
}

// CurrentURL returns the tab's location.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return url, nil
}

// Text returns the innerText of the first match.
func (d *Driver) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := d.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading text of %q: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

// TextAll returns the innerText of every match, in document order.
func (d *Driver) TextAll(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	if err := d.run(ctx, chromedp.Evaluate(textAllScript(selector), &texts)); err != nil {
		return nil, fmt.Errorf("reading texts of %q: %w", selector, err)
	}
	return texts, nil
}

// Close tears down the tab and the browser process.
func (d *Driver) Close(ctx context.Context) error {
	d.logger.Info("Closing browser session")
	d.cancel()
	d.cancelA()
	return nil
}
