package browser

import (
	"context"
	"log"

	"github.com/chromedp/chromedp"
)

type Options struct {
	Headless  bool
	UserAgent string
}

// NewAllocator starts one Chrome process. Tabs are opened from the returned
// context with Open.
func NewAllocator(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1440, 900),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	return chromedp.NewExecAllocator(ctx, allocOpts...)
}

// Open creates a tab, navigates it to pageURL and returns it ready for annotation.
func Open(allocCtx context.Context, pageURL string) (*Tab, context.CancelFunc, error) {
	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Printf("[tab] "+format, args...)
		}),
	)

	t, err := NewTab(tabCtx)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if err := t.Navigate(pageURL); err != nil {
		cancel()
		return nil, nil, err
	}
	return t, cancel, nil
}
