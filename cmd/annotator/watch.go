package main

import (
	"context"
	"listing-distance/internal/annotator"
	"listing-distance/internal/config"
	"listing-distance/internal/page/browser"
	"listing-distance/internal/relay"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open a page in Chrome and keep it annotated until interrupted",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().String("url", "", "Listing or detail page to open (required)")
	watchCmd.Flags().Bool("headless", false, "Run Chrome without a window")
	_ = watchCmd.MarkFlagRequired("url")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pageURL, _ := cmd.Flags().GetString("url")
	headless, _ := cmd.Flags().GetBool("headless")
	client := relayClient(cmd)

	allocCtx, cancelAlloc := browser.NewAllocator(ctx, browser.Options{
		Headless:  headless,
		UserAgent: config.LoadAnnotator().UserAgent,
	})
	defer cancelAlloc()

	pterm.Info.Printf("Opening %s\n", pageURL)
	tab, closeTab, err := browser.Open(allocCtx, pageURL)
	if err != nil {
		return err
	}
	defer closeTab()

	a := annotator.New(tab, client, client)
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Stop()
	warnIfHalted(a)

	subscribe := func(u string) (<-chan relay.Message, context.CancelFunc) {
		subCtx, cancel := context.WithCancel(ctx)
		events, err := relay.Subscribe(subCtx, client.EventsURL(), u)
		if err != nil {
			pterm.Warning.Printf("Settings updates disabled: %v\n", err)
		}
		return events, cancel
	}
	events, unsubscribe := subscribe(pageURL)
	defer func() { unsubscribe() }()

	pterm.Success.Println("Watching. Press Ctrl+C to stop.")
	for {
		select {
		case <-ctx.Done():
			pterm.Info.Printf("Stopped after annotating %d listings\n", len(a.Records()))
			return nil
		case u := <-tab.Navigations():
			pterm.Info.Printf("Navigated to %s, re-annotating\n", u)
			// The hub filters by page URL, so follow the tab.
			unsubscribe()
			events, unsubscribe = subscribe(u)
			reset(ctx, a)
		case msg, ok := <-events:
			if !ok {
				pterm.Warning.Println("Lost connection to the relay, settings updates disabled")
				events = nil
				continue
			}
			if msg.Action != relay.ActionSettingsUpdated {
				continue
			}
			pterm.Info.Println("Settings updated, re-annotating")
			reset(ctx, a)
		}
	}
}

// reset starts the annotator over. A failure leaves it idle until the next
// navigation or settings update.
func reset(ctx context.Context, a *annotator.Annotator) {
	if err := a.Reset(ctx); err != nil {
		if ctx.Err() == nil {
			pterm.Warning.Printf("Re-annotating failed: %v\n", err)
		}
		return
	}
	warnIfHalted(a)
}

func warnIfHalted(a *annotator.Annotator) {
	if a.State() == annotator.Halted {
		pterm.Warning.Println("No locations configured. Save settings on the relay server, the page resets automatically.")
	}
}

// relayClient builds the relay client from the flags, falling back to the
// environment for flags left unset.
func relayClient(cmd *cobra.Command) *relay.Client {
	cfg := config.LoadAnnotator()

	base, timeout := cfg.RelayURL, cfg.RelayTimeout
	if cmd.Flags().Changed("relay") {
		base, _ = cmd.Flags().GetString("relay")
	}
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	return relay.NewClient(base, timeout)
}
