package main

import (
	"fmt"
	"listing-distance/internal/annotator"
	"listing-distance/internal/page/htmldoc"
	"listing-distance/internal/report"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var fileCmd = &cobra.Command{
	Use:   "file <page.html>",
	Short: "Annotate a saved listing page",
	Args:  cobra.ExactArgs(1),
	RunE:  runFile,
}

func init() {
	fileCmd.Flags().String("out", "", "Annotated HTML output (default <page>.annotated.html)")
	fileCmd.Flags().String("report", "", "Also write an Excel report of the results")
}

func runFile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	in := args[0]
	out, _ := cmd.Flags().GetString("out")
	reportPath, _ := cmd.Flags().GetString("report")
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".annotated.html"
	}

	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	doc, err := htmldoc.Parse(f)
	f.Close()
	if err != nil {
		return err
	}

	client := relayClient(cmd)
	a := annotator.New(doc, client, client)

	spinner, _ := pterm.DefaultSpinner.Start("Calculating distances")
	if err := a.AnnotateOnce(ctx); err != nil {
		spinner.Fail(err.Error())
		return err
	}
	if a.State() == annotator.Halted {
		spinner.Warning("No locations configured, page left unchanged")
		return nil
	}

	records := a.Records()
	failed := 0
	for _, r := range records {
		if r.Failed {
			failed++
		}
	}
	spinner.Success(fmt.Sprintf("Annotated %d listings (%d without results)", len(records), failed))

	html, err := doc.HTML()
	if err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	if err := os.WriteFile(out, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	pterm.Success.Printf("Wrote %s\n", out)

	if reportPath != "" {
		if err := report.WriteXLSX(reportPath, records); err != nil {
			return err
		}
		pterm.Success.Printf("Wrote %s\n", reportPath)
	}
	return nil
}
