package report

import (
	"fmt"
	"listing-distance/internal/annotator"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Distances"

var headers = []interface{}{
	"Listing", "Address", "Origin", "Travel mode", "Duration", "Distance", "Status",
}

// WriteXLSX writes one row per listing and origin. Listings without any
// result get a single row marked failed.
func WriteXLSX(path string, records []annotator.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("write report: new sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("write report: stream writer: %w", err)
	}

	if err := sw.SetRow("A1", headers); err != nil {
		return fmt.Errorf("write report: header: %w", err)
	}

	rowNum := 2
	write := func(row []interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		rowNum++
		return sw.SetRow(cell, row)
	}

	for _, rec := range records {
		if len(rec.Results) == 0 {
			if err := write([]interface{}{rec.ListingID, rec.Address, "", "", "", "", "failed"}); err != nil {
				return fmt.Errorf("write report: listing %s: %w", rec.ListingID, err)
			}
			continue
		}
		for _, r := range rec.Results {
			row := []interface{}{
				rec.ListingID, rec.Address, r.Origin, string(r.TravelMode), r.Duration, r.Distance, "ok",
			}
			if err := write(row); err != nil {
				return fmt.Errorf("write report: listing %s: %w", rec.ListingID, err)
			}
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("write report: flush: %w", err)
	}

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("write report: save %q: %w", path, err)
	}
	return nil
}
