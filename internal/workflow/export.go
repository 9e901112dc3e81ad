package workflow

import (
	"log"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const reportSheet = "Campaign"

// exportFinalResult copies the completed data table to the final output file
// and writes the operator report workbook next to it.
func (c *Context) exportFinalResult() error {
	if c.DryRun {
		log.Printf("[INFO] dry-run: would export final data to %s", c.Config.OutputFile)
		return nil
	}

	if err := c.Store.Data.WriteFinal(c.Config.OutputFile); err != nil {
		return err
	}
	log.Printf("[INFO] Final data file written to %s", c.Config.OutputFile)

	if err := c.writeReport(); err != nil {
		return err
	}
	log.Printf("[INFO] Campaign report written to %s", c.Config.ReportFile)
	return nil
}

// writeReport renders the whole data table into an .xlsx workbook so the
// campaign team can review secrets, addresses, and item ids without touching
// the raw checkpoint files.
func (c *Context) writeReport() error {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", reportSheet)

	table := c.Store.Data.Table
	for i, h := range table.Header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return errors.Wrap(err, "failed to address report header cell")
		}
		if err := f.SetCellValue(reportSheet, cell, h); err != nil {
			return errors.Wrap(err, "failed to write report header")
		}
	}
	for r, row := range table.Rows {
		for i, v := range row {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return errors.Wrap(err, "failed to address report cell")
			}
			if err := f.SetCellValue(reportSheet, cell, v); err != nil {
				return errors.Wrapf(err, "failed to write report row %d", r+2)
			}
		}
	}

	if err := f.SaveAs(c.Config.ReportFile); err != nil {
		return errors.Wrapf(err, "failed to save report %s", c.Config.ReportFile)
	}
	return nil
}
