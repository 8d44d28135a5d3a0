package main

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// writeWorkbook serializes transformed rows into a single-sheet .xlsx at
// path. Columns are emitted in the given order with a header row; nil cells
// stay blank. The sheet is named after the source sheet, "Sheet1" when unset.
func writeWorkbook(path, sheetName string, order []string, rows []map[string]any) error {
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	f := excelize.NewFile()
	defer f.Close()

	if sheetName != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}
	for i, name := range order {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for i, name := range order {
			value, ok := row[name]
			if !ok || value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
