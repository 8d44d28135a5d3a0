package main

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	order := []string{"name", "total"}
	rows := []map[string]any{
		{"name": "Alice", "total": 10.46},
		{"name": "N/A", "total": nil},
		{"name": "Carol", "total": 7.0},
	}
	if err := writeWorkbook(path, "Orders", order, rows); err != nil {
		t.Fatalf("writeWorkbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open written workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != "Orders" {
		t.Fatalf("sheets = %v, want [Orders]", sheets)
	}

	cells, err := f.GetRows("Orders")
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(cells))
	}
	if cells[0][0] != "name" || cells[0][1] != "total" {
		t.Errorf("header = %v", cells[0])
	}
	if cells[1][0] != "Alice" || cells[1][1] != "10.46" {
		t.Errorf("row 1 = %v", cells[1])
	}
	if len(cells[2]) > 1 && cells[2][1] != "" {
		t.Errorf("nil cell must stay blank, got %v", cells[2])
	}
}

func TestWriteWorkbookDefaultSheetName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := writeWorkbook(path, "", []string{"a"}, nil); err != nil {
		t.Fatalf("writeWorkbook: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if got := f.GetSheetList(); len(got) != 1 || got[0] != "Sheet1" {
		t.Errorf("sheets = %v, want [Sheet1]", got)
	}
}
