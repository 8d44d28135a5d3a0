package main

import (
	"path/filepath"
	"strings"
	"time"
)

type columnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// sheetData is one tab of the analyzed workbook. The snippet is the only row
// data the backend hands to the client; every local transform and export
// operates on it.
type sheetData struct {
	Name    string           `json:"spreadsheet_name"`
	Columns []columnInfo     `json:"columns"`
	Snippet []map[string]any `json:"spreadsheet_snippet"`
}

type workbookFile struct {
	Path   string
	Sheets []sheetData
}

func (w *workbookFile) multiSheet() bool {
	return len(w.Sheets) > 1
}

func (w *workbookFile) sheetByName(name string) (*sheetData, bool) {
	for i := range w.Sheets {
		if w.Sheets[i].Name == name {
			return &w.Sheets[i], true
		}
	}
	return nil, false
}

// baseName is the upload's file name with its spreadsheet extension removed.
func (w *workbookFile) baseName() string {
	name := filepath.Base(w.Path)
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".xlsx" || ext == ".xls" {
		name = name[:len(name)-len(ext)]
	}
	return name
}

type chatRole string

const (
	roleUser      chatRole = "user"
	roleAssistant chatRole = "assistant"
)

type chatMessage struct {
	Role    chatRole
	Content string
	At      time.Time
}
