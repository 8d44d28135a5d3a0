package main

import "errors"

type wizardStep string

const (
	stepSelectSheet    wizardStep = "select-sheet"
	stepSelectColumns  wizardStep = "select-columns"
	stepSpecifyActions wizardStep = "specify-actions"
	stepChat           wizardStep = "chat"
	stepPreview        wizardStep = "preview"
	stepDownload       wizardStep = "download"
)

type stepDefinition struct {
	ID    wizardStep
	Label string
}

// Fixed step tables keyed by workbook shape. Single-sheet workbooks get a
// graph without the sheet-selection step; nothing is filtered at runtime.
var (
	formatStepsMulti = []stepDefinition{
		{stepSelectSheet, "Select Spreadsheet"},
		{stepSelectColumns, "Select Columns"},
		{stepSpecifyActions, "Specify Actions"},
		{stepPreview, "Preview"},
		{stepDownload, "Download File"},
	}
	formatStepsSingle = formatStepsMulti[1:]
)

const previewRowLimit = 5

var errSheetNotFound = errors.New("selected sheet not found")

// wizardEffect names the asynchronous work a transition requires. The caller
// runs the effect and reports the outcome back through the apply* methods;
// the machine itself never blocks.
type wizardEffect int

const (
	effectNone wizardEffect = iota
	effectComputePreview
	effectStartSession
	effectFetchAIPreview
)

// formatWizard is the manual formatting flow: a linear, step-gated machine
// over the analyzed workbook. All derived state (columns, actions, preview)
// belongs to the currently selected sheet and is rebuilt when it changes.
type formatWizard struct {
	file  *workbookFile
	steps []stepDefinition
	index int

	selectedSheet string
	columns       []columnSelection
	actions       []columnAction
	previewRows   []map[string]any

	processing bool
	err        string
}

func newFormatWizard(file *workbookFile) *formatWizard {
	if file.multiSheet() {
		return &formatWizard{file: file, steps: formatStepsMulti}
	}
	sheet := &file.Sheets[0]
	return &formatWizard{
		file:          file,
		steps:         formatStepsSingle,
		selectedSheet: sheet.Name,
		columns:       columnSelectionsFor(sheet),
	}
}

func columnSelectionsFor(sheet *sheetData) []columnSelection {
	cols := make([]columnSelection, len(sheet.Columns))
	for i, c := range sheet.Columns {
		cols[i] = columnSelection{
			Name:         c.Name,
			OriginalType: c.Type,
			SelectedType: mapToDataType(c.Type),
		}
	}
	return cols
}

func (w *formatWizard) step() wizardStep           { return w.steps[w.index].ID }
func (w *formatWizard) stepIndex() int             { return w.index }
func (w *formatWizard) stepList() []stepDefinition { return w.steps }

func (w *formatWizard) canProceed() bool {
	switch w.step() {
	case stepSelectSheet:
		return w.selectedSheet != ""
	case stepSelectColumns:
		for _, c := range w.columns {
			if c.Selected {
				return true
			}
		}
		return false
	case stepSpecifyActions, stepPreview:
		return true
	default:
		// download is terminal
		return false
	}
}

// next advances one step when the current guard allows it. Entering preview
// is asynchronous: the machine flags processing and hands the caller an
// effect; the step only advances once applyPreview reports success.
func (w *formatWizard) next() wizardEffect {
	if w.processing || !w.canProceed() || w.index+1 >= len(w.steps) {
		return effectNone
	}
	if w.steps[w.index+1].ID == stepPreview {
		w.processing = true
		w.err = ""
		return effectComputePreview
	}
	w.index++
	return effectNone
}

// back moves exactly one step and clears any error. Derived state survives a
// back-then-forward traversal.
func (w *formatWizard) back() {
	if w.index == 0 || w.processing {
		return
	}
	w.index--
	w.err = ""
}

// selectSheet switches the active sheet and rebuilds all sheet-derived state.
// Re-selecting the current sheet keeps existing column and action edits.
func (w *formatWizard) selectSheet(name string) {
	if name == w.selectedSheet {
		return
	}
	sheet, ok := w.file.sheetByName(name)
	if !ok {
		return
	}
	w.selectedSheet = sheet.Name
	w.columns = columnSelectionsFor(sheet)
	w.actions = nil
	w.previewRows = nil
}

func (w *formatWizard) toggleColumn(i int) {
	if i < 0 || i >= len(w.columns) {
		return
	}
	w.columns[i].Selected = !w.columns[i].Selected
}

func (w *formatWizard) setColumnType(i int, t dataType) {
	if i < 0 || i >= len(w.columns) {
		return
	}
	w.columns[i].SelectedType = t
}

func (w *formatWizard) selectedColumns() []columnSelection {
	var selected []columnSelection
	for _, c := range w.columns {
		if c.Selected {
			selected = append(selected, c)
		}
	}
	return selected
}

// actionFor returns the action record for a column, creating it lazily on
// first edit. Columns without actions simply have no record.
func (w *formatWizard) actionFor(name string) *columnAction {
	if a := findAction(w.actions, name); a != nil {
		return a
	}
	w.actions = append(w.actions, columnAction{ColumnName: name})
	return &w.actions[len(w.actions)-1]
}

func (w *formatWizard) setReplaceEmpty(name, value string) {
	w.actionFor(name).ReplaceEmpty = &value
}

func (w *formatWizard) clearReplaceEmpty(name string) {
	if a := findAction(w.actions, name); a != nil {
		a.ReplaceEmpty = nil
	}
}

func (w *formatWizard) setChangeCase(name string, mode caseMode) {
	w.actionFor(name).ChangeCase = mode
}

func (w *formatWizard) setRoundDecimals(name string, decimals int) {
	if decimals < 0 {
		decimals = 0
	}
	if decimals > 10 {
		decimals = 10
	}
	w.actionFor(name).RoundDecimals = &decimals
}

func (w *formatWizard) clearRoundDecimals(name string) {
	if a := findAction(w.actions, name); a != nil {
		a.RoundDecimals = nil
	}
}

// transformInputs snapshots the sheet, selection and action list for a
// transform that runs off the update loop. Edits landing afterwards allocate
// fresh slices and pointers, so copies taken here never see them. The only
// defined failure is the selected sheet no longer existing in the source.
func (w *formatWizard) transformInputs() (*sheetData, []columnSelection, []columnAction, error) {
	sheet, ok := w.file.sheetByName(w.selectedSheet)
	if !ok {
		return nil, nil, nil, errSheetNotFound
	}
	actions := append([]columnAction(nil), w.actions...)
	return sheet, w.selectedColumns(), actions, nil
}

// transformRows applies the selection and actions to at most limit sample
// rows; limit <= 0 means all of them.
func transformRows(rows []map[string]any, limit int, selected []columnSelection, actions []columnAction) []map[string]any {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = transformRow(row, selected, actions)
	}
	return out
}

// computePreview transforms the first rows of the active sheet's sample under
// the current columns/actions snapshot.
func (w *formatWizard) computePreview() ([]map[string]any, error) {
	sheet, selected, actions, err := w.transformInputs()
	if err != nil {
		return nil, err
	}
	return transformRows(sheet.Snippet, previewRowLimit, selected, actions), nil
}

func (w *formatWizard) applyPreview(rows []map[string]any, err error) {
	w.processing = false
	if err != nil {
		w.err = err.Error()
		return
	}
	w.previewRows = rows
	w.err = ""
	w.index++
}

// exportRows transforms every sample row for serialization; the download
// covers the full snippet, not just the preview subset.
func (w *formatWizard) exportRows() ([]map[string]any, error) {
	sheet, selected, actions, err := w.transformInputs()
	if err != nil {
		return nil, err
	}
	return transformRows(sheet.Snippet, 0, selected, actions), nil
}

func (w *formatWizard) selectedColumnNames() []string {
	var names []string
	for _, c := range w.selectedColumns() {
		names = append(names, c.Name)
	}
	return names
}

func (w *formatWizard) defaultFilename() string {
	return w.file.baseName() + "_formatted.xlsx"
}
