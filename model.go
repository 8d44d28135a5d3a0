package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type appView int

const (
	viewHome appView = iota
	viewFormat
	viewAI
)

type inputMode int

const (
	inputNone inputMode = iota
	inputReplaceEmpty
	inputRoundDecimals
)

type workbookAnalyzedMsg struct {
	gen  int
	file *workbookFile
	err  error
}

type sessionStartedMsg struct {
	gen  int
	info sessionInfo
	err  error
}

type chatReplyMsg struct {
	gen   int
	reply chatReply
	err   error
}

type aiPreviewMsg struct {
	gen  int
	text string
	err  error
}

type aiDownloadMsg struct {
	gen  int
	path string
	err  error
}

type previewComputedMsg struct {
	rows []map[string]any
	err  error
}

type exportDoneMsg struct {
	path string
	err  error
}

type tokenStatusMsg struct {
	gen    int
	status tokenStatus
	err    error
}

type sessionEndedMsg struct {
	err error
}

type historyLoadedMsg struct {
	files []recentFile
}

type toastClearMsg struct{}

type keyMap struct {
	Next      key.Binding
	Back      key.Binding
	CloseWiz  key.Binding
	Quit      key.Binding
	Help      key.Binding
	Toggle    key.Binding
	CycleType key.Binding
	EditEmpty key.Binding
	CycleCase key.Binding
	EditRound key.Binding
	Copy      key.Binding
	Theme     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "next step"),
		),
		Back: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("ctrl+b", "back"),
		),
		CloseWiz: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("ctrl+h", "help"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "toggle column"),
		),
		CycleType: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "cycle type"),
		),
		EditEmpty: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "replace empty"),
		),
		CycleCase: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cycle case"),
		),
		EditRound: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "round decimals"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy"),
		),
		Theme: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "markdown theme"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Back, k.CloseWiz, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Back, k.CloseWiz, k.Quit},
		{k.Toggle, k.CycleType, k.EditEmpty, k.CycleCase, k.EditRound},
		{k.Copy, k.Theme, k.Help},
	}
}

type model struct {
	width  int
	height int

	styles  styles
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	cfg       *uiConfig
	cfgPath   string
	api       *apiClient
	history   *historyStore
	telemetry *telemetryLogger
	markdown  *markdownView
	tracker   requestTracker

	view       appView
	processing bool
	err        string

	pathInput  textinput.Model
	recentList list.Model
	file       *workbookFile

	format *formatWizard
	ai     *aiWizard

	sheetList    list.Model
	columnList   list.Model
	actionList   list.Model
	previewTable table.Model
	chatView     viewport.Model
	chatInput    textinput.Model
	nameInput    textinput.Model
	previewView  viewport.Model

	inputActive bool
	inputMode   inputMode
	inputPrompt string
	inputField  textinput.Model
	inputTarget string

	tokens      tokenStatus
	tokensKnown bool

	downloadDone bool
	downloadPath string

	toastMessage string
}

func initialModel(cfg *uiConfig, cfgPath, filePath string, history *historyStore) *model {
	s := newStyles()
	m := &model{
		styles:    s,
		keys:      newKeyMap(),
		help:      help.New(),
		cfg:       cfg,
		cfgPath:   cfgPath,
		api:       newAPIClient(cfg.APIBaseURL, cfg.APIToken),
		history:   history,
		telemetry: newTelemetryLogger(filepath.Join(resolveConfigDir(), "events.ndjson")),
		markdown:  newMarkdownView(markdownThemeFromString(cfg.Theme)),
	}

	m.help.ShortSeparator = " │ "
	m.help.Styles.ShortKey = s.statusHint.Copy()
	m.help.Styles.ShortDesc = s.statusHint.Copy()
	m.help.Styles.ShortSeparator = s.statusSeg.Copy()

	m.spinner = spinner.New(spinner.WithSpinner(spinner.Dot))
	m.spinner.Style = s.statusHint.Copy().Bold(true)

	m.pathInput = textinput.New()
	m.pathInput.Prompt = "File: "
	m.pathInput.Placeholder = "path/to/workbook.xlsx"
	m.pathInput.CharLimit = 512
	m.pathInput.SetValue(filePath)
	m.pathInput.Focus()

	m.chatInput = textinput.New()
	m.chatInput.Prompt = "> "
	m.chatInput.CharLimit = 2048

	m.nameInput = textinput.New()
	m.nameInput.Prompt = "Save as: "
	m.nameInput.CharLimit = 256

	m.inputField = textinput.New()
	m.inputField.Prompt = "> "
	m.inputField.CharLimit = 256

	m.recentList = newSelectableList("Recent files", nil, s)

	return m
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadHistoryCmd())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if tick, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(tick)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	switch message := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = message.Width, message.Height
		m.applyLayout()
		return m, tea.Batch(cmds...)

	case toastClearMsg:
		m.toastMessage = ""
		return m, tea.Batch(cmds...)

	case historyLoadedMsg:
		m.recentList.SetItems(recentFileItems(message.files))
		return m, tea.Batch(cmds...)

	case workbookAnalyzedMsg:
		if m.tracker.stale(reqAnalyze, message.gen) {
			return m, tea.Batch(cmds...)
		}
		m.processing = false
		if message.err != nil {
			m.err = message.err.Error()
			m.emit(telemetryEvent{Event: "analyze_failed", Error: m.err})
			return m, tea.Batch(cmds...)
		}
		m.err = ""
		m.file = message.file
		m.pathInput.Blur()
		m.emit(telemetryEvent{Event: "analyze_ok", File: m.file.Path})
		if m.history != nil {
			_ = m.history.Touch(m.file.Path)
			cmds = append(cmds, m.loadHistoryCmd())
		}
		return m, tea.Batch(cmds...)

	case previewComputedMsg:
		if m.format != nil {
			m.format.applyPreview(message.rows, message.err)
			if message.err == nil {
				m.previewTable = newPreviewTable(m.format.selectedColumnNames(), message.rows, m.bodyWidth())
				m.emit(telemetryEvent{Event: "step", Mode: "format", Step: string(m.format.step())})
			} else {
				m.emit(telemetryEvent{Event: "preview_failed", Mode: "format", Error: message.err.Error()})
			}
		}
		return m, tea.Batch(cmds...)

	case exportDoneMsg:
		if m.format != nil {
			m.format.processing = false
			if message.err != nil {
				m.format.err = message.err.Error()
				m.emit(telemetryEvent{Event: "export_failed", Mode: "format", Error: m.format.err})
			} else {
				m.downloadDone = true
				m.downloadPath = message.path
				m.emit(telemetryEvent{Event: "export_ok", Mode: "format", File: message.path})
			}
		}
		return m, tea.Batch(cmds...)

	case sessionStartedMsg:
		if m.ai == nil || m.tracker.stale(reqSession, message.gen) {
			return m, tea.Batch(cmds...)
		}
		m.ai.applySessionStarted(message.info, message.err)
		if message.err == nil {
			m.chatInput.Focus()
			m.refreshChatView()
			m.emit(telemetryEvent{Event: "session_started", Mode: "ai", Sheet: m.ai.selectedSheet})
		} else {
			m.emit(telemetryEvent{Event: "session_failed", Mode: "ai", Error: message.err.Error()})
		}
		return m, tea.Batch(cmds...)

	case chatReplyMsg:
		if m.ai == nil || m.tracker.stale(reqChat, message.gen) {
			return m, tea.Batch(cmds...)
		}
		m.ai.applyReply(message.reply, message.err)
		m.refreshChatView()
		if message.err == nil {
			m.emit(telemetryEvent{Event: "chat_reply", Mode: "ai"})
		}
		return m, tea.Batch(cmds...)

	case aiPreviewMsg:
		if m.ai == nil || m.tracker.stale(reqAIPreview, message.gen) {
			return m, tea.Batch(cmds...)
		}
		m.ai.applyPreview(message.text, message.err)
		if message.err == nil {
			m.previewView.SetContent(message.text)
			m.previewView.GotoTop()
			m.emit(telemetryEvent{Event: "step", Mode: "ai", Step: string(m.ai.step())})
		}
		return m, tea.Batch(cmds...)

	case aiDownloadMsg:
		if m.ai == nil || m.tracker.stale(reqAIDownload, message.gen) {
			return m, tea.Batch(cmds...)
		}
		m.ai.processing = false
		if message.err != nil {
			m.ai.err = message.err.Error()
			m.emit(telemetryEvent{Event: "download_failed", Mode: "ai", Error: m.ai.err})
		} else {
			m.downloadDone = true
			m.downloadPath = message.path
			m.emit(telemetryEvent{Event: "download_ok", Mode: "ai", File: message.path})
		}
		return m, tea.Batch(cmds...)

	case tokenStatusMsg:
		if m.tracker.stale(reqTokens, message.gen) {
			return m, tea.Batch(cmds...)
		}
		if message.err == nil {
			m.tokens = message.status
			m.tokensKnown = true
			if m.ai != nil && m.ai.sessionID == "" {
				m.ai.remainingTokens = message.status.Remaining
				m.ai.dailyLimit = message.status.DailyLimit
			}
		}
		return m, tea.Batch(cmds...)

	case sessionEndedMsg:
		if message.err != nil {
			m.emit(telemetryEvent{Event: "session_end_failed", Mode: "ai", Error: message.err.Error()})
		}
		return m, tea.Batch(cmds...)
	}

	if m.inputActive {
		if cmd := m.updateOverlayInput(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		handled, cmd := m.handleKey(keyMsg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		if handled {
			return m, tea.Batch(cmds...)
		}
	}

	if cmd := m.updateFocusedWidget(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return true, tea.Batch(m.closeWizardCmd(), tea.Quit)
	}
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return true, nil
	}
	if key.Matches(msg, m.keys.Theme) {
		theme := nextMarkdownTheme(m.markdown.Theme())
		m.markdown.SetTheme(theme)
		m.cfg.Theme = theme.String()
		_ = saveUIConfig(m.cfg, m.cfgPath)
		m.refreshChatView()
		return true, m.setToast("Markdown theme: " + theme.String())
	}

	switch m.view {
	case viewHome:
		return m.handleHomeKey(msg)
	case viewFormat:
		return m.handleFormatKey(msg)
	case viewAI:
		return m.handleAIKey(msg)
	}
	return false, nil
}

func (m *model) handleHomeKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if !m.pathInput.Focused() {
			if entry, ok := m.recentList.SelectedItem().(listEntry); ok {
				if path, ok := entry.payload.(string); ok {
					m.pathInput.SetValue(path)
				}
			}
		}
		path := strings.TrimSpace(m.pathInput.Value())
		if path == "" || m.processing {
			return true, nil
		}
		m.processing = true
		m.err = ""
		return true, m.analyzeCmd(path)
	case "f":
		if m.file != nil && !m.pathInput.Focused() {
			m.openFormatWizard()
			return true, nil
		}
	case "a":
		if m.file != nil && !m.pathInput.Focused() {
			return true, m.openAIWizard()
		}
	case "tab":
		if m.pathInput.Focused() {
			m.pathInput.Blur()
		} else {
			m.pathInput.Focus()
		}
		return true, nil
	}
	return false, nil
}

func (m *model) handleFormatKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	w := m.format
	if w == nil {
		return false, nil
	}
	if key.Matches(msg, m.keys.CloseWiz) {
		m.closeWizard()
		return true, nil
	}
	if key.Matches(msg, m.keys.Next) {
		return true, m.advanceFormat()
	}
	if key.Matches(msg, m.keys.Back) {
		w.back()
		m.refreshStepWidgets()
		return true, nil
	}

	switch w.step() {
	case stepSelectSheet:
		if msg.String() == "enter" {
			if entry, ok := m.sheetList.SelectedItem().(listEntry); ok {
				if name, ok := entry.payload.(string); ok {
					w.selectSheet(name)
					m.refreshStepWidgets()
				}
			}
			return true, nil
		}
	case stepSelectColumns:
		switch msg.String() {
		case " ", "enter":
			if entry, ok := m.columnList.SelectedItem().(listEntry); ok {
				if idx, ok := entry.payload.(int); ok {
					w.toggleColumn(idx)
					m.refreshColumnList()
				}
			}
			return true, nil
		case "t":
			if entry, ok := m.columnList.SelectedItem().(listEntry); ok {
				if idx, ok := entry.payload.(int); ok && idx < len(w.columns) {
					w.setColumnType(idx, nextDataType(w.columns[idx].SelectedType))
					m.refreshColumnList()
				}
			}
			return true, nil
		}
	case stepSpecifyActions:
		name, ok := m.highlightedActionColumn()
		if !ok {
			break
		}
		switch msg.String() {
		case "e":
			current := ""
			if a := findAction(w.actions, name); a != nil && a.ReplaceEmpty != nil {
				current = *a.ReplaceEmpty
			}
			m.openOverlayInput(inputReplaceEmpty, name, "Replace empty cells with", current)
			return true, nil
		case "c":
			col := m.selectedColumnByName(name)
			if col == nil || col.SelectedType != typeString {
				return true, m.setToast("Case change applies to string columns only")
			}
			var mode caseMode
			if a := findAction(w.actions, name); a != nil {
				mode = a.ChangeCase
			}
			w.setChangeCase(name, nextCaseMode(mode))
			m.refreshActionList()
			return true, nil
		case "r":
			col := m.selectedColumnByName(name)
			if col == nil || col.SelectedType != typeNumber {
				return true, m.setToast("Rounding applies to number columns only")
			}
			current := ""
			if a := findAction(w.actions, name); a != nil && a.RoundDecimals != nil {
				current = strconv.Itoa(*a.RoundDecimals)
			}
			m.openOverlayInput(inputRoundDecimals, name, "Round to decimal places (0-10)", current)
			return true, nil
		}
	case stepDownload:
		if msg.String() == "enter" {
			if m.downloadDone {
				m.closeWizard()
				return true, nil
			}
			if w.processing {
				return true, nil
			}
			name := strings.TrimSpace(m.nameInput.Value())
			if name == "" {
				name = w.defaultFilename()
			}
			w.processing = true
			w.err = ""
			return true, m.exportCmd(name)
		}
	}
	return false, nil
}

func (m *model) handleAIKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	w := m.ai
	if w == nil {
		return false, nil
	}
	if key.Matches(msg, m.keys.CloseWiz) {
		cmd := m.closeWizardCmd()
		m.closeWizard()
		return true, cmd
	}
	if key.Matches(msg, m.keys.Next) {
		return true, m.advanceAI()
	}
	if key.Matches(msg, m.keys.Back) {
		w.back()
		m.refreshStepWidgets()
		return true, nil
	}

	switch w.step() {
	case stepSelectSheet:
		if msg.String() == "enter" {
			if entry, ok := m.sheetList.SelectedItem().(listEntry); ok {
				if name, ok := entry.payload.(string); ok {
					w.selectSheet(name)
				}
			}
			return true, nil
		}
	case stepChat:
		switch msg.String() {
		case "enter":
			if w.sessionID == "" {
				if w.start() == effectStartSession {
					return true, m.startSessionCmd()
				}
				return true, nil
			}
			content := strings.TrimSpace(m.chatInput.Value())
			if content == "" || !w.canSend() {
				return true, nil
			}
			w.appendUser(content)
			m.chatInput.SetValue("")
			m.refreshChatView()
			m.emit(telemetryEvent{Event: "chat_send", Mode: "ai"})
			return true, m.chatCmd(content)
		}
		if key.Matches(msg, m.keys.Copy) {
			if last, ok := w.lastAssistantMessage(); ok {
				if err := clipboard.WriteAll(last.Content); err == nil {
					return true, m.setToast("Copied assistant reply")
				}
			}
			return true, nil
		}
	case stepPreview:
		if key.Matches(msg, m.keys.Copy) {
			if err := clipboard.WriteAll(w.previewText); err == nil {
				return true, m.setToast("Copied preview")
			}
			return true, nil
		}
	case stepDownload:
		if msg.String() == "enter" {
			if m.downloadDone {
				cmd := m.closeWizardCmd()
				m.closeWizard()
				return true, cmd
			}
			if w.processing {
				return true, nil
			}
			name := strings.TrimSpace(m.nameInput.Value())
			if name == "" {
				name = w.defaultFilename()
			}
			w.processing = true
			w.err = ""
			return true, m.aiDownloadCmd(filepath.Join(m.cfg.exportDir(), name))
		}
	}
	return false, nil
}

// advanceFormat runs the manual machine one step forward and kicks off the
// preview computation when the transition asks for it.
func (m *model) advanceFormat() tea.Cmd {
	w := m.format
	switch w.next() {
	case effectComputePreview:
		// Snapshot on the update loop; the user can keep editing actions
		// while the computation runs.
		sheet, selected, actions, err := w.transformInputs()
		if err != nil {
			return func() tea.Msg { return previewComputedMsg{err: err} }
		}
		return func() tea.Msg {
			return previewComputedMsg{rows: transformRows(sheet.Snippet, previewRowLimit, selected, actions)}
		}
	}
	m.refreshStepWidgets()
	m.emit(telemetryEvent{Event: "step", Mode: "format", Step: string(w.step())})
	return nil
}

func (m *model) advanceAI() tea.Cmd {
	w := m.ai
	switch w.next() {
	case effectStartSession:
		return m.startSessionCmd()
	case effectFetchAIPreview:
		gen := m.tracker.begin(reqAIPreview)
		sessionID := w.sessionID
		return func() tea.Msg {
			text, err := m.api.getPreview(context.Background(), sessionID)
			return aiPreviewMsg{gen: gen, text: text, err: err}
		}
	}
	m.refreshStepWidgets()
	m.emit(telemetryEvent{Event: "step", Mode: "ai", Step: string(w.step())})
	return nil
}

func (m *model) updateFocusedWidget(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.view {
	case viewHome:
		if m.pathInput.Focused() {
			m.pathInput, cmd = m.pathInput.Update(msg)
		} else {
			m.recentList, cmd = m.recentList.Update(msg)
		}
	case viewFormat:
		switch m.format.step() {
		case stepSelectSheet:
			m.sheetList, cmd = m.sheetList.Update(msg)
		case stepSelectColumns:
			m.columnList, cmd = m.columnList.Update(msg)
		case stepSpecifyActions:
			m.actionList, cmd = m.actionList.Update(msg)
		case stepPreview:
			m.previewTable, cmd = m.previewTable.Update(msg)
		case stepDownload:
			m.nameInput, cmd = m.nameInput.Update(msg)
		}
	case viewAI:
		switch m.ai.step() {
		case stepSelectSheet:
			m.sheetList, cmd = m.sheetList.Update(msg)
		case stepChat:
			if keyMsg, ok := msg.(tea.KeyMsg); ok {
				switch keyMsg.String() {
				case "pgup", "pgdown":
					m.chatView, cmd = m.chatView.Update(msg)
					return cmd
				}
			}
			m.chatInput, cmd = m.chatInput.Update(msg)
		case stepPreview:
			m.previewView, cmd = m.previewView.Update(msg)
		case stepDownload:
			m.nameInput, cmd = m.nameInput.Update(msg)
		}
	}
	return cmd
}

func (m *model) updateOverlayInput(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.inputField, cmd = m.inputField.Update(msg)
		return cmd
	}
	switch keyMsg.String() {
	case "esc":
		m.closeOverlayInput()
		return nil
	case "ctrl+x":
		if m.format != nil {
			switch m.inputMode {
			case inputReplaceEmpty:
				m.format.clearReplaceEmpty(m.inputTarget)
			case inputRoundDecimals:
				m.format.clearRoundDecimals(m.inputTarget)
			}
			m.refreshActionList()
		}
		m.closeOverlayInput()
		return nil
	case "enter":
		value := m.inputField.Value()
		mode, target := m.inputMode, m.inputTarget
		m.closeOverlayInput()
		if m.format == nil {
			return nil
		}
		switch mode {
		case inputReplaceEmpty:
			m.format.setReplaceEmpty(target, value)
		case inputRoundDecimals:
			decimals, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || decimals < 0 || decimals > 10 {
				return m.setToast("Enter a whole number between 0 and 10")
			}
			m.format.setRoundDecimals(target, decimals)
		}
		m.refreshActionList()
		return nil
	}
	var cmd tea.Cmd
	m.inputField, cmd = m.inputField.Update(msg)
	return cmd
}

func (m *model) openOverlayInput(mode inputMode, target, prompt, initial string) {
	m.inputActive = true
	m.inputMode = mode
	m.inputTarget = target
	m.inputPrompt = prompt
	m.inputField.SetValue(initial)
	m.inputField.CursorEnd()
	m.inputField.Focus()
}

func (m *model) closeOverlayInput() {
	m.inputActive = false
	m.inputMode = inputNone
	m.inputTarget = ""
	m.inputField.Blur()
	m.inputField.SetValue("")
}

func (m *model) openFormatWizard() {
	m.format = newFormatWizard(m.file)
	m.view = viewFormat
	m.downloadDone = false
	m.downloadPath = ""
	m.refreshStepWidgets()
	m.emit(telemetryEvent{Event: "wizard_open", Mode: "format", File: m.file.Path})
}

func (m *model) openAIWizard() tea.Cmd {
	m.ai = newAIWizard(m.file)
	m.view = viewAI
	m.downloadDone = false
	m.downloadPath = ""
	m.refreshStepWidgets()
	m.emit(telemetryEvent{Event: "wizard_open", Mode: "ai", File: m.file.Path})
	cmds := []tea.Cmd{m.tokenStatusCmd()}
	// A single-sheet workbook opens straight onto chat, so the session has
	// to start here rather than on the sheet-selection transition.
	if m.ai.start() == effectStartSession {
		cmds = append(cmds, m.startSessionCmd())
	}
	return tea.Batch(cmds...)
}

// closeWizardCmd ends the remote AI session best-effort before the wizard
// state is torn down.
func (m *model) closeWizardCmd() tea.Cmd {
	if m.ai == nil || m.ai.sessionID == "" {
		return nil
	}
	sessionID := m.ai.sessionID
	return func() tea.Msg {
		return sessionEndedMsg{err: m.api.endSession(context.Background(), sessionID)}
	}
}

func (m *model) closeWizard() {
	m.emit(telemetryEvent{Event: "wizard_close", Mode: m.modeLabel()})
	m.format = nil
	m.ai = nil
	m.view = viewHome
	m.downloadDone = false
	m.chatInput.Blur()
	m.nameInput.Blur()
	m.pathInput.Focus()
}

func (m *model) modeLabel() string {
	if m.view == viewAI {
		return "ai"
	}
	if m.view == viewFormat {
		return "format"
	}
	return ""
}

// refreshStepWidgets rebuilds the widget backing the current step after a
// transition. Wizard state itself is never touched here, so back-and-forward
// keeps columns, actions and the transcript intact.
func (m *model) refreshStepWidgets() {
	step := wizardStep("")
	switch m.view {
	case viewFormat:
		if m.format == nil {
			return
		}
		step = m.format.step()
	case viewAI:
		if m.ai == nil {
			return
		}
		step = m.ai.step()
	default:
		return
	}

	switch step {
	case stepSelectSheet:
		m.sheetList = newSelectableList("Sheets", sheetListItems(m.file), m.styles)
	case stepSelectColumns:
		m.refreshColumnList()
	case stepSpecifyActions:
		m.refreshActionList()
	case stepChat:
		m.refreshChatView()
		m.chatInput.Focus()
	case stepDownload:
		switch m.view {
		case viewFormat:
			m.nameInput.SetValue(m.format.defaultFilename())
		case viewAI:
			m.nameInput.SetValue(m.ai.defaultFilename())
		}
		m.nameInput.CursorEnd()
		m.nameInput.Focus()
	}
	m.applyLayout()
}

func (m *model) refreshColumnList() {
	if m.format == nil {
		return
	}
	idx := m.columnList.Index()
	m.columnList = newSelectableList("Columns", columnListItems(m.format.columns, m.format.actions), m.styles)
	if idx > 0 && idx < len(m.format.columns) {
		m.columnList.Select(idx)
	}
	m.applyLayout()
}

func (m *model) refreshActionList() {
	if m.format == nil {
		return
	}
	idx := m.actionList.Index()
	selected := m.format.selectedColumns()
	items := make([]list.Item, len(selected))
	for i, col := range selected {
		desc := string(col.SelectedType)
		if summary := actionSummary(findAction(m.format.actions, col.Name)); summary != "" {
			desc += " • " + summary
		}
		items[i] = listEntry{title: col.Name, desc: desc, payload: col.Name}
	}
	m.actionList = newSelectableList("Actions", items, m.styles)
	if idx > 0 && idx < len(selected) {
		m.actionList.Select(idx)
	}
	m.applyLayout()
}

func (m *model) refreshChatView() {
	if m.ai == nil {
		return
	}
	m.chatView.SetContent(renderChatTranscript(m.styles, m.markdown, m.ai.messages))
	m.chatView.GotoBottom()
}

func (m *model) highlightedActionColumn() (string, bool) {
	entry, ok := m.actionList.SelectedItem().(listEntry)
	if !ok {
		return "", false
	}
	name, ok := entry.payload.(string)
	return name, ok
}

func (m *model) selectedColumnByName(name string) *columnSelection {
	if m.format == nil {
		return nil
	}
	for i := range m.format.columns {
		if m.format.columns[i].Name == name {
			return &m.format.columns[i]
		}
	}
	return nil
}

func (m *model) analyzeCmd(path string) tea.Cmd {
	gen := m.tracker.begin(reqAnalyze)
	return func() tea.Msg {
		file, err := m.api.analyzeSpreadsheet(context.Background(), path)
		return workbookAnalyzedMsg{gen: gen, file: file, err: err}
	}
}

func (m *model) startSessionCmd() tea.Cmd {
	gen := m.tracker.begin(reqSession)
	path, sheet := m.file.Path, m.ai.selectedSheet
	return func() tea.Msg {
		info, err := m.api.startSession(context.Background(), path, sheet)
		return sessionStartedMsg{gen: gen, info: info, err: err}
	}
}

func (m *model) chatCmd(content string) tea.Cmd {
	gen := m.tracker.begin(reqChat)
	sessionID := m.ai.sessionID
	return func() tea.Msg {
		reply, err := m.api.sendMessage(context.Background(), sessionID, content)
		return chatReplyMsg{gen: gen, reply: reply, err: err}
	}
}

func (m *model) exportCmd(filename string) tea.Cmd {
	w := m.format
	dest := filepath.Join(m.cfg.exportDir(), filename)
	sheet, selected, actions, err := w.transformInputs()
	if err != nil {
		return func() tea.Msg { return exportDoneMsg{err: err} }
	}
	sheetName := w.selectedSheet
	order := w.selectedColumnNames()
	return func() tea.Msg {
		rows := transformRows(sheet.Snippet, 0, selected, actions)
		if err := writeWorkbook(dest, sheetName, order, rows); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: dest}
	}
}

func (m *model) aiDownloadCmd(dest string) tea.Cmd {
	gen := m.tracker.begin(reqAIDownload)
	sessionID := m.ai.sessionID
	return func() tea.Msg {
		err := m.api.downloadFile(context.Background(), sessionID, dest)
		return aiDownloadMsg{gen: gen, path: dest, err: err}
	}
}

func (m *model) tokenStatusCmd() tea.Cmd {
	gen := m.tracker.begin(reqTokens)
	return func() tea.Msg {
		status, err := m.api.tokenStatus(context.Background())
		return tokenStatusMsg{gen: gen, status: status, err: err}
	}
}

func (m *model) loadHistoryCmd() tea.Cmd {
	store := m.history
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		files, err := store.List()
		if err != nil {
			return historyLoadedMsg{}
		}
		return historyLoadedMsg{files: files}
	}
}

func (m *model) setToast(text string) tea.Cmd {
	m.toastMessage = text
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg { return toastClearMsg{} })
}

func (m *model) emit(event telemetryEvent) {
	if m.telemetry != nil {
		m.telemetry.Emit(event)
	}
}

func (m *model) bodyWidth() int {
	if m.width <= 4 {
		return 76
	}
	return m.width - 4
}

func (m *model) applyLayout() {
	width := m.bodyWidth()
	listHeight := m.height - 10
	if listHeight < 6 {
		listHeight = 6
	}
	m.recentList.SetSize(width, listHeight)
	m.sheetList.SetSize(width, listHeight)
	m.columnList.SetSize(width, listHeight)
	m.actionList.SetSize(width, listHeight)

	chatHeight := m.height - 12
	if chatHeight < 5 {
		chatHeight = 5
	}
	m.chatView.Width = width
	m.chatView.Height = chatHeight
	m.previewView.Width = width
	m.previewView.Height = listHeight
	m.markdown.SetWrap(width - 2)

	m.pathInput.Width = width - 10
	m.chatInput.Width = width - 4
	m.nameInput.Width = width - 12
}

func nextDataType(t dataType) dataType {
	switch t {
	case typeString:
		return typeNumber
	case typeNumber:
		return typeDate
	case typeDate:
		return typeBoolean
	default:
		return typeString
	}
}

func nextCaseMode(mode caseMode) caseMode {
	switch mode {
	case "":
		return caseUpper
	case caseUpper:
		return caseLower
	case caseLower:
		return caseTitle
	default:
		return ""
	}
}

func (m *model) View() string {
	var b strings.Builder

	b.WriteString(m.renderTopBar())
	b.WriteString("\n")
	if steps := m.renderSteps(); steps != "" {
		b.WriteString(steps)
		b.WriteString("\n")
	}
	b.WriteString(m.renderBody())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	view := b.String()
	if m.inputActive {
		overlay := m.styles.inputOverlay.Render(
			m.styles.inputPrompt.Render(m.inputPrompt) + "\n" +
				m.inputField.View() + "\n" +
				m.styles.inputHint.Render("enter save • ctrl+x clear • esc cancel"))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, overlay)
	}
	return view
}

func (m *model) renderTopBar() string {
	title := m.styles.topTitle.Render("cleansheet")
	segments := []string{title}
	if m.file != nil {
		segments = append(segments, m.styles.mutedText.Render(filepath.Base(m.file.Path)))
	}
	remaining, limit := m.tokens.Remaining, m.tokens.DailyLimit
	if m.ai != nil && m.ai.dailyLimit > 0 {
		remaining, limit = m.ai.remainingTokens, m.ai.dailyLimit
	}
	if badge := renderTokenBadge(m.styles, remaining, limit); badge != "" {
		segments = append(segments, badge)
	}
	return m.styles.topBar.Render(strings.Join(segments, "  "))
}

func (m *model) renderSteps() string {
	var steps []stepDefinition
	index := 0
	switch m.view {
	case viewFormat:
		steps, index = m.format.stepList(), m.format.stepIndex()
	case viewAI:
		steps, index = m.ai.stepList(), m.ai.stepIndex()
	default:
		return ""
	}
	parts := make([]string, len(steps))
	for i, step := range steps {
		label := fmt.Sprintf("%d. %s", i+1, step.Label)
		switch {
		case i == index:
			parts[i] = m.styles.stepActive.Render(label)
		case i < index:
			parts[i] = m.styles.stepDone.Render(label)
		default:
			parts[i] = m.styles.stepPending.Render(label)
		}
	}
	return m.styles.stepsRow.Render(strings.Join(parts, " → "))
}

func (m *model) renderBody() string {
	switch m.view {
	case viewFormat:
		return m.renderFormatBody()
	case viewAI:
		return m.renderAIBody()
	default:
		return m.renderHomeBody()
	}
}

func (m *model) renderHomeBody() string {
	var b strings.Builder
	b.WriteString(m.styles.columnTitle.Render("Open a workbook"))
	b.WriteString("\n")
	b.WriteString(m.styles.listItem.Render(m.pathInput.View()))
	b.WriteString("\n")
	if m.processing {
		b.WriteString(m.styles.listItem.Render(m.spinner.View() + " Analyzing…"))
		b.WriteString("\n")
	}
	if m.err != "" {
		b.WriteString(m.styles.errorText.Render("  " + m.err))
		b.WriteString("\n")
	}
	if m.file != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.listItem.Render(fmt.Sprintf(
			"%s — %d sheet(s). Press f to format manually, a for the AI assistant.",
			filepath.Base(m.file.Path), len(m.file.Sheets))))
		b.WriteString("\n")
	}
	if len(m.recentList.Items()) > 0 {
		b.WriteString("\n")
		b.WriteString(m.recentList.View())
	}
	return b.String()
}

func (m *model) renderFormatBody() string {
	w := m.format
	var b strings.Builder
	if w.processing {
		b.WriteString(m.styles.listItem.Render(m.spinner.View() + " Working…"))
		b.WriteString("\n")
	}
	if w.err != "" {
		b.WriteString(m.styles.errorText.Render("  " + w.err))
		b.WriteString("\n")
	}
	switch w.step() {
	case stepSelectSheet:
		b.WriteString(m.sheetList.View())
		if w.selectedSheet != "" {
			b.WriteString("\n" + m.styles.mutedText.Render("  Selected: "+w.selectedSheet))
		}
	case stepSelectColumns:
		b.WriteString(m.columnList.View())
		b.WriteString("\n" + m.styles.statusHint.Render("  space toggle • t cycle type"))
	case stepSpecifyActions:
		b.WriteString(m.actionList.View())
		b.WriteString("\n" + m.styles.statusHint.Render("  e replace empty • c cycle case • r round decimals"))
	case stepPreview:
		b.WriteString(m.styles.columnTitle.Render("Preview (first rows)"))
		b.WriteString("\n")
		b.WriteString(m.previewTable.View())
	case stepDownload:
		b.WriteString(m.styles.columnTitle.Render("Download"))
		b.WriteString("\n")
		if m.downloadDone {
			b.WriteString(m.styles.successText.Render("  Saved " + m.downloadPath))
			b.WriteString("\n" + m.styles.statusHint.Render("  enter close"))
		} else {
			b.WriteString(m.styles.listItem.Render(m.nameInput.View()))
			b.WriteString("\n" + m.styles.statusHint.Render("  enter save"))
		}
	}
	return b.String()
}

func (m *model) renderAIBody() string {
	w := m.ai
	var b strings.Builder
	if w.processing {
		b.WriteString(m.styles.listItem.Render(m.spinner.View() + " Working…"))
		b.WriteString("\n")
	}
	if w.err != "" {
		b.WriteString(m.styles.errorText.Render("  " + w.err))
		b.WriteString("\n")
	}
	switch w.step() {
	case stepSelectSheet:
		b.WriteString(m.sheetList.View())
		if w.selectedSheet != "" {
			b.WriteString("\n" + m.styles.mutedText.Render("  Selected: "+w.selectedSheet))
		}
	case stepChat:
		b.WriteString(m.chatView.View())
		b.WriteString("\n")
		b.WriteString(m.styles.listItem.Render(m.chatInput.View()))
		if !w.canSend() && w.remainingTokens <= 0 {
			b.WriteString("\n" + m.styles.errorText.Render("  Daily token limit reached."))
		}
	case stepPreview:
		b.WriteString(m.styles.columnTitle.Render("Preview"))
		b.WriteString("\n")
		b.WriteString(m.previewView.View())
	case stepDownload:
		b.WriteString(m.styles.columnTitle.Render("Download"))
		b.WriteString("\n")
		if m.downloadDone {
			b.WriteString(m.styles.successText.Render("  Saved " + m.downloadPath))
			b.WriteString("\n" + m.styles.statusHint.Render("  enter close"))
		} else {
			b.WriteString(m.styles.listItem.Render(m.nameInput.View()))
			b.WriteString("\n" + m.styles.statusHint.Render("  enter download"))
		}
	}
	return b.String()
}

func (m *model) renderStatusBar() string {
	var segments []string
	if m.toastMessage != "" {
		segments = append(segments, m.styles.statusSeg.Render(m.toastMessage))
	}
	segments = append(segments, m.help.View(m.keys))
	return m.styles.statusBar.Render(strings.Join(segments, " "))
}
