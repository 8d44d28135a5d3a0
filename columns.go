package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

type listEntry struct {
	title   string
	desc    string
	payload any
}

func (e listEntry) Title() string       { return e.title }
func (e listEntry) Description() string { return e.desc }
func (e listEntry) FilterValue() string { return e.title }

func newSelectableList(title string, items []list.Item, s styles) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = s.listSel
	delegate.Styles.SelectedDesc = s.listSel.Copy().Faint(true)
	delegate.Styles.NormalTitle = s.listItem
	delegate.Styles.NormalDesc = s.listItem.Copy().Foreground(palette.textMuted)

	m := list.New(items, delegate, 40, 14)
	m.Title = title
	m.SetShowStatusBar(false)
	m.SetFilteringEnabled(false)
	m.SetShowHelp(false)
	m.SetShowPagination(false)
	return m
}

func sheetListItems(file *workbookFile) []list.Item {
	items := make([]list.Item, len(file.Sheets))
	for i, sheet := range file.Sheets {
		items[i] = listEntry{
			title:   sheet.Name,
			desc:    fmt.Sprintf("%d columns, %d sample rows", len(sheet.Columns), len(sheet.Snippet)),
			payload: sheet.Name,
		}
	}
	return items
}

func recentFileItems(files []recentFile) []list.Item {
	items := make([]list.Item, len(files))
	for i, f := range files {
		items[i] = listEntry{title: f.Label, desc: f.Path, payload: f.Path}
	}
	return items
}

func columnListItems(columns []columnSelection, actions []columnAction) []list.Item {
	items := make([]list.Item, len(columns))
	for i, col := range columns {
		mark := "[ ]"
		if col.Selected {
			mark = "[x]"
		}
		desc := fmt.Sprintf("%s → %s", col.OriginalType, col.SelectedType)
		if summary := actionSummary(findAction(actions, col.Name)); summary != "" {
			desc += " • " + summary
		}
		items[i] = listEntry{
			title:   fmt.Sprintf("%s %s", mark, col.Name),
			desc:    desc,
			payload: i,
		}
	}
	return items
}

func actionSummary(action *columnAction) string {
	if action == nil {
		return ""
	}
	var parts []string
	if action.ReplaceEmpty != nil {
		parts = append(parts, fmt.Sprintf("empty→%q", *action.ReplaceEmpty))
	}
	if action.ChangeCase != "" {
		parts = append(parts, string(action.ChangeCase))
	}
	if action.RoundDecimals != nil {
		parts = append(parts, fmt.Sprintf("round %d", *action.RoundDecimals))
	}
	return strings.Join(parts, ", ")
}

// newPreviewTable lays the transformed sample rows out with one column per
// selected sheet column, in selection order.
func newPreviewTable(names []string, rows []map[string]any, width int) table.Model {
	colWidth := 16
	if len(names) > 0 && width > 0 {
		colWidth = width/len(names) - 2
		if colWidth < 8 {
			colWidth = 8
		}
	}
	columns := make([]table.Column, len(names))
	for i, name := range names {
		columns[i] = table.Column{Title: name, Width: colWidth}
	}
	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		cells := make(table.Row, len(names))
		for j, name := range names {
			cells[j] = formatCell(row[name])
		}
		tableRows[i] = cells
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithHeight(len(rows)+1),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	st.Selected = lipgloss.NewStyle()
	t.SetStyles(st)
	return t
}

func formatCell(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.10f", value), "0"), ".")
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}

// renderChatTranscript renders the conversation, assistant turns through
// glamour, for display in the chat viewport.
func renderChatTranscript(s styles, md *markdownView, messages []chatMessage) string {
	if len(messages) == 0 {
		return s.mutedText.Render("Describe the cleanup you want, e.g. \"drop rows with an empty email\".")
	}
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		stamp := s.chatMeta.Render(msg.At.Format("15:04"))
		switch msg.Role {
		case roleUser:
			b.WriteString(s.chatUser.Render("You") + " " + stamp + "\n")
			b.WriteString(msg.Content + "\n")
		default:
			b.WriteString(s.chatAssistant.Render("Assistant") + " " + stamp + "\n")
			b.WriteString(strings.TrimRight(md.Render(msg.Content), "\n") + "\n")
		}
	}
	return b.String()
}
