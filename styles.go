package main

import "github.com/charmbracelet/lipgloss"

type colorPalette struct {
	accent    lipgloss.Color
	textMuted lipgloss.Color
	ok        lipgloss.Color
	warn      lipgloss.Color
	fail      lipgloss.Color
}

var palette = colorPalette{
	accent:    lipgloss.Color("60"),
	textMuted: lipgloss.Color("244"),
	ok:        lipgloss.Color("78"),
	warn:      lipgloss.Color("214"),
	fail:      lipgloss.Color("203"),
}

type styles struct {
	app, topBar, topTitle, topBadge       lipgloss.Style
	stepsRow, stepActive, stepDone        lipgloss.Style
	stepPending                           lipgloss.Style
	panel, panelFocused, columnTitle      lipgloss.Style
	listItem, listSel                     lipgloss.Style
	chatUser, chatAssistant, chatMeta     lipgloss.Style
	statusBar, statusSeg, statusHint      lipgloss.Style
	errorText, successText, mutedText     lipgloss.Style
	inputOverlay, inputPrompt, inputHint  lipgloss.Style
}

func newStyles() styles {
	base := lipgloss.NewStyle()
	panelBorder := lipgloss.NormalBorder()
	focusedBorder := lipgloss.DoubleBorder()

	return styles{
		app:           base,
		topBar:        base.Padding(0, 1),
		topTitle:      base.Copy().Bold(true),
		topBadge:      base.Padding(0, 1).Foreground(palette.accent),
		stepsRow:      base.Padding(0, 1),
		stepActive:    base.Copy().Bold(true).Foreground(palette.accent),
		stepDone:      base.Copy().Foreground(palette.ok),
		stepPending:   base.Copy().Faint(true),
		panel:         base.BorderStyle(panelBorder),
		panelFocused:  base.BorderStyle(focusedBorder),
		columnTitle:   base.Copy().Bold(true).Padding(0, 1),
		listItem:      base.Padding(0, 1),
		listSel:       base.Padding(0, 1).Bold(true),
		chatUser:      base.Copy().Bold(true).Foreground(palette.accent),
		chatAssistant: base.Copy().Bold(true).Foreground(palette.ok),
		chatMeta:      base.Copy().Faint(true),
		statusBar:     base.Padding(0, 1),
		statusSeg:     base.Padding(0, 1).MarginRight(1),
		statusHint:    base.Copy().Faint(true),
		errorText:     base.Copy().Foreground(palette.fail),
		successText:   base.Copy().Foreground(palette.ok),
		mutedText:     base.Copy().Foreground(palette.textMuted),
		inputOverlay:  base.Border(lipgloss.RoundedBorder()).Padding(1, 2),
		inputPrompt:   base.Copy().Bold(true),
		inputHint:     base.Copy().Faint(true),
	}
}
