package main

import "time"

var (
	aiStepsMulti = []stepDefinition{
		{stepSelectSheet, "Select Sheet"},
		{stepChat, "Chat with AI"},
		{stepPreview, "Preview Changes"},
		{stepDownload, "Download"},
	}
	aiStepsSingle = aiStepsMulti[1:]
)

// aiWizard is the conversational flow. All data transformation happens
// server-side inside the remote session; the client mirrors the transcript,
// the token budget and the server-rendered preview.
type aiWizard struct {
	file  *workbookFile
	steps []stepDefinition
	index int

	selectedSheet   string
	messages        []chatMessage
	sessionID       string
	remainingTokens int
	dailyLimit      int
	previewText     string

	processing bool
	err        string
}

func newAIWizard(file *workbookFile) *aiWizard {
	if file.multiSheet() {
		return &aiWizard{file: file, steps: aiStepsMulti}
	}
	return &aiWizard{
		file:          file,
		steps:         aiStepsSingle,
		selectedSheet: file.Sheets[0].Name,
	}
}

func (w *aiWizard) step() wizardStep           { return w.steps[w.index].ID }
func (w *aiWizard) stepIndex() int             { return w.index }
func (w *aiWizard) stepList() []stepDefinition { return w.steps }

func (w *aiWizard) canProceed() bool {
	switch w.step() {
	case stepSelectSheet:
		return w.selectedSheet != ""
	case stepChat:
		return len(w.messages) > 0
	case stepPreview:
		return w.previewText != ""
	default:
		return false
	}
}

// next advances one step. The first transition into chat starts the remote
// session and the transition into preview fetches the server-side preview;
// both hold the machine on the current step until the response lands.
func (w *aiWizard) next() wizardEffect {
	if w.processing || !w.canProceed() || w.index+1 >= len(w.steps) {
		return effectNone
	}
	switch w.steps[w.index+1].ID {
	case stepChat:
		if w.sessionID == "" {
			w.processing = true
			w.err = ""
			return effectStartSession
		}
	case stepPreview:
		w.processing = true
		w.err = ""
		return effectFetchAIPreview
	}
	w.index++
	return effectNone
}

// start opens the remote session when the machine begins directly on the
// chat step, which happens when sheet selection is elided for a single-sheet
// workbook. It is also the retry path after a failed open.
func (w *aiWizard) start() wizardEffect {
	if w.step() == stepChat && w.sessionID == "" && !w.processing {
		w.processing = true
		w.err = ""
		return effectStartSession
	}
	return effectNone
}

func (w *aiWizard) back() {
	if w.index == 0 || w.processing {
		return
	}
	w.index--
	w.err = ""
}

func (w *aiWizard) selectSheet(name string) {
	if _, ok := w.file.sheetByName(name); !ok {
		return
	}
	w.selectedSheet = name
}

// applySessionStarted completes the start-session effect. On failure the
// machine stays where it is with the error surfaced. The step only advances
// when the session was requested from sheet selection; a session opened on
// entry to chat leaves the machine on chat.
func (w *aiWizard) applySessionStarted(info sessionInfo, err error) {
	w.processing = false
	if err != nil {
		w.err = err.Error()
		return
	}
	w.sessionID = info.SessionID
	w.remainingTokens = info.RemainingTokens
	w.dailyLimit = info.DailyLimit
	w.err = ""
	if w.step() == stepSelectSheet {
		w.index++
	}
}

// canSend gates message submission. The token budget is server-enforced; the
// client only disables the affordance when the mirrored counter hits zero.
func (w *aiWizard) canSend() bool {
	return w.sessionID != "" && !w.processing && w.remainingTokens > 0
}

// appendUser records the outgoing message optimistically, before the backend
// confirms it.
func (w *aiWizard) appendUser(content string) {
	w.messages = append(w.messages, chatMessage{Role: roleUser, Content: content, At: time.Now()})
	w.processing = true
	w.err = ""
}

func (w *aiWizard) applyReply(reply chatReply, err error) {
	w.processing = false
	if err != nil {
		w.err = err.Error()
		return
	}
	w.messages = append(w.messages, chatMessage{Role: roleAssistant, Content: reply.Response, At: time.Now()})
	w.remainingTokens = reply.RemainingTokens
}

func (w *aiWizard) applyPreview(text string, err error) {
	w.processing = false
	if err != nil {
		w.err = err.Error()
		return
	}
	w.previewText = text
	w.err = ""
	w.index++
}

func (w *aiWizard) lastAssistantMessage() (chatMessage, bool) {
	for i := len(w.messages) - 1; i >= 0; i-- {
		if w.messages[i].Role == roleAssistant {
			return w.messages[i], true
		}
	}
	return chatMessage{}, false
}

func (w *aiWizard) defaultFilename() string {
	return w.file.baseName() + "_cleaned.xlsx"
}
