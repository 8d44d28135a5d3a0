package main

import (
	"errors"
	"testing"
)

func TestAIWizardSingleSheetSkipsSheetSelection(t *testing.T) {
	w := newAIWizard(singleSheetFile())
	if w.step() != stepChat {
		t.Fatalf("step = %q, want %q", w.step(), stepChat)
	}
	if len(w.stepList()) != 3 {
		t.Errorf("step count = %d, want 3", len(w.stepList()))
	}
	if w.selectedSheet != "Orders" {
		t.Errorf("selectedSheet = %q", w.selectedSheet)
	}
}

func TestAIWizardSingleSheetStartsSessionOnOpen(t *testing.T) {
	w := newAIWizard(singleSheetFile())
	if w.step() != stepChat {
		t.Fatalf("step = %q", w.step())
	}

	// With sheet selection elided there is no transition into chat, so the
	// session has to be requested on entry or the flow can never send.
	if eff := w.start(); eff != effectStartSession {
		t.Fatalf("start() = %v, want effectStartSession", eff)
	}
	if !w.processing {
		t.Fatal("start must flag processing")
	}
	if eff := w.start(); eff != effectNone {
		t.Error("start must not double-request while in flight")
	}

	w.applySessionStarted(sessionInfo{SessionID: "s-7", RemainingTokens: 500, DailyLimit: 1000}, nil)
	if w.step() != stepChat {
		t.Fatalf("session opened on chat entry must stay on chat, at %q", w.step())
	}
	if !w.canSend() {
		t.Fatal("chat must be sendable once the session is open")
	}
}

func TestAIWizardSingleSheetStartRetriesAfterFailure(t *testing.T) {
	w := newAIWizard(singleSheetFile())
	w.start()
	w.applySessionStarted(sessionInfo{}, errors.New("backend down"))
	if w.step() != stepChat || w.processing {
		t.Fatalf("at %q processing=%v", w.step(), w.processing)
	}
	if w.err != "backend down" {
		t.Errorf("err = %q", w.err)
	}
	if eff := w.start(); eff != effectStartSession {
		t.Fatalf("retry start() = %v, want effectStartSession", eff)
	}
}

func TestAIWizardStartIsInertOutsideChatEntry(t *testing.T) {
	w := newAIWizard(multiSheetFile())
	if eff := w.start(); eff != effectNone {
		t.Errorf("start on sheet selection = %v, want effectNone", eff)
	}
	w.sessionID = "s-1"
	single := newAIWizard(singleSheetFile())
	single.sessionID = "s-2"
	if eff := single.start(); eff != effectNone {
		t.Errorf("start with a live session = %v, want effectNone", eff)
	}
}

func TestAIWizardSessionStartsOnChatEntry(t *testing.T) {
	w := newAIWizard(multiSheetFile())
	if w.step() != stepSelectSheet {
		t.Fatalf("step = %q", w.step())
	}
	w.selectSheet("Orders")

	if eff := w.next(); eff != effectStartSession {
		t.Fatalf("entering chat must start the session, got %v", eff)
	}
	if w.step() != stepSelectSheet || !w.processing {
		t.Fatal("machine must hold position while the session opens")
	}

	w.applySessionStarted(sessionInfo{SessionID: "s-1", RemainingTokens: 900, DailyLimit: 1000}, nil)
	if w.step() != stepChat {
		t.Fatalf("step = %q after session start", w.step())
	}
	if w.sessionID != "s-1" || w.remainingTokens != 900 || w.dailyLimit != 1000 {
		t.Errorf("session state not mirrored: %+v", w)
	}
}

func TestAIWizardSessionFailureAbortsTransition(t *testing.T) {
	w := newAIWizard(multiSheetFile())
	w.selectSheet("Orders")
	w.next()
	w.applySessionStarted(sessionInfo{}, errors.New("limit reached"))
	if w.step() != stepSelectSheet {
		t.Fatalf("failed session start must not advance, at %q", w.step())
	}
	if w.err != "limit reached" {
		t.Errorf("err = %q", w.err)
	}
	// A later retry is allowed.
	if eff := w.next(); eff != effectStartSession {
		t.Errorf("retry must re-request the session, got %v", eff)
	}
}

func TestAIWizardExistingSessionReentersChatDirectly(t *testing.T) {
	w := newAIWizard(multiSheetFile())
	w.selectSheet("Orders")
	w.next()
	w.applySessionStarted(sessionInfo{SessionID: "s-1", RemainingTokens: 100, DailyLimit: 100}, nil)
	w.back()
	if w.step() != stepSelectSheet {
		t.Fatalf("at %q", w.step())
	}
	if eff := w.next(); eff != effectNone {
		t.Errorf("re-entering chat with a live session must not restart it, got %v", eff)
	}
	if w.step() != stepChat {
		t.Errorf("at %q", w.step())
	}
}

func TestAIWizardCanSend(t *testing.T) {
	w := newAIWizard(singleSheetFile())
	if w.canSend() {
		t.Error("no session yet")
	}
	w.sessionID = "s-1"
	w.remainingTokens = 10
	if !w.canSend() {
		t.Error("live session with tokens must allow sending")
	}
	w.processing = true
	if w.canSend() {
		t.Error("in-flight request must block sending")
	}
	w.processing = false
	w.remainingTokens = 0
	if w.canSend() {
		t.Error("exhausted budget must block sending")
	}
}

func TestAIWizardChatRoundTrip(t *testing.T) {
	w := newAIWizard(singleSheetFile())
	w.sessionID = "s-1"
	w.remainingTokens = 500

	w.appendUser("drop empty rows")
	if len(w.messages) != 1 || w.messages[0].Role != roleUser {
		t.Fatalf("optimistic append missing: %+v", w.messages)
	}
	if !w.processing {
		t.Fatal("send must flag processing")
	}

	w.applyReply(chatReply{Response: "Dropped 3 rows.", RemainingTokens: 420}, nil)
	if len(w.messages) != 2 || w.messages[1].Role != roleAssistant {
		t.Fatalf("reply not recorded: %+v", w.messages)
	}
	if w.remainingTokens != 420 {
		t.Errorf("token mirror = %d, want 420", w.remainingTokens)
	}

	last, ok := w.lastAssistantMessage()
	if !ok || last.Content != "Dropped 3 rows." {
		t.Errorf("lastAssistantMessage = %+v ok=%v", last, ok)
	}
}

func TestAIWizardReplyFailureKeepsUserMessage(t *testing.T) {
	w := newAIWizard(singleSheetFile())
	w.sessionID = "s-1"
	w.remainingTokens = 500
	w.appendUser("hello")
	w.applyReply(chatReply{}, errors.New("backend down"))
	if len(w.messages) != 1 {
		t.Errorf("user message must survive a failed reply: %+v", w.messages)
	}
	if w.err == "" {
		t.Error("error must surface")
	}
	if w.remainingTokens != 500 {
		t.Error("token mirror must not change on failure")
	}
}

func TestAIWizardLeaveChatGuard(t *testing.T) {
	w := newAIWizard(singleSheetFile())
	w.sessionID = "s-1"
	w.remainingTokens = 100
	if w.canProceed() {
		t.Fatal("chat with no messages must not proceed")
	}
	w.appendUser("do something")
	w.applyReply(chatReply{Response: "done", RemainingTokens: 90}, nil)
	if !w.canProceed() {
		t.Fatal("chat with messages must proceed")
	}
	if eff := w.next(); eff != effectFetchAIPreview {
		t.Fatalf("entering preview must fetch it, got %v", eff)
	}
	if w.step() != stepChat {
		t.Fatal("step must hold until the preview lands")
	}
	w.applyPreview("Sheet: Orders\n5 rows × 2 columns\n", nil)
	if w.step() != stepPreview || w.previewText == "" {
		t.Fatalf("at %q, preview %q", w.step(), w.previewText)
	}
}

func TestAIWizardPreviewFailureStaysInChat(t *testing.T) {
	w := newAIWizard(singleSheetFile())
	w.sessionID = "s-1"
	w.remainingTokens = 100
	w.appendUser("x")
	w.applyReply(chatReply{Response: "y", RemainingTokens: 90}, nil)
	w.next()
	w.applyPreview("", errors.New("session expired"))
	if w.step() != stepChat {
		t.Fatalf("failed preview must not advance, at %q", w.step())
	}
	if w.err != "session expired" {
		t.Errorf("err = %q", w.err)
	}
}

func TestAIWizardDefaultFilename(t *testing.T) {
	w := newAIWizard(singleSheetFile())
	if got := w.defaultFilename(); got != "report_cleaned.xlsx" {
		t.Errorf("defaultFilename = %q", got)
	}
}
