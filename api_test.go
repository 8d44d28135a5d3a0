package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempUpload(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.xlsx")
	if err := os.WriteFile(path, []byte("fake workbook bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyzeSpreadsheet(t *testing.T) {
	var gotPath string
	var gotFilename string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, header, err := r.FormFile("file"); err == nil {
			gotFilename = header.Filename
		} else {
			t.Errorf("file part missing: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"spreadsheet_name": "Orders",
				"columns": [{"name": "id", "type": "int64"}, {"name": "name", "type": "object"}],
				"spreadsheet_snippet": [{"id": 1, "name": "a"}]
			}
		]`))
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "")
	file, err := client.analyzeSpreadsheet(context.Background(), writeTempUpload(t))
	if err != nil {
		t.Fatalf("analyzeSpreadsheet: %v", err)
	}
	if gotPath != "/api/analyze-spreadsheet" {
		t.Errorf("path = %q", gotPath)
	}
	if gotFilename != "data.xlsx" {
		t.Errorf("uploaded filename = %q", gotFilename)
	}
	if len(file.Sheets) != 1 || file.Sheets[0].Name != "Orders" {
		t.Fatalf("sheets = %+v", file.Sheets)
	}
	if len(file.Sheets[0].Columns) != 2 || file.Sheets[0].Columns[1].Type != "object" {
		t.Errorf("columns = %+v", file.Sheets[0].Columns)
	}
}

func TestStartSessionSendsSheetAndBearer(t *testing.T) {
	var gotAuth, gotSheet string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotSheet = r.FormValue("sheet_name")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_id": "s-42", "remaining_tokens": 800, "daily_limit": 1000}`))
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "secret-token")
	info, err := client.startSession(context.Background(), writeTempUpload(t), "Orders")
	if err != nil {
		t.Fatalf("startSession: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotSheet != "Orders" {
		t.Errorf("sheet_name = %q", gotSheet)
	}
	if info.SessionID != "s-42" || info.RemainingTokens != 800 || info.DailyLimit != 1000 {
		t.Errorf("info = %+v", info)
	}
}

func TestSendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload["session_id"] != "s-1" || payload["message"] != "trim whitespace" {
			t.Errorf("payload = %v", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response": "Done.", "remaining_tokens": 750}`))
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "tok")
	reply, err := client.sendMessage(context.Background(), "s-1", "trim whitespace")
	if err != nil {
		t.Fatalf("sendMessage: %v", err)
	}
	if reply.Response != "Done." || reply.RemainingTokens != 750 {
		t.Errorf("reply = %+v", reply)
	}
}

func TestGetPreviewFormatsPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("session_id"); got != "s-1" {
			t.Errorf("session_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"preview": [{"id": 1}],
			"sheet_name": "Orders",
			"stats": {"rows": 120, "columns": 1, "column_names": ["id"]}
		}`))
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "tok")
	text, err := client.getPreview(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("getPreview: %v", err)
	}
	if !strings.Contains(text, "Sheet: Orders") {
		t.Errorf("missing sheet name: %q", text)
	}
	if !strings.Contains(text, "120 rows") || !strings.Contains(text, "(id)") {
		t.Errorf("missing stats: %q", text)
	}
	if !strings.Contains(text, `"id": 1`) {
		t.Errorf("missing preview rows: %q", text)
	}
}

func TestGetPreviewEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "tok")
	text, err := client.getPreview(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("getPreview: %v", err)
	}
	if text == "" {
		t.Error("a successful preview must never be empty")
	}
}

func TestDownloadFileWritesBody(t *testing.T) {
	content := []byte("xlsx-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/download" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write(content)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out", "cleaned.xlsx")
	client := newAPIClient(server.URL, "tok")
	if err := client.downloadFile(context.Background(), "s-1", dest); err != nil {
		t.Fatalf("downloadFile: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Errorf("file content = %q", got)
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "unsupported file type"}`))
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "")
	_, err := client.analyzeSpreadsheet(context.Background(), writeTempUpload(t))
	if err == nil || err.Error() != "unsupported file type" {
		t.Errorf("err = %v", err)
	}
}

func TestDecodeTokenLimitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message": "Daily token limit reached", "daily_limit": 1000, "used": 1000}`))
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "tok")
	_, err := client.sendMessage(context.Background(), "s-1", "hi")
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *apiError", err)
	}
	if apiErr.Message != "Daily token limit reached" || apiErr.DailyLimit != 1000 || apiErr.Used != 1000 {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestDecodeErrorFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "tok")
	err := client.endSession(context.Background(), "s-1")
	if err == nil || err.Error() != "failed to end session" {
		t.Errorf("err = %v", err)
	}
}

func TestTokenStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/token-status" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"used": 40, "remaining": 960, "daily_limit": 1000}`))
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "tok")
	status, err := client.tokenStatus(context.Background())
	if err != nil {
		t.Fatalf("tokenStatus: %v", err)
	}
	if status.Used != 40 || status.Remaining != 960 || status.DailyLimit != 1000 {
		t.Errorf("status = %+v", status)
	}
}

func TestBaseURLTrailingSlashTrimmed(t *testing.T) {
	client := newAPIClient("http://example.test/", "")
	if client.baseURL != "http://example.test" {
		t.Errorf("baseURL = %q", client.baseURL)
	}
	if newAPIClient("", "").baseURL != defaultAPIBaseURL {
		t.Error("empty base URL must fall back to the default")
	}
}
