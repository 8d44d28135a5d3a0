package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultAPIBaseURL = "http://localhost:5000"

// apiClient wraps the cleaning backend's HTTP surface. Absence of a 2xx is
// the uniform failure signal; error bodies are JSON {error: string}, except
// token-limit refusals which carry a structured daily-limit payload.
type apiClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type apiError struct {
	Message    string
	DailyLimit int
	Used       int
}

func (e *apiError) Error() string { return e.Message }

type sessionInfo struct {
	SessionID       string `json:"session_id"`
	RemainingTokens int    `json:"remaining_tokens"`
	DailyLimit      int    `json:"daily_limit"`
}

type chatReply struct {
	Response        string `json:"response"`
	RemainingTokens int    `json:"remaining_tokens"`
}

type tokenStatus struct {
	Used       int `json:"used"`
	Remaining  int `json:"remaining"`
	DailyLimit int `json:"daily_limit"`
}

type previewPayload struct {
	Preview   json.RawMessage `json:"preview"`
	SheetName string          `json:"sheet_name"`
	Stats     struct {
		Rows        int      `json:"rows"`
		Columns     int      `json:"columns"`
		ColumnNames []string `json:"column_names"`
	} `json:"stats"`
}

// analyzeSpreadsheet uploads the file and returns the detected sheets with
// their columns and sample rows.
func (c *apiClient) analyzeSpreadsheet(ctx context.Context, path string) (*workbookFile, error) {
	body, contentType, err := fileForm(path, nil)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze-spreadsheet", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp, "failed to analyze spreadsheet")
	}

	var sheets []sheetData
	if err := json.NewDecoder(resp.Body).Decode(&sheets); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}
	return &workbookFile{Path: path, Sheets: sheets}, nil
}

// startSession re-uploads the file together with the chosen sheet and opens a
// remote AI session against it.
func (c *apiClient) startSession(ctx context.Context, path, sheetName string) (sessionInfo, error) {
	var info sessionInfo
	body, contentType, err := fileForm(path, map[string]string{"sheet_name": sheetName})
	if err != nil {
		return info, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ai/start-session", body)
	if err != nil {
		return info, err
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return info, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return info, decodeAPIError(resp, "failed to start session")
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("decode session response: %w", err)
	}
	return info, nil
}

func (c *apiClient) sendMessage(ctx context.Context, sessionID, message string) (chatReply, error) {
	var reply chatReply
	payload := map[string]string{"session_id": sessionID, "message": message}
	resp, err := c.postJSON(ctx, "/api/ai/chat", payload)
	if err != nil {
		return reply, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return reply, decodeAPIError(resp, "failed to send message")
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return reply, fmt.Errorf("decode chat response: %w", err)
	}
	return reply, nil
}

// getPreview fetches the server-rendered state of the session's sheet. The
// payload is presented as-is; nothing is recomputed locally.
func (c *apiClient) getPreview(ctx context.Context, sessionID string) (string, error) {
	resp, err := c.get(ctx, "/api/ai/preview", url.Values{"session_id": {sessionID}})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", decodeAPIError(resp, "failed to get preview")
	}
	var payload previewPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode preview response: %w", err)
	}
	return formatPreviewPayload(payload), nil
}

// downloadFile writes the AI-modified workbook to dest.
func (c *apiClient) downloadFile(ctx context.Context, sessionID, dest string) error {
	resp, err := c.get(ctx, "/api/ai/download", url.Values{"session_id": {sessionID}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp, "failed to download file")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	return out.Close()
}

func (c *apiClient) endSession(ctx context.Context, sessionID string) error {
	resp, err := c.postJSON(ctx, "/api/ai/end-session", map[string]string{"session_id": sessionID})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp, "failed to end session")
	}
	return nil
}

func (c *apiClient) tokenStatus(ctx context.Context) (tokenStatus, error) {
	var status tokenStatus
	resp, err := c.get(ctx, "/api/ai/token-status", nil)
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return status, decodeAPIError(resp, "failed to get token status")
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("decode token status: %w", err)
	}
	return status, nil
}

func (c *apiClient) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return c.client.Do(req)
}

func (c *apiClient) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	return c.client.Do(req)
}

func (c *apiClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func fileForm(path string, fields map[string]string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

// decodeAPIError extracts the backend's {error} message, preserving the
// structured daily-limit payload when present, and falls back to a generic
// message for unparsable bodies.
func decodeAPIError(resp *http.Response, fallback string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var payload struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		DailyLimit int    `json:"daily_limit"`
		Used       int    `json:"used"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" && payload.DailyLimit > 0 {
			return &apiError{Message: payload.Message, DailyLimit: payload.DailyLimit, Used: payload.Used}
		}
		if payload.Error != "" {
			return &apiError{Message: payload.Error}
		}
	}
	return &apiError{Message: fallback}
}

func formatPreviewPayload(payload previewPayload) string {
	var b strings.Builder
	if payload.SheetName != "" {
		b.WriteString("Sheet: " + payload.SheetName + "\n")
	}
	if payload.Stats.Rows > 0 || payload.Stats.Columns > 0 {
		b.WriteString(fmt.Sprintf("%d rows × %d columns", payload.Stats.Rows, payload.Stats.Columns))
		if len(payload.Stats.ColumnNames) > 0 {
			b.WriteString(" (" + strings.Join(payload.Stats.ColumnNames, ", ") + ")")
		}
		b.WriteString("\n")
	}
	if len(payload.Preview) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, payload.Preview, "", "  "); err == nil {
			b.WriteString("\n")
			b.Write(pretty.Bytes())
			b.WriteString("\n")
		} else {
			b.Write(payload.Preview)
			b.WriteString("\n")
		}
	}
	if b.Len() == 0 {
		return "No preview available yet."
	}
	return b.String()
}
