package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// telemetryEvent is one NDJSON line in the local event log: wizard step
// transitions, chat turns, downloads and surfaced errors.
type telemetryEvent struct {
	RunID     string            `json:"run_id"`
	Timestamp time.Time         `json:"timestamp"`
	Event     string            `json:"event"`
	File      string            `json:"file,omitempty"`
	Sheet     string            `json:"sheet,omitempty"`
	Mode      string            `json:"mode,omitempty"`
	Step      string            `json:"step,omitempty"`
	Error     string            `json:"error,omitempty"`
	ExtraJSON map[string]string `json:"extra_json,omitempty"`
}

type telemetryLogger struct {
	path  string
	runID string
	mu    sync.Mutex
}

func newTelemetryLogger(path string) *telemetryLogger {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	return &telemetryLogger{path: path, runID: newTelemetryRunID()}
}

// Emit appends the event best-effort; telemetry never fails the UI.
func (t *telemetryLogger) Emit(event telemetryEvent) {
	if t == nil || strings.TrimSpace(event.Event) == "" {
		return
	}
	if event.RunID == "" {
		event.RunID = t.runID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if len(event.ExtraJSON) == 0 {
		event.ExtraJSON = nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(data)
}

func newTelemetryRunID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("%x", time.Now().UnixNano())
}
