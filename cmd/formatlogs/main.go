package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// event mirrors the NDJSON lines the TUI appends to events.ndjson.
type event struct {
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

type run struct {
	id     string
	events []event
}

func main() {
	var inputPath string
	var outputPath string
	var runFilter string
	var errorsOnly bool
	flag.StringVar(&inputPath, "in", "", "input NDJSON event log (required)")
	flag.StringVar(&outputPath, "out", "", "output file path (optional, defaults to stdout)")
	flag.StringVar(&runFilter, "run", "", "only show events for this run id prefix")
	flag.BoolVar(&errorsOnly, "errors", false, "only show events that carry an error")
	flag.Parse()

	if inputPath == "" {
		exitWithError(errors.New("missing --in path"))
	}

	events, skipped, err := parseEventLog(inputPath)
	if err != nil {
		exitWithError(fmt.Errorf("parse event log: %w", err))
	}

	runs := groupRuns(events, runFilter, errorsOnly)
	rendered := renderRuns(runs, skipped)

	if outputPath == "" {
		fmt.Println(rendered)
		return
	}
	if err := os.WriteFile(outputPath, []byte(rendered+"\n"), 0o644); err != nil {
		exitWithError(fmt.Errorf("write output: %w", err))
	}
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "formatlogs: %v\n", err)
	os.Exit(1)
}

func parseEventLog(path string) ([]event, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	var events []event
	skipped := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var evt event
		if err := json.Unmarshal([]byte(line), &evt); err != nil || evt.Event == "" {
			skipped++
			continue
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	return events, skipped, nil
}

func groupRuns(events []event, runFilter string, errorsOnly bool) []run {
	byID := map[string]*run{}
	var order []string
	for _, evt := range events {
		if runFilter != "" && !strings.HasPrefix(evt.RunID, runFilter) {
			continue
		}
		if errorsOnly && evt.Error == "" {
			continue
		}
		r, ok := byID[evt.RunID]
		if !ok {
			r = &run{id: evt.RunID}
			byID[evt.RunID] = r
			order = append(order, evt.RunID)
		}
		r.events = append(r.events, evt)
	}
	runs := make([]run, 0, len(order))
	for _, id := range order {
		r := byID[id]
		sort.SliceStable(r.events, func(i, j int) bool {
			return r.events[i].Timestamp.Before(r.events[j].Timestamp)
		})
		runs = append(runs, *r)
	}
	return runs
}

func renderRuns(runs []run, skipped int) string {
	var out []string
	for _, r := range runs {
		out = append(out, renderRun(r)...)
		out = append(out, "")
	}
	if skipped > 0 {
		out = append(out, fmt.Sprintf("(%d malformed line(s) skipped)", skipped))
	}
	if len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return "(no events)"
	}
	return strings.Join(out, "\n")
}

func renderRun(r run) []string {
	var out []string
	out = append(out, "------------------")
	id := r.id
	if len(id) > 12 {
		id = id[:12]
	}
	started := ""
	if len(r.events) > 0 {
		started = r.events[0].Timestamp.Local().Format("2006-01-02 15:04:05")
	}
	out = append(out, fmt.Sprintf("Run %s · %d event(s) · started %s", id, len(r.events), started))
	out = append(out, "------------------")
	for _, evt := range r.events {
		out = append(out, renderEvent(evt))
	}
	return out
}

func renderEvent(evt event) string {
	parts := []string{
		evt.Timestamp.Local().Format("15:04:05"),
		evt.Event,
	}
	if evt.Mode != "" {
		parts = append(parts, "mode="+evt.Mode)
	}
	if evt.Step != "" {
		parts = append(parts, "step="+evt.Step)
	}
	if evt.Sheet != "" {
		parts = append(parts, "sheet="+evt.Sheet)
	}
	if evt.File != "" {
		parts = append(parts, "file="+evt.File)
	}
	for key, value := range evt.ExtraJSON {
		parts = append(parts, key+"="+value)
	}
	line := "  " + strings.Join(parts, "  ")
	if evt.Error != "" {
		line += "\n    error: " + evt.Error
	}
	return line
}
