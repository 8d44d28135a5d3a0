package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	var (
		apiURL = flag.String("api", "", "backend base URL (overrides config)")
		token  = flag.String("token", "", "API bearer token (overrides config)")
		theme  = flag.String("theme", "", "markdown theme: auto, dark, light")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: cleansheet [flags] [workbook.xlsx]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, cfgPath := loadUIConfig()
	cfg.applyEnvOverrides()
	if *apiURL != "" {
		cfg.APIBaseURL = *apiURL
	}
	if *token != "" {
		cfg.APIToken = *token
	}
	if *theme != "" {
		cfg.Theme = *theme
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}

	filePath := flag.Arg(0)

	history, err := openHistoryStore()
	if err != nil {
		// Recent-files history is a convenience; run without it.
		fmt.Fprintf(os.Stderr, "warning: history unavailable: %v\n", err)
		history = nil
	}
	if history != nil {
		defer history.Close()
	}

	m := initialModel(cfg, cfgPath, filePath, history)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
