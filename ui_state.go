package main

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type uiConfig struct {
	APIBaseURL string `yaml:"api_base_url,omitempty"`
	APIToken   string `yaml:"api_token,omitempty"`
	Theme      string `yaml:"theme,omitempty"`
	ExportDir  string `yaml:"export_dir,omitempty"`
}

func loadUIConfig() (*uiConfig, string) {
	configDir := resolveConfigDir()
	path := filepath.Join(configDir, "ui.yaml")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return &uiConfig{}, path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &uiConfig{}, path
	}
	var cfg uiConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &uiConfig{}, path
	}
	return &cfg, path
}

func saveUIConfig(cfg *uiConfig, path string) error {
	if cfg == nil {
		cfg = &uiConfig{}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides lets the environment win over the config file for the
// backend endpoint and credential.
func (cfg *uiConfig) applyEnvOverrides() {
	if url := strings.TrimSpace(os.Getenv("CLEANSHEET_API_URL")); url != "" {
		cfg.APIBaseURL = url
	}
	if token := strings.TrimSpace(os.Getenv("CLEANSHEET_API_TOKEN")); token != "" {
		cfg.APIToken = token
	}
}

func (cfg *uiConfig) exportDir() string {
	if dir := strings.TrimSpace(cfg.ExportDir); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func resolveConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "cleansheet")
}
