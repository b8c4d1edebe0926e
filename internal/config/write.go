package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigDir returns the lumina config directory path.
// Uses $XDG_CONFIG_HOME/lumina if set, otherwise ~/.config/lumina.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lumina")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "lumina")
}

// WriteDefault writes a default config.toml pointing to dataDir.
// Returns the config file path. Skips if config.toml already exists.
func WriteDefault(dataDir string) (string, error) {
	dir := ConfigDir()
	path := filepath.Join(dir, "config.toml")

	if _, err := os.Stat(path); err == nil {
		return path, nil // already exists
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}

	portablePath := CompressHome(dataDir)

	content := fmt.Sprintf(`data_dir = %q

[server]
addr = ":8000"

[sentiment]
strategy = "full"
chunk_seconds = 30
base_url = "https://modulate-developer-apis.com/api/velma-2-stt-batch"
api_key_env = "MODULATE_API_KEY"
timeout_seconds = 300

[vision]
base_url = "https://api.reka.ai/v1"
model = "reka-flash"
api_key_env = "REKA_API_KEY"
timeout_seconds = 60

[diagnosis]
base_url = "https://generativelanguage.googleapis.com/v1beta/openai"
model = "gemini-3-flash-preview"
api_key_env = "GEMINI_API_KEY"
timeout_seconds = 60

[benchmark]
base_url = "https://api.yutori.com/v1"
api_key_env = "YUTORI_API_KEY"
max_polls = 15
poll_seconds = 2

[mockup]
base_url = "https://generativelanguage.googleapis.com/v1beta/openai"
model = "gemini-3-pro-image-preview"
api_key_env = "GEMINI_API_KEY"
timeout_seconds = 120

[archive]
compress = true
`, portablePath)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}

	return path, nil
}

// CompressHome replaces $HOME prefix with ~/ for portable config values.
func CompressHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home+"/") {
		return "~/" + path[len(home)+1:]
	}
	if path == home {
		return "~"
	}
	return path
}
