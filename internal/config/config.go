package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all lumina configuration.
type Config struct {
	DataDir string `toml:"data_dir"`

	Server    ServerConfig    `toml:"server"`
	Sentiment SentimentConfig `toml:"sentiment"`
	Vision    VisionConfig    `toml:"vision"`
	Diagnosis DiagnosisConfig `toml:"diagnosis"`
	Benchmark BenchmarkConfig `toml:"benchmark"`
	Mockup    MockupConfig    `toml:"mockup"`
	Archive   ArchiveConfig   `toml:"archive"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type SentimentConfig struct {
	// Strategy selects how audio is analyzed: "full" sends the whole
	// track at once, "chunked" splits it into fixed windows and keeps
	// the highest-friction utterance per window.
	Strategy       string `toml:"strategy"`
	ChunkSeconds   int    `toml:"chunk_seconds"`
	BaseURL        string `toml:"base_url"`
	APIKeyEnv      string `toml:"api_key_env"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type VisionConfig struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	APIKeyEnv      string `toml:"api_key_env"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type DiagnosisConfig struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	APIKeyEnv      string `toml:"api_key_env"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type BenchmarkConfig struct {
	BaseURL     string `toml:"base_url"`
	APIKeyEnv   string `toml:"api_key_env"`
	MaxPolls    int    `toml:"max_polls"`
	PollSeconds int    `toml:"poll_seconds"`
}

type MockupConfig struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	APIKeyEnv      string `toml:"api_key_env"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type ArchiveConfig struct {
	Compress bool `toml:"compress"`
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir: "~/.lumina",
		Server: ServerConfig{
			Addr: ":8000",
		},
		Sentiment: SentimentConfig{
			Strategy:       "full",
			ChunkSeconds:   30,
			BaseURL:        "https://modulate-developer-apis.com/api/velma-2-stt-batch",
			APIKeyEnv:      "MODULATE_API_KEY",
			TimeoutSeconds: 300,
		},
		Vision: VisionConfig{
			BaseURL:        "https://api.reka.ai/v1",
			Model:          "reka-flash",
			APIKeyEnv:      "REKA_API_KEY",
			TimeoutSeconds: 60,
		},
		Diagnosis: DiagnosisConfig{
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:          "gemini-3-flash-preview",
			APIKeyEnv:      "GEMINI_API_KEY",
			TimeoutSeconds: 60,
		},
		Benchmark: BenchmarkConfig{
			BaseURL:     "https://api.yutori.com/v1",
			APIKeyEnv:   "YUTORI_API_KEY",
			MaxPolls:    15,
			PollSeconds: 2,
		},
		Mockup: MockupConfig{
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:          "gemini-3-pro-image-preview",
			APIKeyEnv:      "GEMINI_API_KEY",
			TimeoutSeconds: 120,
		},
		Archive: ArchiveConfig{
			Compress: true,
		},
	}
}

// Load reads config from the standard path, falling back to defaults.
func Load() (Config, error) {
	cfg := DefaultConfig()

	for _, p := range configPaths() {
		if _, err := os.Stat(p); err == nil {
			if _, err := toml.DecodeFile(p, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", p, err)
			}
			break
		}
	}

	cfg.DataDir = expandHome(cfg.DataDir)

	return cfg, nil
}

func configPaths() []string {
	var paths []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "lumina", "config.toml"))
	}

	home, _ := os.UserHomeDir()
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", "lumina", "config.toml"))
	}

	return paths
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// UploadDir returns the directory uploaded videos and extracted frames live in.
func (c Config) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// InboxDir returns the watched drop directory for incoming videos.
func (c Config) InboxDir() string {
	return filepath.Join(c.DataDir, "inbox")
}

// PlaybookPath returns the path of the persisted playbook document.
func (c Config) PlaybookPath() string {
	return filepath.Join(c.DataDir, "playbook.json")
}

// MemoryDBPath returns the path of the long-term memory database.
func (c Config) MemoryDBPath() string {
	return filepath.Join(c.DataDir, "memories.db")
}

// ArchiveDir returns the directory processed-session artifacts are archived to.
func (c Config) ArchiveDir() string {
	return filepath.Join(c.DataDir, "archive")
}
