package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configurable oculist settings.
type Config struct {
	BackendURL      string   `json:"backend_url"`
	CaptureCommand  []string `json:"capture_command"` // overrides the ffmpeg command entirely
	InputFormat     string   `json:"input_format"`    // ffmpeg -f value, e.g. "pulse" | "alsa" | "avfoundation"
	InputDevice     string   `json:"input_device"`
	PlayerCommand   []string `json:"player_command"`
	ProbeCommand    []string `json:"probe_command"`
	UploadTimeout   int      `json:"upload_timeout"` // seconds
	LogLevel        string   `json:"log_level"`      // "debug" | "info" | "warn" | "error"
	InboxDir        string   `json:"inbox_dir"`
	OutlineTemplate []string `json:"outline_template"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		BackendURL:      "http://localhost:8000",
		InputFormat:     "pulse",
		InputDevice:     "default",
		PlayerCommand:   []string{"ffplay"},
		ProbeCommand:    []string{"ffprobe"},
		UploadTimeout:   300,
		LogLevel:        "info",
		OutlineTemplate: []string{},
	}
}

// Timeout returns the upload timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.UploadTimeout) * time.Second
}

// GlobalPath returns ~/.config/oculist/config.json.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "oculist", "config.json"), nil
}

// LoadGlobal reads ~/.config/oculist/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .oculistconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".oculistconfig", false)
}

// Load merges the global and project files and applies the environment.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, err
	}
	project, err := LoadProject()
	if err != nil {
		return Config{}, err
	}
	cfg := Merge(global, project)
	ApplyEnv(&cfg)
	return cfg, nil
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	apply(&result, global)
	apply(&result, project)
	return result
}

// apply copies every set field of src over dst.
func apply(dst, src *Config) {
	if src == nil {
		return
	}
	if src.BackendURL != "" {
		dst.BackendURL = src.BackendURL
	}
	if len(src.CaptureCommand) > 0 {
		dst.CaptureCommand = src.CaptureCommand
	}
	if src.InputFormat != "" {
		dst.InputFormat = src.InputFormat
	}
	if src.InputDevice != "" {
		dst.InputDevice = src.InputDevice
	}
	if len(src.PlayerCommand) > 0 {
		dst.PlayerCommand = src.PlayerCommand
	}
	if len(src.ProbeCommand) > 0 {
		dst.ProbeCommand = src.ProbeCommand
	}
	if src.UploadTimeout > 0 {
		dst.UploadTimeout = src.UploadTimeout
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.InboxDir != "" {
		dst.InboxDir = src.InboxDir
	}
	if len(src.OutlineTemplate) > 0 {
		dst.OutlineTemplate = src.OutlineTemplate
	}
}

// ApplyEnv loads a .env file from the working directory, if any, and lets
// OCULIST_* variables override file values.
func ApplyEnv(cfg *Config) {
	_ = godotenv.Load()

	cfg.BackendURL = getEnv("OCULIST_BACKEND_URL", cfg.BackendURL)
	cfg.LogLevel = getEnv("OCULIST_LOG_LEVEL", cfg.LogLevel)
	cfg.InputDevice = getEnv("OCULIST_INPUT_DEVICE", cfg.InputDevice)
	cfg.InboxDir = getEnv("OCULIST_INBOX_DIR", cfg.InboxDir)
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
