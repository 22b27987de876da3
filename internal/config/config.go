package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const appName = "codebridge"

// FSConfig controls how workspace trees are listed and watched.
type FSConfig struct {
	RespectGitignore bool `json:"respect_gitignore"`
	Watch            bool `json:"watch"`
	WatchDebounceMS  int  `json:"watch_debounce_ms"`
}

// CollabConfig holds settings for both the presence server and the client.
type CollabConfig struct {
	ListenAddr       string `json:"listen_addr"`
	ServerURL        string `json:"server_url"`
	Name             string `json:"name,omitempty"`  // empty: random per connection
	Color            string `json:"color,omitempty"` // empty: random per connection
	Reconnect        bool   `json:"reconnect"`
	InitialBackoffMS int    `json:"initial_backoff_ms"`
	MaxBackoffMS     int    `json:"max_backoff_ms"`
	SendQueue        int    `json:"send_queue"`
}

// Config represents application configuration
type Config struct {
	WorkingDir string       `json:"working_dir"`
	LogLevel   string       `json:"log_level"` // debug, info, warn, error, none
	LogPath    string       `json:"-"`
	FS         FSConfig     `json:"fs"`
	Collab     CollabConfig `json:"collab"`
}

func defaultConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(homeDir, "AppData", "Roaming", appName)
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, appName)
		}
		return filepath.Join(homeDir, ".config", appName)
	}
}

func defaultStateDir() string {
	homeDir, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, appName)
		}
		return filepath.Join(homeDir, "AppData", "Local", appName)
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, appName)
		}
		return filepath.Join(homeDir, ".local", "state", appName)
	default:
		return filepath.Join(homeDir, ".config", appName)
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		WorkingDir: ".",
		LogLevel:   "info",
		LogPath:    filepath.Join(defaultStateDir(), appName+".log"),
		FS: FSConfig{
			RespectGitignore: true,
			Watch:            false,
			WatchDebounceMS:  200,
		},
		Collab: CollabConfig{
			ListenAddr:       "localhost:3001",
			ServerURL:        "ws://localhost:3001/ws",
			Reconnect:        true,
			InitialBackoffMS: 500,
			MaxBackoffMS:     30000,
			SendQueue:        256,
		},
	}
}

// Load loads configuration from path over the defaults. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults repairs zero values a partial config file may leave behind.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.WorkingDir == "" {
		c.WorkingDir = def.WorkingDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogPath == "" {
		c.LogPath = def.LogPath
	}
	if c.FS.WatchDebounceMS <= 0 {
		c.FS.WatchDebounceMS = def.FS.WatchDebounceMS
	}
	if c.Collab.ListenAddr == "" {
		c.Collab.ListenAddr = def.Collab.ListenAddr
	}
	if c.Collab.ServerURL == "" {
		c.Collab.ServerURL = def.Collab.ServerURL
	}
	if c.Collab.InitialBackoffMS <= 0 {
		c.Collab.InitialBackoffMS = def.Collab.InitialBackoffMS
	}
	if c.Collab.MaxBackoffMS < c.Collab.InitialBackoffMS {
		c.Collab.MaxBackoffMS = def.Collab.MaxBackoffMS
	}
	if c.Collab.SendQueue <= 0 {
		c.Collab.SendQueue = def.Collab.SendQueue
	}
}

// ApplyEnv lets environment variables override file values.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("CODEBRIDGE_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("CODEBRIDGE_LOG_PATH")); v != "" {
		c.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("CODEBRIDGE_COLLAB_URL")); v != "" {
		c.Collab.ServerURL = v
	}
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0644)
}

// WatchDebounce returns the watcher debounce interval.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.FS.WatchDebounceMS) * time.Millisecond
}

// InitialBackoff returns the first reconnect delay.
func (c *Config) InitialBackoff() time.Duration {
	return time.Duration(c.Collab.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the reconnect delay ceiling.
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.Collab.MaxBackoffMS) * time.Millisecond
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
