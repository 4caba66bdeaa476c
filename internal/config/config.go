package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds society configuration.
type Config struct {
	Panel   PanelConfig   `toml:"panel"`
	Editor  EditorConfig  `toml:"editor"`
	History HistoryConfig `toml:"history"`
	Neo4j   Neo4jConfig   `toml:"neo4j"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	UI      UIConfig      `toml:"ui"`
	Publish PublishConfig `toml:"publish"`
	Hooks   HooksConfig   `toml:"hooks"`
}

// PanelConfig points at the control panel's config store.
type PanelConfig struct {
	URL         string `toml:"url"`
	ConfigName  string `toml:"config_name"`
	TimeoutSecs int    `toml:"timeout_secs"`
}

// EditorConfig controls gesture defaults.
type EditorConfig struct {
	CenterX      float64 `toml:"center_x"`
	CenterY      float64 `toml:"center_y"`
	Spread       float64 `toml:"spread"`
	ConfirmClear bool    `toml:"confirm_clear"`
}

// HistoryConfig controls the snapshot database.
type HistoryConfig struct {
	Enabled    bool   `toml:"enabled"`
	MaxEntries int    `toml:"max_entries"`
	Path       string `toml:"path"` // empty means <config dir>/history.db
}

// Neo4jConfig controls graph database publishing.
type Neo4jConfig struct {
	URI       string `toml:"uri"`
	User      string `toml:"user"`
	Password  string `toml:"password"`
	Database  string `toml:"database"`
	NodeLabel string `toml:"node_label"`
	EdgeLabel string `toml:"edge_label"`
}

// ServerConfig controls the editor HTTP API.
type ServerConfig struct {
	Port       int    `toml:"port"`
	CORSOrigin string `toml:"cors_origin"`
}

// LogConfig controls structured service logs.
type LogConfig struct {
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
	Format string `toml:"format"` // "text", "json"
}

// UIConfig controls display options.
type UIConfig struct {
	Color bool `toml:"color"`
}

// PublishConfig controls fan-out publishing.
type PublishConfig struct {
	Concurrency int    `toml:"concurrency"`
	SimDataDir  string `toml:"simdata_dir"`
}

// HooksConfig holds shell scripts run after document I/O. Empty means none.
type HooksConfig struct {
	PostExport  string `toml:"post_export"`
	PostSave    string `toml:"post_save"`
	PostImport  string `toml:"post_import"`
	PostPublish string `toml:"post_publish"`
	PostClear   string `toml:"post_clear"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Panel:   PanelConfig{URL: "http://localhost:8000/api", ConfigName: "agent_graph", TimeoutSecs: 10},
		Editor:  EditorConfig{CenterX: 400, CenterY: 300, Spread: 200, ConfirmClear: true},
		History: HistoryConfig{Enabled: true, MaxEntries: 200},
		Neo4j: Neo4jConfig{
			URI:       "neo4j://localhost:7687",
			User:      "neo4j",
			Database:  "neo4j",
			NodeLabel: "Agent",
			EdgeLabel: "RELATES_TO",
		},
		Server:  ServerConfig{Port: 8090, CORSOrigin: "*"},
		Log:     LogConfig{Level: "info", Format: "text"},
		UI:      UIConfig{Color: true},
		Publish: PublishConfig{Concurrency: 3},
	}
}

var pathOverride string

// UsePath makes Load and Save use path instead of the default location.
func UsePath(path string) {
	pathOverride = path
}

// ConfigDir returns the society config directory path.
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "society")
}

// Path returns the config file in use.
func Path() string {
	if pathOverride != "" {
		return pathOverride
	}
	return filepath.Join(ConfigDir(), "config.toml")
}

// HistoryPath resolves the snapshot database location.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(ConfigDir(), "history.db")
}

// ProjectFile is the per-project override looked up from the working
// directory upwards.
const ProjectFile = ".society.toml"

// findProjectConfig returns the nearest ProjectFile above the working
// directory, or "".
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ProjectFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load reads the config file, falling back to defaults if it doesn't exist.
// A project file overrides the user file, and SOCIETY_PANEL_URL and
// SOCIETY_NEO4J_PASSWORD override both.
func Load() *Config {
	cfg, _ := LoadFrom(Path())
	if pathOverride == "" {
		if project := findProjectConfig(); project != "" {
			if data, err := os.ReadFile(project); err == nil {
				_ = toml.Unmarshal(data, cfg)
			}
		}
	}

	if v := os.Getenv("SOCIETY_PANEL_URL"); v != "" {
		cfg.Panel.URL = v
	}
	if v := os.Getenv("SOCIETY_NEO4J_PASSWORD"); v != "" {
		cfg.Neo4j.Password = v
	}
	return cfg
}

// LoadFrom reads one config file over the defaults. A missing file is not
// an error; a malformed one returns the defaults and the parse error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return Default(), fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg *Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// EnsureExists creates the config file with defaults if it doesn't exist.
func EnsureExists() error {
	if _, err := os.Stat(Path()); err == nil {
		return nil
	}
	return Save(Default())
}
