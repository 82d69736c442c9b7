package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Site      Site      `yaml:"site"`
	Admin     Admin     `yaml:"admin"`
	Knowledge Knowledge `yaml:"knowledge"`
	Import    Import    `yaml:"import"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Site struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	Author  string `yaml:"author"`
	Email   string `yaml:"email"`
}

type Admin struct {
	PasswordEnv  string        `yaml:"password_env"`
	JWTSecretEnv string        `yaml:"jwt_secret_env"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

// Knowledge configures the remote knowledge base and the sync orchestrator.
type Knowledge struct {
	Enabled              bool          `yaml:"enabled"`
	BaseURL              string        `yaml:"base_url"`
	APIKeyEnv            string        `yaml:"api_key_env"`
	DatasetPrefix        string        `yaml:"dataset_prefix"`
	IndexingTechnique    string        `yaml:"indexing_technique"`
	SegmentSeparator     string        `yaml:"segment_separator"`
	SegmentMaxTokens     int           `yaml:"segment_max_tokens"`
	Timeout              time.Duration `yaml:"timeout"`
	RequestsPerSecond    float64       `yaml:"requests_per_second"`
	BatchSize            int           `yaml:"batch_size"`
	BatchPause           time.Duration `yaml:"batch_pause"`
	MaxAttempts          int           `yaml:"max_attempts"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RequireKnownCategory bool          `yaml:"require_known_category"`
	AutoSync             bool          `yaml:"auto_sync"`
	Schedule             string        `yaml:"schedule"`
}

type Import struct {
	Feeds    []Feed `yaml:"feeds"`
	DaysBack int    `yaml:"days_back"`
	Category string `yaml:"category"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	JSON       bool   `yaml:"json"`
}

// ConfigDir returns the XDG config directory for techblog.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "techblog")
}

// DataDir returns the XDG data directory for techblog.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "techblog")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/techblog/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'techblog init' to create a default config",
		xdgConfig,
	)
}

// LoadEnv loads variables from a .env file next to the config, then from the
// working directory. Variables already present in the environment win.
func LoadEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration with every default applied.
func Default() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		Site: Site{
			Name:    "Tech Blog",
			BaseURL: "http://localhost:3001",
			Author:  "Blog Author",
		},
		Admin: Admin{
			PasswordEnv:  "ADMIN_PASSWORD",
			JWTSecretEnv: "JWT_SECRET",
			TokenTTL:     7 * 24 * time.Hour,
		},
		Knowledge: Knowledge{
			BaseURL:              "http://localhost",
			APIKeyEnv:            "DIFY_API_KEY",
			DatasetPrefix:        "blog-articles",
			IndexingTechnique:    "high_quality",
			SegmentSeparator:     "\n\n",
			SegmentMaxTokens:     1000,
			Timeout:              30 * time.Second,
			RequestsPerSecond:    5,
			BatchSize:            3,
			BatchPause:           time.Second,
			MaxAttempts:          3,
			RetryInitialInterval: 500 * time.Millisecond,
			RequireKnownCategory: true,
		},
		Import: Import{DaysBack: 7},
		Server: Server{Host: "127.0.0.1", Port: 3001},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Knowledge.BatchSize < 1 {
		cfg.Knowledge.BatchSize = 1
	}
	if cfg.Knowledge.MaxAttempts < 1 {
		cfg.Knowledge.MaxAttempts = 1
	}
	cfg.Site.BaseURL = strings.TrimRight(cfg.Site.BaseURL, "/")
	cfg.Knowledge.BaseURL = strings.TrimRight(cfg.Knowledge.BaseURL, "/")
	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DatabasePath returns the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.GetDataDir(), "techblog.db")
}

// KnowledgeAPIKey reads the knowledge-base API key from the configured env var.
func (c *Config) KnowledgeAPIKey() string {
	return os.Getenv(c.Knowledge.APIKeyEnv)
}

// AdminPassword reads the admin password (plain or bcrypt hash) from the environment.
func (c *Config) AdminPassword() string {
	return os.Getenv(c.Admin.PasswordEnv)
}

// JWTSecret reads the token signing secret from the environment.
func (c *Config) JWTSecret() string {
	return os.Getenv(c.Admin.JWTSecretEnv)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
