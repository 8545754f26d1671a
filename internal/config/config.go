// Package config loads the bot configuration from defaults, an optional YAML
// file, a .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingKey is returned when a required credential is unset.
	ErrMissingKey = errors.New("missing required environment variable")

	// ErrPartialCredentials is returned when only some X credentials are set.
	ErrPartialCredentials = errors.New("some X API keys are set, but not all")
)

// Store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// XCredentials holds the OAuth 1.0a user credentials for the X API.
type XCredentials struct {
	APIKey            string `yaml:"-"`
	APIKeySecret      string `yaml:"-"`
	AccessToken       string `yaml:"-"`
	AccessTokenSecret string `yaml:"-"`
}

// Enabled reports whether posting credentials are configured.
func (x XCredentials) Enabled() bool {
	return x.APIKey != "" && x.APIKeySecret != "" && x.AccessToken != "" && x.AccessTokenSecret != ""
}

func (x XCredentials) missing() []string {
	var names []string
	for _, kv := range []struct{ name, value string }{
		{"X_API_KEY", x.APIKey},
		{"X_API_KEY_SECRET", x.APIKeySecret},
		{"X_ACCESS_TOKEN", x.AccessToken},
		{"X_ACCESS_TOKEN_SECRET", x.AccessTokenSecret},
	} {
		if kv.value == "" {
			names = append(names, kv.name)
		}
	}
	return names
}

// Paths are the files the bot reads and writes.
type Paths struct {
	KnowledgeBaseDir    string `yaml:"knowledge_base_dir"`
	ClustersFile        string `yaml:"clusters_file"`
	RecentKnowledgeFile string `yaml:"recent_knowledge_file"`
	AllKnowledgeFile    string `yaml:"all_knowledge_file"`
	ConceptFile         string `yaml:"concept_file"`
	ConceptSummaryFile  string `yaml:"concept_summary_file"`
	PostHistoryFile     string `yaml:"post_history_file"`
}

// Retry configures the research retry policy.
type Retry struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Store selects the knowledge log backend.
type Store struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Config holds the runtime configuration. It is built once at startup and
// passed to every component.
type Config struct {
	GeminiAPIKey string       `yaml:"-"`
	X            XCredentials `yaml:"-"`

	Model     string        `yaml:"model"`
	Threshold int           `yaml:"threshold"`
	Retry     Retry         `yaml:"retry"`
	PaceDelay time.Duration `yaml:"pace_delay"`
	Paths     Paths         `yaml:"paths"`
	Store     Store         `yaml:"store"`
	Schedule  string        `yaml:"schedule"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Model:     "gemini-2.0-flash",
		Threshold: 10,
		Retry:     Retry{Attempts: 3, Delay: 10 * time.Second},
		PaceDelay: 10 * time.Second,
		Paths: Paths{
			KnowledgeBaseDir:    "knowledge_base",
			ClustersFile:        "data/clusters.json",
			RecentKnowledgeFile: "data/knowledge/recent_knowledge.json",
			AllKnowledgeFile:    "data/knowledge/all_knowledge_log.json",
			ConceptFile:         "data/knowledge/high_level_concepts.json",
			ConceptSummaryFile:  "data/knowledge/concept_summary.md",
			PostHistoryFile:     "data/post_history.json",
		},
		Store:    Store{Backend: BackendJSON, SQLitePath: "data/growthbot.db"},
		Schedule: "0 */3 * * *",
	}
}

// Load builds the configuration. yamlPath may be empty; GROWTHBOT_CONFIG is
// consulted in that case. A missing .env file is not an error.
func Load(yamlPath string) (*Config, error) {
	cfg, err := LoadSettings(yamlPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateCredentials(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSettings is Load without the credential checks, for commands that
// only read local files.
func LoadSettings(yamlPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if yamlPath == "" {
		yamlPath = os.Getenv("GROWTHBOT_CONFIG")
	}
	if yamlPath != "" {
		if err := cfg.mergeYAML(yamlPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.validateSettings(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	c.GeminiAPIKey = getenv("GEMINI_API_KEY")

	c.X.APIKey = getenv("X_API_KEY")
	c.X.APIKeySecret = getenv("X_API_KEY_SECRET")
	if c.X.APIKeySecret == "" {
		c.X.APIKeySecret = getenv("X_API_SECRET")
	}
	c.X.AccessToken = getenv("X_ACCESS_TOKEN")
	c.X.AccessTokenSecret = getenv("X_ACCESS_TOKEN_SECRET")

	setString(&c.Model, getenv("GEMINI_MODEL"))
	setString(&c.Schedule, getenv("SCHEDULE"))
	setString(&c.Store.Backend, getenv("STORE_BACKEND"))
	setString(&c.Store.SQLitePath, getenv("SQLITE_PATH"))

	setString(&c.Paths.KnowledgeBaseDir, getenv("KNOWLEDGE_BASE_DIR"))
	setString(&c.Paths.ClustersFile, getenv("CLUSTERS_FILE"))
	setString(&c.Paths.RecentKnowledgeFile, getenv("RECENT_KNOWLEDGE_FILE"))
	setString(&c.Paths.AllKnowledgeFile, getenv("ALL_KNOWLEDGE_FILE"))
	setString(&c.Paths.ConceptFile, getenv("CONCEPT_FILE"))
	setString(&c.Paths.ConceptSummaryFile, getenv("CONCEPT_SUMMARY_FILE"))
	setString(&c.Paths.PostHistoryFile, getenv("POST_HISTORY_FILE"))

	if err := setInt(&c.Threshold, "CONCEPT_THRESHOLD", getenv); err != nil {
		return err
	}
	if err := setInt(&c.Retry.Attempts, "RETRY_ATTEMPTS", getenv); err != nil {
		return err
	}
	if err := setDuration(&c.Retry.Delay, "RETRY_DELAY", getenv); err != nil {
		return err
	}
	return setDuration(&c.PaceDelay, "PACE_DELAY", getenv)
}

// Validate checks credentials and settings.
func (c *Config) Validate() error {
	if err := c.validateCredentials(); err != nil {
		return err
	}
	return c.validateSettings()
}

func (c *Config) validateCredentials() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingKey)
	}
	if missing := c.X.missing(); len(missing) > 0 && len(missing) < 4 {
		return fmt.Errorf("%w; set all X keys or none of them. Missing: %s",
			ErrPartialCredentials, strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) validateSettings() error {
	if c.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", c.Threshold)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Retry.Delay < 0 || c.PaceDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	switch c.Store.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q (valid: json, sqlite)", c.Store.Backend)
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string, getenv func(string) string) error {
	v := getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, name string, getenv func(string) string) error {
	v := getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
