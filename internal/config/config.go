// Package config loads and validates mnemo configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete mnemo configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	DataRoot string `json:"dataRoot" mapstructure:"dataRoot"`

	Store      StoreConfig      `json:"store" mapstructure:"store"`
	Retrieval  RetrievalConfig  `json:"retrieval" mapstructure:"retrieval"`
	Walker     WalkerConfig     `json:"walker" mapstructure:"walker"`
	Inflate    InflateConfig    `json:"inflate" mapstructure:"inflate"`
	Vocabulary VocabularyConfig `json:"vocabulary" mapstructure:"vocabulary"`
	Server     ServerConfig     `json:"server" mapstructure:"server"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// StoreConfig contains backing-store configuration
type StoreConfig struct {
	Path           string `json:"path" mapstructure:"path"`
	QueryTimeoutMs int    `json:"queryTimeoutMs" mapstructure:"queryTimeoutMs"`
}

// RetrievalConfig contains orchestrator tuning
type RetrievalConfig struct {
	DefaultMaxChars   int      `json:"defaultMaxChars" mapstructure:"defaultMaxChars"`
	TokensPerAtom     int      `json:"tokensPerAtom" mapstructure:"tokensPerAtom"`
	MinAtoms          int      `json:"minAtoms" mapstructure:"minAtoms"`
	DomainTerms       []string `json:"domainTerms" mapstructure:"domainTerms"`
	KnownBuckets      []string `json:"knownBuckets" mapstructure:"knownBuckets"`
	SplitShortCircuit int      `json:"splitShortCircuit" mapstructure:"splitShortCircuit"`
}

// WalkerConfig contains graph-walker tuning
type WalkerConfig struct {
	Damping          float64 `json:"damping" mapstructure:"damping"`
	Lambda           float64 `json:"lambda" mapstructure:"lambda"`
	GravityThreshold float64 `json:"gravityThreshold" mapstructure:"gravityThreshold"`
	MaxResults       int     `json:"maxResults" mapstructure:"maxResults"`
	MaxAnchors       int     `json:"maxAnchors" mapstructure:"maxAnchors"`
	AdjacencyBytes   int     `json:"adjacencyBytes" mapstructure:"adjacencyBytes"`
	TimeoutMs        int     `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// InflateConfig contains context-window inflation tuning
type InflateConfig struct {
	BaseDir        string `json:"baseDir" mapstructure:"baseDir"`
	Padding        int    `json:"padding" mapstructure:"padding"`
	MaxWindow      int    `json:"maxWindow" mapstructure:"maxWindow"`
	MergeThreshold int    `json:"mergeThreshold" mapstructure:"mergeThreshold"`
}

// VocabularyConfig contains tag-vocabulary file locations
type VocabularyConfig struct {
	ManifestPath string `json:"manifestPath" mapstructure:"manifestPath"`
	SynonymsPath string `json:"synonymsPath" mapstructure:"synonymsPath"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Bind string `json:"bind" mapstructure:"bind"`
	Port int    `json:"port" mapstructure:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// Default returns a Config with every knob at its documented default.
func Default() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			QueryTimeoutMs: 5000,
		},
		Retrieval: RetrievalConfig{
			DefaultMaxChars:   8000,
			TokensPerAtom:     200,
			MinAtoms:          5,
			KnownBuckets:      []string{"inbox", "archive", "scratch"},
			SplitShortCircuit: 10,
		},
		Walker: WalkerConfig{
			Damping:          0.85,
			Lambda:           0.00001,
			GravityThreshold: 0.01,
			MaxResults:       50,
			MaxAnchors:       50,
			AdjacencyBytes:   1000,
			TimeoutMs:        10000,
		},
		Inflate: InflateConfig{
			Padding:        200,
			MaxWindow:      2500,
			MergeThreshold: 500,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37870,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads configuration from dataRoot/mnemo.json, environment variables
// prefixed MNEMO_, and defaults, in ascending precedence of the caller's
// explicit file over env over defaults.
func Load(dataRoot string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("mnemo")
	v.SetConfigType("json")
	if dataRoot != "" {
		v.AddConfigPath(dataRoot)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("MNEMO")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; everything has a default.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DataRoot == "" {
		cfg.DataRoot = dataRoot
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values left by a sparse config file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Store.QueryTimeoutMs == 0 {
		c.Store.QueryTimeoutMs = d.Store.QueryTimeoutMs
	}
	if c.Store.Path == "" && c.DataRoot != "" {
		c.Store.Path = filepath.Join(c.DataRoot, "mnemo.db")
	}
	if c.Retrieval.DefaultMaxChars == 0 {
		c.Retrieval.DefaultMaxChars = d.Retrieval.DefaultMaxChars
	}
	if c.Retrieval.TokensPerAtom == 0 {
		c.Retrieval.TokensPerAtom = d.Retrieval.TokensPerAtom
	}
	if c.Retrieval.MinAtoms == 0 {
		c.Retrieval.MinAtoms = d.Retrieval.MinAtoms
	}
	if len(c.Retrieval.KnownBuckets) == 0 {
		c.Retrieval.KnownBuckets = d.Retrieval.KnownBuckets
	}
	if c.Retrieval.SplitShortCircuit == 0 {
		c.Retrieval.SplitShortCircuit = d.Retrieval.SplitShortCircuit
	}
	if c.Walker.Damping == 0 {
		c.Walker.Damping = d.Walker.Damping
	}
	if c.Walker.Lambda == 0 {
		c.Walker.Lambda = d.Walker.Lambda
	}
	if c.Walker.GravityThreshold == 0 {
		c.Walker.GravityThreshold = d.Walker.GravityThreshold
	}
	if c.Walker.MaxResults == 0 {
		c.Walker.MaxResults = d.Walker.MaxResults
	}
	if c.Walker.MaxAnchors == 0 {
		c.Walker.MaxAnchors = d.Walker.MaxAnchors
	}
	if c.Walker.AdjacencyBytes == 0 {
		c.Walker.AdjacencyBytes = d.Walker.AdjacencyBytes
	}
	if c.Walker.TimeoutMs == 0 {
		c.Walker.TimeoutMs = d.Walker.TimeoutMs
	}
	if c.Inflate.Padding == 0 {
		c.Inflate.Padding = d.Inflate.Padding
	}
	if c.Inflate.MaxWindow == 0 {
		c.Inflate.MaxWindow = d.Inflate.MaxWindow
	}
	if c.Inflate.MergeThreshold == 0 {
		c.Inflate.MergeThreshold = d.Inflate.MergeThreshold
	}
	if c.Inflate.BaseDir == "" {
		c.Inflate.BaseDir = c.DataRoot
	}
	if c.Vocabulary.ManifestPath == "" && c.DataRoot != "" {
		c.Vocabulary.ManifestPath = filepath.Join(c.DataRoot, "vocabulary.toml")
	}
	if c.Vocabulary.SynonymsPath == "" && c.DataRoot != "" {
		c.Vocabulary.SynonymsPath = filepath.Join(c.DataRoot, "synonyms.yaml")
	}
	if c.Server.Bind == "" {
		c.Server.Bind = d.Server.Bind
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Walker.Damping <= 0 || c.Walker.Damping > 1 {
		return fmt.Errorf("walker.damping must be in (0,1], got %v", c.Walker.Damping)
	}
	if c.Walker.Lambda < 0 {
		return fmt.Errorf("walker.lambda must be >= 0, got %v", c.Walker.Lambda)
	}
	if c.Inflate.MaxWindow < c.Inflate.Padding {
		return fmt.Errorf("inflate.maxWindow (%d) smaller than inflate.padding (%d)",
			c.Inflate.MaxWindow, c.Inflate.Padding)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// EnsureDataRoot creates the data root directory if needed.
func (c *Config) EnsureDataRoot() error {
	if c.DataRoot == "" {
		return nil
	}
	return os.MkdirAll(c.DataRoot, 0755)
}
