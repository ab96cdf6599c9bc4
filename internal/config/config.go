// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Server settings for the review API
	Server struct {
		Port         int      `yaml:"port"`
		UploadDir    string   `yaml:"upload_dir"`
		ProcessedDir string   `yaml:"processed_dir"`
		AllowOrigins []string `yaml:"allow_origins"`
	} `yaml:"server"`

	// Detection settings
	Detection struct {
		// MinConfidence drops candidates below the threshold. Loose shapes
		// like bare postal codes sit at 0.75; raise this to exclude them.
		MinConfidence      float64 `yaml:"min_confidence"`
		MaxConcurrentPages int     `yaml:"max_concurrent_pages"`
		// TaxonomyFile overrides the built-in exemption taxonomy.
		TaxonomyFile string `yaml:"taxonomy_file"`
	} `yaml:"detection"`

	// Semantic classifier settings
	Semantic struct {
		Enabled        bool   `yaml:"enabled"`
		Model          string `yaml:"model"`
		Endpoint       string `yaml:"endpoint"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxTokens      int    `yaml:"max_tokens"`
	} `yaml:"semantic"`

	// Observability settings
	Observability struct {
		Debug   bool `yaml:"debug"`
		Metrics bool `yaml:"metrics"`
	} `yaml:"observability"`
}

// DefaultConfig returns the built-in defaults used when no config file exists
func DefaultConfig() *Config {
	c := &Config{}
	c.Server.Port = 8000
	c.Server.UploadDir = "uploads"
	c.Server.ProcessedDir = "processed"
	c.Server.AllowOrigins = []string{"*"}
	c.Detection.MinConfidence = 0
	c.Detection.MaxConcurrentPages = 4
	c.Semantic.Enabled = true
	c.Semantic.Model = "claude-3-5-sonnet-latest"
	c.Semantic.TimeoutSeconds = 60
	c.Semantic.MaxTokens = 4000
	c.Observability.Metrics = true
	return c
}

// LoadConfig loads configuration from a YAML file, applying defaults for
// anything the file leaves unset
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigOrDefault loads the given config file, or searches standard
// locations, or falls back to defaults. It never fails; a broken config file
// is reported on stderr and ignored. Environment files (.env) are loaded
// first so the classifier API key can live alongside the config.
func LoadConfigOrDefault(configFile string) *Config {
	_ = godotenv.Load()

	if configFile == "" {
		configFile = FindConfigFile()
	}
	if configFile == "" {
		return DefaultConfig()
	}

	config, err := LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
		return DefaultConfig()
	}
	return config
}

// FindConfigFile looks for a configuration file in standard locations
func FindConfigFile() string {
	for _, name := range []string{"config.yaml", "opra-redact.yaml", "opra-redact.yml"} {
		if fileExists(name) {
			return name
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	for _, candidate := range []string{
		filepath.Join(xdgConfig, "opra-redact", "config.yaml"),
		filepath.Join(home, ".opra-redact.yaml"),
		filepath.Join(home, ".opra-redact.yml"),
	} {
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

// ValidateConfig checks configuration invariants
func ValidateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Detection.MinConfidence < 0 || config.Detection.MinConfidence > 1 {
		return fmt.Errorf("detection min_confidence %.2f outside [0,1]", config.Detection.MinConfidence)
	}
	if config.Detection.MaxConcurrentPages < 1 {
		return fmt.Errorf("detection max_concurrent_pages must be at least 1")
	}
	if config.Semantic.TimeoutSeconds < 1 {
		return fmt.Errorf("semantic timeout_seconds must be at least 1")
	}
	return nil
}

// SemanticTimeout returns the classifier timeout as a duration
func (c *Config) SemanticTimeout() time.Duration {
	return time.Duration(c.Semantic.TimeoutSeconds) * time.Second
}

// APIKey returns the classification service credential from the environment.
// An empty key disables the semantic detector regardless of Semantic.Enabled.
func (c *Config) APIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
