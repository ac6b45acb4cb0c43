// Package config loads the daemon configuration.
//
// Values come from three layers, later ones winning: the defaults declared on
// the struct tags, an optional YAML (or JSON) file, and environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Live stream configuration
	Stream StreamConfig `yaml:"stream" json:"stream"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ServerConfig holds HTTP server configuration.
// WriteTimeout must outlast a stream start, which blocks for up to 10s.
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host" env:"RTSPHLS_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" json:"port" env:"RTSPHLS_PORT" default:"5000"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"RTSPHLS_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"RTSPHLS_WRITE_TIMEOUT" default:"60s"`
	EnableCORS   bool          `yaml:"enable_cors" json:"enable_cors" env:"RTSPHLS_ENABLE_CORS" default:"true"`
}

// StreamConfig holds encoder and output configuration
type StreamConfig struct {
	OutputDir   string `yaml:"output_dir" json:"output_dir" env:"RTSPHLS_OUTPUT_DIR" default:"./hls"`
	LogDir      string `yaml:"log_dir" json:"log_dir" env:"RTSPHLS_LOG_DIR" default:"./logs"`
	FFmpegPath  string `yaml:"ffmpeg_path" json:"ffmpeg_path" env:"RTSPHLS_FFMPEG_PATH" default:"ffmpeg"`
	PublicPath  string `yaml:"public_path" json:"public_path" env:"RTSPHLS_PUBLIC_PATH" default:"/hls"`
	OrphanSweep bool   `yaml:"orphan_sweep" json:"orphan_sweep" env:"RTSPHLS_ORPHAN_SWEEP" default:"false"`
	LockFile    string `yaml:"lock_file" json:"lock_file" env:"RTSPHLS_LOCK_FILE" default:"./rtsphls.lock"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" json:"format" env:"LOG_FORMAT" default:"text"`
	Output string `yaml:"output" json:"output" env:"LOG_OUTPUT" default:"stderr"`
}

// MetricsConfig holds Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"RTSPHLS_METRICS_ENABLED" default:"true"`
	Path    string `yaml:"path" json:"path" env:"RTSPHLS_METRICS_PATH" default:"/metrics"`
}

// Address returns the host:port the server listens on
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ConfigManager loads and holds the configuration
type ConfigManager struct {
	config     *Config
	configPath string
	mu         sync.RWMutex
}

// NewConfigManager creates a configuration manager holding the defaults
func NewConfigManager() *ConfigManager {
	return &ConfigManager{config: DefaultConfig()}
}

// DefaultConfig returns the configuration described by the default tags
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := applyDefaults(reflect.ValueOf(cfg).Elem()); err != nil {
		// Tags are compile-time constants; a bad one is a programming error
		panic(fmt.Sprintf("invalid default tag: %v", err))
	}
	return cfg
}

// LoadConfig loads configuration from file and environment variables
func (cm *ConfigManager) LoadConfig(configPath string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	newConfig := DefaultConfig()

	if configPath != "" {
		if !fileExists(configPath) {
			return fmt.Errorf("config file not found: %s", configPath)
		}
		if err := loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(newConfig).Elem()); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.configPath = configPath
	cm.config = newConfig
	return nil
}

// GetConfig returns a copy of the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	configCopy := *cm.config
	return &configCopy
}

// Path returns the file the configuration was loaded from, if any
func (cm *ConfigManager) Path() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.configPath
}

// Load is a convenience wrapper returning the loaded configuration
func Load(configPath string) (*Config, error) {
	cm := NewConfigManager()
	if err := cm.LoadConfig(configPath); err != nil {
		return nil, err
	}
	return cm.GetConfig(), nil
}

// Validate checks the configuration for values the daemon cannot run with
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Stream.OutputDir == "" {
		return fmt.Errorf("stream.output_dir is required")
	}
	if c.Stream.LogDir == "" {
		return fmt.Errorf("stream.log_dir is required")
	}
	if c.Stream.FFmpegPath == "" {
		return fmt.Errorf("stream.ffmpeg_path is required")
	}

	public := strings.Trim(c.Stream.PublicPath, "/")
	if public == "" || public == "api" || strings.HasPrefix(public, "api/") {
		return fmt.Errorf("invalid stream.public_path: %q", c.Stream.PublicPath)
	}

	// The janitor wipes the output directory, so nothing of ours may live in it
	if c.Stream.LockFile != "" && within(c.Stream.OutputDir, c.Stream.LockFile) {
		return fmt.Errorf("stream.lock_file must be outside stream.output_dir")
	}
	if within(c.Stream.OutputDir, c.Stream.LogDir) {
		return fmt.Errorf("stream.log_dir must be outside stream.output_dir")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics.path: %q", c.Metrics.Path)
	}

	return nil
}

// YAML renders the configuration as YAML
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Helper methods

func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

// applyDefaults sets every field carrying a default tag
func applyDefaults(v reflect.Value) error {
	return walkFields(v, func(field reflect.Value, fieldType reflect.StructField) error {
		if def := fieldType.Tag.Get("default"); def != "" {
			return setFieldValue(field, def)
		}
		return nil
	})
}

// loadStructFromEnv overrides fields whose env variable is set
func loadStructFromEnv(v reflect.Value) error {
	return walkFields(v, func(field reflect.Value, fieldType reflect.StructField) error {
		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			return nil
		}
		envValue, ok := os.LookupEnv(envTag)
		if !ok || envValue == "" {
			return nil
		}
		return setFieldValue(field, envValue)
	})
}

func walkFields(v reflect.Value, fn func(reflect.Value, reflect.StructField) error) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		// Handle nested structs recursively
		if field.Kind() == reflect.Struct {
			if err := walkFields(field, fn); err != nil {
				return err
			}
			continue
		}

		if err := fn(field, fieldType); err != nil {
			return fmt.Errorf("failed to set field %s: %w", fieldType.Name, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// within reports whether path is dir or lies below it
func within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
