package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"unidss/adapters/excel"
	"unidss/domain/department"
	"unidss/internal/errors"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when CONFIG_FILE is unset and the file exists
const DefaultConfigFile = "config.yaml"

// Config represents the complete application configuration
type Config struct {
	AI      AIConfig         `yaml:"ai"`
	Server  ServerConfig     `yaml:"server"`
	Rules   department.Rules `yaml:"rules"`
	Data    DataConfig       `yaml:"data"`
	Logging LoggingConfig    `yaml:"logging"`
}

// AIConfig holds completion endpoint settings. An empty OpenAIKey is
// allowed: insight requests then yield the fallback message.
type AIConfig struct {
	OpenAIKey   string        `yaml:"openai_api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	PromptsDir  string        `yaml:"prompts_dir"`
}

// Enabled reports whether an API key is configured
func (c AIConfig) Enabled() bool {
	return c.OpenAIKey != ""
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port        string `yaml:"port"`
	APIPort     string `yaml:"api_port"`
	GinMode     string `yaml:"gin_mode"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// MaxUploadBytes is the request body limit for uploads
func (c ServerConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// DataConfig holds data source settings
type DataConfig struct {
	SampleDataFile string `yaml:"sample_data_file"`
	// Columns are the header names expected in uploads
	Columns excel.Columns `yaml:"columns"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		AI: AIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-3.5-turbo",
			Timeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Port:        "8080",
			APIPort:     "8081",
			GinMode:     "release",
			MaxUploadMB: 10,
		},
		Rules: department.DefaultRules(),
		Data: DataConfig{
			Columns: excel.DefaultColumns(),
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, then validates it. An empty path means CONFIG_FILE,
// or config.yaml when that exists.
func Load(path string) (*Config, error) {
	config := Default()

	explicit := true
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		path = DefaultConfigFile
		explicit = false
	}

	if err := loadFile(config, path, explicit); err != nil {
		return nil, errors.Wrap(err, "failed to load configuration file")
	}

	if err := loadEnv(config); err != nil {
		return nil, errors.Wrap(err, "failed to load environment configuration")
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadFile(config *Config, path string, explicit bool) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return nil
	}
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if err := yaml.Unmarshal(content, config); err != nil {
		return errors.Wrapf(errors.WithCode(errors.CodeConfigInvalid, err), "invalid YAML in %s", path)
	}
	return nil
}

func loadEnv(config *Config) error {
	setString(&config.AI.OpenAIKey, "OPENAI_API_KEY")
	setString(&config.AI.BaseURL, "OPENAI_BASE_URL")
	setString(&config.AI.Model, "LLM_MODEL")
	setString(&config.AI.PromptsDir, "PROMPTS_DIR")
	setString(&config.Server.Port, "PORT")
	setString(&config.Server.APIPort, "API_PORT")
	setString(&config.Server.GinMode, "GIN_MODE")
	setString(&config.Data.SampleDataFile, "SAMPLE_DATA_FILE")
	setString(&config.Logging.Level, "LOG_LEVEL")
	setString(&config.Logging.Format, "LOG_FORMAT")

	var err error
	if config.AI.Timeout, err = getEnvDurationOrDefault("LLM_TIMEOUT", config.AI.Timeout); err != nil {
		return err
	}
	if config.AI.MaxTokens, err = getEnvIntOrDefault("LLM_MAX_TOKENS", config.AI.MaxTokens); err != nil {
		return err
	}
	if config.AI.Temperature, err = getEnvFloatOrDefault("LLM_TEMPERATURE", config.AI.Temperature); err != nil {
		return err
	}
	maxUpload, err := getEnvIntOrDefault("MAX_UPLOAD_MB", int(config.Server.MaxUploadMB))
	if err != nil {
		return err
	}
	config.Server.MaxUploadMB = int64(maxUpload)
	if config.Rules.HighRatioThreshold, err = getEnvFloatOrDefault("RATIO_THRESHOLD", config.Rules.HighRatioThreshold); err != nil {
		return err
	}
	if config.Rules.LowBudgetFactor, err = getEnvFloatOrDefault("LOW_BUDGET_FACTOR", config.Rules.LowBudgetFactor); err != nil {
		return err
	}
	return nil
}

func validateConfig(config *Config) error {
	if strings.TrimSpace(config.Server.Port) == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if strings.TrimSpace(config.Server.APIPort) == "" {
		return errors.ConfigInvalid("API port is required")
	}
	if config.Server.MaxUploadMB <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be positive")
	}
	if config.AI.Timeout <= 0 {
		return errors.ConfigInvalid("LLM_TIMEOUT must be positive")
	}
	if config.AI.MaxTokens < 0 {
		return errors.ConfigInvalid("LLM_MAX_TOKENS must not be negative")
	}
	if config.AI.Model == "" {
		return errors.ConfigInvalid("LLM_MODEL is required")
	}
	if config.Rules.HighRatioThreshold <= 0 {
		return errors.ConfigInvalid("RATIO_THRESHOLD must be positive")
	}
	if f := config.Rules.LowBudgetFactor; f <= 0 || f > 1 {
		return errors.ConfigInvalid("LOW_BUDGET_FACTOR must be in (0, 1]")
	}
	cols := config.Data.Columns
	for _, name := range []string{cols.Department, cols.Students, cols.Faculty, cols.Budget} {
		if strings.TrimSpace(name) == "" {
			return errors.ConfigInvalid("data.columns entries must not be empty")
		}
	}
	switch config.Server.GinMode {
	case "debug", "release", "test":
	default:
		return errors.Newf(errors.CodeConfigInvalid, "unknown GIN_MODE %q", config.Server.GinMode)
	}
	return nil
}

// Helper functions for environment variable parsing. An unset variable
// keeps the current value; a malformed one is a configuration error.
func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Newf(errors.CodeConfigInvalid, "%s must be an integer, got %q", key, value)
	}
	return intValue, nil
}

func getEnvFloatOrDefault(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.Newf(errors.CodeConfigInvalid, "%s must be a number, got %q", key, value)
	}
	return floatValue, nil
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	// bare integers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, errors.Newf(errors.CodeConfigInvalid, "%s must be a duration, got %q", key, value)
}
