package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce is how long the planner waits after the last edit before writing remotely
const DefaultDebounce = 2 * time.Second

// ClientConfig configures the planner CLI
type ClientConfig struct {
	// APIURL is the schedule API. Empty keeps the planner local-only.
	APIURL string `yaml:"api_url" validate:"omitempty,url"`
	// DataPath is the SQLite file holding local data and the login token
	DataPath string `yaml:"data_path" validate:"required"`
	// DatabaseURL lets operators point the planner straight at Postgres instead of the API
	DatabaseURL string `yaml:"database_url"`
	// DirectUserID names the account to use with DatabaseURL
	DirectUserID string        `yaml:"direct_user_id" validate:"required_with=DatabaseURL,omitempty,uuid"`
	Debounce     time.Duration `yaml:"debounce" validate:"min=0"`
	// CallbackPort is the loopback port the login flow listens on
	CallbackPort int  `yaml:"callback_port" validate:"min=0,max=65535"`
	Debug        bool `yaml:"debug"`
}

// DefaultClientDir is where the planner keeps its files
func DefaultClientDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".schedule-builder"
	}
	return filepath.Join(home, ".schedule-builder")
}

// DefaultClientConfigPath is the YAML file LoadClient reads when no path is given
func DefaultClientConfigPath() string {
	return filepath.Join(DefaultClientDir(), "config.yaml")
}

var clientValidate = validator.New()

// LoadClient reads path (a missing file is fine), then applies SCHEDULE_*
// environment overrides and validates the result
func LoadClient(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		DataPath:     filepath.Join(DefaultClientDir(), "local.db"),
		Debounce:     DefaultDebounce,
		CallbackPort: 8765,
	}

	if path == "" {
		path = DefaultClientConfigPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.APIURL = getEnv("SCHEDULE_API_URL", cfg.APIURL)
	cfg.DataPath = getEnv("SCHEDULE_DATA_PATH", cfg.DataPath)
	cfg.DatabaseURL = getEnv("SCHEDULE_DATABASE_URL", cfg.DatabaseURL)
	cfg.DirectUserID = getEnv("SCHEDULE_USER_ID", cfg.DirectUserID)
	cfg.Debounce = getEnvDuration("SCHEDULE_DEBOUNCE", cfg.Debounce)
	cfg.CallbackPort = getEnvInt("SCHEDULE_CALLBACK_PORT", cfg.CallbackPort)
	cfg.Debug = getEnvBool("SCHEDULE_DEBUG", cfg.Debug)

	if err := clientValidate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid planner config: %s", verrs[0].Error())
		}
		return nil, fmt.Errorf("invalid planner config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML
func (c *ClientConfig) Save(path string) error {
	if path == "" {
		path = DefaultClientConfigPath()
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
