// config.go: settings struct for skyglow and the functions to load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// DatabaseSettings selects and configures the store backend
type DatabaseSettings struct {
	Type          string        // sqlite or mysql
	SlowThreshold time.Duration // statements slower than this are logged as warnings
	SQLite        struct {
		Path string // path to sqlite database file
	}
	MySQL struct {
		Username string
		Password string
		Host     string
		Port     string
		Database string
	}
}

// ProcessingSettings sizes the worker pool and database batches
type ProcessingSettings struct {
	Workers       int // 0 sizes the pool from cpu and memory
	BatchSize     int // rows per insert transaction
	HashBlockSize int // bytes read per hash block
}

// OpticsSettings holds fallback values for images without lens metadata
type OpticsSettings struct {
	FocalLength float64 // mm
	FNumber     float64
}

// PublishSettings configures the remote measurement endpoint
type PublishSettings struct {
	Enabled       bool
	URL           string
	Username      string
	Password      string
	PageSize      int
	Delay         time.Duration // minimum spacing between pages
	Timeout       time.Duration // per request
	AllowInsecure bool          // permit plain http, for local testing only
}

// MQTTSettings configures run notifications over MQTT
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	Username string
	Password string
	Retain   bool
}

// NotifySettings lists shoutrrr service URLs
type NotifySettings struct {
	URLs []string
}

// TelemetrySettings configures error reporting to Sentry
type TelemetrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// WebServerSettings configures the read-only status API
type WebServerSettings struct {
	Enabled bool
	Listen  string // host:port
}

// Settings contains all configuration options for skyglow
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`

	Main struct {
		Name string // station name, sent along with notifications
	}

	Database   DatabaseSettings
	Processing ProcessingSettings
	Optics     OpticsSettings
	Publish    PublishSettings
	MQTT       MQTTSettings
	Notify     NotifySettings
	Telemetry  TelemetrySettings
	WebServer  WebServerSettings

	Logging logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file, .env file and environment variables
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	v := viper.New()
	if err := initViper(v); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := unmarshalSettings(v)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// LoadFile reads settings from an explicit config file path. Missing files
// are an error here; only the default search creates a fresh config.
func LoadFile(path string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	v := viper.New()
	v.SetConfigFile(path)
	setDefaultConfig(v)
	if err := bindEnvVars(v, filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read-config").
			Context("path", path).
			Build()
	}

	settings, err := unmarshalSettings(v)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func unmarshalSettings(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper sets defaults, binds the environment and reads the config file.
func initViper(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	setDefaultConfig(v)

	if err := bindEnvVars(v, configPaths...); err != nil {
		return err
	}

	err = v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(v, configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml to dir and reads it back
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	data, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return v.ReadInConfig()
}

// getDefaultConfig reads the embedded default configuration
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read-embedded-config").
			Build()
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath through a temp file and rename.
// Comments in the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// cross-device rename, fall back to copy
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}
	return nil
}
