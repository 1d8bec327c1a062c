// env.go - environment variable and .env configuration
package conf

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SKYGLOW_PUBLISH_URL
const EnvPrefix = "SKYGLOW"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the keys that are commonly supplied through .env
func getEnvBindings() []envBinding {
	return []envBinding{
		{"database.type", "SKYGLOW_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "SKYGLOW_DATABASE_SQLITE_PATH", nil},
		{"database.mysql.username", "SKYGLOW_DATABASE_MYSQL_USERNAME", nil},
		{"database.mysql.password", "SKYGLOW_DATABASE_MYSQL_PASSWORD", nil},
		{"database.mysql.host", "SKYGLOW_DATABASE_MYSQL_HOST", nil},

		{"processing.workers", "SKYGLOW_PROCESSING_WORKERS", validateEnvNonNegativeInt},
		{"processing.batchsize", "SKYGLOW_PROCESSING_BATCHSIZE", validateEnvPositiveInt},

		{"publish.url", "SKYGLOW_PUBLISH_URL", validateEnvURL},
		{"publish.username", "SKYGLOW_PUBLISH_USERNAME", nil},
		{"publish.password", "SKYGLOW_PUBLISH_PASSWORD", nil},

		{"mqtt.username", "SKYGLOW_MQTT_USERNAME", nil},
		{"mqtt.password", "SKYGLOW_MQTT_PASSWORD", nil},

		{"telemetry.dsn", "SKYGLOW_TELEMETRY_DSN", validateEnvURL},
	}
}

// bindEnvVars loads the first .env found in dirs, then binds and validates
// environment overrides. Variables already set in the process win over .env.
func bindEnvVars(v *viper.Viper, dirs ...string) error {
	if err := loadDotEnv(dirs...); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var warnings []string
	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("invalid %s value: %v", binding.EnvVar, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// loadDotEnv reads the first existing .env file among dirs
func loadDotEnv(dirs ...string) error {
	for _, dir := range dirs {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("error loading %s: %w", path, err)
		}
		return nil
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch value {
	case "sqlite", "mysql":
		return nil
	default:
		return fmt.Errorf("must be sqlite or mysql")
	}
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}
