// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateDatabaseSettings,
		validateProcessingSettings,
		validateOpticsSettings,
		validatePublishSettings,
		validateMQTTSettings,
		validateWebServerSettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	switch s.Database.Type {
	case "sqlite":
		if s.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path must be set")
		}
	case "mysql":
		if s.Database.MySQL.Host == "" || s.Database.MySQL.Database == "" {
			return fmt.Errorf("database.mysql.host and database.mysql.database must be set")
		}
	default:
		return fmt.Errorf("database.type must be sqlite or mysql, got %q", s.Database.Type)
	}
	return nil
}

func validateProcessingSettings(s *Settings) error {
	var errs []string
	if s.Processing.Workers < 0 {
		errs = append(errs, "processing.workers must not be negative")
	}
	if s.Processing.BatchSize <= 0 {
		errs = append(errs, "processing.batchsize must be greater than 0")
	}
	if s.Processing.HashBlockSize <= 0 {
		errs = append(errs, "processing.hashblocksize must be greater than 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, ", "))
	}
	return nil
}

func validateOpticsSettings(s *Settings) error {
	if s.Optics.FocalLength < 0 || s.Optics.FNumber < 0 {
		return fmt.Errorf("optics values must not be negative")
	}
	return nil
}

func validatePublishSettings(s *Settings) error {
	p := &s.Publish
	if p.PageSize <= 0 {
		return fmt.Errorf("publish.pagesize must be greater than 0")
	}
	if p.Delay < 0 || p.Timeout < 0 {
		return fmt.Errorf("publish.delay and publish.timeout must not be negative")
	}
	if !p.Enabled {
		return nil
	}

	u, err := url.Parse(p.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("publish.url %q is not a valid URL", p.URL)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !p.AllowInsecure {
			return fmt.Errorf("publish.url must use https unless publish.allowinsecure is set")
		}
	default:
		return fmt.Errorf("publish.url scheme %q is not supported", u.Scheme)
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	if s.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must be set when mqtt is enabled")
	}
	if s.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic must be set when mqtt is enabled")
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	if s.WebServer.Enabled && s.WebServer.Listen == "" {
		return fmt.Errorf("webserver.listen must be set when the webserver is enabled")
	}
	return nil
}
