package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel  string                  `yaml:"default_level" mapstructure:"default_level"` // default log level for all modules
	Timezone      string                  `yaml:"timezone" mapstructure:"timezone"`           // "Local", "UTC", or IANA name
	Console       *ConsoleOutput          `yaml:"console" mapstructure:"console"`
	FileOutput    *FileOutput             `yaml:"file_output" mapstructure:"file_output"`
	ModuleOutputs map[string]ModuleOutput `yaml:"modules" mapstructure:"modules"`             // per-module output configuration
	ModuleLevels  map[string]string       `yaml:"module_levels" mapstructure:"module_levels"` // per-module log levels
}

// ConsoleOutput writes human-readable text without timestamps
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// FileOutput writes JSON records with RFC3339 timestamps
type FileOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// ModuleOutput routes one module to a dedicated file
type ModuleOutput struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	FilePath    string `yaml:"file_path" mapstructure:"file_path"`
	Level       string `yaml:"level" mapstructure:"level"`
	ConsoleAlso bool   `yaml:"console_also" mapstructure:"console_also"`
}

// Default values for logging configuration, kept in sync with conf/defaults.go
const (
	DefaultLogLevel       = "info"
	DefaultLogPath        = "logs/skyglow.log"
	DefaultPublishLogPath = "logs/publish.log"
	DefaultConsoleEnabled = true
	DefaultFileEnabled    = true
)

// applyConfigDefaults fills in nil sections so that an old config file
// without logging keys still gets console and file output.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   DefaultLogLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled: DefaultFileEnabled,
			Path:    DefaultLogPath,
			Level:   DefaultLogLevel,
		}
	}

	if cfg.ModuleOutputs == nil {
		cfg.ModuleOutputs = make(map[string]ModuleOutput)
	}

	// Publishing talks to a remote service; keep its trail separate
	if _, exists := cfg.ModuleOutputs["publish"]; !exists {
		cfg.ModuleOutputs["publish"] = ModuleOutput{
			Enabled:     true,
			FilePath:    DefaultPublishLogPath,
			Level:       DefaultLogLevel,
			ConsoleAlso: true,
		}
	}
}
