// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/skyglow/skyglow-go/internal/logger"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "skyglow")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.slowthreshold", 200*time.Millisecond)
	v.SetDefault("database.sqlite.path", "skyglow.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", "3306")
	v.SetDefault("database.mysql.database", "skyglow")

	v.SetDefault("processing.workers", 0)
	v.SetDefault("processing.batchsize", 50)
	v.SetDefault("processing.hashblocksize", 64*1024)

	v.SetDefault("optics.focallength", 0.0)
	v.SetDefault("optics.fnumber", 0.0)

	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.url", "")
	v.SetDefault("publish.pagesize", 100)
	v.SetDefault("publish.delay", 500*time.Millisecond)
	v.SetDefault("publish.timeout", 30*time.Second)
	v.SetDefault("publish.allowinsecure", false)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "skyglow")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("notify.urls", []string{})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.environment", "production")

	v.SetDefault("webserver.enabled", false)
	v.SetDefault("webserver.listen", "127.0.0.1:8090")

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
}
