// Package logging holds the process-wide logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Log is the logger shared by every package of the module. It is usable
// before Init is called and writes text at info level to stderr.
var Log = logrus.New()

// Config selects the level, format and destination of Log.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// ConfigFromEnv reads LOG_LEVEL and LOG_FORMAT. Values found in the given
// dotenv files are loaded into the environment first; missing files are
// ignored.
func ConfigFromEnv(dotenvFiles ...string) Config {
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	level, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		level = "info"
	}

	return Config{
		Level:  level,
		Format: strings.ToLower(os.Getenv("LOG_FORMAT")),
		Output: os.Stderr,
	}
}

// Init applies the config to Log. Unknown levels fall back to info.
func Init(cfg Config) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	if cfg.Format == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	if cfg.Output != nil {
		Log.SetOutput(cfg.Output)
	}
}
