// Package logger wires logrus the way the rest of this module expects
// it: a single Init call from cmd/main.go before anything else runs,
// after which every package logs through the logrus package-level API.
package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/volrecon/internal/config"
)

// Init sets the global logrus level and formatter. It must be called
// once, before any parsing or address translation happens. Debug-level
// format-identification traces are emitted only when level is
// config.LogLevelDebug; cmd/main.go calls it with config.LogLevelInfo,
// and the CLI has no flag that changes the level.
func Init(level string) error {
	parsed, err := parseLevel(level)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	logrus.SetLevel(parsed)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return nil
}

func parseLevel(level string) (logrus.Level, error) {
	switch level {
	case config.LogLevelDebug:
		return logrus.DebugLevel, nil
	case config.LogLevelInfo:
		return logrus.InfoLevel, nil
	case config.LogLevelWarning:
		return logrus.WarnLevel, nil
	case config.LogLevelError:
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
