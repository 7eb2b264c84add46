package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the application logger. Production uses JSON output for log
// collectors; development keeps the human-readable text format.
func New(isProduction bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if isProduction {
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger
}
