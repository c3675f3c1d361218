// Package logging configures the global logrus logger for uscert-manager.
//
// Logs go to stderr by default so that user-facing output on stdout
// stays clean. When a log file is configured it is rotated in place,
// which matters for long-running service deployments.
package logging

import (
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// componentKey is the log field naming the subsystem a message came from.
const componentKey = "component"

// Init configures the global logger. An unknown level falls back to
// info. When logFile is empty, logs are written to stderr.
func Init(logFile, level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	logrus.SetFormatter(&nested.Formatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldsOrder:     []string{componentKey},
		HideKeys:        true,
	})

	if logFile != "" {
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	} else {
		logrus.SetOutput(os.Stderr)
	}
}

// Component returns a logger entry tagged with the given subsystem name.
func Component(name string) *logrus.Entry {
	return logrus.WithField(componentKey, name)
}
