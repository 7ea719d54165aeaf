package logger

import (
	"github.com/sirupsen/logrus"
)

// L is the process-wide logger instance.
var L *logrus.Logger

// Init configures the logger. Safe to call more than once.
func Init(level string) {
	L = logrus.New()
	L.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		L.SetLevel(lvl)
	}
}

func init() {
	Init("info")
}
