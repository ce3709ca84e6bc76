package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log  *logrus.Logger
	once sync.Once
)

// Init configures the package logger with the given level. Unknown levels
// fall back to info.
func Init(level string) {
	ensure()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
}

func ensure() {
	once.Do(func() {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		log.SetLevel(logrus.InfoLevel)
	})
}

func Debug(args ...interface{}) {
	ensure()
	log.Debug(args...)
}

func Info(args ...interface{}) {
	ensure()
	log.Info(args...)
}

func Warn(args ...interface{}) {
	ensure()
	log.Warn(args...)
}

func Error(args ...interface{}) {
	ensure()
	log.Error(args...)
}

func Fatal(args ...interface{}) {
	ensure()
	log.Fatal(args...)
}

func Debugf(format string, args ...interface{}) {
	ensure()
	log.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	ensure()
	log.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	ensure()
	log.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	ensure()
	log.Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	ensure()
	log.Fatalf(format, args...)
}
