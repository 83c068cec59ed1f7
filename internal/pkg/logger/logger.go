package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/bible_search_server/config"
)

const redacted = "[REDACTED]"

// sensitiveFields are field names whose values never reach the log output
var sensitiveFields = map[string]struct{}{
	"password":      {},
	"token":         {},
	"authorization": {},
	"cookie":        {},
	"api_key":       {},
	"apikey":        {},
	"secret":        {},
	"subject":       {},
	"email":         {},
}

// New builds a logger from the log section of the configuration
func New(cfg *config.LogConfig) *logrus.Logger {
	return NewWithOutput(cfg, os.Stdout)
}

func NewWithOutput(cfg *config.LogConfig, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if strings.EqualFold(cfg.Format, "text") {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.AddHook(RedactHook{})

	return log
}

// RedactHook masks the values of sensitive fields before an entry is written
type RedactHook struct{}

func (RedactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (RedactHook) Fire(entry *logrus.Entry) error {
	for k := range entry.Data {
		if IsSensitive(k) {
			entry.Data[k] = redacted
		}
	}
	return nil
}

// IsSensitive reports whether a field name must be redacted. Matching ignores
// case and the separators used by different naming styles.
func IsSensitive(field string) bool {
	key := strings.ToLower(field)
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if _, ok := sensitiveFields[key]; ok {
		return true
	}
	_, ok := sensitiveFields[strings.ReplaceAll(key, "_", "")]
	return ok
}
