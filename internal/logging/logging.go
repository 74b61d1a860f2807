package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger. Unknown levels are an error;
// unknown formats fall back to text.
func Setup(level, format string, out io.Writer) error {
	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)

	lvl := log.InfoLevel
	if strings.TrimSpace(level) != "" {
		var err error
		lvl, err = log.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
