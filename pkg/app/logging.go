package app

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

func parseLevel(s string) (log.Level, error) {
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the root logger from cfg. Logs go to cfg.LogFile when set,
// otherwise to fallback. The returned closer releases the file, if any.
func NewLogger(cfg Config, fallback io.Writer) (*log.Logger, io.Closer, error) {
	lvl, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	w := fallback
	var closer io.Closer = nopCloser{}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          "clockapp",
	})
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
