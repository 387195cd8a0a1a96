package kvstore

import (
	"fmt"
	"log/slog"
	"strings"
)

// restyLogger routes resty's internal warnings into slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l *restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(l.format(format, v...))
}

func (l *restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(l.format(format, v...))
}

func (l *restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(l.format(format, v...))
}

func (l *restyLogger) format(format string, v ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}
