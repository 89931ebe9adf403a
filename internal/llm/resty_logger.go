package llm

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// restyLogger routes resty's internal logging to zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

func newRestyLogger() restyLogger {
	return restyLogger{logger: log.With().Str("component", "resty").Logger()}
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}
