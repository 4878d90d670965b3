package logging

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PionFactory routes pion's internal logs into zerolog.
type PionFactory struct{}

func (PionFactory) NewLogger(scope string) logging.LeveledLogger {
	return pionLogger{scope: scope}
}

type pionLogger struct{ scope string }

func (p pionLogger) event(level zerolog.Level) *zerolog.Event {
	return log.WithLevel(level).Str("module", "pion").Str("scope", p.scope)
}

func (p pionLogger) Trace(msg string) { p.event(zerolog.TraceLevel).Msg(msg) }

func (p pionLogger) Tracef(format string, args ...any) {
	p.event(zerolog.TraceLevel).Msgf(format, args...)
}

func (p pionLogger) Debug(msg string) { p.event(zerolog.DebugLevel).Msg(msg) }

func (p pionLogger) Debugf(format string, args ...any) {
	p.event(zerolog.DebugLevel).Msgf(format, args...)
}

func (p pionLogger) Info(msg string) { p.event(zerolog.InfoLevel).Msg(msg) }

func (p pionLogger) Infof(format string, args ...any) {
	p.event(zerolog.InfoLevel).Msgf(format, args...)
}

func (p pionLogger) Warn(msg string) { p.event(zerolog.WarnLevel).Msg(msg) }

func (p pionLogger) Warnf(format string, args ...any) {
	p.event(zerolog.WarnLevel).Msgf(format, args...)
}

func (p pionLogger) Error(msg string) { p.event(zerolog.ErrorLevel).Msg(msg) }

func (p pionLogger) Errorf(format string, args ...any) {
	p.event(zerolog.ErrorLevel).Msgf(format, args...)
}
