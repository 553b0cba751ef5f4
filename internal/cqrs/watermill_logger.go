package cqrs

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"

	"github.com/danghamo/accountd/pkg/logger"
)

// watermillLogger routes watermill logs through zap
type watermillLogger struct {
	logger *logger.Logger
	fields watermill.LogFields
}

// NewWatermillLogger adapts logger to watermill.LoggerAdapter
func NewWatermillLogger(logger *logger.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: logger.WithComponent("watermill")}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(msg, append(l.zapFields(fields), zap.Error(err))...)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.logger.Info(msg, l.zapFields(fields)...)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, l.zapFields(fields)...)
}

// Trace is mapped to debug; zap has no trace level
func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, l.zapFields(fields)...)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{
		logger: l.logger,
		fields: l.fields.Add(fields),
	}
}

func (l *watermillLogger) zapFields(fields watermill.LogFields) []zap.Field {
	all := l.fields.Add(fields)
	zapFields := make([]zap.Field, 0, len(all))
	for k, v := range all {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return zapFields
}
