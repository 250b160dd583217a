package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldService is the log key for the kind of backend call
	// (rewrite, embedding, scrape).
	FieldService  = "service"
	FieldProvider = "provider"
	FieldModel    = "model"
)

// Service identifies an external backend a component talks to.
type Service struct {
	Kind     string
	Provider string
	Model    string
}

// Fields returns the non-empty service attributes as zap fields.
func (s Service) Fields() []zap.Field {
	fields := make([]zap.Field, 0, 3)
	fields = append(fields, nonEmpty(FieldService, s.Kind)...)
	fields = append(fields, nonEmpty(FieldProvider, s.Provider)...)
	fields = append(fields, nonEmpty(FieldModel, s.Model)...)
	return fields
}

// WithService tags the logger with the backend it describes.
func WithService(logger *zap.Logger, svc Service) *zap.Logger {
	return WithFields(logger, svc.Fields()...)
}

// WithFields attaches fields to the logger. A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

func nonEmpty(key, value string) []zap.Field {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return []zap.Field{zap.String(key, value)}
}
