// Package logger builds the zap loggers used by every command and component.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FieldComponent is the structured log field key naming the emitting component.
const FieldComponent = "component"

// Options controls the logger produced by Build.
type Options struct {
	JSON  bool
	Debug bool
	// OutputPaths defaults to stderr so command output on stdout stays clean.
	OutputPaths []string
}

// New returns the process logger for the given output format and verbosity.
func New(json bool, debug bool) (*zap.Logger, error) {
	return Build(Options{JSON: json, Debug: debug})
}

func Build(opts Options) (*zap.Logger, error) {
	return config(opts).Build()
}

func config(opts Options) zap.Config {
	encoding := "console"
	if opts.JSON {
		encoding = "json"
	}

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	encoder := zapcore.EncoderConfig{
		MessageKey:   "step",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeTime:   zapcore.RFC3339TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	if opts.Debug {
		encoder.StacktraceKey = "stacktrace"
		encoder.EncodeDuration = zapcore.StringDurationEncoder
	} else {
		encoder.EncodeDuration = zapcore.MillisDurationEncoder
	}

	return zap.Config{
		Encoding:          encoding,
		Level:             zap.NewAtomicLevelAt(level),
		Development:       opts.Debug,
		DisableStacktrace: !opts.Debug,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		EncoderConfig:     encoder,
	}
}

// WithComponent returns a child logger tagged with the component name.
func WithComponent(logger *zap.Logger, name string) *zap.Logger {
	return WithFields(logger, nonEmpty(FieldComponent, name)...)
}
