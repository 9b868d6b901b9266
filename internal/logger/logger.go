package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger writes everything to logFilePath. With console set it also
// writes to stdout; the terminal UI turns that off since it owns the screen.
func NewLogger(logFilePath string, console bool) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewDevelopmentConfig()

	encoder := zapcore.NewConsoleEncoder(encoderConfig.EncoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(
			encoder,
			zapcore.AddSync(logFile),
			zapcore.DebugLevel,
		),
	}

	if console {
		cores = append(cores, zapcore.NewCore(
			encoder,
			zapcore.AddSync(os.Stdout),
			zapcore.InfoLevel,
		))
	}

	logger := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.WarnLevel),
		zap.Development(),
	)

	return logger, nil
}
