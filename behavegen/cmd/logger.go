package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger logs to stderr in the development console format and, when
// log.file is set, as JSON to a rotated log file.
func newLogger(v *viper.Viper, stderr io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(v.GetString(logLevelKey))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", logLevelKey, err)
	}

	logCfg := zap.NewDevelopmentConfig()
	logCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(logCfg.EncoderConfig), zapcore.AddSync(stderr), level),
	}

	if path := v.GetString(logFileKey); path != "" {
		logWriter := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    v.GetInt(logMaxSizeKey),
			MaxBackups: v.GetInt(logMaxBackupsKey),
			MaxAge:     v.GetInt(logMaxAgeKey),
			Compress:   v.GetBool(logCompressKey),
		}

		cores = append(cores,
			zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(logWriter), level))
	}

	options := []zap.Option{zap.AddCaller()}
	if level == zapcore.DebugLevel {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(zapcore.NewTee(cores...), options...), nil
}
