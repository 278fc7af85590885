package mlog

import "go.uber.org/zap"

// ZapLogger is a Logger backed by a zap.SugaredLogger.
type ZapLogger struct {
	Logger *zap.SugaredLogger
}

// NewZapLogger builds the production logging backend: JSON encoding at
// the given level, or at info level when level does not parse.
func NewZapLogger(level string) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()

	lvl, err := zap.ParseAtomicLevel(level)
	if err == nil {
		cfg.Level = lvl
	}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &ZapLogger{Logger: logger.Sugar()}, nil
}

func (l *ZapLogger) Info(args ...any)                 { l.Logger.Info(args...) }
func (l *ZapLogger) Infof(format string, args ...any) { l.Logger.Infof(format, args...) }
func (l *ZapLogger) Infoln(args ...any)               { l.Logger.Info(args...) }

func (l *ZapLogger) Error(args ...any)                 { l.Logger.Error(args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.Logger.Errorf(format, args...) }
func (l *ZapLogger) Errorln(args ...any)               { l.Logger.Error(args...) }

func (l *ZapLogger) Warn(args ...any)                 { l.Logger.Warn(args...) }
func (l *ZapLogger) Warnf(format string, args ...any) { l.Logger.Warnf(format, args...) }
func (l *ZapLogger) Warnln(args ...any)               { l.Logger.Warn(args...) }

func (l *ZapLogger) Debug(args ...any)                 { l.Logger.Debug(args...) }
func (l *ZapLogger) Debugf(format string, args ...any) { l.Logger.Debugf(format, args...) }
func (l *ZapLogger) Debugln(args ...any)               { l.Logger.Debug(args...) }

func (l *ZapLogger) Fatal(args ...any)                 { l.Logger.Fatal(args...) }
func (l *ZapLogger) Fatalf(format string, args ...any) { l.Logger.Fatalf(format, args...) }
func (l *ZapLogger) Fatalln(args ...any)               { l.Logger.Fatal(args...) }

//nolint:ireturn
func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{Logger: l.Logger.With(fields...)}
}

func (l *ZapLogger) Sync() error { return l.Logger.Sync() }
