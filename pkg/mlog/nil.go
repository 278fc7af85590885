package mlog

// NilLogger discards everything. Used as the context default so components
// never need to nil-check their logger.
type NilLogger struct{}

// NewNilLogger returns a Logger that discards all output.
func NewNilLogger() Logger {
	return &NilLogger{}
}

func (l *NilLogger) Info(args ...any)                 {}
func (l *NilLogger) Infof(format string, args ...any) {}
func (l *NilLogger) Infoln(args ...any)               {}

func (l *NilLogger) Error(args ...any)                 {}
func (l *NilLogger) Errorf(format string, args ...any) {}
func (l *NilLogger) Errorln(args ...any)               {}

func (l *NilLogger) Warn(args ...any)                 {}
func (l *NilLogger) Warnf(format string, args ...any) {}
func (l *NilLogger) Warnln(args ...any)               {}

func (l *NilLogger) Debug(args ...any)                 {}
func (l *NilLogger) Debugf(format string, args ...any) {}
func (l *NilLogger) Debugln(args ...any)               {}

func (l *NilLogger) Fatal(args ...any)                 {}
func (l *NilLogger) Fatalf(format string, args ...any) {}
func (l *NilLogger) Fatalln(args ...any)               {}

//nolint:ireturn
func (l *NilLogger) WithFields(fields ...any) Logger {
	return l
}

func (l *NilLogger) Sync() error { return nil }
