package monitoring

import "go.uber.org/zap"

// logger is the process wide logger, a no-op until RegisterLogger is called
var logger = zap.NewNop()

// sugaredLogger is the printf/keys-and-values flavour of logger
var sugaredLogger = logger.Sugar()

// RegisterLogger replaces the process wide logger
// RegisterLogger is NOT THREAD SAFE, call it once during startup
func RegisterLogger(l *zap.Logger) {
	logger = l
	sugaredLogger = l.Sugar()
}

// Log returns registered logger
func Log() *zap.Logger {
	return logger
}

// Logs returns sugared version of registered logger
func Logs() *zap.SugaredLogger {
	return sugaredLogger
}
