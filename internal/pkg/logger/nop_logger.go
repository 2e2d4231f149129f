package logger

// NopLogger discards everything. Used in tests and the simulator.
type NopLogger struct{}

func NewNopLogger() ILogger {
	return &NopLogger{}
}

func (l *NopLogger) Debug(module, message string, details map[string]interface{}) {}
func (l *NopLogger) Info(module, message string, details map[string]interface{})  {}
func (l *NopLogger) Warn(module, message string, details map[string]interface{})  {}
func (l *NopLogger) Error(module, message string, details map[string]interface{}) {}
func (l *NopLogger) Sync() error                                                  { return nil }
