package logger

// Backend is implemented by logging sinks. All pipeline packages log through
// the package-level functions, which fan out to every registered backend.
type Backend interface {
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

type dispatcher struct {
	backends []Backend
}

var active *dispatcher

// Init registers the logging backends. It must be called once at process
// start, before any other package logs. Logging before Init is a no-op.
func Init(backends ...Backend) {
	active = &dispatcher{backends: backends}
}

// Debug writes a message at DEBUG level to all registered backends.
func Debug(message string, keyvals ...any) {
	if active == nil {
		return
	}
	for _, b := range active.backends {
		b.Debug(message, keyvals...)
	}
}

// Info writes a message at INFO level to all registered backends.
func Info(message string, keyvals ...any) {
	if active == nil {
		return
	}
	for _, b := range active.backends {
		b.Info(message, keyvals...)
	}
}

// Warn writes a message at WARN level to all registered backends.
func Warn(message string, keyvals ...any) {
	if active == nil {
		return
	}
	for _, b := range active.backends {
		b.Warn(message, keyvals...)
	}
}

// Error writes a message at ERROR level to all registered backends.
func Error(message string, keyvals ...any) {
	if active == nil {
		return
	}
	for _, b := range active.backends {
		b.Error(message, keyvals...)
	}
}

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) {
	if active == nil {
		return
	}
	for _, b := range active.backends {
		b.Fatal(message, keyvals...)
	}
}
