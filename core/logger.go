package core

// Logger is implemented by any service that can report application events.
// Implementations may inspect args for well-known types (errors, logged-in
// account) to enrich the report.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
