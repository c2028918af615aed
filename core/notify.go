package core

// Notifier dispatches user-facing notifications. Implementations are
// best-effort and fire-and-forget: failures are logged, never returned, so a
// notification can never fail the request that triggered it.
type Notifier interface {
	Notify(messages ...*EmailMessage)
}
