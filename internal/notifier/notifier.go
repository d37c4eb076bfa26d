package notifier

// Notifier delivers operator-facing reports: cycle summaries and
// per-symbol ingestion failures.
type Notifier interface {
	Send(text string) error
}

// NoopNotifier is used when no notification channel is configured.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (n *NoopNotifier) Send(_ string) error { return nil }
