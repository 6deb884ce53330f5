package service

// Notifier receives re-render notifications after successful mutations.
// The UI layer registers an implementation; it must re-read the affected
// entities rather than cache anything across renders.
type Notifier interface {
	EntitiesChanged(entityIDs ...string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// EntitiesChanged implements Notifier
func (NopNotifier) EntitiesChanged(entityIDs ...string) {}
