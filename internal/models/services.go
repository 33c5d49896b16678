package models

// NotificationService delivers post-commit events to the outside world
// (webhook endpoint, event stream). Best-effort: failures are logged, never
// propagated into the operation that produced the event.
type NotificationService interface {
	SendNotification(notification *Notification)
}
