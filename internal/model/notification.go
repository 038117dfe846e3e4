package model

// NotificationLevel is the severity of an operator-facing notification.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a one-shot message shown to the console operator.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}
