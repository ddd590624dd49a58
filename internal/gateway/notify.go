package gateway

import "github.com/gen2brain/beeep"

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(title, message string) error
}

// DesktopNotifier notifies through the OS notification service.
type DesktopNotifier struct{}

// NewDesktopNotifier sets the application name shown by the OS. Call it once.
func NewDesktopNotifier(appName string) DesktopNotifier {
	if appName != "" {
		beeep.AppName = appName
	}
	return DesktopNotifier{}
}

func (DesktopNotifier) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// NopNotifier drops notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string) error { return nil }
