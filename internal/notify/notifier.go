package notify

import "github.com/gen2brain/beeep"

// Notifier mirrors a popup to the desktop notification daemon.
type Notifier interface {
	Notify(title, body, icon string) error
}

type beeepNotifier struct{}

func (beeepNotifier) Notify(title, body, icon string) error {
	// icon may be a path or empty; remote and data: sources are not passed through
	return beeep.Notify(title, body, icon)
}

func New(appName string) Notifier {
	if appName != "" {
		beeep.AppName = appName
	}
	return beeepNotifier{}
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(string, string, string) error { return nil }
