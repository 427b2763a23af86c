// Package dbus exposes the popup on the session bus so other processes can
// raise and dismiss it, and follow what it shows.
package dbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/sirupsen/logrus"

	"github.com/ezchuang/focuspopup/internal/bus"
)

const (
	// Interface is both the interface name and the bus name claimed.
	Interface = "io.github.ezchuang.FocusPopup"
	// Path is the exported object path.
	Path = dbus.ObjectPath("/io/github/ezchuang/FocusPopup")

	signalDisplayed = "Displayed"
	// signalDismissed covers every dismissal: the popup's own button, a
	// release on timeout, and calls to Dismiss.
	signalDismissed = "Dismissed"
)

// ErrNotRunning means no popup service owns the bus name.
var ErrNotRunning = errors.New("focus popup service is not running")

// Events is the part of the event bus the service bridges.
type Events interface {
	Publish(topic bus.Topic, payload any) error
	Subscribe(topics ...bus.Topic) (<-chan bus.Event, func())
}

type emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...any) error
}

// Service implements the io.github.ezchuang.FocusPopup interface.
type Service struct {
	events Events
	logger logrus.FieldLogger

	mu      sync.Mutex
	conn    *dbus.Conn
	emit    emitter
	running bool
}

// NewService creates a service publishing to and bridging from events.
func NewService(events Events, logger logrus.FieldLogger) *Service {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Service{
		events: events,
		logger: logger.WithField("component", "dbus"),
	}
}

// Start connects to the session bus, exports the object and claims the name.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("service already running")
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.Export(s, Path, Interface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: string(Path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: serviceMethods(),
				Signals: serviceSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), Path,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(Interface, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Export(nil, Path, Interface)
		return fmt.Errorf("bus name %s already taken", Interface)
	}

	s.conn = conn
	s.emit = conn
	s.running = true
	s.logger.WithFields(logrus.Fields{"interface": Interface, "path": Path}).Info("D-Bus service started")
	return nil
}

// Stop releases the bus name. The shared session connection stays open.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	if _, err := s.conn.ReleaseName(Interface); err != nil {
		s.logger.WithError(err).Warn("failed to release bus name")
	}
	_ = s.conn.Export(nil, Path, Interface)
	_ = s.conn.Export(nil, Path, "org.freedesktop.DBus.Introspectable")
	s.emit = nil

	s.logger.Info("D-Bus service stopped")
	return nil
}

// Run re-emits popup events as D-Bus signals until ctx is done. Every
// notification-dismissed event becomes a Dismissed signal, including those
// that came in through Dismiss, so a caller sees its own dismissal echoed.
func (s *Service) Run(ctx context.Context) error {
	events, unsubscribe := s.events.Subscribe(bus.TopicPopupDisplayed, bus.TopicNotificationDismissed)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.bridge(ev)
		}
	}
}

func (s *Service) bridge(ev bus.Event) {
	switch ev.Topic {
	case bus.TopicPopupDisplayed:
		if p, ok := ev.Payload.(bus.PopupDisplayed); ok {
			s.signal(signalDisplayed, p.NotificationID, p.Timestamp)
		}
	case bus.TopicNotificationDismissed:
		if id, ok := ev.Payload.(string); ok {
			s.signal(signalDismissed, id)
		}
	}
}

func (s *Service) signal(member string, values ...any) {
	s.mu.Lock()
	emit := s.emit
	s.mu.Unlock()
	if emit == nil {
		return
	}
	if err := emit.Emit(Path, Interface+"."+member, values...); err != nil {
		s.logger.WithError(err).WithField("signal", member).Warn("failed to emit signal")
		return
	}
	s.logger.WithField("signal", member).Debug("emitted signal")
}

// Show raises a popup.
// D-Bus method: Show(ssssss) -> nothing
func (s *Service) Show(title, body, notificationID, appName, mediaType, mediaContent string) *dbus.Error {
	s.logger.WithFields(logrus.Fields{"notification_id": notificationID, "app": appName}).Debug("Show called")
	err := s.events.Publish(bus.TopicShowPopup, bus.ShowPopup{
		Title:          title,
		Body:           body,
		NotificationID: notificationID,
		AppName:        appName,
		MediaType:      mediaType,
		MediaContent:   mediaContent,
	})
	if err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Dismiss reports that notificationID was dismissed outside the popup.
// Watchers receive it back as a Dismissed signal.
// D-Bus method: Dismiss(s) -> nothing
func (s *Service) Dismiss(notificationID string) *dbus.Error {
	s.logger.WithField("notification_id", notificationID).Debug("Dismiss called")
	if err := s.events.Publish(bus.TopicNotificationDismissed, notificationID); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func serviceMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "Show",
			Args: []introspect.Arg{
				{Name: "title", Type: "s", Direction: "in"},
				{Name: "body", Type: "s", Direction: "in"},
				{Name: "notification_id", Type: "s", Direction: "in"},
				{Name: "app_name", Type: "s", Direction: "in"},
				{Name: "media_type", Type: "s", Direction: "in"},
				{Name: "media_content", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "Dismiss",
			Args: []introspect.Arg{
				{Name: "notification_id", Type: "s", Direction: "in"},
			},
		},
	}
}

func serviceSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: signalDisplayed,
			Args: []introspect.Arg{
				{Name: "notification_id", Type: "s"},
				{Name: "timestamp", Type: "x"},
			},
		},
		{
			Name: signalDismissed,
			Args: []introspect.Arg{
				{Name: "notification_id", Type: "s"},
			},
		},
	}
}
