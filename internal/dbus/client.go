package dbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// SignalKind names a popup signal.
type SignalKind string

const (
	KindDisplayed SignalKind = "displayed"
	KindDismissed SignalKind = "dismissed"
)

// Signal is a decoded Displayed or Dismissed signal.
type Signal struct {
	Kind           SignalKind `json:"kind" yaml:"kind"`
	NotificationID string     `json:"notificationId" yaml:"notificationId"`
	// Timestamp is the display time in Unix milliseconds. Zero for Dismissed.
	Timestamp int64 `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// Time returns the display time, or the zero time.
func (s Signal) Time() time.Time {
	if s.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.Timestamp)
}

// Client talks to a running popup service.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Connect opens a private session bus connection.
func Connect() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{conn: conn, obj: conn.Object(Interface, Path)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Show asks the service to raise a popup.
func (c *Client) Show(ctx context.Context, title, body, notificationID, appName, mediaType, mediaContent string) error {
	call := c.obj.CallWithContext(ctx, Interface+".Show", 0,
		title, body, notificationID, appName, mediaType, mediaContent)
	return callError("Show", call.Err)
}

// Dismiss tells the service notificationID was dismissed elsewhere.
func (c *Client) Dismiss(ctx context.Context, notificationID string) error {
	call := c.obj.CallWithContext(ctx, Interface+".Dismiss", 0, notificationID)
	return callError("Dismiss", call.Err)
}

// Watch calls fn for every popup signal until ctx is done.
func (c *Client) Watch(ctx context.Context, fn func(Signal)) error {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(Path),
		dbus.WithMatchInterface(Interface),
	}
	if err := c.conn.AddMatchSignalContext(ctx, opts...); err != nil {
		return fmt.Errorf("failed to add signal match: %w", err)
	}
	defer func() { _ = c.conn.RemoveMatchSignal(opts...) }()

	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	defer c.conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-ch:
			if !ok {
				return errors.New("session bus connection closed")
			}
			if s, ok := decodeSignal(sig); ok {
				fn(s)
			}
		}
	}
}

func decodeSignal(sig *dbus.Signal) (Signal, bool) {
	if sig == nil || sig.Path != Path {
		return Signal{}, false
	}
	switch sig.Name {
	case Interface + "." + signalDisplayed:
		if len(sig.Body) != 2 {
			return Signal{}, false
		}
		id, ok := sig.Body[0].(string)
		ts, ok2 := sig.Body[1].(int64)
		if !ok || !ok2 {
			return Signal{}, false
		}
		return Signal{Kind: KindDisplayed, NotificationID: id, Timestamp: ts}, true

	case Interface + "." + signalDismissed:
		if len(sig.Body) != 1 {
			return Signal{}, false
		}
		id, ok := sig.Body[0].(string)
		if !ok {
			return Signal{}, false
		}
		return Signal{Kind: KindDismissed, NotificationID: id}, true
	}
	return Signal{}, false
}

func callError(method string, err error) error {
	if err == nil {
		return nil
	}
	var dErr dbus.Error
	if errors.As(err, &dErr) && dErr.Name == "org.freedesktop.DBus.Error.ServiceUnknown" {
		return ErrNotRunning
	}
	return fmt.Errorf("%s failed: %w", method, err)
}
