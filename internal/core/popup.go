package core

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ezchuang/focuspopup/internal/bus"
)

// DefaultAutoDismiss is how long a popup stays up without user action.
const DefaultAutoDismiss = 8000 * time.Millisecond

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Bus is the signal channel the controller listens and reports on.
type Bus interface {
	Publish(topic bus.Topic, payload any) error
	Subscribe(topics ...bus.Topic) (<-chan bus.Event, func())
}

// FocusContext exposes the read-only focus-mode customisation.
type FocusContext interface {
	CustomImage() string
	CustomText() string
}

type Config struct {
	AutoDismiss time.Duration
	// ReleaseOnTimeout makes an auto-dismiss behave like a user dismiss:
	// the app is released and notification-dismissed is published.
	ReleaseOnTimeout bool
}

type State struct {
	IsOpen         bool
	Notification   *NotificationData
	ImageLoaded    bool
	LastShownAppID string
	Seq            uint64 // popups shown
	Rev            uint64 // state changes; a lower Rev is a stale snapshot
	ShownAt        time.Time
	DismissAt      time.Time
}

// Controller owns the popup's display state. It reacts to show and
// dismissed signals, runs the auto-dismiss timer and reports back on the bus.
type Controller struct {
	mu     sync.RWMutex
	cfg    Config
	state  State
	clock  Clock
	cancel context.CancelFunc

	events Bus
	focus  FocusContext
	logger logrus.FieldLogger

	// optional subscriber (e.g., TUI refresh)
	onChange func(State)
}

func New(cfg Config, events Bus, focus FocusContext, logger logrus.FieldLogger) *Controller {
	if cfg.AutoDismiss <= 0 {
		cfg.AutoDismiss = DefaultAutoDismiss
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Controller{
		cfg:    cfg,
		clock:  realClock{},
		events: events,
		focus:  focus,
		logger: logger.WithField("component", "popup"),
	}
}

// SetOnChange registers fn to receive a snapshot after every state change.
// fn runs outside the controller lock and may call back into it.
func (c *Controller) SetOnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// SetConfig replaces the timing configuration; it applies from the next popup.
func (c *Controller) SetConfig(cfg Config) {
	if cfg.AutoDismiss <= 0 {
		cfg.AutoDismiss = DefaultAutoDismiss
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// State returns a snapshot of the current state (thread-safe).
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Run subscribes to show-focus-popup and notification-dismissed and handles
// them in publish order until ctx is done. The subscription is released on
// return, and any pending auto-dismiss is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	events, unsubscribe := c.events.Subscribe(bus.TopicShowPopup, bus.TopicNotificationDismissed)
	defer unsubscribe()
	defer c.stopTimer()

	c.logger.Debug("listening for popup signals")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev bus.Event) {
	switch ev.Topic {
	case bus.TopicShowPopup:
		detail, ok := ev.Payload.(bus.ShowPopup)
		if !ok {
			c.logger.WithField("event", ev.ID).Warn("ignoring show signal with unexpected payload")
			return
		}
		c.Show(detail)
	case bus.TopicNotificationDismissed:
		id, ok := ev.Payload.(string)
		if !ok {
			c.logger.WithField("event", ev.ID).Warn("ignoring dismissed signal with unexpected payload")
			return
		}
		c.DismissedElsewhere(id)
	}
}

// Show displays a popup for detail unless the same application is already
// the most recently shown one. It reports whether the popup was shown.
func (c *Controller) Show(detail bus.ShowPopup) bool {
	appID, hasAppID := ParseAppID(detail.NotificationID)

	c.mu.Lock()
	if hasAppID && appID == c.state.LastShownAppID {
		c.mu.Unlock()
		c.logger.WithFields(logrus.Fields{"app_id": appID, "notification_id": detail.NotificationID}).
			Debug("popup suppressed, app already shown")
		return false
	}
	if hasAppID {
		c.state.LastShownAppID = appID
	}

	media := detail.MediaContent
	if c.focus != nil {
		if img := c.focus.CustomImage(); img != "" {
			media = img
		}
	}

	now := c.clock.Now()
	c.state.Seq++
	c.state.Notification = &NotificationData{
		Title:          detail.Title,
		Body:           detail.Body,
		NotificationID: detail.NotificationID,
		AppName:        detail.AppName,
		MediaType:      detail.MediaType,
		MediaContent:   media,
	}
	c.state.IsOpen = true
	c.state.ImageLoaded = false
	c.state.ShownAt = now
	c.state.DismissAt = now.Add(c.cfg.AutoDismiss)
	c.spawnLocked(c.state.Seq)
	c.state.Rev++
	st := c.state
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"app_id": appID, "notification_id": detail.NotificationID}).Info("popup shown")
	c.notify(st)
	c.publish(bus.TopicPopupDisplayed, bus.PopupDisplayed{
		NotificationID: detail.NotificationID,
		Timestamp:      now.UnixMilli(),
	})
	return true
}

// DismissedElsewhere closes the popup when it is showing id.
func (c *Controller) DismissedElsewhere(id string) {
	c.mu.Lock()
	if !c.state.IsOpen || c.state.Notification == nil || c.state.Notification.NotificationID != id {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.state.IsOpen = false
	c.state.LastShownAppID = ""
	c.state.Rev++
	st := c.state
	c.mu.Unlock()

	c.logger.WithField("notification_id", id).Info("popup closed, dismissed elsewhere")
	c.notify(st)
}

// Dismiss is the user's close action. It releases the app and publishes
// notification-dismissed for the shown notification.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	if c.state.Notification == nil {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.state.IsOpen = false
	c.state.LastShownAppID = ""
	id := c.state.Notification.NotificationID
	c.state.Rev++
	st := c.state
	c.mu.Unlock()

	c.logger.WithField("notification_id", id).Info("popup dismissed")
	c.notify(st)
	c.publish(bus.TopicNotificationDismissed, id)
}

// ImageLoaded records that the image of popup seq finished loading.
// A failed load counts as loaded; the dialog renders without it.
func (c *Controller) ImageLoaded(seq uint64, err error) {
	c.mu.Lock()
	if seq != c.state.Seq || c.state.ImageLoaded {
		c.mu.Unlock()
		return
	}
	c.state.ImageLoaded = true
	c.state.Rev++
	st := c.state
	c.mu.Unlock()

	if err != nil {
		c.logger.WithError(err).WithField("seq", seq).Debug("popup image failed to load")
	}
	c.notify(st)
}

// Remaining is the time left before auto-dismiss (non-negative).
func (c *Controller) Remaining() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.state.IsOpen {
		return 0
	}
	rem := c.state.DismissAt.Sub(c.clock.Now())
	if rem < 0 {
		return 0
	}
	return rem
}

func (c *Controller) spawnLocked(seq uint64) {
	c.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	after := c.clock.After(c.cfg.AutoDismiss)
	go func() {
		select {
		case <-after:
			c.expire(seq)
		case <-ctx.Done():
			return
		}
	}()
}

func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) stopTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) expire(seq uint64) {
	c.mu.Lock()
	if seq != c.state.Seq || !c.state.IsOpen {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	c.state.IsOpen = false
	release := c.cfg.ReleaseOnTimeout
	if release {
		c.state.LastShownAppID = ""
	}
	id := c.state.Notification.NotificationID
	c.state.Rev++
	st := c.state
	c.mu.Unlock()

	c.logger.WithField("notification_id", id).Debug("popup auto-dismissed")
	c.notify(st)
	if release {
		c.publish(bus.TopicNotificationDismissed, id)
	}
}

func (c *Controller) notify(st State) {
	c.mu.RLock()
	fn := c.onChange
	c.mu.RUnlock()
	if fn != nil {
		fn(st)
	}
}

func (c *Controller) publish(topic bus.Topic, payload any) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(topic, payload); err != nil {
		c.logger.WithError(err).WithField("topic", topic).Warn("failed to publish")
	}
}
