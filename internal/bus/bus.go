// Package bus is the in-process publish/subscribe channel that carries
// focus-mode popup signals between the popup, the D-Bus bridge and the CLI.
package bus

import (
	"crypto/rand"
	"errors"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Topic names a signal channel.
type Topic string

const (
	TopicShowPopup             Topic = "show-focus-popup"
	TopicNotificationDismissed Topic = "notification-dismissed"
	TopicPopupDisplayed        Topic = "focus-popup-displayed"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("bus closed")

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 32

// ShowPopup is the payload of TopicShowPopup.
type ShowPopup struct {
	Title          string `json:"title" yaml:"title"`
	Body           string `json:"body" yaml:"body"`
	NotificationID string `json:"notificationId" yaml:"notificationId"`
	AppName        string `json:"appName,omitempty" yaml:"appName,omitempty"`
	MediaType      string `json:"mediaType,omitempty" yaml:"mediaType,omitempty"`
	MediaContent   string `json:"mediaContent,omitempty" yaml:"mediaContent,omitempty"`
}

// PopupDisplayed is the payload of TopicPopupDisplayed. Timestamp is epoch ms.
type PopupDisplayed struct {
	NotificationID string `json:"notificationId" yaml:"notificationId"`
	Timestamp      int64  `json:"timestamp" yaml:"timestamp"`
}

// Event is a single published signal.
type Event struct {
	ID      string
	Topic   Topic
	At      time.Time
	Payload any
}

type subscription struct {
	ch   chan Event
	once sync.Once
}

// Bus fans each published event out to every subscriber of its topic.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]*subscription
	buffer int
	closed bool
	logger logrus.FieldLogger
}

// New creates a Bus. A nil logger discards output.
func New(logger logrus.FieldLogger) *Bus {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Bus{
		subs:   make(map[Topic][]*subscription),
		buffer: DefaultBuffer,
		logger: logger.WithField("component", "bus"),
	}
}

// Subscribe registers for one or more topics. Events for all of them arrive
// on the one returned channel in publish order. The returned func
// unsubscribes and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(topics ...Topic) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{ch: make(chan Event, b.buffer)}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	for _, topic := range topics {
		if slices.Contains(b.subs[topic], sub) {
			continue
		}
		b.subs[topic] = append(b.subs[topic], sub)
	}

	return sub.ch, func() { b.unsubscribe(topics, sub) }
}

func (b *Bus) unsubscribe(topics []Topic, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, topic := range topics {
		list := b.subs[topic]
		for i, s := range list {
			if s == sub {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}

// Publish delivers payload to every current subscriber of topic without
// blocking. A subscriber whose queue is full misses the event.
func (b *Bus) Publish(topic Topic, payload any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	ev := Event{
		ID:      ulid.MustNew(ulid.Now(), rand.Reader).String(),
		Topic:   topic,
		At:      time.Now(),
		Payload: payload,
	}

	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- ev:
		default:
			b.logger.WithFields(logrus.Fields{"topic": topic, "event": ev.ID}).
				Warn("subscriber queue full, event dropped")
		}
	}
	b.logger.WithFields(logrus.Fields{"topic": topic, "event": ev.ID}).Debug("published")
	return nil
}

// Subscribers returns how many subscriptions topic currently has.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close closes every subscription. Later Publish calls return ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, list := range b.subs {
		for _, sub := range list {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	b.subs = nil
}
