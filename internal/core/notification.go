package core

import (
	"regexp"
	"strings"
)

// SystemMessage is the stock focus-mode text. Custom text equal to it carries
// no motivational quote.
const SystemMessage = "You're outside your focus zone. {app} is not in your whitelist."

// DefaultAppName stands in for {app} when the signal names no application.
const DefaultAppName = "This app"

const appPlaceholder = "{app}"

var appIDPattern = regexp.MustCompile(`focus-mode-(.*?)-\d+`)

// NotificationData is what a single popup shows.
type NotificationData struct {
	Title          string
	Body           string
	NotificationID string
	AppName        string
	MediaType      string
	// MediaContent is the resolved image source: the custom image when one
	// is configured, otherwise whatever the signal carried.
	MediaContent string
}

// RenderedBody substitutes the application name for every {app} in Body.
func (n NotificationData) RenderedBody() string {
	name := n.AppName
	if name == "" {
		name = DefaultAppName
	}
	return strings.ReplaceAll(n.Body, appPlaceholder, name)
}

// HasImage reports whether an image source was resolved for the popup.
func (n NotificationData) HasImage() bool {
	return n.MediaContent != ""
}

// ParseAppID extracts the application identifier embedded in a
// notification id of the form focus-mode-<appId>-<digits>.
func ParseAppID(notificationID string) (string, bool) {
	m := appIDPattern.FindStringSubmatch(notificationID)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// Quote derives the motivational quote from the configured custom text.
func Quote(customText string) (string, bool) {
	if customText == "" || customText == SystemMessage {
		return "", false
	}
	q := strings.TrimSpace(strings.Replace(customText, SystemMessage, "", 1))
	if q == "" {
		return "", false
	}
	return q, true
}
