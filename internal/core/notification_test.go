package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAppID(t *testing.T) {
	tests := []struct {
		id     string
		want   string
		wantOK bool
	}{
		{"focus-mode-twitter-1001", "twitter", true},
		{"focus-mode-my-app-1700000000000", "my-app", true},
		{"focus-mode-com.slack.Slack-42", "com.slack.Slack", true},
		{"prefix/focus-mode-reddit-7", "reddit", true},
		{"focus-mode-twitter", "", false},
		{"focus-mode--123", "", false},
		{"notification-123", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := ParseAppID(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotificationData_RenderedBody(t *testing.T) {
	n := NotificationData{Body: "{app} is not allowed", AppName: "Twitter"}
	assert.Equal(t, "Twitter is not allowed", n.RenderedBody())

	n = NotificationData{Body: "{app} is not allowed. Close {app}."}
	assert.Equal(t, "This app is not allowed. Close This app.", n.RenderedBody())

	n = NotificationData{Body: "no placeholder", AppName: "Twitter"}
	assert.Equal(t, "no placeholder", n.RenderedBody())
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"empty", "", "", false},
		{"system message", SystemMessage, "", false},
		{"system message padded", "  " + SystemMessage + "  ", "", false},
		{"plain quote", "Stay hungry.", "Stay hungry.", true},
		{"system message prefix", SystemMessage + "\n  Deep work wins. ", "Deep work wins.", true},
		{"whitespace only", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Quote(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
