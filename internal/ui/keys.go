package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the popup.
type KeyMap struct {
	Close   key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

// ShortHelp returns a short help message.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Dismiss, k.Close, k.Quit}
}

// FullHelp returns a full help message.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Close: key.NewBinding(
			key.WithKeys("x", "esc"),
			key.WithHelp("x/esc", "close"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("enter", "d"),
			key.WithHelp("enter/d", "dismiss"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
