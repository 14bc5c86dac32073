package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the bell keybindings.
type KeyMap struct {
	// Dropdown
	Toggle key.Binding
	Close  key.Binding
	Down   key.Binding
	Up     key.Binding

	// Actions
	MarkAllRead key.Binding
	Dismiss     key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "open/close"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark all read"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("d", "x"),
			key.WithHelp("d", "dismiss"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the compact help line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.MarkAllRead, k.Dismiss, k.Help, k.Quit}
}

// FullHelp returns all bindings grouped by column.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Close, k.Up, k.Down},
		{k.MarkAllRead, k.Dismiss},
		{k.Help, k.Quit},
	}
}
