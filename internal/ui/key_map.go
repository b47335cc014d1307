package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	search  key.Binding
	nextTab key.Binding
	prevTab key.Binding
	up      key.Binding
	down    key.Binding
	clear   key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		search:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
		nextTab: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next category")),
		prevTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous category")),
		up:      key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "up")),
		down:    key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "down")),
		clear:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
		quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.search, k.nextTab, k.clear, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.search, k.clear},
		{k.nextTab, k.prevTab},
		{k.up, k.down, k.quit},
	}
}
