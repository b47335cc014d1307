package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/fedsearch/internal/models"
)

var _ list.Item = resultItem{}

// resultItem wraps [models.ResultItem] to implement [list.Item].
type resultItem struct {
	item models.ResultItem
}

func (i resultItem) FilterValue() string { return i.item.Title }
func (i resultItem) Title() string       { return i.item.Title }
func (i resultItem) Description() string { return i.item.Subtitle }

func toListItems(items []models.ResultItem) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = resultItem{item: it}
	}
	return out
}

// newResultList creates a list that only moves its cursor. Typing belongs to the query input.
func newResultList() list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}
