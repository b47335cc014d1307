package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/fedsearch/internal/formatter"
	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
)

const maxNotices = 3

// Searcher is the part of a search session the TUI drives.
type Searcher interface {
	Search(text string) error
}

// Model represents the TUI application state.
type Model struct {
	searcher  Searcher
	input     textinput.Model
	lists     []list.Model
	active    int
	set       models.AggregatedResultSet
	searching bool
	notices   []string
	err       error
	width     int
	height    int
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model driving searcher.
func NewModel(searcher Searcher) *Model {
	input := textinput.New()
	input.Placeholder = "artist, album, track or user"
	input.Prompt = "search › "
	input.Focus()

	lists := make([]list.Model, len(models.Categories()))
	for i := range lists {
		lists[i] = newResultList()
	}

	return &Model{
		searcher: searcher,
		input:    input,
		lists:    lists,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.lists {
			m.lists[i].SetSize(msg.Width-4, max(msg.Height-10, 3))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.search):
		return m, m.search(m.input.Value())
	case key.Matches(msg, m.keys.nextTab):
		m.active = (m.active + 1) % len(m.lists)
		return m, nil
	case key.Matches(msg, m.keys.prevTab):
		m.active = (m.active + len(m.lists) - 1) % len(m.lists)
		return m, nil
	case key.Matches(msg, m.keys.up), key.Matches(msg, m.keys.down):
		var cmd tea.Cmd
		m.lists[m.active], cmd = m.lists[m.active].Update(msg)
		return m, cmd
	case key.Matches(msg, m.keys.clear):
		m.input.Reset()
		m.notices = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSearchStarted:
		m.searching = true
		m.notices = nil
		m.err = nil
		m.set = models.AggregatedResultSet{Query: msg.data.(string)}
		return m, nil

	case MsgResultsChanged:
		m.set = msg.data.(models.AggregatedResultSet)
		var cmds []tea.Cmd
		for i, c := range models.Categories() {
			cmds = append(cmds, m.lists[i].SetItems(toListItems(m.set.Items(c))))
		}
		return m, tea.Batch(cmds...)

	case MsgNotice:
		err, _ := msg.data.(error)
		if err != nil {
			m.notices = append(m.notices, err.Error())
			if len(m.notices) > maxNotices {
				m.notices = m.notices[len(m.notices)-maxNotices:]
			}
		}
		return m, nil

	case MsgSearchDispatched:
		if err, _ := msg.data.(error); errors.Is(err, shared.ErrSessionDetached) {
			m.searching = false
			m.err = err
		}
		return m, nil
	}
	return m, nil
}

// search dispatches text off the update loop. Blank text is ignored.
func (m *Model) search(text string) tea.Cmd {
	text = shared.NormalizeQuery(text)
	if text == "" {
		return nil
	}
	return func() tea.Msg {
		return searchDispatchedMsg(m.searcher.Search(text))
	}
}

// View renders the search screen.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("fedsearch") + "\n")
	b.WriteString(m.input.View() + "\n\n")

	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n")
	}

	if m.searching {
		b.WriteString(styles.ok.Render(formatter.Summary(m.set)) + "\n")
		if m.set.Image.Usable() {
			b.WriteString(styles.help.Render("image: "+m.set.Image.URL) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.renderTabs() + "\n\n")
	b.WriteString(m.lists[m.active].View() + "\n")

	for _, n := range m.notices {
		b.WriteString(styles.warn.Render("! "+n) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, len(m.lists))
	for i, c := range models.Categories() {
		label := fmt.Sprintf("%s (%d)", strings.ToUpper(c.String()[:1])+c.String()[1:], len(m.set.Items(c)))
		if i == m.active {
			tabs = append(tabs, styles.activeTab.Render(label))
		} else {
			tabs = append(tabs, styles.tab.Render(label))
		}
	}
	return strings.Join(tabs, "")
}
