package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/fedsearch/internal/models"
)

// Sender delivers messages to a running program. [tea.Program] implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Consumer forwards session notifications to a bubbletea program.
//
// It is created before the program exists; notifications arriving before [Consumer.Bind] are dropped.
type Consumer struct {
	mu     sync.Mutex
	sender Sender
}

func NewConsumer() *Consumer {
	return &Consumer{}
}

// Bind sets the program notifications are sent to.
func (c *Consumer) Bind(s Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = s
}

func (c *Consumer) send(msg tea.Msg) {
	c.mu.Lock()
	s := c.sender
	c.mu.Unlock()

	if s != nil {
		s.Send(msg)
	}
}

func (c *Consumer) OnSearchStarted(text string) {
	c.send(searchStartedMsg(text))
}

func (c *Consumer) OnResultSetChanged(set models.AggregatedResultSet) {
	c.send(resultsChangedMsg(set))
}

func (c *Consumer) OnNotice(err error) {
	c.send(noticeMsg(err))
}
