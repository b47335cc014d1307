package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/fedsearch/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSearchStarted MsgKind = iota
	MsgResultsChanged
	MsgNotice
	MsgSearchDispatched
)

// searchStartedMsg is the constructor for [MsgSearchStarted]
func searchStartedMsg(text string) Msg {
	return Msg{kind: MsgSearchStarted, data: text}
}

// resultsChangedMsg is the constructor for [MsgResultsChanged]
func resultsChangedMsg(set models.AggregatedResultSet) Msg {
	return Msg{kind: MsgResultsChanged, data: set}
}

// noticeMsg is the constructor for [MsgNotice]
func noticeMsg(err error) Msg {
	return Msg{kind: MsgNotice, data: err}
}

// searchDispatchedMsg is the constructor for [MsgSearchDispatched]. err is the error returned by the session.
func searchDispatchedMsg(err error) Msg {
	return Msg{kind: MsgSearchDispatched, data: err}
}
