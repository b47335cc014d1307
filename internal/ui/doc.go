// Package ui implements an interactive search terminal interface using bubbletea's Elm architecture.
//
// The screen has a query input, one tab per result category with its item count, the representative image URL of
// the current search, and the items of the active tab.
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the [Msg] union
// type. Session notifications reach the program through [Consumer], which forwards them with [tea.Program.Send].
//
// Keys: enter searches, tab/shift+tab switch category, up/down move, esc clears the input, ctrl+c quits.
package ui
