// Package command parses slash commands ("/name parameters") and routes
// them to registered handlers.
package command

import "strings"

// Marker is the leading character that identifies a line of text as a command.
const Marker = "/"

// Command is a parsed slash command.
type Command struct {
	Name       string // without any Marker characters
	Parameters string // remainder after the first space, possibly empty
}

// Parse splits text into a command name and its parameters.
// It reports false when text is empty or does not begin with Marker.
//
//	Parse("/start hello world") // Command{Name: "start", Parameters: "hello world"}, true
//	Parse("/help")              // Command{Name: "help"}, true
//	Parse("hello")              // Command{}, false
func Parse(text string) (Command, bool) {
	if !strings.HasPrefix(text, Marker) {
		return Command{}, false
	}

	name, params, _ := strings.Cut(text, " ")
	return Command{
		Name:       strings.ReplaceAll(name, Marker, ""),
		Parameters: params,
	}, true
}

// String renders the command back into its wire form.
func (c Command) String() string {
	if c.Parameters == "" {
		return Marker + c.Name
	}
	return Marker + c.Name + " " + c.Parameters
}
