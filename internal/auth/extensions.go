package auth

import (
	"context"
	"net/http"
)

// Extension points a backend may expose. All of them are optional
// capabilities probed once at composition time; a Manager implementing none
// of them is fully functional.

// CLICommand describes a command a backend contributes to the platform CLI.
type CLICommand struct {
	Name  string
	Usage string
	Run   func(ctx context.Context, args []string) error
}

// Initializer runs one-time setup when the platform starts.
type Initializer interface {
	Init(ctx context.Context) error
}

// CommandProvider vends CLI command descriptors.
type CommandProvider interface {
	CLICommands() []CLICommand
}

// SubAppProvider contributes a mountable sub-application (login endpoints
// and the like) to the API surface, served under the returned prefix.
type SubAppProvider interface {
	SubApp() (prefix string, handler http.Handler)
}

// ViewRegistry collects UI views a backend wants rendered.
type ViewRegistry interface {
	AddView(name, href string)
}

// ViewProvider registers additional UI views.
type ViewProvider interface {
	RegisterViews(reg ViewRegistry)
}

// InitManager runs the backend's Init hook if it has one.
func InitManager(ctx context.Context, m Manager) error {
	if i, ok := m.(Initializer); ok {
		return i.Init(ctx)
	}
	return nil
}

// CommandsOf returns the backend's CLI commands, if any.
func CommandsOf(m Manager) []CLICommand {
	if p, ok := m.(CommandProvider); ok {
		return p.CLICommands()
	}
	return nil
}

// SubAppOf returns the backend's mountable sub-application, if any.
func SubAppOf(m Manager) (string, http.Handler, bool) {
	if p, ok := m.(SubAppProvider); ok {
		prefix, handler := p.SubApp()
		if prefix != "" && handler != nil {
			return prefix, handler, true
		}
	}
	return "", nil, false
}

// RegisterManagerViews lets the backend register its views, reporting
// whether it did.
func RegisterManagerViews(m Manager, reg ViewRegistry) bool {
	if p, ok := m.(ViewProvider); ok {
		p.RegisterViews(reg)
		return true
	}
	return false
}
