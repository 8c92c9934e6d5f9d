// Package workspaces keeps one authenticated API client per browser.
package workspaces

import (
	"time"

	"github.com/jrsteele09/grantpilot-workspace/apiclient"
	"github.com/jrsteele09/grantpilot-workspace/nav"
	"github.com/jrsteele09/grantpilot-workspace/session"
)

// Workspace is the per-browser state: the session and the API clients bound
// to it.
type Workspace struct {
	ID      string
	Session *session.Manager
	Auth    *apiclient.AuthAPI
	API     *apiclient.GrantPilotAPI

	CreatedAt time.Time
	lastSeen  time.Time
}

// Factory builds a fresh workspace for id.
type Factory func(id string) *Workspace

// NewFactory wires a workspace against the API at baseURL. Navigation goes to
// the recorder of whichever request is being served.
func NewFactory(baseURL string, options ...apiclient.DispatcherOption) Factory {
	return func(id string) *Workspace {
		auth := apiclient.NewAuthAPI(apiclient.NewDispatcher(baseURL, nil, options...))
		manager := session.NewManager(auth, nav.ContextNavigator{})
		return &Workspace{
			ID:      id,
			Session: manager,
			Auth:    auth,
			API:     apiclient.NewGrantPilotAPI(apiclient.NewDispatcher(baseURL, manager, options...)),
		}
	}
}

type Repo interface {
	// Open returns the live workspace for id, or a new one under a fresh id
	// when id is unknown or idle for too long. created reports the latter.
	Open(id string) (ws *Workspace, created bool)
	Get(id string) (*Workspace, error)
	Delete(id string) error
	// Sweep drops idle workspaces and returns how many were removed.
	Sweep() int
}
