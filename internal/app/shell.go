package app

import (
	"github.com/felle787/LocalRadar2/internal/domain"
	"github.com/felle787/LocalRadar2/internal/session"
)

type Screen string

const (
	ScreenAuth     Screen = "auth"
	ScreenLoading  Screen = "loading"
	ScreenCustomer Screen = "customer"
	ScreenBusiness Screen = "business"
)

var (
	customerTabs = []string{"Home", "Explore", "Profile"}
	businessTabs = []string{"Business", "Events"}
)

// Shell is the navigation root derived from a session snapshot.
type Shell struct {
	Screen Screen                 `json:"screen"`
	Status domain.BootstrapStatus `json:"status,omitempty"`
	Email  string                 `json:"email,omitempty"`
	Tabs   []string               `json:"tabs,omitempty"`
}

// ResolveShell picks the navigation root. The role comes from the profile alone; until a
// profile is present the loading screen is shown with the bootstrap status.
func ResolveShell(snap session.Snapshot) Shell {
	switch {
	case snap.Session == nil:
		return Shell{Screen: ScreenAuth}
	case snap.Profile == nil:
		return Shell{Screen: ScreenLoading, Status: snap.Status, Email: snap.Session.Email}
	case snap.Profile.Role == domain.RoleBusiness:
		return Shell{Screen: ScreenBusiness, Email: snap.Profile.Email, Tabs: businessTabs}
	default:
		return Shell{Screen: ScreenCustomer, Email: snap.Profile.Email, Tabs: customerTabs}
	}
}

// Shell resolves the navigation root for the current session.
func (s *Service) Shell() Shell {
	return ResolveShell(s.sessions.Snapshot())
}
