package httpserver

import (
	"time"

	"github.com/felle787/LocalRadar2/internal/domain"
	"github.com/felle787/LocalRadar2/internal/session"
)

type sessionResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// snapshotResponse is the wire form of a session snapshot. The bearer token is never
// included.
type snapshotResponse struct {
	State   string                 `json:"state"`
	Session *sessionResponse       `json:"session"`
	Profile *domain.Profile        `json:"profile"`
	Status  domain.BootstrapStatus `json:"status"`
}

func newSessionResponse(s domain.Session, withToken bool) *sessionResponse {
	resp := &sessionResponse{ID: s.ID, Email: s.Email, ExpiresAt: s.ExpiresAt}
	if withToken {
		resp.Token = s.Token
	}
	return resp
}

func newSnapshotResponse(snap session.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		State:   snap.State.String(),
		Profile: snap.Profile,
		Status:  snap.Status,
	}
	if snap.Session != nil {
		resp.Session = newSessionResponse(*snap.Session, false)
	}
	return resp
}

type authResponse struct {
	Session *sessionResponse `json:"session"`
}
