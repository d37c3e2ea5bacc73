package domain

import "time"

// RemoteServer is a relay target for the remote client backend. At most one
// row is active at a time.
type RemoteServer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Target    string    `json:"target"`
	Token     string    `json:"-"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
