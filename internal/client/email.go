package client

import "strings"

// Email is an outgoing message as seen by a client backend.
type Email struct {
	Subject string
	Body    string
	From    string
	To      []string
	CC      []string
	BCC     []string
}

// route picks the target service. A leading "to" entry without "@" names
// the service and is removed from the recipients.
func route(e Email, defaultService string) (service string, to []string) {
	if len(e.To) > 0 && !strings.Contains(e.To[0], "@") {
		return e.To[0], e.To[1:]
	}
	return defaultService, e.To
}
