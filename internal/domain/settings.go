package domain

// Settings carries the dispatch defaults. It is built once from config and
// passed to constructors by value.
type Settings struct {
	EmailBackend        string
	DefaultService      string
	DefaultFromEmail    string
	DefaultTarget       string
	DefaultToken        string
	DefaultUnsubscribed bool

	// SubscriptionAdminGroup is the group whose members may change an
	// address's global opt-out. Empty disables global changes over the API.
	SubscriptionAdminGroup string
}

// DefaultSettings mirrors the config defaults.
func DefaultSettings() Settings {
	return Settings{
		EmailBackend:     "console",
		DefaultService:   "default",
		DefaultFromEmail: "webmaster@localhost",
		DefaultTarget:    "http://127.0.0.1:8000/api/send_message/",
	}
}
