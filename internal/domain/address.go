package domain

import (
	"sort"
	"time"
)

// EmailAddress is a known, normalized (lower-cased) address together with
// its unsubscribe state. Rows are created lazily on first use and never
// deleted by the dispatch pipeline.
type EmailAddress struct {
	ID                  string    `json:"id"`
	Address             string    `json:"email_address"`
	UnsubscribedFromAll bool      `json:"unsubscribed_from_all"`
	UnsubscribedFrom    []string  `json:"service_unsubscriptions,omitempty"` // service IDs
	CreatedAt           time.Time `json:"created_at"`
}

// IsUnsubscribedFrom reports whether the address opted out of the given
// service, either explicitly or through the global flag.
func (e *EmailAddress) IsUnsubscribedFrom(serviceID string) bool {
	if e.UnsubscribedFromAll {
		return true
	}
	for _, id := range e.UnsubscribedFrom {
		if id == serviceID {
			return true
		}
	}
	return false
}

// AddressSet is a set of addresses keyed by address ID. Identity, not the
// address string, is the dedup key.
type AddressSet map[string]*EmailAddress

// NewAddressSet builds a set from the given addresses.
func NewAddressSet(addrs ...*EmailAddress) AddressSet {
	s := make(AddressSet, len(addrs))
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add inserts a into the set. Nil addresses are ignored.
func (s AddressSet) Add(a *EmailAddress) {
	if a != nil {
		s[a.ID] = a
	}
}

// Union adds every member of other to s.
func (s AddressSet) Union(other AddressSet) {
	for id, a := range other {
		s[id] = a
	}
}

// Sorted returns the members ordered by address string.
func (s AddressSet) Sorted() []*EmailAddress {
	out := make([]*EmailAddress, 0, len(s))
	for _, a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Strings returns the sorted address strings.
func (s AddressSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, a := range sorted {
		out[i] = a.Address
	}
	return out
}

// IDs returns the member IDs in address order.
func (s AddressSet) IDs() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, a := range sorted {
		out[i] = a.ID
	}
	return out
}
