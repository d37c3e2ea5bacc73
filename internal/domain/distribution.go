package domain

// Distribution is a named group of addresses and child distributions. The
// child relation is an arbitrary directed graph: self-references and cycles
// are allowed and must be handled by whoever expands it.
type Distribution struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AddressIDs []string `json:"email_addresses"`
	ChildIDs   []string `json:"distributions"`
}
