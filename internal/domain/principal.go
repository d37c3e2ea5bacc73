package domain

// PrincipalRef identifies whoever submitted a message. The type lets API
// tokens, local backends and future principal kinds share one ID space.
type PrincipalRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// IsZero reports whether the reference is unset.
func (r PrincipalRef) IsZero() bool { return r.Type == "" && r.ID == "" }

// Principal is an authenticated caller together with its group memberships.
type Principal struct {
	Type     string   `json:"type"`
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	GroupIDs []string `json:"groups"`
}

// Ref returns the principal's stable identity.
func (p *Principal) Ref() PrincipalRef {
	return PrincipalRef{Type: p.Type, ID: p.ID}
}

// SharedGroups returns the principal's groups that are also in allowed,
// preserving the principal's order.
func (p *Principal) SharedGroups(allowed []string) []string {
	if p == nil {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, g := range allowed {
		set[g] = struct{}{}
	}
	var out []string
	for _, g := range p.GroupIDs {
		if _, ok := set[g]; ok {
			out = append(out, g)
		}
	}
	return out
}
