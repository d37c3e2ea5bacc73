// Package distribution expands distribution lists into the set of address
// IDs they reach. The child graph may contain cycles and self-references.
package distribution
