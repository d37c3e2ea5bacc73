// Package address normalizes raw address strings and manages the
// EmailAddress rows they map to, including unsubscribe state.
//
// Addresses are identified case-insensitively: every lookup goes through
// NormalizeAddress first, so "Fred <FRED@Example.com>" and "fred@example.com"
// resolve to the same row.
package address
