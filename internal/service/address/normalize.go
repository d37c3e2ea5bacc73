package address

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

var displayFormRe = regexp.MustCompile(`^.*<(.*)>$`)

// NormalizeAddress pulls the bare address out of `"Fred" <fred@example.com>`
// style input, drops all whitespace and lower-cases the result. Bare
// addresses pass through with the same cleanup.
func NormalizeAddress(raw string) string {
	if m := displayFormRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw))
}

// Validate performs a syntactic check on a normalized address.
func Validate(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	local, domainPart, ok := strings.Cut(addr, "@")
	if !ok || local == "" || domainPart == "" || strings.HasPrefix(domainPart, ".") || strings.HasSuffix(domainPart, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return nil
}
