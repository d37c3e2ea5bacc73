package domain

import (
	"fmt"
	"regexp"
)

// RecipientKind selects one of the three recipient headers.
type RecipientKind string

const (
	KindTo  RecipientKind = "to"
	KindCC  RecipientKind = "cc"
	KindBCC RecipientKind = "bcc"
)

// RecipientKinds lists the kinds in header order.
var RecipientKinds = []RecipientKind{KindTo, KindCC, KindBCC}

// JSONBodyPolicy controls whether a message body is decoded as JSON and
// merged into the template context.
type JSONBodyPolicy string

const (
	JSONBodyForbid  JSONBodyPolicy = "forbid"
	JSONBodyPermit  JSONBodyPolicy = "permit"
	JSONBodyRequire JSONBodyPolicy = "require"
)

// Targets holds a service's configured recipients for one kind.
type Targets struct {
	AddressIDs      []string `json:"email_addresses"`
	DistributionIDs []string `json:"distributions"`
}

// Service is a named delivery target: a template plus recipients plus the
// policies that govern who may use it and how.
type Service struct {
	ID                             string         `json:"id"`
	Name                           string         `json:"name"`
	IsActive                       bool           `json:"is_active"`
	IsUnsubscribable               bool           `json:"is_unsubscribable"`
	AllowOverrideEmailFrom         bool           `json:"allow_override_email_from"`
	AllowExtraTargetEmailAddresses bool           `json:"allow_extra_target_email_addresses"`
	JSONBodyPolicy                 JSONBodyPolicy `json:"json_body_policy"`
	AllowedGroupIDs                []string       `json:"allowed_groups"`
	RateLimit                      *RateLimit     `json:"rate_limit,omitempty"`
	TemplateID                     *string        `json:"template_id,omitempty"`
	FromAddress                    *EmailAddress  `json:"from_email_address,omitempty"`
	To                             Targets        `json:"to"`
	CC                             Targets        `json:"cc"`
	BCC                            Targets        `json:"bcc"`
}

// Targets returns the configured recipients for kind.
func (s *Service) Targets(kind RecipientKind) Targets {
	switch kind {
	case KindCC:
		return s.CC
	case KindBCC:
		return s.BCC
	default:
		return s.To
	}
}

var serviceNameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidateServiceName checks the URL-safe service name format.
func ValidateServiceName(name string) error {
	if !serviceNameRe.MatchString(name) {
		return fmt.Errorf("invalid service name %q: must only contain lowercase letters, numbers, and underscores", name)
	}
	return nil
}
