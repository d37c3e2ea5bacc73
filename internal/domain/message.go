package domain

import "time"

// MessageState is derived from the message's timestamps and flags.
type MessageState string

const (
	StateCreated MessageState = "created"
	StateReady   MessageState = "ready"
	StateSent    MessageState = "sent"
	StateFailed  MessageState = "failed"
)

// FinalSnapshot is what was actually handed to the transport. It is written
// once, on successful delivery.
type FinalSnapshot struct {
	Subject       string   `json:"subject"`
	BodyPlaintext string   `json:"body_plaintext"`
	BodyHTML      string   `json:"body_html"`
	From          string   `json:"from"`
	To            []string `json:"to"`
	CC            []string `json:"cc"`
	BCC           []string `json:"bcc"`
}

// Message is one request to deliver mail through a service.
type Message struct {
	ID           string        `json:"id"`
	ServiceID    string        `json:"service_id"`
	Subject      string        `json:"subject"`
	Body         string        `json:"body"`
	OverrideFrom *EmailAddress `json:"override_from,omitempty"`
	ExtraTo      []string      `json:"extra_to"`
	ExtraCC      []string      `json:"extra_cc"`
	ExtraBCC     []string      `json:"extra_bcc"`
	Principal    PrincipalRef  `json:"principal"`
	ReadyToSend  bool          `json:"ready_to_send"`
	Created      time.Time     `json:"created"`
	Updated      time.Time     `json:"updated"`
	Sent         *time.Time    `json:"sent,omitempty"`
	LastAttempt  *time.Time    `json:"last_attempt,omitempty"`
	Final        FinalSnapshot `json:"final"`
}

// Extras returns the ids of extra addresses for kind.
func (m *Message) Extras(kind RecipientKind) []string {
	switch kind {
	case KindCC:
		return m.ExtraCC
	case KindBCC:
		return m.ExtraBCC
	default:
		return m.ExtraTo
	}
}

// State reports the delivery state machine position.
func (m *Message) State() MessageState {
	switch {
	case m.Sent != nil:
		return StateSent
	case m.LastAttempt != nil:
		return StateFailed
	case m.ReadyToSend:
		return StateReady
	default:
		return StateCreated
	}
}

// Pending reports whether the message is eligible for its first attempt.
func (m *Message) Pending() bool {
	return m.ReadyToSend && m.Sent == nil && m.LastAttempt == nil
}

// Retryable reports whether an attempted message never got through.
func (m *Message) Retryable() bool {
	return m.ReadyToSend && m.Sent == nil && m.LastAttempt != nil
}
