package domain

import "time"

// Envelope is the fully composed message handed to a transport. Subject,
// bodies and recipients are final; transports only encode and deliver.
type Envelope struct {
	MessageID     string   `json:"message_id"`
	ServiceName   string   `json:"service_name"`
	From          string   `json:"from"`
	To            []string `json:"to"`
	CC            []string `json:"cc,omitempty"`
	BCC           []string `json:"bcc,omitempty"`
	Subject       string   `json:"subject"`
	BodyPlaintext string   `json:"body_plaintext"`
	BodyHTML      string   `json:"body_html,omitempty"`
}

// Recipients returns every envelope recipient, to then cc then bcc.
func (e *Envelope) Recipients() []string {
	out := make([]string, 0, len(e.To)+len(e.CC)+len(e.BCC))
	out = append(out, e.To...)
	out = append(out, e.CC...)
	return append(out, e.BCC...)
}

// Snapshot converts the envelope into the persisted final fields.
func (e *Envelope) Snapshot() FinalSnapshot {
	return FinalSnapshot{
		Subject:       e.Subject,
		BodyPlaintext: e.BodyPlaintext,
		BodyHTML:      e.BodyHTML,
		From:          e.From,
		To:            e.To,
		CC:            e.CC,
		BCC:           e.BCC,
	}
}

// SendResult is returned by a transport after attempting delivery.
type SendResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id"`
	Transport string    `json:"transport"`
	SentAt    time.Time `json:"sent_at"`
	Error     string    `json:"error,omitempty"`
}
