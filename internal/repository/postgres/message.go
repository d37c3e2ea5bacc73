package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/message"
	"github.com/ignite/impression/internal/service/ratelimit"
)

const messageQuery = `
	SELECT m.id, m.service_id, m.subject, m.body,
	       fa.id::text, fa.email_address, fa.unsubscribed_from_all,
	       m.principal_type, m.principal_id, m.ready_to_send,
	       m.created, m.updated, m.sent, m.last_attempt,
	       m.final_from, m.final_to, m.final_cc, m.final_bcc,
	       m.final_subject, m.final_body_plaintext, m.final_body_html
	FROM impression_messages m
	LEFT JOIN impression_email_addresses fa ON fa.id = m.override_from_id
	WHERE m.id = $1`

var extraRoles = map[domain.RecipientKind]string{
	domain.KindTo:  "extra_to",
	domain.KindCC:  "extra_cc",
	domain.KindBCC: "extra_bcc",
}

// MessageRepo implements message.Repository and ratelimit.Counter against
// PostgreSQL.
type MessageRepo struct{ db *sql.DB }

// NewMessageRepo creates a Postgres-backed message repository.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	id := uuid.New().String()
	var overrideID *string
	if msg.OverrideFrom != nil {
		overrideID = &msg.OverrideFrom.ID
	}

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO impression_messages
				(id, service_id, subject, body, override_from_id,
				 principal_type, principal_id, ready_to_send, created, updated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
			RETURNING created, updated
		`, id, msg.ServiceID, msg.Subject, msg.Body, nullString(overrideID),
			msg.Principal.Type, msg.Principal.ID, msg.ReadyToSend,
		).Scan(&msg.Created, &msg.Updated)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		for _, kind := range domain.RecipientKinds {
			for _, addrID := range msg.Extras(kind) {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO impression_message_addresses (message_id, address_id, role)
					VALUES ($1, $2, $3)
					ON CONFLICT DO NOTHING
				`, id, addrID, extraRoles[kind]); err != nil {
					return fmt.Errorf("insert %s: %w", extraRoles[kind], err)
				}
			}
		}
		msg.ID = id
		return nil
	})
}

func (r *MessageRepo) Get(ctx context.Context, id string) (*domain.Message, error) {
	return getMessage(ctx, r.db, messageQuery, id)
}

func getMessage(ctx context.Context, db dbtx, q, id string) (*domain.Message, error) {
	m := &domain.Message{}
	var (
		fromID    sql.NullString
		fromAddr  sql.NullString
		fromUnsub sql.NullBool
		sent      sql.NullTime
		attempt   sql.NullTime
	)
	err := db.QueryRowContext(ctx, q, id).Scan(
		&m.ID, &m.ServiceID, &m.Subject, &m.Body,
		&fromID, &fromAddr, &fromUnsub,
		&m.Principal.Type, &m.Principal.ID, &m.ReadyToSend,
		&m.Created, &m.Updated, &sent, &attempt,
		&m.Final.From, pq.Array(&m.Final.To), pq.Array(&m.Final.CC), pq.Array(&m.Final.BCC),
		&m.Final.Subject, &m.Final.BodyPlaintext, &m.Final.BodyHTML,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, message.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if fromID.Valid {
		m.OverrideFrom = &domain.EmailAddress{ID: fromID.String, Address: fromAddr.String, UnsubscribedFromAll: fromUnsub.Bool}
	}
	if sent.Valid {
		m.Sent = &sent.Time
	}
	if attempt.Valid {
		m.LastAttempt = &attempt.Time
	}

	rows, err := db.QueryContext(ctx,
		`SELECT address_id::text, role FROM impression_message_addresses WHERE message_id = $1`, m.ID)
	if err != nil {
		return nil, fmt.Errorf("message addresses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var addrID, role string
		if err := rows.Scan(&addrID, &role); err != nil {
			return nil, fmt.Errorf("scan message address: %w", err)
		}
		switch role {
		case "extra_to":
			m.ExtraTo = append(m.ExtraTo, addrID)
		case "extra_cc":
			m.ExtraCC = append(m.ExtraCC, addrID)
		case "extra_bcc":
			m.ExtraBCC = append(m.ExtraBCC, addrID)
		}
	}
	return m, rows.Err()
}

func (r *MessageRepo) MarkReady(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE impression_messages SET ready_to_send = TRUE, updated = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return message.ErrNotFound
	}
	return nil
}

// WithLock holds the row lock (SELECT ... FOR UPDATE) for the duration of fn.
// Concurrent senders of the same message serialize here.
func (r *MessageRepo) WithLock(ctx context.Context, id string, fn func(ctx context.Context, tx message.TxRepository, msg *domain.Message) error) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		msg, err := getMessage(ctx, tx, messageQuery+` FOR UPDATE OF m`, id)
		if err != nil {
			return err
		}
		return fn(ctx, &messageTx{tx: tx}, msg)
	})
}

func (r *MessageRepo) ListPendingIDs(ctx context.Context, includeFailed bool) ([]string, error) {
	ids, err := queryStrings(ctx, r.db, `
		SELECT id FROM impression_messages
		WHERE ready_to_send AND sent IS NULL AND (last_attempt IS NULL OR $1)
		ORDER BY created
	`, includeFailed)
	if err != nil {
		return nil, fmt.Errorf("list pending messages: %w", err)
	}
	return ids, nil
}

func (r *MessageRepo) CountMessages(ctx context.Context, f ratelimit.CountFilter) (int, error) {
	q := `SELECT COUNT(*) FROM impression_messages m
		WHERE m.service_id = $1 AND m.created >= $2 AND m.created <= $3`
	args := []interface{}{f.ServiceID, f.Start, f.End}

	switch {
	case f.User != nil:
		q += ` AND m.principal_type = $4 AND m.principal_id = $5`
		args = append(args, f.User.Type, f.User.ID)
	case f.Anonymous:
		q += ` AND m.principal_type = '' AND m.principal_id = ''`
	case f.GroupID != "":
		q += ` AND EXISTS (
			SELECT 1 FROM impression_principal_groups pg
			WHERE pg.principal_type = m.principal_type
			  AND pg.principal_id = m.principal_id
			  AND pg.group_id = $4)`
		args = append(args, f.GroupID)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// messageTx writes delivery outcomes on the locking transaction.
type messageTx struct{ tx *sql.Tx }

func (t *messageTx) RecordAttempt(ctx context.Context, id string, at time.Time) error {
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE impression_messages SET last_attempt = $2, updated = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

func (t *messageTx) RecordSent(ctx context.Context, id string, at time.Time, final domain.FinalSnapshot) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE impression_messages
		SET sent = $2, updated = $2,
		    final_from = $3, final_to = $4, final_cc = $5, final_bcc = $6,
		    final_subject = $7, final_body_plaintext = $8, final_body_html = $9
		WHERE id = $1 AND sent IS NULL
	`, id, at, final.From, pq.Array(nonNil(final.To)), pq.Array(nonNil(final.CC)), pq.Array(nonNil(final.BCC)),
		final.Subject, final.BodyPlaintext, final.BodyHTML)
	if err != nil {
		return fmt.Errorf("record sent: %w", err)
	}
	return nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
