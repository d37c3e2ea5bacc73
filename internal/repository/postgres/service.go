package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/policy"
)

const serviceQuery = `
	SELECT s.id, s.name, s.is_active, s.is_unsubscribable, s.allow_override_email_from,
	       s.allow_extra_target_email_addresses, s.json_body_policy, s.template_id::text,
	       rl.id::text, rl.name, rl.grouping, rl.quantity, rl.limit_type, rl.block_period,
	       rl.rolling_window_seconds,
	       fa.id::text, fa.email_address, fa.unsubscribed_from_all
	FROM impression_services s
	LEFT JOIN impression_rate_limits rl ON rl.id = s.rate_limit_id
	LEFT JOIN impression_email_addresses fa ON fa.id = s.from_address_id`

// ServiceRepo implements policy.ServiceRepository against PostgreSQL. Every
// lookup returns a fully hydrated service.
type ServiceRepo struct{ db *sql.DB }

// NewServiceRepo creates a Postgres-backed service repository.
func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{db: db} }

func (r *ServiceRepo) Get(ctx context.Context, id string) (*domain.Service, error) {
	return r.load(ctx, serviceQuery+` WHERE s.id = $1`, id)
}

func (r *ServiceRepo) GetByName(ctx context.Context, name string) (*domain.Service, error) {
	return r.load(ctx, serviceQuery+` WHERE s.name = $1`, name)
}

func (r *ServiceRepo) load(ctx context.Context, q, arg string) (*domain.Service, error) {
	var (
		svc        domain.Service
		policyName string
		templateID sql.NullString
		rlID       sql.NullString
		rlName     sql.NullString
		rlGrouping sql.NullInt64
		rlQuantity sql.NullInt64
		rlType     sql.NullInt64
		rlPeriod   sql.NullInt64
		rlWindow   sql.NullInt64
		fromID     sql.NullString
		fromAddr   sql.NullString
		fromUnsub  sql.NullBool
	)
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&svc.ID, &svc.Name, &svc.IsActive, &svc.IsUnsubscribable, &svc.AllowOverrideEmailFrom,
		&svc.AllowExtraTargetEmailAddresses, &policyName, &templateID,
		&rlID, &rlName, &rlGrouping, &rlQuantity, &rlType, &rlPeriod, &rlWindow,
		&fromID, &fromAddr, &fromUnsub,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}

	svc.JSONBodyPolicy = domain.JSONBodyPolicy(policyName)
	svc.TemplateID = stringPtr(templateID)
	if rlID.Valid {
		svc.RateLimit = &domain.RateLimit{
			ID:            rlID.String,
			Name:          rlName.String,
			Grouping:      domain.Grouping(rlGrouping.Int64),
			Quantity:      int(rlQuantity.Int64),
			Type:          domain.RateLimitType(rlType.Int64),
			BlockPeriod:   domain.BlockPeriod(rlPeriod.Int64),
			RollingWindow: time.Duration(rlWindow.Int64) * time.Second,
		}
	}
	if fromID.Valid {
		svc.FromAddress = &domain.EmailAddress{
			ID:                  fromID.String,
			Address:             fromAddr.String,
			UnsubscribedFromAll: fromUnsub.Bool,
		}
	}

	if err := r.loadTargets(ctx, &svc); err != nil {
		return nil, err
	}
	svc.AllowedGroupIDs, err = queryStrings(ctx, r.db,
		`SELECT group_id FROM impression_service_groups WHERE service_id = $1 ORDER BY group_id`, svc.ID)
	if err != nil {
		return nil, fmt.Errorf("service groups: %w", err)
	}
	return &svc, nil
}

func (r *ServiceRepo) loadTargets(ctx context.Context, svc *domain.Service) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, address_id::text, distribution_id::text
		FROM impression_service_targets
		WHERE service_id = $1
	`, svc.ID)
	if err != nil {
		return fmt.Errorf("service targets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind   string
			addrID sql.NullString
			distID sql.NullString
		)
		if err := rows.Scan(&kind, &addrID, &distID); err != nil {
			return fmt.Errorf("scan service target: %w", err)
		}
		t := targetsFor(svc, domain.RecipientKind(kind))
		if t == nil {
			return fmt.Errorf("service %s: unknown target kind %q", svc.Name, kind)
		}
		if addrID.Valid {
			t.AddressIDs = append(t.AddressIDs, addrID.String)
		}
		if distID.Valid {
			t.DistributionIDs = append(t.DistributionIDs, distID.String)
		}
	}
	return rows.Err()
}

func targetsFor(svc *domain.Service, kind domain.RecipientKind) *domain.Targets {
	switch kind {
	case domain.KindTo:
		return &svc.To
	case domain.KindCC:
		return &svc.CC
	case domain.KindBCC:
		return &svc.BCC
	}
	return nil
}
