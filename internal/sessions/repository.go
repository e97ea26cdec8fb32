package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mfreiras/menuflow/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (r *PostgresStore) Create(ctx context.Context, s *domain.Session) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (identifier, user_id, status, plan_type, expire_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, s.Identifier, s.UserID, s.Status, s.PlanType, s.ExpireDate, s.CreatedAt).Scan(&s.ID)
}

func (r *PostgresStore) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	s := &domain.Session{}
	var expire sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, identifier, user_id, status, plan_type, expire_date, payment_proof_key, created_at
		FROM sessions
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Identifier, &s.UserID, &s.Status, &s.PlanType, &expire, &s.PaymentProofKey, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if expire.Valid {
		s.ExpireDate = &expire.Time
	}
	return s, nil
}

func (r *PostgresStore) List(ctx context.Context) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, identifier, user_id, status, plan_type, expire_date, payment_proof_key, created_at
		FROM sessions
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []domain.Session
	for rows.Next() {
		var s domain.Session
		var expire sql.NullTime
		if err := rows.Scan(&s.ID, &s.Identifier, &s.UserID, &s.Status, &s.PlanType, &expire, &s.PaymentProofKey, &s.CreatedAt); err != nil {
			return nil, err
		}
		if expire.Valid {
			s.ExpireDate = &expire.Time
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus applies a status-guarded transition: the update only lands if
// the stored status is one of from. A no-op update maps to ErrNotFound or
// ErrInvalidState.
func (r *PostgresStore) UpdateStatus(ctx context.Context, id int64, to domain.SessionStatus, from ...domain.SessionStatus) (*domain.Session, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET status = $2
		WHERE id = $1 AND status = ANY($3)
	`, id, to, statusArray(from))
	if err != nil {
		return nil, err
	}

	if err := r.checkTransition(ctx, id, result); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// MarkPaid records the uploaded payment proof and moves
// waiting_for_payment → paid in one guarded update.
func (r *PostgresStore) MarkPaid(ctx context.Context, id int64, proofKey string) (*domain.Session, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET status = $2, payment_proof_key = $3
		WHERE id = $1 AND status = $4
	`, id, domain.SessionStatusPaid, proofKey, domain.SessionStatusWaitingForPayment)
	if err != nil {
		return nil, err
	}

	if err := r.checkTransition(ctx, id, result); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Renew sets the new expire date and status in one guarded update.
func (r *PostgresStore) Renew(ctx context.Context, id int64, expireDate time.Time, to domain.SessionStatus, from ...domain.SessionStatus) (*domain.Session, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET status = $2, expire_date = $3
		WHERE id = $1 AND status = ANY($4)
	`, id, to, expireDate, statusArray(from))
	if err != nil {
		return nil, err
	}

	if err := r.checkTransition(ctx, id, result); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresStore) checkTransition(ctx context.Context, id int64, result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var status domain.SessionStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = $1`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("session %d is %s: %w", id, status, domain.ErrInvalidState)
}

func (r *PostgresStore) InsertRenewal(ctx context.Context, renewal *domain.SubscriptionRenewal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscription_renewals (id, session_id, plan_type, renewal_period, amount_paid, new_expire_date, renewal_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, renewal.ID, renewal.SessionID, renewal.PlanType, renewal.RenewalPeriod,
		renewal.AmountPaid, renewal.NewExpireDate, renewal.RenewalDate, renewal.Status)
	return err
}

func (r *PostgresStore) ListRenewals(ctx context.Context, sessionID int64) ([]domain.SubscriptionRenewal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, plan_type, renewal_period, amount_paid, new_expire_date, renewal_date, status
		FROM subscription_renewals
		WHERE session_id = $1
		ORDER BY renewal_date DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []domain.SubscriptionRenewal
	for rows.Next() {
		var renewal domain.SubscriptionRenewal
		if err := rows.Scan(&renewal.ID, &renewal.SessionID, &renewal.PlanType, &renewal.RenewalPeriod,
			&renewal.AmountPaid, &renewal.NewExpireDate, &renewal.RenewalDate, &renewal.Status); err != nil {
			return nil, err
		}
		result = append(result, renewal)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateRenewalStatus is the only mutation allowed on an audit row.
func (r *PostgresStore) UpdateRenewalStatus(ctx context.Context, renewalID, status string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE subscription_renewals SET status = $2 WHERE id = $1
	`, renewalID, status)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresStore) DeleteRenewal(ctx context.Context, renewalID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM subscription_renewals WHERE id = $1`, renewalID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func statusArray(statuses []domain.SessionStatus) any {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return pq.Array(values)
}
