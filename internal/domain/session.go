package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionStatusWaitingForPayment SessionStatus = "waiting_for_payment"
	SessionStatusPaid              SessionStatus = "paid"
	SessionStatusReady             SessionStatus = "ready"
	SessionStatusConnected         SessionStatus = "connected"
	SessionStatusExpired           SessionStatus = "expired"
	SessionStatusTerminated        SessionStatus = "terminated"
)

// Session is a tenant's integration subscription instance. Its lifecycle is
// independent of any single order.
type Session struct {
	ID              int64          `json:"id"`
	Identifier      string         `json:"identifier"`
	UserID          int64          `json:"user_id"`
	Status          SessionStatus  `json:"status"`
	PlanType        string         `json:"plan_type"`
	ExpireDate      *time.Time     `json:"expire_date,omitempty"`
	PaymentProofKey string         `json:"payment_proof_key,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// IsExpired reports whether the session's expire date has passed, regardless
// of the stored status field.
func (s Session) IsExpired(now time.Time) bool {
	return s.ExpireDate != nil && s.ExpireDate.Before(now)
}

// EffectiveStatus is the status every reader must use. A session whose expire
// date has passed reads as expired even if the persisted column has not been
// updated yet.
func (s Session) EffectiveStatus(now time.Time) SessionStatus {
	if s.Status == SessionStatusTerminated || s.Status == SessionStatusExpired {
		return s.Status
	}
	if s.IsExpired(now) {
		return SessionStatusExpired
	}
	return s.Status
}

type RenewalPeriod string

const (
	RenewalPeriodMonth RenewalPeriod = "month"
	RenewalPeriodYear  RenewalPeriod = "year"
)

// NextExpireDate computes the expiry for a renewal starting at now.
func NextExpireDate(now time.Time, period RenewalPeriod) (time.Time, error) {
	switch period {
	case RenewalPeriodMonth:
		return now.AddDate(0, 1, 0), nil
	case RenewalPeriodYear:
		return now.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, Validationf("unknown renewal period %q", period)
	}
}

// SubscriptionRenewal is an append-only audit record of a payment/extension
// event. Only Status may change after creation; admins may delete rows.
type SubscriptionRenewal struct {
	ID            string          `json:"id"`
	SessionID     int64           `json:"session_id"`
	PlanType      string          `json:"plan_type"`
	RenewalPeriod RenewalPeriod   `json:"renewal_period"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	NewExpireDate time.Time       `json:"new_expire_date"`
	RenewalDate   time.Time       `json:"renewal_date"`
	Status        string          `json:"status"`
}

// RenewalRequest is the wire body for a renewal. All three fields are
// required.
type RenewalRequest struct {
	PlanType      string           `json:"plan_type"`
	RenewalPeriod RenewalPeriod    `json:"renewal_period"`
	AmountPaid    *decimal.Decimal `json:"amount_paid"`
}

func (r RenewalRequest) Validate() error {
	if strings.TrimSpace(r.PlanType) == "" {
		return Validationf("plan type is required")
	}
	if r.RenewalPeriod == "" {
		return Validationf("renewal period is required")
	}
	if r.RenewalPeriod != RenewalPeriodMonth && r.RenewalPeriod != RenewalPeriodYear {
		return Validationf("renewal period must be %q or %q", RenewalPeriodMonth, RenewalPeriodYear)
	}
	if r.AmountPaid == nil {
		return Validationf("amount paid is required")
	}
	if r.AmountPaid.IsNegative() {
		return Validationf("amount paid must not be negative")
	}
	return nil
}

// sessionTransitions is the legal, non-admin transition table. Expiry and
// termination are handled separately (time-triggered and admin-driven).
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusWaitingForPayment: {SessionStatusPaid},
	SessionStatusPaid:              {SessionStatusReady},
	SessionStatusReady:             {SessionStatusConnected},
}

// CanTransition reports whether the provisioning flow allows moving a
// session from one status to the other.
func CanTransition(from, to SessionStatus) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
