package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfreiras/menuflow/internal/blob"
	"github.com/mfreiras/menuflow/internal/domain"
)

// SessionStore is the persistence contract for sessions and their renewal
// audit log. Status changes are serialized by guarded updates.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id int64) (*domain.Session, error)
	List(ctx context.Context) ([]domain.Session, error)
	UpdateStatus(ctx context.Context, id int64, to domain.SessionStatus, from ...domain.SessionStatus) (*domain.Session, error)
	MarkPaid(ctx context.Context, id int64, proofKey string) (*domain.Session, error)
	Renew(ctx context.Context, id int64, expireDate time.Time, to domain.SessionStatus, from ...domain.SessionStatus) (*domain.Session, error)
	InsertRenewal(ctx context.Context, renewal *domain.SubscriptionRenewal) error
	ListRenewals(ctx context.Context, sessionID int64) ([]domain.SubscriptionRenewal, error)
	UpdateRenewalStatus(ctx context.Context, renewalID, status string) error
	DeleteRenewal(ctx context.Context, renewalID string) error
}

// PaymentGateway runs the external token → order → payment-key chain.
type PaymentGateway interface {
	PaymentKey(ctx context.Context, amount decimal.Decimal, merchantRef string) (string, error)
}

// EventPublisher mirrors the orders-side dispatcher contract.
type EventPublisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

type Handler struct {
	store     SessionStore
	proofs    blob.Store
	gateway   PaymentGateway
	publisher EventPublisher
	logger    *slog.Logger
}

func NewHandler(store SessionStore, proofs blob.Store, gateway PaymentGateway, publisher EventPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		proofs:    proofs,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
	}
}

type createSessionRequest struct {
	Identifier string `json:"identifier"`
	UserID     int64  `json:"user_id"`
	PlanType   string `json:"plan_type"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Identifier) == "" {
		h.writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	session := &domain.Session{
		Identifier: strings.TrimSpace(req.Identifier),
		UserID:     req.UserID,
		Status:     domain.SessionStatusWaitingForPayment,
		PlanType:   req.PlanType,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.store.Create(r.Context(), session); err != nil {
		h.logger.Error("failed to create session", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("session created", "session_id", session.ID, "identifier", session.Identifier)
	h.writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	session, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, withEffectiveStatus(*session, time.Now().UTC()))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	now := time.Now().UTC()
	result := make([]domain.Session, 0, len(list))
	for _, s := range list {
		result = append(result, withEffectiveStatus(s, now))
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandlePaymentProof accepts a multipart upload of the payment proof and
// moves the session waiting_for_payment → paid. If the upload lands but the
// record update fails, the stored blob is left behind; there is no rollback
// across the two steps.
func (h *Handler) HandlePaymentProof(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	file, header, err := r.FormFile("proof")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "proof file is required")
		return
	}
	defer func() { _ = file.Close() }()

	key, err := h.proofs.Save(r.Context(), header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	session, err := h.store.MarkPaid(r.Context(), id, key)
	if err != nil {
		h.logger.Error("proof stored but session update failed", "error", err, "session_id", id, "proof_key", key)
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("payment proof submitted", "session_id", id, "proof_key", key)
	h.writeJSON(w, http.StatusOK, session)
}

type confirmPaymentRequest struct {
	NewExpireDate time.Time            `json:"new_expire_date"`
	RenewalPeriod domain.RenewalPeriod `json:"renewal_period,omitempty"`
	AmountPaid    *decimal.Decimal     `json:"amount_paid,omitempty"`
}

// HandleConfirmPayment is the admin acknowledgement of a submitted payment:
// paid → ready, with a new expiry and an audit row.
func (h *Handler) HandleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now().UTC()
	if req.NewExpireDate.IsZero() || !req.NewExpireDate.After(now) {
		h.writeError(w, http.StatusBadRequest, "new_expire_date must be a valid future date")
		return
	}

	period := req.RenewalPeriod
	if period == "" {
		period = domain.RenewalPeriodMonth
	}
	amount := decimal.Zero
	if req.AmountPaid != nil {
		amount = *req.AmountPaid
	}

	session, err := h.store.Renew(r.Context(), id, req.NewExpireDate, domain.SessionStatusReady, domain.SessionStatusPaid)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	renewal := &domain.SubscriptionRenewal{
		ID:            uuid.New().String(),
		SessionID:     id,
		PlanType:      session.PlanType,
		RenewalPeriod: period,
		AmountPaid:    amount,
		NewExpireDate: req.NewExpireDate,
		RenewalDate:   now,
		Status:        "confirmed",
	}
	if err := h.store.InsertRenewal(r.Context(), renewal); err != nil {
		h.logger.Error("session updated but renewal audit insert failed", "error", err, "session_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("payment confirmed", "session_id", id, "expire_date", req.NewExpireDate)
	h.writeJSON(w, http.StatusOK, session)
}

// HandleRenew processes an explicit renewal: computes the new expiry from the
// period, appends an audit row and brings the session back to connected.
func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req domain.RenewalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		h.writeDomainError(w, err)
		return
	}

	now := time.Now().UTC()
	expireDate, err := domain.NextExpireDate(now, req.RenewalPeriod)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	session, err := h.store.Renew(r.Context(), id, expireDate, domain.SessionStatusConnected,
		domain.SessionStatusWaitingForPayment, domain.SessionStatusPaid, domain.SessionStatusReady,
		domain.SessionStatusConnected, domain.SessionStatusExpired)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	renewal := &domain.SubscriptionRenewal{
		ID:            uuid.New().String(),
		SessionID:     id,
		PlanType:      req.PlanType,
		RenewalPeriod: req.RenewalPeriod,
		AmountPaid:    *req.AmountPaid,
		NewExpireDate: expireDate,
		RenewalDate:   now,
		Status:        "completed",
	}
	if err := h.store.InsertRenewal(r.Context(), renewal); err != nil {
		h.logger.Error("session renewed but audit insert failed", "error", err, "session_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.publish(r.Context(), id, domain.EventSessionRenewed, domain.SessionRenewedEvent{
		SessionID:     id,
		PlanType:      req.PlanType,
		RenewalPeriod: req.RenewalPeriod,
		NewExpireDate: expireDate,
		Timestamp:     now,
	})

	h.logger.Info("session renewed", "session_id", id, "period", req.RenewalPeriod, "expire_date", expireDate)
	h.writeJSON(w, http.StatusOK, session)
}

type updateStatusRequest struct {
	Status domain.SessionStatus `json:"status"`
}

// HandleUpdateStatus is the provisioning callback. Only the provisioning
// steps of the lifecycle are reachable here; everything else is rejected.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if !domain.CanTransition(session.EffectiveStatus(time.Now().UTC()), req.Status) {
		h.writeError(w, http.StatusConflict, "session is not in a state that allows this transition")
		return
	}

	updated, err := h.store.UpdateStatus(r.Context(), id, req.Status, session.Status)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("session status updated", "session_id", id, "status", updated.Status)
	h.writeJSON(w, http.StatusOK, updated)
}

// HandleTerminate moves a session to its terminal state from any other state.
func (h *Handler) HandleTerminate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	session, err := h.store.UpdateStatus(r.Context(), id, domain.SessionStatusTerminated,
		domain.SessionStatusWaitingForPayment, domain.SessionStatusPaid, domain.SessionStatusReady,
		domain.SessionStatusConnected, domain.SessionStatusExpired)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("session terminated", "session_id", id)
	h.writeJSON(w, http.StatusOK, session)
}

type checkoutRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type checkoutResponse struct {
	PaymentKey string `json:"payment_key"`
}

// HandleCheckout runs the payment-gateway chain for a renewal payment and
// returns the payment key. Gateway failures surface as a generic 502; the
// underlying gateway error is only logged.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if h.gateway == nil {
		h.writeError(w, http.StatusServiceUnavailable, "payment gateway is not configured")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount == nil || !req.Amount.IsPositive() {
		h.writeError(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}

	session, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if session.Status == domain.SessionStatusTerminated {
		h.writeError(w, http.StatusConflict, "session is terminated")
		return
	}

	key, err := h.gateway.PaymentKey(r.Context(), *req.Amount, session.Identifier)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("payment key issued", "session_id", id, "amount", req.Amount)
	h.writeJSON(w, http.StatusOK, checkoutResponse{PaymentKey: key})
}

func (h *Handler) HandleListRenewals(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	renewals, err := h.store.ListRenewals(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list renewals", "error", err, "session_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, renewals)
}

type renewalStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleRenewalStatus(w http.ResponseWriter, r *http.Request) {
	renewalID := r.PathValue("id")
	if renewalID == "" {
		h.writeError(w, http.StatusBadRequest, "missing renewal id")
		return
	}

	var req renewalStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		h.writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	if err := h.store.UpdateRenewalStatus(r.Context(), renewalID, req.Status); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("renewal status updated", "renewal_id", renewalID, "status", req.Status)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDeleteRenewal(w http.ResponseWriter, r *http.Request) {
	renewalID := r.PathValue("id")
	if renewalID == "" {
		h.writeError(w, http.StatusBadRequest, "missing renewal id")
		return
	}

	if err := h.store.DeleteRenewal(r.Context(), renewalID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("renewal deleted", "renewal_id", renewalID)
	w.WriteHeader(http.StatusNoContent)
}

// withEffectiveStatus applies lazy expiry before a session leaves the
// service: readers never see a stale active status.
func withEffectiveStatus(s domain.Session, now time.Time) domain.Session {
	s.Status = s.EffectiveStatus(now)
	return s
}

func (h *Handler) publish(ctx context.Context, sessionID int64, event string, payload any) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, domain.SessionChannel(sessionID), event, payload); err != nil {
		h.logger.Error("failed to publish event", "error", err, "event", event, "session_id", sessionID)
	}
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid session id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var externalErr *domain.ExternalServiceError
	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, validationErr.Msg)
	case errors.As(err, &externalErr):
		h.logger.Error("external service failure", "service", externalErr.Service, "error", externalErr.Err)
		h.writeError(w, http.StatusBadGateway, "payment service is unavailable, please try again later")
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidState):
		h.writeError(w, http.StatusConflict, "session is not in a state that allows this transition")
	default:
		h.logger.Error("session operation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
