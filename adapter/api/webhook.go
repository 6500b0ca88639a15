package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// SignatureHeader carries the billing backend's signature of the webhook body.
const SignatureHeader = "X-Vyora-Signature"

const (
	signaturePrefix  = "sha256="
	webhookBodyLimit = 1 << 20
)

// SubscriptionUpdateRequest is the billing webhook body.
type SubscriptionUpdateRequest struct {
	ID               string       `json:"id"`
	VendorID         string       `json:"vendorId" validate:"required,max=128"`
	PlanID           string       `json:"planId"`
	Status           string       `json:"status" validate:"required,max=32"`
	PaymentStatus    string       `json:"paymentStatus" validate:"max=32"`
	StartDate        *time.Time   `json:"startDate"`
	CurrentPeriodEnd *time.Time   `json:"currentPeriodEnd"`
	Plan             *domain.Plan `json:"plan"`
}

// SignPayload returns the SignatureHeader value for body: the hex
// HMAC-SHA256 under secret, prefixed with "sha256=".
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, header string) bool {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	return hmac.Equal([]byte(SignPayload(secret, body)), []byte(header))
}

// handleBillingWebhook ingests a subscription update pushed by the billing
// backend. Tenant tokens are not accepted here; only a body signed with the
// webhook secret is.
func (s *Server) handleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret == "" {
		writeError(w, http.StatusServiceUnavailable, "billing webhook is not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookBodyLimit))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !validSignature(s.webhookSecret, body, r.Header.Get(SignatureHeader)) {
		s.metrics.Counter("billing_webhook_rejected_total", 1, observability.T("reason", "signature"))
		writeError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	var req SubscriptionUpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := observability.WithTenantID(r.Context(), req.VendorID)
	sub := &domain.Subscription{
		ID:               req.ID,
		TenantID:         req.VendorID,
		PlanID:           req.PlanID,
		Status:           domain.SubscriptionStatus(req.Status),
		PaymentStatus:    domain.PaymentStatus(req.PaymentStatus),
		StartDate:        req.StartDate,
		CurrentPeriodEnd: req.CurrentPeriodEnd,
		Plan:             req.Plan,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := s.ingest(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrTenantRequired) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.ErrorContext(ctx, "failed to apply subscription update", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to apply subscription update")
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}
