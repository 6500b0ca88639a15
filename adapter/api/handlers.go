package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/felixgeelhaar/vyora/internal/entitlement/application"
	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/entitlement/guard"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// EntitlementResponse is the tenant's current gating state.
type EntitlementResponse struct {
	TenantID     string               `json:"tenantId,omitempty"`
	IsPro        bool                 `json:"isPro"`
	IsFree       bool                 `json:"isFree"`
	IsLoading    bool                 `json:"isLoading"`
	Subscription *domain.Subscription `json:"subscription"`
}

// ModuleResponse reports access to a feature module.
type ModuleResponse struct {
	Module    string `json:"module"`
	CanAccess bool   `json:"canAccess"`
	Message   string `json:"message,omitempty"`
}

// MessageResponse carries a denial message for an action.
type MessageResponse struct {
	Action  domain.ActionKind `json:"action"`
	Message string            `json:"message"`
}

// AttemptResponse is returned when a guarded preflight is allowed.
type AttemptResponse struct {
	Action   domain.ActionKind `json:"action"`
	Executed bool              `json:"executed"`
}

func entitlementView(eval *application.Evaluator) EntitlementResponse {
	return EntitlementResponse{
		TenantID:     eval.TenantID(),
		IsPro:        eval.IsEntitled(),
		IsFree:       eval.IsFree(),
		IsLoading:    eval.IsLoading(),
		Subscription: eval.Subscription(),
	}
}

func (s *Server) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, entitlementView(guard.EvaluatorFromContext(r.Context())))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	tenantID := observability.TenantIDFromContext(r.Context())
	if store := s.registry.Get(tenantID); store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.openTimeout)
		defer cancel()
		if err := store.Refetch(ctx); err != nil {
			s.logger.Warn("subscription refresh failed", "tenant_id", tenantID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, entitlementView(guard.EvaluatorFromContext(r.Context())))
}

func (s *Server) handleCheckAction(w http.ResponseWriter, r *http.Request) {
	action, ok := s.actionParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, guard.EvaluatorFromContext(r.Context()).CanPerformAction(action))
}

func (s *Server) handleActionMessage(w http.ResponseWriter, r *http.Request) {
	action, ok := s.actionParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Action:  action,
		Message: guard.EvaluatorFromContext(r.Context()).ActionRestrictedMessage(action),
	})
}

// handleAttempt runs the HTTP guard in front of a preflight handler.
func (s *Server) handleAttempt(w http.ResponseWriter, r *http.Request) {
	action, ok := s.actionParam(w, r)
	if !ok {
		return
	}
	preflight := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, AttemptResponse{Action: action, Executed: true})
	})
	guard.Middleware(action, s.guardOpts...)(preflight).ServeHTTP(w, r)
}

func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	eval := guard.EvaluatorFromContext(r.Context())
	resp := ModuleResponse{Module: module, CanAccess: eval.CanAccess(module)}
	if !resp.CanAccess {
		resp.Message = eval.ModuleRestrictedMessage(module)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	action, err := domain.ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g := guard.New(guard.EvaluatorFromContext(r.Context()), s.guardOpts...)
	writeJSON(w, http.StatusOK, g.Prompt(action))
}

func (s *Server) handleDenials(w http.ResponseWriter, r *http.Request) {
	tenantID := observability.TenantIDFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, "a tenant token is required")
		return
	}

	day := time.Now().UTC()
	if v := r.URL.Query().Get("day"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	summary, err := s.service.DenialSummary(r.Context(), tenantID, day)
	if err != nil {
		s.logger.Error("failed to load denial summary", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load denials")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) actionParam(w http.ResponseWriter, r *http.Request) (domain.ActionKind, bool) {
	action, err := domain.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.ActionNone, false
	}
	return action, true
}
