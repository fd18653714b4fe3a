package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"taxbridge/internal/opauth"
	"taxbridge/internal/reconcile"
	"taxbridge/internal/transport/http/shared"
	apperrors "taxbridge/pkg/errors"
	"taxbridge/pkg/requestcontext"
)

const maxTokenTTL = 24 * time.Hour

type issueTokenRequest struct {
	Operator  string `json:"operator"`
	Role      string `json:"role"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

type issueTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.Operator == "" {
		shared.WriteError(w, apperrors.New(apperrors.CodeInvalidInput, "operator is required"))
		return
	}
	role := opauth.Role(req.Role)
	if role != opauth.RoleOperator && role != opauth.RoleAdmin {
		shared.WriteError(w, apperrors.New(apperrors.CodeInvalidInput, "role must be operator or admin"))
		return
	}
	ttl := time.Hour
	if req.ExpiresIn != "" {
		parsed, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || parsed <= 0 || parsed > maxTokenTTL {
			shared.WriteError(w, apperrors.New(apperrors.CodeInvalidInput, "expires_in must be a duration up to 24h"))
			return
		}
		ttl = parsed
	}

	token, err := h.tokens.GenerateToken(req.Operator, role, ttl)
	if err != nil {
		h.logError(r, "token issuance failed", err)
		shared.WriteError(w, apperrors.Wrap(err, apperrors.CodeInternal, "issue token"))
		return
	}
	h.logger.InfoContext(r.Context(), "operator token issued",
		"operator", req.Operator, "role", req.Role, "ttl", ttl.String())
	shared.WriteJSON(w, http.StatusOK, issueTokenResponse{
		Token:     token,
		ExpiresAt: requestcontext.Now(r.Context()).Add(ttl),
	})
}

type runReconciliationRequest struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (h *Handler) handleRunReconciliation(w http.ResponseWriter, r *http.Request) {
	var req runReconciliationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.From.IsZero() || req.To.IsZero() || !req.From.Before(req.To) {
		shared.WriteError(w, apperrors.New(apperrors.CodeInvalidInput, "from must precede to"))
		return
	}

	report, err := h.reconciler.Run(r.Context(), reconcile.Window{From: req.From, To: req.To})
	if err != nil {
		h.logError(r, "reconciliation run failed", err)
		shared.WriteError(w, apperrors.Wrap(err, apperrors.CodeInternal, "run reconciliation"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	report := h.reports.Latest()
	if report == nil {
		shared.WriteError(w, apperrors.New(apperrors.CodeNotFound, "no reconciliation run has completed yet"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	if len(h.health) > 0 {
		resp.Checks = make(map[string]string, len(h.health))
		for _, checker := range h.health {
			if err := checker.Check(r.Context()); err != nil {
				resp.Checks[checker.Name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			} else {
				resp.Checks[checker.Name] = "ok"
			}
		}
	}
	shared.WriteJSON(w, status, resp)
}
