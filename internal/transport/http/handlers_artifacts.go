package httptransport

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"taxbridge/internal/audit"
	"taxbridge/internal/coordinator"
	entitymodels "taxbridge/internal/entity/models"
	regmodels "taxbridge/internal/registry/models"
	"taxbridge/internal/transport/http/shared"
	"taxbridge/pkg/domain"
	apperrors "taxbridge/pkg/errors"
)

// ArtifactService is the coordinator surface the handlers call.
type ArtifactService interface {
	Attempt(ctx context.Context, ref domain.EventRef, kind domain.ArtifactKind) (*coordinator.Outcome, error)
	Cancel(ctx context.Context, ref domain.EventRef, kind domain.ArtifactKind) (*coordinator.Outcome, error)
	Repair(ctx context.Context, ref domain.EventRef, kind domain.ArtifactKind) (*coordinator.Outcome, error)
}

// RegistryReader is the read-only registry surface.
type RegistryReader interface {
	Lookup(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) (*regmodels.ArtifactRecord, error)
	History(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) ([]*regmodels.ArtifactRecord, error)
}

// OrganizationReader lists resolved organizations.
type OrganizationReader interface {
	Find(ctx context.Context, regNo domain.RegistryNumber) (*entitymodels.Organization, error)
	List(ctx context.Context) ([]*entitymodels.Organization, error)
}

// outcomeResponse is the JSON shape for attempt, cancel and repair results.
type outcomeResponse struct {
	Status      string          `json:"status"`
	Producer    string          `json:"producer,omitempty"`
	ExternalRef string          `json:"external_ref,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Record      *artifactRecord `json:"record,omitempty"`
}

type artifactRecord struct {
	ID           string    `json:"id"`
	DocType      string    `json:"doc_type"`
	DocID        string    `json:"doc_id"`
	Kind         string    `json:"kind"`
	Producer     string    `json:"producer"`
	Organization string    `json:"organization,omitempty"`
	ExternalRef  string    `json:"external_ref,omitempty"`
	Amount       float64   `json:"amount"`
	Status       string    `json:"status"`
	LastError    string    `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toOutcomeResponse(outcome *coordinator.Outcome) outcomeResponse {
	resp := outcomeResponse{
		Status:      outcome.Status.String(),
		Producer:    outcome.Producer.String(),
		ExternalRef: outcome.ExternalRef,
		Reason:      outcome.Reason,
	}
	if outcome.Record != nil {
		rec := toArtifactRecord(outcome.Record)
		resp.Record = &rec
	}
	return resp
}

func toArtifactRecord(rec *regmodels.ArtifactRecord) artifactRecord {
	return artifactRecord{
		ID:           rec.ID.String(),
		DocType:      rec.Event.DocType,
		DocID:        rec.Event.DocID,
		Kind:         rec.Kind.String(),
		Producer:     rec.Producer.String(),
		Organization: rec.Organization.String(),
		ExternalRef:  rec.ExternalRef,
		Amount:       rec.Amount,
		Status:       rec.Status.String(),
		LastError:    rec.LastError,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

// refAndKind parses the path parameters shared by all artifact routes.
func refAndKind(r *http.Request) (domain.EventRef, domain.ArtifactKind, error) {
	docType, err := url.PathUnescape(chi.URLParam(r, "docType"))
	if err != nil {
		return domain.EventRef{}, "", apperrors.New(apperrors.CodeInvalidInput, "malformed doc type")
	}
	docID, err := url.PathUnescape(chi.URLParam(r, "docID"))
	if err != nil {
		return domain.EventRef{}, "", apperrors.New(apperrors.CodeInvalidInput, "malformed doc id")
	}
	ref, err := domain.NewEventRef(docType, docID)
	if err != nil {
		return domain.EventRef{}, "", err
	}
	kind, err := domain.ParseArtifactKind(chi.URLParam(r, "kind"))
	if err != nil {
		return domain.EventRef{}, "", err
	}
	return ref, kind, nil
}

func (h *Handler) handleAttempt(w http.ResponseWriter, r *http.Request) {
	ref, kind, err := refAndKind(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	outcome, err := h.artifacts.Attempt(r.Context(), ref, kind)
	if err != nil {
		h.logError(r, "attempt failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toOutcomeResponse(outcome))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ref, kind, err := refAndKind(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	outcome, err := h.artifacts.Cancel(r.Context(), ref, kind)
	if err != nil {
		h.logError(r, "cancel failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toOutcomeResponse(outcome))
}

func (h *Handler) handleRepair(w http.ResponseWriter, r *http.Request) {
	ref, kind, err := refAndKind(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	outcome, err := h.artifacts.Repair(r.Context(), ref, kind)
	if err != nil {
		h.logError(r, "repair failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toOutcomeResponse(outcome))
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	ref, kind, err := refAndKind(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	rec, err := h.registry.Lookup(r.Context(), ref, kind)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toArtifactRecord(rec))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ref, kind, err := refAndKind(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	records, err := h.registry.History(r.Context(), ref, kind)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]artifactRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, toArtifactRecord(rec))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	docType, err := url.PathUnescape(chi.URLParam(r, "docType"))
	if err != nil {
		shared.WriteError(w, apperrors.New(apperrors.CodeInvalidInput, "malformed doc type"))
		return
	}
	docID, err := url.PathUnescape(chi.URLParam(r, "docID"))
	if err != nil {
		shared.WriteError(w, apperrors.New(apperrors.CodeInvalidInput, "malformed doc id"))
		return
	}
	ref, err := domain.NewEventRef(docType, docID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	events, err := h.auditStore.ListByRef(r.Context(), ref)
	if err != nil {
		shared.WriteError(w, apperrors.Wrap(err, apperrors.CodeInternal, "load audit trail"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	shared.WriteJSON(w, http.StatusOK, events)
}

type organizationResponse struct {
	RegistryNumber string            `json:"registry_number"`
	TaxpayerID     string            `json:"taxpayer_id,omitempty"`
	DisplayName    string            `json:"display_name,omitempty"`
	Auxiliary      map[string]string `json:"auxiliary,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toOrganizationResponse(org *entitymodels.Organization) organizationResponse {
	resp := organizationResponse{
		RegistryNumber: org.RegistryNumber.String(),
		TaxpayerID:     org.TaxpayerID.String(),
		DisplayName:    org.DisplayName,
		CreatedAt:      org.CreatedAt,
		UpdatedAt:      org.UpdatedAt,
	}
	if len(org.Auxiliary) > 0 {
		resp.Auxiliary = make(map[string]string, len(org.Auxiliary))
		for producer, id := range org.Auxiliary {
			resp.Auxiliary[producer.String()] = id
		}
	}
	return resp
}

func (h *Handler) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.organizations.List(r.Context())
	if err != nil {
		shared.WriteError(w, apperrors.Wrap(err, apperrors.CodeInternal, "list organizations"))
		return
	}
	out := make([]organizationResponse, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, toOrganizationResponse(org))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	regNo, err := domain.ParseRegistryNumber(chi.URLParam(r, "registryNumber"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	org, err := h.organizations.Find(r.Context(), regNo)
	if err != nil {
		shared.WriteError(w, apperrors.Wrap(err, apperrors.CodeNotFound, "organization not found"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, toOrganizationResponse(org))
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"path", r.URL.Path,
		"error", err,
	)
}
