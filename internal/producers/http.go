package producers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"taxbridge/internal/coordinator"
	entitymodels "taxbridge/internal/entity/models"
	eventmodels "taxbridge/internal/event/models"
	"taxbridge/pkg/domain"
)

// HTTPProducer drives one external fiscal service over its JSON API. One
// instance per catalog entry; eligibility comes from the entry's parameters.
type HTTPProducer struct {
	cfg    ProducerConfig
	client *http.Client
}

// NewHTTP builds a producer for one catalog entry.
func NewHTTP(cfg ProducerConfig) *HTTPProducer {
	return &HTTPProducer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// FromConfig builds the priority-ordered producer slice for the catalog.
func FromConfig(cfg *Config) []coordinator.Producer {
	out := make([]coordinator.Producer, 0, len(cfg.Producers))
	for _, entry := range cfg.Producers {
		out = append(out, NewHTTP(entry))
	}
	return out
}

func (p *HTTPProducer) Name() domain.ProducerName { return p.cfg.Name }

func (p *HTTPProducer) Kind() domain.ArtifactKind { return p.cfg.Kind }

func (p *HTTPProducer) IsEligible(event *eventmodels.BusinessEvent, org *entitymodels.Organization) bool {
	if event.Amount < p.cfg.MinAmount {
		return false
	}
	if p.cfg.RequireCounterparty && event.Counterparty.IsNil() {
		return false
	}
	if len(p.cfg.Organizations) > 0 {
		allowed := false
		for _, regNo := range p.cfg.Organizations {
			if org.RegistryNumber == regNo {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}

type createRequest struct {
	DocType        string  `json:"doc_type"`
	DocID          string  `json:"doc_id"`
	RegistryNumber string  `json:"registry_number"`
	TaxpayerID     string  `json:"taxpayer_id,omitempty"`
	Counterparty   string  `json:"counterparty,omitempty"`
	Amount         float64 `json:"amount"`
}

type createResponse struct {
	Ref    string  `json:"ref"`
	Amount float64 `json:"amount"`
}

func (p *HTTPProducer) CreateArtifact(ctx context.Context, event *eventmodels.BusinessEvent, org *entitymodels.Organization) (*coordinator.CreateResult, error) {
	payload := createRequest{
		DocType:        event.Ref.DocType,
		DocID:          event.Ref.DocID,
		RegistryNumber: org.RegistryNumber.String(),
		TaxpayerID:     org.TaxpayerID.String(),
		Counterparty:   event.Counterparty.String(),
		Amount:         event.Amount,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	endpoint := p.cfg.BaseURL + "/artifacts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", p.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned %d: %s", p.cfg.Name, resp.StatusCode, detail)
	}

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", p.cfg.Name, err)
	}
	if out.Ref == "" {
		return nil, fmt.Errorf("%s returned no artifact reference", p.cfg.Name)
	}
	amount := out.Amount
	if amount == 0 {
		amount = event.Amount
	}
	return &coordinator.CreateResult{ExternalRef: out.Ref, Amount: amount}, nil
}

func (p *HTTPProducer) ReverseArtifact(ctx context.Context, event *eventmodels.BusinessEvent, externalRef string) error {
	endpoint := p.cfg.BaseURL + "/artifacts/" + url.PathEscape(externalRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build reverse request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", p.cfg.Name, err)
	}
	defer resp.Body.Close()

	// 404 means the artifact is already gone; reversal is idempotent.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent &&
		resp.StatusCode != http.StatusNotFound {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", p.cfg.Name, resp.StatusCode, detail)
	}
	return nil
}

var _ coordinator.Producer = (*HTTPProducer)(nil)
