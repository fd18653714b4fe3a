package producers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entitymodels "taxbridge/internal/entity/models"
	eventmodels "taxbridge/internal/event/models"
	"taxbridge/pkg/domain"
)

func testEvent(amount float64, counterparty domain.TaxpayerID) *eventmodels.BusinessEvent {
	return &eventmodels.BusinessEvent{
		Ref:          domain.EventRef{DocType: "Sales Invoice", DocID: "SINV-0001"},
		Organization: "1234567",
		Counterparty: counterparty,
		Amount:       amount,
		State:        eventmodels.StateCommitted,
	}
}

func testOrg(regNo domain.RegistryNumber) *entitymodels.Organization {
	return &entitymodels.Organization{RegistryNumber: regNo, TaxpayerID: "12345678901"}
}

func TestIsEligible(t *testing.T) {
	cases := []struct {
		name string
		cfg  ProducerConfig
		event *eventmodels.BusinessEvent
		org  *entitymodels.Organization
		want bool
	}{
		{
			name:  "no restrictions",
			cfg:   ProducerConfig{},
			event: testEvent(100, ""),
			org:   testOrg("1234567"),
			want:  true,
		},
		{
			name:  "below amount floor",
			cfg:   ProducerConfig{MinAmount: 500},
			event: testEvent(100, ""),
			org:   testOrg("1234567"),
			want:  false,
		},
		{
			name:  "counterparty required and missing",
			cfg:   ProducerConfig{RequireCounterparty: true},
			event: testEvent(100, ""),
			org:   testOrg("1234567"),
			want:  false,
		},
		{
			name:  "counterparty required and present",
			cfg:   ProducerConfig{RequireCounterparty: true},
			event: testEvent(100, "12345678901"),
			org:   testOrg("1234567"),
			want:  true,
		},
		{
			name:  "organization not allowed",
			cfg:   ProducerConfig{Organizations: []domain.RegistryNumber{"7654321"}},
			event: testEvent(100, ""),
			org:   testOrg("1234567"),
			want:  false,
		},
		{
			name:  "organization allowed",
			cfg:   ProducerConfig{Organizations: []domain.RegistryNumber{"7654321", "1234567"}},
			event: testEvent(100, ""),
			org:   testOrg("1234567"),
			want:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewHTTP(tc.cfg)
			assert.Equal(t, tc.want, p.IsEligible(tc.event, tc.org))
		})
	}
}

func TestCreateArtifact(t *testing.T) {
	var gotBody createRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/artifacts", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createResponse{Ref: "DDTD-42", Amount: 1500})
	}))
	defer server.Close()

	p := NewHTTP(ProducerConfig{
		Name:    "pos-api",
		Kind:    domain.ArtifactKindReceipt,
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})

	result, err := p.CreateArtifact(context.Background(), testEvent(1500, "12345678901"), testOrg("1234567"))
	require.NoError(t, err)
	assert.Equal(t, "DDTD-42", result.ExternalRef)
	assert.InDelta(t, 1500, result.Amount, 1e-9)
	assert.Equal(t, "1234567", gotBody.RegistryNumber)
	assert.Equal(t, "SINV-0001", gotBody.DocID)
}

func TestCreateArtifactUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "taxpayer not registered", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	p := NewHTTP(ProducerConfig{Name: "pos-api", BaseURL: server.URL, Timeout: 5 * time.Second})

	_, err := p.CreateArtifact(context.Background(), testEvent(100, ""), testOrg("1234567"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taxpayer not registered")
}

func TestReverseArtifactTreats404AsSuccess(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/artifacts/DDTD-42", r.URL.Path)
		if calls == 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := NewHTTP(ProducerConfig{Name: "pos-api", BaseURL: server.URL, Timeout: 5 * time.Second})

	event := testEvent(100, "")
	require.NoError(t, p.ReverseArtifact(context.Background(), event, "DDTD-42"))
	// Second reversal finds nothing; still a success.
	require.NoError(t, p.ReverseArtifact(context.Background(), event, "DDTD-42"))
}
