package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"taxbridge/internal/audit"
	"taxbridge/internal/coordinator"
	entitymodels "taxbridge/internal/entity/models"
	entityservice "taxbridge/internal/entity/service"
	"taxbridge/internal/entity/store/organization"
	eventmodels "taxbridge/internal/event/models"
	eventstore "taxbridge/internal/event/store"
	"taxbridge/internal/opauth"
	"taxbridge/internal/reconcile"
	registryservice "taxbridge/internal/registry/service"
	"taxbridge/internal/registry/store/artifact"
	"taxbridge/pkg/domain"
)

// stubProducer is a deterministic in-process producer for handler tests.
type stubProducer struct {
	name     domain.ProducerName
	kind     domain.ArtifactKind
	failWith error
	created  int
	reversed int
}

func (p *stubProducer) Name() domain.ProducerName { return p.name }
func (p *stubProducer) Kind() domain.ArtifactKind { return p.kind }

func (p *stubProducer) IsEligible(*eventmodels.BusinessEvent, *entitymodels.Organization) bool {
	return true
}

func (p *stubProducer) CreateArtifact(_ context.Context, event *eventmodels.BusinessEvent, _ *entitymodels.Organization) (*coordinator.CreateResult, error) {
	if p.failWith != nil {
		return nil, p.failWith
	}
	p.created++
	return &coordinator.CreateResult{
		ExternalRef: fmt.Sprintf("DDTD-%s-%d", event.Ref.DocID, p.created),
		Amount:      event.Amount,
	}, nil
}

func (p *stubProducer) ReverseArtifact(context.Context, *eventmodels.BusinessEvent, string) error {
	p.reversed++
	return nil
}

const adminToken = "test-admin-token"

type HandlerSuite struct {
	suite.Suite
	server   *httptest.Server
	events   *eventstore.InMemoryEventStore
	producer *stubProducer
	tokens   *opauth.JWTService

	operatorToken string
	adminJWT      string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.events = eventstore.NewInMemoryEventStore()
	s.producer = &stubProducer{name: "pos-api", kind: domain.ArtifactKindReceipt}

	artifacts := artifact.NewInMemoryStore()
	registry, err := registryservice.New(artifacts)
	s.Require().NoError(err)
	resolver, err := entityservice.New(organization.NewInMemoryStore())
	s.Require().NoError(err)

	coord, err := coordinator.New(s.events, resolver, registry, []coordinator.Producer{s.producer})
	s.Require().NoError(err)

	reports := reconcile.NewMemorySink()
	engine, err := reconcile.New(s.events, artifacts, reconcile.WithSink(reports))
	s.Require().NoError(err)

	s.tokens = opauth.NewJWTService("test-signing-key", "taxbridge")

	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	s.Require().NoError(err)

	handler := NewHandler(
		coord,
		registry,
		organization.NewInMemoryStore(),
		audit.NewInMemoryStore(),
		engine,
		reports,
		s.tokens,
		log,
	)
	router := NewRouter(handler, RouterConfig{
		Logger:         log,
		JWTValidator:   opauth.NewJWTServiceAdapter(s.tokens),
		AdminTokenHash: string(hash),
	})
	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)

	s.operatorToken, err = s.tokens.GenerateToken("oyunaa", opauth.RoleOperator, time.Hour)
	s.Require().NoError(err)
	s.adminJWT, err = s.tokens.GenerateToken("bat.erdene", opauth.RoleAdmin, time.Hour)
	s.Require().NoError(err)
}

func (s *HandlerSuite) seedEvent(docID string) *eventmodels.BusinessEvent {
	event := &eventmodels.BusinessEvent{
		Ref:          domain.EventRef{DocType: "Sales Invoice", DocID: docID},
		Organization: "1234567",
		Amount:       1500.00,
		Timestamp:    time.Now().Add(-2 * time.Hour),
		State:        eventmodels.StateCommitted,
	}
	s.events.Put(event)
	return event
}

func jsonBody(t *testing.T, body any) io.Reader {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	return bytes.NewReader(raw)
}

func (s *HandlerSuite) do(method, path, bearer string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		reader = jsonBody(s.T(), body)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func artifactPath(docID, kind, action string) string {
	p := "/v1/events/" + url.PathEscape("Sales Invoice") + "/" + url.PathEscape(docID) + "/artifacts/" + kind
	if action != "" {
		p += "/" + action
	}
	return p
}

func (s *HandlerSuite) TestAttemptCreatesArtifact() {
	s.seedEvent("SINV-0001")

	resp := s.do(http.MethodPost, artifactPath("SINV-0001", "receipt", "attempt"), s.operatorToken, nil)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var out outcomeResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	s.Equal("completed", out.Status)
	s.Equal("pos-api", out.Producer)
	s.NotEmpty(out.ExternalRef)

	// Lookup reflects the committed record.
	lookup := s.do(http.MethodGet, artifactPath("SINV-0001", "receipt", ""), s.operatorToken, nil)
	defer lookup.Body.Close()
	s.Require().Equal(http.StatusOK, lookup.StatusCode)
	var rec artifactRecord
	s.Require().NoError(json.NewDecoder(lookup.Body).Decode(&rec))
	s.Equal("committed", rec.Status)
	s.Equal(out.ExternalRef, rec.ExternalRef)
}

func (s *HandlerSuite) TestMissingTokenRejected() {
	resp := s.do(http.MethodPost, artifactPath("SINV-0001", "receipt", "attempt"), "", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *HandlerSuite) TestRepairRequiresAdminRole() {
	s.seedEvent("SINV-0002")

	resp := s.do(http.MethodPost, artifactPath("SINV-0002", "receipt", "repair"), s.operatorToken, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *HandlerSuite) TestCancelWithAdminRole() {
	s.seedEvent("SINV-0003")

	attempt := s.do(http.MethodPost, artifactPath("SINV-0003", "receipt", "attempt"), s.operatorToken, nil)
	attempt.Body.Close()
	s.Require().Equal(http.StatusOK, attempt.StatusCode)

	resp := s.do(http.MethodPost, artifactPath("SINV-0003", "receipt", "cancel"), s.adminJWT, nil)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(1, s.producer.reversed)
}

func (s *HandlerSuite) TestLookupUnknownReturns404() {
	resp := s.do(http.MethodGet, artifactPath("missing", "receipt", ""), s.operatorToken, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerSuite) TestInvalidKindReturns400() {
	resp := s.do(http.MethodPost, artifactPath("SINV-0001", "voucher", "attempt"), s.operatorToken, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerSuite) TestIssueTokenRequiresAdminHeader() {
	body := issueTokenRequest{Operator: "oyunaa", Role: "operator"}

	// Wrong admin token.
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/v1/auth/token", jsonBody(s.T(), body))
	s.Require().NoError(err)
	req.Header.Set("X-Admin-Token", "wrong")
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	// Correct admin token issues a usable JWT.
	req, err = http.NewRequest(http.MethodPost, s.server.URL+"/v1/auth/token", jsonBody(s.T(), body))
	s.Require().NoError(err)
	req.Header.Set("X-Admin-Token", adminToken)
	resp, err = s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var issued issueTokenResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&issued))
	claims, err := s.tokens.ValidateToken(issued.Token)
	s.Require().NoError(err)
	s.Equal("oyunaa", claims.Operator)
}

func (s *HandlerSuite) TestReconcileRunAndLatest() {
	s.seedEvent("SINV-0004")

	// No report yet.
	latest := s.do(http.MethodGet, "/v1/reconcile/latest", s.operatorToken, nil)
	latest.Body.Close()
	s.Equal(http.StatusNotFound, latest.StatusCode)

	run := s.do(http.MethodPost, "/v1/reconcile/run", s.adminJWT, runReconciliationRequest{
		From: time.Now().Add(-24 * time.Hour),
		To:   time.Now(),
	})
	defer run.Body.Close()
	s.Require().Equal(http.StatusOK, run.StatusCode)

	var report reconcile.Report
	s.Require().NoError(json.NewDecoder(run.Body).Decode(&report))
	s.Equal(1, report.Summary.EventsScanned)
}

func (s *HandlerSuite) TestHealth() {
	resp, err := s.server.Client().Get(s.server.URL + "/healthz")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}
