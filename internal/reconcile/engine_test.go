package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	eventmodels "taxbridge/internal/event/models"
	eventstore "taxbridge/internal/event/store"
	"taxbridge/internal/reconcile"
	"taxbridge/internal/registry/store/artifact"
	"taxbridge/pkg/domain"
	"taxbridge/pkg/requestcontext"
)

type EngineSuite struct {
	suite.Suite
	events    *eventstore.InMemoryEventStore
	artifacts *artifact.InMemoryStore
	sink      *reconcile.MemorySink
	engine    *reconcile.Engine
	ctx       context.Context
	now       time.Time
	window    reconcile.Window
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.events = eventstore.NewInMemoryEventStore()
	s.artifacts = artifact.NewInMemoryStore()
	s.sink = reconcile.NewMemorySink()

	var err error
	s.engine, err = reconcile.New(s.events, s.artifacts,
		reconcile.WithGracePeriod(time.Hour),
		reconcile.WithAmountTolerance(0.01),
		reconcile.WithSink(s.sink),
	)
	s.Require().NoError(err)

	s.now = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.window = reconcile.Window{
		From: s.now.Add(-24 * time.Hour),
		To:   s.now,
	}
}

func (s *EngineSuite) seedEvent(docID string, amount float64, age time.Duration) *eventmodels.BusinessEvent {
	event := &eventmodels.BusinessEvent{
		Ref:          domain.EventRef{DocType: "Sales Invoice", DocID: docID},
		Organization: "1234567",
		Amount:       amount,
		Timestamp:    s.now.Add(-age),
		State:        eventmodels.StateCommitted,
	}
	s.events.Put(event)
	return event
}

// reserve-and-commit shorthand for seeding matching artifacts.
func (s *EngineSuite) commitArtifact(event *eventmodels.BusinessEvent, externalRef string, amount float64) {
	rec, err := s.artifacts.TryReserve(s.ctx, artifact.Reservation{
		Event:        event.Ref,
		Kind:         domain.ArtifactKindReceipt,
		Producer:     "fiscal-api",
		Organization: event.Organization,
	}, time.Time{})
	s.Require().NoError(err)
	_, err = s.artifacts.Commit(s.ctx, rec.Token(), externalRef, amount)
	s.Require().NoError(err)
}

func (s *EngineSuite) TestEmptyWindow() {
	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	s.Equal(0, report.Summary.EventsScanned)
	s.Empty(report.Findings)
	s.Require().Len(s.sink.Reports(), 1)
}

func (s *EngineSuite) TestCleanWindowHasNoFindings() {
	e1 := s.seedEvent("SINV-0001", 1500.00, 3*time.Hour)
	e2 := s.seedEvent("SINV-0002", 900.00, 2*time.Hour)
	s.commitArtifact(e1, "DDTD-1", 1500.00)
	s.commitArtifact(e2, "DDTD-2", 900.00)

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	s.Equal(2, report.Summary.EventsScanned)
	s.Equal(2, report.Summary.ArtifactsMatched)
	s.InDelta(2400.00, report.Summary.TotalEventAmount, 1e-9)
	s.InDelta(2400.00, report.Summary.TotalMatchedAmount, 1e-9)
	s.Empty(report.Findings)
}

func (s *EngineSuite) TestMissingArtifactPastGrace() {
	s.seedEvent("SINV-0003", 500.00, 2*time.Hour)

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	s.Require().Len(report.Findings, 1)
	s.Equal(reconcile.FindingMissingArtifact, report.Findings[0].Kind)
	s.Equal(1, report.Summary.FindingsByKind[reconcile.FindingMissingArtifact])
}

func (s *EngineSuite) TestRecentEventWithinGraceIsSkipped() {
	s.seedEvent("SINV-0004", 500.00, 10*time.Minute)

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	s.Empty(report.Findings)
	s.Equal(1, report.Summary.EventsSkipped)
}

func (s *EngineSuite) TestAmountMismatch() {
	event := s.seedEvent("SINV-0005", 1000.00, 3*time.Hour)
	s.commitArtifact(event, "DDTD-5", 999.00)

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	s.Require().Len(report.Findings, 1)
	s.Equal(reconcile.FindingAmountMismatch, report.Findings[0].Kind)
	s.Contains(report.Findings[0].Detail, "999.00")
}

func (s *EngineSuite) TestAmountWithinToleranceIsClean() {
	event := s.seedEvent("SINV-0006", 1000.00, 3*time.Hour)
	s.commitArtifact(event, "DDTD-6", 1000.005)

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	s.Empty(report.Findings)
}

func (s *EngineSuite) TestIdentityMismatch() {
	event := s.seedEvent("SINV-0007", 100.00, 3*time.Hour)
	rec, err := s.artifacts.TryReserve(s.ctx, artifact.Reservation{
		Event:        event.Ref,
		Kind:         domain.ArtifactKindReceipt,
		Producer:     "fiscal-api",
		Organization: "7654321",
	}, time.Time{})
	s.Require().NoError(err)
	_, err = s.artifacts.Commit(s.ctx, rec.Token(), "DDTD-7", 100.00)
	s.Require().NoError(err)

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	s.Require().Len(report.Findings, 1)
	s.Equal(reconcile.FindingIdentityMismatch, report.Findings[0].Kind)
}

// Two committed records sharing an external ref yield exactly one finding
// carrying both record ids.
func (s *EngineSuite) TestDuplicateExternalRef() {
	e1 := s.seedEvent("SINV-0008", 100.00, 3*time.Hour)
	e2 := s.seedEvent("SINV-0009", 100.00, 3*time.Hour)
	s.commitArtifact(e1, "DDTD-DUP", 100.00)
	s.commitArtifact(e2, "DDTD-DUP", 100.00)

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)

	var dups []reconcile.Finding
	for _, f := range report.Findings {
		if f.Kind == reconcile.FindingDuplicateArtifact {
			dups = append(dups, f)
		}
	}
	s.Require().Len(dups, 1)
	s.Len(dups[0].Records, 2)
}

func (s *EngineSuite) TestDoubleRunIsIdempotent() {
	event := s.seedEvent("SINV-0010", 1000.00, 3*time.Hour)
	s.commitArtifact(event, "DDTD-10", 900.00)

	first, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	second, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)

	s.Equal(first.Summary, second.Summary)
	s.Equal(first.Findings, second.Findings)
	s.Len(s.sink.Reports(), 2)
}

func (s *EngineSuite) TestFindingsAreOrderedByEvent() {
	// Seed in reverse order to prove ordering comes from sorting, not
	// insertion.
	s.seedEvent("SINV-0012", 100.00, 3*time.Hour)
	s.seedEvent("SINV-0011", 100.00, 3*time.Hour)

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	s.Require().Len(report.Findings, 2)
	s.Equal("SINV-0011", report.Findings[0].Event.DocID)
	s.Equal("SINV-0012", report.Findings[1].Event.DocID)
}

func (s *EngineSuite) TestVoidedEventsAreExcluded() {
	event := s.seedEvent("SINV-0013", 100.00, 3*time.Hour)
	s.Require().NoError(s.events.SetState(event.Ref, eventmodels.StateVoided))

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	s.Equal(0, report.Summary.EventsScanned)
	s.Empty(report.Findings)
}

// A slot satisfied twice under different references is a duplicate even when
// the registry's current record looks clean.
func (s *EngineSuite) TestConflictingReferencesInHistory() {
	event := s.seedEvent("SINV-0014", 100.00, 3*time.Hour)
	s.commitArtifact(event, "DDTD-A", 100.00)
	s.Require().NoError(s.artifacts.Void(s.ctx, event.Ref, domain.ArtifactKindReceipt))
	s.commitArtifact(event, "DDTD-B", 100.00)

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)

	s.Require().Len(report.Findings, 1)
	finding := report.Findings[0]
	s.Equal(reconcile.FindingDuplicateArtifact, finding.Kind)
	s.Equal(event.Ref, finding.Event)
	s.Len(finding.Records, 2)
	s.Contains(finding.Detail, "DDTD-A")
	s.Contains(finding.Detail, "DDTD-B")
}

// A re-committed slot under the same reference is not a duplicate.
func (s *EngineSuite) TestRepeatedReferenceInHistoryIsClean() {
	event := s.seedEvent("SINV-0015", 100.00, 3*time.Hour)
	s.commitArtifact(event, "DDTD-SAME", 100.00)
	s.Require().NoError(s.artifacts.Void(s.ctx, event.Ref, domain.ArtifactKindReceipt))
	s.commitArtifact(event, "DDTD-SAME", 100.00)

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	s.Empty(report.Findings)
}

// Records for one slot resolved to different organizations mismatch even
// when the current record agrees with the event.
func (s *EngineSuite) TestIdentityMismatchAcrossRecords() {
	event := s.seedEvent("SINV-0016", 100.00, 3*time.Hour)
	rec, err := s.artifacts.TryReserve(s.ctx, artifact.Reservation{
		Event:        event.Ref,
		Kind:         domain.ArtifactKindReceipt,
		Producer:     "fiscal-api",
		Organization: "7654321",
	}, time.Time{})
	s.Require().NoError(err)
	_, err = s.artifacts.Commit(s.ctx, rec.Token(), "DDTD-SAME", 100.00)
	s.Require().NoError(err)
	s.Require().NoError(s.artifacts.Void(s.ctx, event.Ref, domain.ArtifactKindReceipt))
	s.commitArtifact(event, "DDTD-SAME", 100.00)

	report, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)

	s.Require().Len(report.Findings, 1)
	finding := report.Findings[0]
	s.Equal(reconcile.FindingIdentityMismatch, finding.Kind)
	s.Len(finding.Records, 2)
	s.Contains(finding.Detail, "7654321")
	s.Contains(finding.Detail, "1234567")
}

// Two duplicate findings landing on the same event and kind keep a fixed
// relative order across runs.
func (s *EngineSuite) TestDuplicateFindingOrderIsStable() {
	e1 := s.seedEvent("SINV-0017", 100.00, 3*time.Hour)
	e2 := s.seedEvent("SINV-0018", 100.00, 2*time.Hour)
	s.commitArtifact(e1, "DDTD-OLD", 100.00)
	s.Require().NoError(s.artifacts.Void(s.ctx, e1.Ref, domain.ArtifactKindReceipt))
	s.commitArtifact(e1, "DDTD-SHARED", 100.00)
	s.commitArtifact(e2, "DDTD-SHARED", 100.00)

	first, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)
	second, err := s.engine.Run(s.ctx, s.window)
	s.Require().NoError(err)

	s.Equal(2, first.Summary.FindingsByKind[reconcile.FindingDuplicateArtifact])
	s.Require().Len(first.Findings, 2)
	s.Contains(first.Findings[0].Detail, "recorded for one slot")
	s.Contains(first.Findings[1].Detail, "shared by 2 committed records")
	s.Equal(first.Findings, second.Findings)
}
