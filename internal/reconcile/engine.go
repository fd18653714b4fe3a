package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	eventmodels "taxbridge/internal/event/models"
	eventstore "taxbridge/internal/event/store"
	regmodels "taxbridge/internal/registry/models"
	"taxbridge/internal/reconcile/metrics"
	"taxbridge/internal/registry/store/artifact"
	"taxbridge/pkg/domain"
	"taxbridge/pkg/platform/sentinel"
	"taxbridge/pkg/requestcontext"
)

const (
	defaultGrace       = time.Hour
	defaultTolerance   = 0.01
	defaultConcurrency = 8
)

// Engine runs read-only reconciliation sweeps. A run never mutates the
// ledger; a single unreadable record skips that event and the sweep carries
// on.
type Engine struct {
	events    eventstore.EventStore
	artifacts artifact.Store

	kinds       []domain.ArtifactKind
	grace       time.Duration
	tolerance   float64
	concurrency int
	sink        Sink
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Engine)

// WithExpectedKinds sets which artifact kinds every committed event is
// expected to carry. Defaults to receipts only.
func WithExpectedKinds(kinds ...domain.ArtifactKind) Option {
	return func(e *Engine) {
		e.kinds = kinds
	}
}

// WithGracePeriod sets how long after an event's timestamp a missing
// artifact is still considered in flight rather than a finding.
func WithGracePeriod(grace time.Duration) Option {
	return func(e *Engine) {
		if grace >= 0 {
			e.grace = grace
		}
	}
}

// WithAmountTolerance sets the absolute difference below which amounts are
// considered equal.
func WithAmountTolerance(tolerance float64) Option {
	return func(e *Engine) {
		if tolerance >= 0 {
			e.tolerance = tolerance
		}
	}
}

// WithConcurrency bounds how many events are inspected in parallel.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithSink publishes every finished report.
func WithSink(sink Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With("component", "reconcile")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func New(events eventstore.EventStore, artifacts artifact.Store, opts ...Option) (*Engine, error) {
	if events == nil {
		return nil, errors.New("event store is required")
	}
	if artifacts == nil {
		return nil, errors.New("artifact store is required")
	}
	e := &Engine{
		events:      events,
		artifacts:   artifacts,
		kinds:       []domain.ArtifactKind{domain.ArtifactKindReceipt},
		grace:       defaultGrace,
		tolerance:   defaultTolerance,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// eventResult collects everything one event contributed to the report.
type eventResult struct {
	findings  []Finding
	committed []*regmodels.ArtifactRecord
	expected  int
	matched   int
	matchedAmount float64
	skipped   bool
}

// Run sweeps the window and returns the report. Re-running over unchanged
// data yields an identical report (modulo timestamps).
func (e *Engine) Run(ctx context.Context, window Window) (*Report, error) {
	now := requestcontext.Now(ctx)

	events, err := e.events.ListCommitted(ctx, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("list committed events: %w", err)
	}

	results := make([]*eventResult, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, event := range events {
		g.Go(func() error {
			results[i] = e.inspectEvent(gctx, event, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Window: window,
		RanAt:  now,
		Summary: Summary{
			EventsScanned:  len(events),
			FindingsByKind: make(map[FindingKind]int),
		},
	}

	var allCommitted []*regmodels.ArtifactRecord
	for i, res := range results {
		if res == nil {
			continue
		}
		if res.skipped {
			report.Summary.EventsSkipped++
		}
		report.Summary.ArtifactsExpected += res.expected
		report.Summary.ArtifactsMatched += res.matched
		report.Summary.TotalEventAmount += events[i].Amount
		report.Summary.TotalMatchedAmount += res.matchedAmount
		report.Findings = append(report.Findings, res.findings...)
		allCommitted = append(allCommitted, res.committed...)
	}

	report.Findings = append(report.Findings, e.duplicateFindings(allCommitted, now)...)

	sort.Slice(report.Findings, func(a, b int) bool {
		fa, fb := report.Findings[a], report.Findings[b]
		if fa.Event != fb.Event {
			return fa.Event.String() < fb.Event.String()
		}
		if fa.Artifact != fb.Artifact {
			return fa.Artifact < fb.Artifact
		}
		if fa.Kind != fb.Kind {
			return fa.Kind < fb.Kind
		}
		// Detail breaks ties between findings of the same kind on one key so
		// repeated runs report in the same order.
		return fa.Detail < fb.Detail
	})
	for _, f := range report.Findings {
		report.Summary.FindingsByKind[f.Kind]++
		if e.metrics != nil {
			e.metrics.ObserveFinding(f.Kind.String())
		}
	}

	if e.metrics != nil {
		e.metrics.ObserveRun(float64(now.Unix()))
	}
	e.logger.InfoContext(ctx, "reconciliation run complete",
		"from", window.From, "to", window.To,
		"events", report.Summary.EventsScanned,
		"findings", len(report.Findings),
	)

	if e.sink != nil {
		if err := e.sink.Publish(ctx, report); err != nil {
			return report, fmt.Errorf("publish report: %w", err)
		}
	}
	return report, nil
}

func (e *Engine) inspectEvent(ctx context.Context, event *eventmodels.BusinessEvent, now time.Time) *eventResult {
	res := &eventResult{}
	inGrace := now.Sub(event.Timestamp) < e.grace

	for _, kind := range e.kinds {
		res.expected++
		record, err := e.artifacts.Lookup(ctx, event.Ref, kind)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				// One unreadable record must not abort the sweep.
				e.logger.WarnContext(ctx, "skipping event, artifact lookup failed",
					"event", event.Ref.String(), "kind", kind.String(), "error", err)
				res.skipped = true
				continue
			}
			if inGrace {
				res.skipped = true
				continue
			}
			res.findings = append(res.findings, Finding{
				Kind:     FindingMissingArtifact,
				Event:    event.Ref,
				Artifact: kind,
				Detail:   fmt.Sprintf("no artifact record %v after event commit", e.grace),
				SeenAt:   now,
			})
			continue
		}

		// The full per-key history feeds duplicate and cross-record identity
		// detection; the current record alone cannot show that the slot was
		// satisfied twice.
		history, err := e.artifacts.History(ctx, event.Ref, kind)
		if err != nil {
			e.logger.WarnContext(ctx, "skipping history checks, artifact history failed",
				"event", event.Ref.String(), "kind", kind.String(), "error", err)
		} else {
			res.findings = append(res.findings, e.historyFindings(event, kind, history, now)...)
		}

		switch record.Status {
		case regmodels.StatusCommitted:
			res.matched++
			res.matchedAmount += record.Amount
			res.committed = append(res.committed, record)

			if !record.Organization.IsNil() && !event.Organization.IsNil() &&
				record.Organization != event.Organization {
				res.findings = append(res.findings, Finding{
					Kind:     FindingIdentityMismatch,
					Event:    event.Ref,
					Artifact: kind,
					Records:  []uuid.UUID{record.ID},
					Detail: fmt.Sprintf("artifact created for %s but event belongs to %s",
						record.Organization, event.Organization),
					SeenAt: now,
				})
			}
			if math.Abs(record.Amount-event.Amount) > e.tolerance {
				res.findings = append(res.findings, Finding{
					Kind:     FindingAmountMismatch,
					Event:    event.Ref,
					Artifact: kind,
					Records:  []uuid.UUID{record.ID},
					Detail: fmt.Sprintf("artifact amount %.2f differs from event amount %.2f",
						record.Amount, event.Amount),
					SeenAt: now,
				})
			}
		case regmodels.StatusPending:
			// In flight; only stale pendings past grace count as missing.
			if inGrace || now.Sub(record.CreatedAt) < e.grace {
				res.skipped = true
			} else {
				res.findings = append(res.findings, Finding{
					Kind:     FindingMissingArtifact,
					Event:    event.Ref,
					Artifact: kind,
					Records:  []uuid.UUID{record.ID},
					Detail:   "reservation pending past the grace period",
					SeenAt:   now,
				})
			}
		default:
			// Failed, voided or superseded latest record on a committed
			// event: the artifact is effectively missing.
			if inGrace {
				res.skipped = true
				continue
			}
			res.findings = append(res.findings, Finding{
				Kind:     FindingMissingArtifact,
				Event:    event.Ref,
				Artifact: kind,
				Records:  []uuid.UUID{record.ID},
				Detail:   fmt.Sprintf("latest record is %s", record.Status),
				SeenAt:   now,
			})
		}
	}
	return res
}

// historyFindings inspects every record ever created for one key. More than
// one external reference recorded for the slot means it was satisfied more
// than once, no matter what the records' statuses say now; records resolved
// to different organizations are reported the same way.
func (e *Engine) historyFindings(event *eventmodels.BusinessEvent, kind domain.ArtifactKind, history []*regmodels.ArtifactRecord, now time.Time) []Finding {
	var (
		refs     []string
		refIDs   []uuid.UUID
		orgs     []domain.RegistryNumber
		orgIDs   []uuid.UUID
		findings []Finding
	)
	for _, rec := range history {
		if rec.ExternalRef != "" {
			if !slices.Contains(refs, rec.ExternalRef) {
				refs = append(refs, rec.ExternalRef)
			}
			refIDs = append(refIDs, rec.ID)
		}
		if !rec.Organization.IsNil() {
			if !slices.Contains(orgs, rec.Organization) {
				orgs = append(orgs, rec.Organization)
			}
			orgIDs = append(orgIDs, rec.ID)
		}
	}

	if len(refs) > 1 {
		findings = append(findings, Finding{
			Kind:     FindingDuplicateArtifact,
			Event:    event.Ref,
			Artifact: kind,
			Records:  refIDs,
			Detail:   fmt.Sprintf("%d external references recorded for one slot: %s", len(refs), strings.Join(refs, ", ")),
			SeenAt:   now,
		})
	}
	if len(orgs) > 1 {
		details := make([]string, len(orgs))
		for i, org := range orgs {
			details[i] = org.String()
		}
		findings = append(findings, Finding{
			Kind:     FindingIdentityMismatch,
			Event:    event.Ref,
			Artifact: kind,
			Records:  orgIDs,
			Detail:   fmt.Sprintf("records resolved to different organizations: %s", strings.Join(details, ", ")),
			SeenAt:   now,
		})
	}
	return findings
}

// duplicateFindings flags committed records of different keys sharing an
// external reference. One finding per reference, carrying every offending
// record; each key's internal duplicates are caught by historyFindings.
func (e *Engine) duplicateFindings(records []*regmodels.ArtifactRecord, now time.Time) []Finding {
	byRef := make(map[string][]*regmodels.ArtifactRecord)
	for _, rec := range records {
		if rec.ExternalRef == "" {
			continue
		}
		byRef[rec.ExternalRef] = append(byRef[rec.ExternalRef], rec)
	}

	var findings []Finding
	for _, externalRef := range slices.Sorted(maps.Keys(byRef)) {
		recs := byRef[externalRef]
		if len(recs) < 2 {
			continue
		}
		sort.SliceStable(recs, func(a, b int) bool {
			return recs[a].CreatedAt.Before(recs[b].CreatedAt)
		})
		ids := make([]uuid.UUID, 0, len(recs))
		for _, rec := range recs {
			ids = append(ids, rec.ID)
		}
		findings = append(findings, Finding{
			Kind:     FindingDuplicateArtifact,
			Event:    recs[0].Event,
			Artifact: recs[0].Kind,
			Records:  ids,
			Detail:   fmt.Sprintf("external reference %s shared by %d committed records", externalRef, len(recs)),
			SeenAt:   now,
		})
	}
	return findings
}

