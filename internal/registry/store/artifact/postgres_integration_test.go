//go:build integration

package artifact_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"taxbridge/internal/registry/models"
	"taxbridge/internal/registry/store/artifact"
	"taxbridge/pkg/domain"
	"taxbridge/pkg/platform/sentinel"
	"taxbridge/pkg/requestcontext"
	"taxbridge/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *artifact.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = artifact.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "artifact_records")
	s.Require().NoError(err)
}

func newReservation(docID string) artifact.Reservation {
	return artifact.Reservation{
		Event:        domain.EventRef{DocType: "Sales Invoice", DocID: docID},
		Kind:         domain.ArtifactKindReceipt,
		Producer:     "fiscal-api",
		Organization: domain.RegistryNumber("1234567"),
	}
}

func (s *PostgresStoreSuite) TestReserveCommitLifecycle() {
	ctx := context.Background()
	res := newReservation("SINV-" + uuid.NewString())

	record, err := s.store.TryReserve(ctx, res, time.Time{})
	s.Require().NoError(err)
	s.Equal(models.StatusPending, record.Status)

	committed, err := s.store.Commit(ctx, record.Token(), "DDTD-0042", 150000)
	s.Require().NoError(err)
	s.Equal(models.StatusCommitted, committed.Status)
	s.Equal("DDTD-0042", committed.ExternalRef)
	s.Equal(float64(150000), committed.Amount)

	found, err := s.store.Lookup(ctx, res.Event, res.Kind)
	s.Require().NoError(err)
	s.Equal(record.ID, found.ID)
	s.Equal(models.StatusCommitted, found.Status)
}

// TestConcurrentReservations verifies that racing callers on the same key
// resolve in the database: exactly one reservation is admitted past the
// partial unique index.
func (s *PostgresStoreSuite) TestConcurrentReservations() {
	ctx := context.Background()
	res := newReservation("SINV-" + uuid.NewString())
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.store.TryReserve(ctx, res, time.Time{})
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyReserved) {
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one reservation should win")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should lose")

	history, err := s.store.History(ctx, res.Event, res.Kind)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *PostgresStoreSuite) TestStaleReservationReclaim() {
	res := newReservation("SINV-" + uuid.NewString())

	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), start)

	stale, err := s.store.TryReserve(ctx, res, time.Time{})
	s.Require().NoError(err)

	// Fresh pending: a second caller must lose.
	_, err = s.store.TryReserve(ctx, res, start.Add(-15*time.Minute))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyReserved)

	// Twenty minutes later the pending is abandoned and one caller reclaims.
	later := requestcontext.WithTime(context.Background(), start.Add(20*time.Minute))
	fresh, err := s.store.TryReserve(later, res, start.Add(5*time.Minute))
	s.Require().NoError(err)
	s.NotEqual(stale.ID, fresh.ID)

	// The abandoned token no longer commits.
	_, err = s.store.Commit(later, stale.Token(), "DDTD-0001", 100)
	s.Require().ErrorIs(err, sentinel.ErrInvalidToken)

	history, err := s.store.History(later, res.Event, res.Kind)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(models.StatusSuperseded, history[0].Status)
	s.Equal(models.StatusPending, history[1].Status)
}

func (s *PostgresStoreSuite) TestVoidIsIdempotent() {
	ctx := context.Background()
	res := newReservation("SINV-" + uuid.NewString())

	record, err := s.store.TryReserve(ctx, res, time.Time{})
	s.Require().NoError(err)
	_, err = s.store.Commit(ctx, record.Token(), "DDTD-7", 500)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Void(ctx, res.Event, res.Kind))
	s.Require().NoError(s.store.Void(ctx, res.Event, res.Kind))

	found, err := s.store.Lookup(ctx, res.Event, res.Kind)
	s.Require().NoError(err)
	s.Equal(models.StatusVoided, found.Status)

	// A key nobody ever reserved voids as a no-op too.
	unknown := domain.EventRef{DocType: "Sales Invoice", DocID: "SINV-missing"}
	s.Require().NoError(s.store.Void(ctx, unknown, domain.ArtifactKindReceipt))
}

func (s *PostgresStoreSuite) TestVoidedRecordBlocksCommit() {
	ctx := context.Background()
	res := newReservation("SINV-" + uuid.NewString())

	record, err := s.store.TryReserve(ctx, res, time.Time{})
	s.Require().NoError(err)

	s.Require().NoError(s.store.Void(ctx, res.Event, res.Kind))

	_, err = s.store.Commit(ctx, record.Token(), "DDTD-9", 100)
	s.Require().ErrorIs(err, sentinel.ErrInvalidToken)
}

func (s *PostgresStoreSuite) TestFailSupersedeReserveAgain() {
	ctx := context.Background()
	res := newReservation("SINV-" + uuid.NewString())

	record, err := s.store.TryReserve(ctx, res, time.Time{})
	s.Require().NoError(err)

	failed, err := s.store.Fail(ctx, record.Token(), "upstream rejected: invalid merchant")
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, failed.Status)
	s.Equal("upstream rejected: invalid merchant", failed.LastError)

	// A failed record does not hold the slot, but supersede is still required
	// before the coordinator retries; the store itself admits a new
	// reservation.
	s.Require().NoError(s.store.Supersede(ctx, res.Event, res.Kind))

	// Superseding twice has nothing left to supersede.
	err = s.store.Supersede(ctx, res.Event, res.Kind)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	fresh, err := s.store.TryReserve(ctx, res, time.Time{})
	s.Require().NoError(err)
	s.NotEqual(record.ID, fresh.ID)

	history, err := s.store.History(ctx, res.Event, res.Kind)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(models.StatusSuperseded, history[0].Status)
	s.Equal(models.StatusPending, history[1].Status)
}

func (s *PostgresStoreSuite) TestLookupPrefersLiveRecord() {
	ctx := context.Background()
	res := newReservation("SINV-" + uuid.NewString())

	record, err := s.store.TryReserve(ctx, res, time.Time{})
	s.Require().NoError(err)
	_, err = s.store.Fail(ctx, record.Token(), "boom")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Supersede(ctx, res.Event, res.Kind))

	fresh, err := s.store.TryReserve(ctx, res, time.Time{})
	s.Require().NoError(err)

	found, err := s.store.Lookup(ctx, res.Event, res.Kind)
	s.Require().NoError(err)
	s.Equal(fresh.ID, found.ID)

	_, err = s.store.Lookup(ctx, domain.EventRef{DocType: "Sales Invoice", DocID: "SINV-none"}, res.Kind)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestKindsAreIndependentSlots() {
	ctx := context.Background()
	ref := domain.EventRef{DocType: "Sales Invoice", DocID: "SINV-" + uuid.NewString()}

	receipt := artifact.Reservation{Event: ref, Kind: domain.ArtifactKindReceipt, Producer: "fiscal-api"}
	payment := artifact.Reservation{Event: ref, Kind: domain.ArtifactKindPayment, Producer: "bank-gateway"}

	_, err := s.store.TryReserve(ctx, receipt, time.Time{})
	s.Require().NoError(err)
	_, err = s.store.TryReserve(ctx, payment, time.Time{})
	s.Require().NoError(err)
}
