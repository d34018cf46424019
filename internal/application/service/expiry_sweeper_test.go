// internal/application/service/expiry_sweeper_test.go
package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/db"
	"github.com/damon-houk/insurance-offer-system/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSweeper(repo *db.MemoryOfferRepository) *ExpirySweeper {
	sweeper := NewExpirySweeper(repo, nil, entity.DefaultExpiryWindow, time.Hour, quietLogger())
	sweeper.now = func() time.Time { return fixedNow }
	return sweeper
}

func seedOffer(t *testing.T, repo *db.MemoryOfferRepository, status entity.OfferStatus, age time.Duration) *entity.Offer {
	t.Helper()

	offer, err := repo.Create(context.Background(), &entity.Offer{
		PersonalNumber: "199010101234",
		Loans:          []float64{5000},
		MonthlyAmount:  50,
		Premium:        190,
		Status:         status,
		CreatedDate:    fixedNow.Add(-age),
	})
	require.NoError(t, err)
	return offer
}

// acceptAfterScanRepository accepts one offer right after FindAll returns,
// the way a request landing mid-sweep would.
type acceptAfterScanRepository struct {
	*db.MemoryOfferRepository
	acceptID   string
	acceptedAt time.Time
	batchFails bool
}

func (r *acceptAfterScanRepository) FindAll(ctx context.Context) ([]*entity.Offer, error) {
	offers, err := r.MemoryOfferRepository.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	current, err := r.MemoryOfferRepository.FindByID(ctx, r.acceptID)
	if err != nil {
		return nil, err
	}
	current.Accept(r.acceptedAt)
	if _, err := r.MemoryOfferRepository.Save(ctx, current); err != nil {
		return nil, err
	}
	return offers, nil
}

func (r *acceptAfterScanRepository) SaveAll(ctx context.Context, offers []*entity.Offer) ([]*entity.Offer, error) {
	if r.batchFails && len(offers) > 1 {
		return nil, errors.New("transaction too big")
	}
	return r.MemoryOfferRepository.SaveAll(ctx, offers)
}

func TestExpirySweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	day := 24 * time.Hour

	t.Run("expires only stale pending offers", func(t *testing.T) {
		repo := db.NewMemoryOfferRepository()
		old := seedOffer(t, repo, entity.OfferStatusPending, 40*day)
		fresh := seedOffer(t, repo, entity.OfferStatusPending, 5*day)
		oldAccepted := seedOffer(t, repo, entity.OfferStatusAccepted, 60*day)

		result, err := newTestSweeper(repo).Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, SweepResult{Scanned: 3, Expired: 1, Failed: 0}, result)

		got, err := repo.FindByID(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.OfferStatusExpired, got.Status)
		assert.Empty(t, got.PersonalNumber)
		assert.Equal(t, old.Loans, got.Loans)
		assert.Equal(t, old.Premium, got.Premium)

		got, err = repo.FindByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, fresh, got)

		got, err = repo.FindByID(ctx, oldAccepted.ID)
		require.NoError(t, err)
		assert.Equal(t, oldAccepted, got)
	})

	t.Run("second pass changes nothing", func(t *testing.T) {
		repo := db.NewMemoryOfferRepository()
		seedOffer(t, repo, entity.OfferStatusPending, 40*day)
		sweeper := newTestSweeper(repo)

		_, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		before, err := repo.FindAll(ctx)
		require.NoError(t, err)

		result, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Expired)

		after, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("boundary is strict", func(t *testing.T) {
		repo := db.NewMemoryOfferRepository()
		exact := seedOffer(t, repo, entity.OfferStatusPending, 30*day)

		result, err := newTestSweeper(repo).Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Expired)

		got, err := repo.FindByID(ctx, exact.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.OfferStatusPending, got.Status)
	})

	t.Run("publishes an event per expired offer", func(t *testing.T) {
		repo := db.NewMemoryOfferRepository()
		old := seedOffer(t, repo, entity.OfferStatusPending, 40*day)
		seedOffer(t, repo, entity.OfferStatusPending, day)

		publisher := new(mocks.MockOfferEventPublisher)
		publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e entity.OfferEvent) bool {
			return e.Type == entity.OfferExpired && e.OfferID == old.ID && e.Status == entity.OfferStatusExpired
		})).Return(nil).Once()

		sweeper := NewExpirySweeper(repo, publisher, entity.DefaultExpiryWindow, time.Hour, quietLogger())
		sweeper.now = func() time.Time { return fixedNow }

		_, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		publisher.AssertExpectations(t)
	})

	t.Run("falls back to single saves when the batch fails", func(t *testing.T) {
		a := &entity.Offer{ID: "a", PersonalNumber: "199010101234", Status: entity.OfferStatusPending, CreatedDate: fixedNow.Add(-40 * day)}
		b := &entity.Offer{ID: "b", PersonalNumber: "199010101235", Status: entity.OfferStatusPending, CreatedDate: fixedNow.Add(-45 * day)}

		repo := new(mocks.MockOfferRepository)
		repo.On("FindAll", mock.Anything).Return([]*entity.Offer{a, b}, nil)
		repo.On("SaveAll", mock.Anything, mock.MatchedBy(func(batch []*entity.Offer) bool { return len(batch) == 2 })).
			Return(nil, errors.New("transaction too big"))
		repo.On("SaveAll", mock.Anything, mock.MatchedBy(func(batch []*entity.Offer) bool { return len(batch) == 1 && batch[0].ID == "a" })).
			Return(nil, errors.New("disk error"))
		repo.On("SaveAll", mock.Anything, mock.MatchedBy(func(batch []*entity.Offer) bool { return len(batch) == 1 && batch[0].ID == "b" })).
			Return([]*entity.Offer{b}, nil)

		sweeper := NewExpirySweeper(repo, nil, entity.DefaultExpiryWindow, time.Hour, quietLogger())
		sweeper.now = func() time.Time { return fixedNow }

		result, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, SweepResult{Scanned: 2, Expired: 1, Failed: 1}, result)
		repo.AssertNumberOfCalls(t, "SaveAll", 3)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("offer accepted after the scan stays accepted", func(t *testing.T) {
		tests := []struct {
			name       string
			batchFails bool
		}{
			{name: "batch write"},
			{name: "single writes after batch failure", batchFails: true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				inner := db.NewMemoryOfferRepository()
				raced := seedOffer(t, inner, entity.OfferStatusPending, 40*day)
				other := seedOffer(t, inner, entity.OfferStatusPending, 50*day)

				acceptedAt := fixedNow.Add(-time.Minute)
				repo := &acceptAfterScanRepository{
					MemoryOfferRepository: inner,
					acceptID:              raced.ID,
					acceptedAt:            acceptedAt,
					batchFails:            tt.batchFails,
				}

				publisher := new(mocks.MockOfferEventPublisher)
				publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e entity.OfferEvent) bool {
					return e.OfferID == other.ID
				})).Return(nil).Once()

				sweeper := NewExpirySweeper(repo, publisher, entity.DefaultExpiryWindow, time.Hour, quietLogger())
				sweeper.now = func() time.Time { return fixedNow }

				result, err := sweeper.Sweep(ctx)
				require.NoError(t, err)
				assert.Equal(t, SweepResult{Scanned: 2, Expired: 1, Skipped: 1}, result)

				got, err := inner.FindByID(ctx, raced.ID)
				require.NoError(t, err)
				assert.Equal(t, entity.OfferStatusAccepted, got.Status)
				assert.Equal(t, "199010101234", got.PersonalNumber)
				require.NotNil(t, got.AcceptedDate)
				assert.True(t, acceptedAt.Equal(*got.AcceptedDate))

				got, err = inner.FindByID(ctx, other.ID)
				require.NoError(t, err)
				assert.Equal(t, entity.OfferStatusExpired, got.Status)

				publisher.AssertExpectations(t)
			})
		}
	})

	t.Run("list failure", func(t *testing.T) {
		repo := new(mocks.MockOfferRepository)
		repo.On("FindAll", mock.Anything).Return(nil, errors.New("closed"))

		sweeper := NewExpirySweeper(repo, nil, entity.DefaultExpiryWindow, time.Hour, quietLogger())

		_, err := sweeper.Sweep(ctx)
		assert.ErrorContains(t, err, "failed to list offers")
		repo.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
	})
}

func TestExpirySweeper_Run(t *testing.T) {
	repo := db.NewMemoryOfferRepository()
	old := seedOffer(t, repo, entity.OfferStatusPending, 40*24*time.Hour)

	sweeper := newTestSweeper(repo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	// Run sweeps once on start, long before the first hourly tick
	assert.Eventually(t, func() bool {
		got, err := repo.FindByID(context.Background(), old.ID)
		return err == nil && got.Status == entity.OfferStatusExpired
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}

func TestNewExpirySweeper_DefaultInterval(t *testing.T) {
	sweeper := NewExpirySweeper(db.NewMemoryOfferRepository(), nil, entity.DefaultExpiryWindow, 0, nil)
	assert.Equal(t, DefaultSweepInterval, sweeper.interval)
	assert.NotNil(t, sweeper.logger)
}
