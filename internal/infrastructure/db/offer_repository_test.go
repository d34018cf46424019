package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	"github.com/damon-houk/insurance-offer-system/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOffer(personalNumber string, createdDate time.Time, loans ...float64) *entity.Offer {
	return &entity.Offer{
		PersonalNumber: personalNumber,
		Loans:          loans,
		MonthlyAmount:  50,
		Premium:        entity.CalculatePremium(loans, entity.DefaultPremiumRate),
		Status:         entity.OfferStatusPending,
		CreatedDate:    createdDate,
	}
}

// runOfferRepositoryContract exercises the behaviour every offer store must share
func runOfferRepositoryContract(t *testing.T, repo repository.OfferRepository) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("Create assigns an id", func(t *testing.T) {
		created, err := repo.Create(ctx, newTestOffer("199010101234", base, 5000, 2500))
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)

		found, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "199010101234", found.PersonalNumber)
		assert.Equal(t, []float64{5000, 2500}, found.Loans)
		assert.Equal(t, 285.0, found.Premium)
		assert.Equal(t, entity.OfferStatusPending, found.Status)
		assert.True(t, base.Equal(found.CreatedDate))
		assert.Nil(t, found.AcceptedDate)
	})

	t.Run("FindByID unknown id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, "does-not-exist")
		assert.ErrorIs(t, err, repository.ErrOfferNotFound)
		assert.Nil(t, found)
	})

	t.Run("Save overwrites", func(t *testing.T) {
		created, err := repo.Create(ctx, newTestOffer("198001011234", base.Add(time.Second), 1000))
		require.NoError(t, err)

		acceptedAt := base.Add(time.Minute)
		created.Loans = []float64{300, 200, 100}
		created.Accept(acceptedAt)

		_, err = repo.Save(ctx, created)
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.OfferStatusAccepted, found.Status)
		assert.Equal(t, []float64{300, 200, 100}, found.Loans)
		require.NotNil(t, found.AcceptedDate)
		assert.True(t, acceptedAt.Equal(*found.AcceptedDate))
	})

	t.Run("SaveAll and FindAll", func(t *testing.T) {
		first, err := repo.Create(ctx, newTestOffer("197001011234", base.Add(2*time.Second), 10))
		require.NoError(t, err)
		second, err := repo.Create(ctx, newTestOffer("197001021234", base.Add(3*time.Second), 20))
		require.NoError(t, err)

		first.Expire()
		second.Expire()
		saved, err := repo.SaveAll(ctx, []*entity.Offer{first, second})
		require.NoError(t, err)
		assert.Len(t, saved, 2)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)

		byID := make(map[string]*entity.Offer, len(all))
		for _, o := range all {
			byID[o.ID] = o
		}
		require.Contains(t, byID, first.ID)
		require.Contains(t, byID, second.ID)
		assert.Equal(t, entity.OfferStatusExpired, byID[first.ID].Status)
		assert.Equal(t, "", byID[second.ID].PersonalNumber)
		assert.Equal(t, []float64{20}, byID[second.ID].Loans)

		for i := 1; i < len(all); i++ {
			assert.False(t, all[i].CreatedDate.Before(all[i-1].CreatedDate))
		}
	})

	t.Run("SaveAll skips offers that are no longer pending", func(t *testing.T) {
		raced, err := repo.Create(ctx, newTestOffer("195001011234", base.Add(5*time.Second), 40))
		require.NoError(t, err)
		pending, err := repo.Create(ctx, newTestOffer("195001021234", base.Add(6*time.Second), 50))
		require.NoError(t, err)

		stale := raced.Clone()
		stale.Expire()
		pending.Expire()

		acceptedAt := base.Add(2 * time.Minute)
		raced.Accept(acceptedAt)
		_, err = repo.Save(ctx, raced)
		require.NoError(t, err)

		saved, err := repo.SaveAll(ctx, []*entity.Offer{stale, pending})
		require.NoError(t, err)
		require.Len(t, saved, 1)
		assert.Equal(t, pending.ID, saved[0].ID)

		found, err := repo.FindByID(ctx, raced.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.OfferStatusAccepted, found.Status)
		assert.Equal(t, "195001011234", found.PersonalNumber)
		require.NotNil(t, found.AcceptedDate)
		assert.True(t, acceptedAt.Equal(*found.AcceptedDate))

		found, err = repo.FindByID(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.OfferStatusExpired, found.Status)

		again, err := repo.SaveAll(ctx, []*entity.Offer{pending})
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("Returned offers are detached", func(t *testing.T) {
		created, err := repo.Create(ctx, newTestOffer("196001011234", base.Add(4*time.Second), 1))
		require.NoError(t, err)

		created.Loans[0] = 999
		found, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, []float64{1}, found.Loans)
	})
}

func TestMemoryOfferRepository(t *testing.T) {
	repo := NewMemoryOfferRepository()
	runOfferRepositoryContract(t, repo)
	assert.NoError(t, repo.Close())
}

func TestBadgerOfferRepository(t *testing.T) {
	badgerDB, err := OpenBadger("")
	require.NoError(t, err)

	repo := NewBadgerOfferRepository(badgerDB)
	defer repo.Close()

	runOfferRepositoryContract(t, repo)
}

func TestBadgerOfferRepositoryOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	badgerDB, err := OpenBadger(dir)
	require.NoError(t, err)
	repo := NewBadgerOfferRepository(badgerDB)

	created, err := repo.Create(ctx, newTestOffer("199010101234", time.Now().UTC(), 5000))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	// Reopen to make sure the offer survived
	badgerDB, err = OpenBadger(dir)
	require.NoError(t, err)
	repo = NewBadgerOfferRepository(badgerDB)
	defer repo.Close()

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 190.0, found.Premium)
}

func TestPostgresOfferRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" || testing.Short() {
		t.Skip("Skipping postgres test: TEST_DATABASE_URI not set")
	}

	repo, err := NewPostgresOfferRepository(context.Background(), dsn)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.pool.Exec(context.Background(), `TRUNCATE offers CASCADE`)
	require.NoError(t, err)

	runOfferRepositoryContract(t, repo)
}
