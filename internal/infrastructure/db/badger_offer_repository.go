package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	"github.com/damon-houk/insurance-offer-system/internal/domain/repository"
	"github.com/dgraph-io/badger/v3"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

const offerKeyPrefix = "offer:"

// BadgerOfferRepository implements the offer repository interface using BadgerDB
type BadgerOfferRepository struct {
	db *badger.DB
}

var _ repository.OfferRepository = (*BadgerOfferRepository)(nil)

// NewBadgerOfferRepository creates a new BadgerDB offer repository
func NewBadgerOfferRepository(db *badger.DB) *BadgerOfferRepository {
	return &BadgerOfferRepository{db: db}
}

// OpenBadger opens a BadgerDB at path, or an in-memory one when path is empty
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return db, nil
}

func offerKey(id string) []byte {
	return []byte(offerKeyPrefix + id)
}

// Create stores a new offer, assigning an ID when it has none
func (r *BadgerOfferRepository) Create(ctx context.Context, offer *entity.Offer) (*entity.Offer, error) {
	stored := offer.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	if err := r.db.Update(func(txn *badger.Txn) error {
		return setOffer(txn, stored)
	}); err != nil {
		return nil, fmt.Errorf("failed to store offer: %w", err)
	}

	return stored, nil
}

// FindByID retrieves an offer by its unique identifier
func (r *BadgerOfferRepository) FindByID(ctx context.Context, id string) (*entity.Offer, error) {
	var offer entity.Offer

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(offerKey(id))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &offer)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, repository.ErrOfferNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to retrieve offer: %w", err)
	}

	return &offer, nil
}

// FindAll iterates every key under the offer prefix
func (r *BadgerOfferRepository) FindAll(ctx context.Context) ([]*entity.Offer, error) {
	var offers []*entity.Offer

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(offerKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var offer entity.Offer
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &offer)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			offers = append(offers, &offer)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}

	sort.Slice(offers, func(i, j int) bool {
		return offers[i].CreatedDate.Before(offers[j].CreatedDate)
	})
	return offers, nil
}

// Save overwrites a single offer
func (r *BadgerOfferRepository) Save(ctx context.Context, offer *entity.Offer) (*entity.Offer, error) {
	if offer.ID == "" {
		return r.Create(ctx, offer)
	}

	if err := r.db.Update(func(txn *badger.Txn) error {
		return setOffer(txn, offer)
	}); err != nil {
		return nil, fmt.Errorf("failed to save offer %s: %w", offer.ID, err)
	}

	return offer.Clone(), nil
}

// SaveAll writes the batch in a single transaction, so it is applied entirely or not at all.
// Offers read as non-PENDING inside the transaction are skipped. A concurrent write to one
// of the read keys fails the commit with badger.ErrConflict.
func (r *BadgerOfferRepository) SaveAll(ctx context.Context, offers []*entity.Offer) ([]*entity.Offer, error) {
	batch := make([]*entity.Offer, 0, len(offers))
	for _, offer := range offers {
		stored := offer.Clone()
		if stored.ID == "" {
			stored.ID = uuid.New().String()
		}
		batch = append(batch, stored)
	}

	var saved []*entity.Offer
	if err := r.db.Update(func(txn *badger.Txn) error {
		saved = make([]*entity.Offer, 0, len(batch))
		for _, offer := range batch {
			pending, err := storedPending(txn, offer.ID)
			if err != nil {
				return err
			}
			if !pending {
				continue
			}
			if err := setOffer(txn, offer); err != nil {
				return err
			}
			saved = append(saved, offer)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to save %d offers: %w", len(offers), err)
	}

	return saved, nil
}

// Close closes the underlying database
func (r *BadgerOfferRepository) Close() error {
	return r.db.Close()
}

// storedPending reports whether id is absent or still PENDING
func storedPending(txn *badger.Txn, id string) (bool, error) {
	item, err := txn.Get(offerKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	var current entity.Offer
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &current)
	}); err != nil {
		return false, fmt.Errorf("decode offer %s: %w", id, err)
	}
	return current.Status == entity.OfferStatusPending, nil
}

func setOffer(txn *badger.Txn, offer *entity.Offer) error {
	data, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("failed to marshal offer: %w", err)
	}
	return txn.Set(offerKey(offer.ID), data)
}
