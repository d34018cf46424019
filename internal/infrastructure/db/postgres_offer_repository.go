package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	"github.com/damon-houk/insurance-offer-system/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresOfferRepository stores offers in PostgreSQL, with loans in an ordered child table
type PostgresOfferRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

var _ repository.OfferRepository = (*PostgresOfferRepository)(nil)

// NewPostgresOfferRepository connects to the database and applies the schema migrations
func NewPostgresOfferRepository(ctx context.Context, dsn string) (*PostgresOfferRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresOfferRepository{
		pool:   pool,
		delays: []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresOfferRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry reruns fn on serialization failures, deadlocks and dropped connections
func (r *PostgresOfferRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil || !isRetryable(err) || i == len(r.delays) {
			return err
		}

		timer := time.NewTimer(r.delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

// inTx runs fn inside a transaction, with retries around the whole attempt
func (r *PostgresOfferRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}

		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				return fmt.Errorf("tx err: %w, rollback err: %v", err, rbErr)
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// Close closes the connection pool
func (r *PostgresOfferRepository) Close() error {
	r.pool.Close()
	return nil
}

// Create stores a new offer, assigning an ID when it has none
func (r *PostgresOfferRepository) Create(ctx context.Context, offer *entity.Offer) (*entity.Offer, error) {
	stored := offer.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	if err := r.inTx(ctx, func(tx pgx.Tx) error {
		return upsertOffer(ctx, tx, stored)
	}); err != nil {
		return nil, fmt.Errorf("failed to store offer: %w", err)
	}
	return stored, nil
}

// Save overwrites a single offer and its loans atomically
func (r *PostgresOfferRepository) Save(ctx context.Context, offer *entity.Offer) (*entity.Offer, error) {
	if offer.ID == "" {
		return r.Create(ctx, offer)
	}

	stored := offer.Clone()
	if err := r.inTx(ctx, func(tx pgx.Tx) error {
		return upsertOffer(ctx, tx, stored)
	}); err != nil {
		return nil, fmt.Errorf("failed to save offer %s: %w", offer.ID, err)
	}
	return stored, nil
}

// SaveAll writes the batch in one transaction. Each row is locked and skipped when it
// is no longer PENDING, so a concurrent accept is never overwritten.
func (r *PostgresOfferRepository) SaveAll(ctx context.Context, offers []*entity.Offer) ([]*entity.Offer, error) {
	batch := make([]*entity.Offer, 0, len(offers))
	for _, offer := range offers {
		stored := offer.Clone()
		if stored.ID == "" {
			stored.ID = uuid.New().String()
		}
		batch = append(batch, stored)
	}

	var saved []*entity.Offer
	if err := r.inTx(ctx, func(tx pgx.Tx) error {
		saved = make([]*entity.Offer, 0, len(batch))
		for _, offer := range batch {
			var status string
			err := tx.QueryRow(ctx, `SELECT status FROM offers WHERE id = $1 FOR UPDATE`, offer.ID).Scan(&status)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("lock offer %s: %w", offer.ID, err)
			}
			if err == nil && entity.OfferStatus(status) != entity.OfferStatusPending {
				continue
			}

			if err := upsertOffer(ctx, tx, offer); err != nil {
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

// FindByID retrieves an offer with its loans
func (r *PostgresOfferRepository) FindByID(ctx context.Context, id string) (*entity.Offer, error) {
	var offer *entity.Offer

	err := r.withRetry(ctx, func() error {
		row := r.pool.QueryRow(ctx,
			`SELECT id, personal_number, monthly_amount, premium, status, created_date, updated_time, accepted_date
			 FROM offers WHERE id = $1`, id)

		o, err := scanOffer(row)
		if err != nil {
			return err
		}

		rows, err := r.pool.Query(ctx,
			`SELECT loan_amount FROM offer_loans WHERE offer_id = $1 ORDER BY position`, id)
		if err != nil {
			return err
		}

		o.Loans, err = pgx.CollectRows(rows, pgx.RowTo[float64])
		if err != nil {
			return err
		}

		offer = o
		return nil
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrOfferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve offer: %w", err)
	}
	return offer, nil
}

// FindAll retrieves every offer ordered by creation date
func (r *PostgresOfferRepository) FindAll(ctx context.Context) ([]*entity.Offer, error) {
	var offers []*entity.Offer

	err := r.withRetry(ctx, func() error {
		offers = nil

		rows, err := r.pool.Query(ctx,
			`SELECT id, personal_number, monthly_amount, premium, status, created_date, updated_time, accepted_date
			 FROM offers ORDER BY created_date, id`)
		if err != nil {
			return err
		}

		byID := make(map[string]*entity.Offer)
		for rows.Next() {
			o, err := scanOffer(rows)
			if err != nil {
				rows.Close()
				return err
			}
			offers = append(offers, o)
			byID[o.ID] = o
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		loanRows, err := r.pool.Query(ctx,
			`SELECT offer_id, loan_amount FROM offer_loans ORDER BY offer_id, position`)
		if err != nil {
			return err
		}
		defer loanRows.Close()

		for loanRows.Next() {
			var offerID string
			var amount float64
			if err := loanRows.Scan(&offerID, &amount); err != nil {
				return err
			}
			if o, ok := byID[offerID]; ok {
				o.Loans = append(o.Loans, amount)
			}
		}
		return loanRows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	return offers, nil
}

func scanOffer(row pgx.Row) (*entity.Offer, error) {
	var o entity.Offer
	var status string

	if err := row.Scan(
		&o.ID,
		&o.PersonalNumber,
		&o.MonthlyAmount,
		&o.Premium,
		&status,
		&o.CreatedDate,
		&o.UpdatedTime,
		&o.AcceptedDate,
	); err != nil {
		return nil, err
	}

	o.Status = entity.OfferStatus(status)
	return &o, nil
}

func upsertOffer(ctx context.Context, tx pgx.Tx, o *entity.Offer) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO offers (id, personal_number, monthly_amount, premium, status, created_date, updated_time, accepted_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		     personal_number = EXCLUDED.personal_number,
		     monthly_amount  = EXCLUDED.monthly_amount,
		     premium         = EXCLUDED.premium,
		     status          = EXCLUDED.status,
		     updated_time    = EXCLUDED.updated_time,
		     accepted_date   = EXCLUDED.accepted_date`,
		o.ID, o.PersonalNumber, o.MonthlyAmount, o.Premium, string(o.Status), o.CreatedDate, o.UpdatedTime, o.AcceptedDate,
	)
	if err != nil {
		return fmt.Errorf("upsert offer %s: %w", o.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM offer_loans WHERE offer_id = $1`, o.ID); err != nil {
		return fmt.Errorf("clear loans of %s: %w", o.ID, err)
	}

	if len(o.Loans) == 0 {
		return nil
	}

	rows := make([][]any, len(o.Loans))
	for i, amount := range o.Loans {
		rows[i] = []any{o.ID, i, amount}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"offer_loans"},
		[]string{"offer_id", "position", "loan_amount"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("insert loans of %s: %w", o.ID, err)
	}
	return nil
}
