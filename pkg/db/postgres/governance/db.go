package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/capsulenet/govern/pkg/db/postgres"
	"github.com/capsulenet/govern/pkg/governance"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// DB is the PostgreSQL-backed proposal store and vote ledger. The votes
// table's primary key on (proposal_id, voter_id) is the concurrency-control
// primitive: duplicate concurrent casts for the same pair collapse into one
// row at the storage layer, not in application logic.
type DB struct {
	postgres.Client
}

var _ governance.Store = (*DB)(nil)

// New connects to Postgres with component-specific pool sizing and ensures
// the governance tables exist.
func New(ctx context.Context, logger *zap.Logger, component string) (*DB, error) {
	poolConfig := postgres.GetPoolConfigForComponent(component)

	client, err := postgres.New(ctx, logger.With(
		zap.String("component", component),
	), "governance", poolConfig)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client}

	if err := db.InitializeDB(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return db, nil
}

// Close terminates the underlying PostgreSQL connection
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// InitializeDB ensures the required tables exist. Votes reference proposals,
// so the order matters.
func (db *DB) InitializeDB(ctx context.Context) error {
	initStart := time.Now()

	initOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"proposals", db.initProposals},
		{"votes", db.initVotes},
	}

	for _, op := range initOps {
		db.Logger.Debug("Initializing table", zap.String("table", op.name))
		if err := op.fn(ctx); err != nil {
			return fmt.Errorf("init %s: %w", op.name, err)
		}
	}

	db.Logger.Info("Governance database initialized",
		zap.Duration("duration", time.Since(initStart)))

	return nil
}

// InTx runs fn inside a transaction; the context passed to fn carries the
// transaction so every store call made with it joins it. fn's own errors
// pass through untouched (the engine relies on its taxonomy surviving).
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := db.Client.BeginFunc(ctx, func(tx pgx.Tx) error {
		return fn(db.Client.WithTx(ctx, tx))
	})
	if err != nil && !isDomainErr(err) {
		return storeErr("transaction", err)
	}
	return err
}

// isDomainErr reports whether err already belongs to the governance taxonomy
// and must not be re-wrapped as a store failure.
func isDomainErr(err error) bool {
	return errors.Is(err, governance.ErrProposalNotFound) ||
		errors.Is(err, governance.ErrVoteNotFound) ||
		errors.Is(err, governance.ErrInvalidTransition) ||
		errors.Is(err, governance.ErrProposalNotActive) ||
		errors.Is(err, governance.ErrInvalidDecision) ||
		errors.Is(err, governance.ErrValidation) ||
		errors.Is(err, governance.ErrUnauthorized) ||
		errors.Is(err, governance.ErrStoreUnavailable)
}

// storeErr classifies an unexpected database error as retryable for callers.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, governance.ErrStoreUnavailable, err)
}
