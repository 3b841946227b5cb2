package governance

import (
	"context"
	"fmt"
	"time"

	govmodels "github.com/capsulenet/govern/pkg/db/models/governance"
	"github.com/capsulenet/govern/pkg/db/postgres"
	"github.com/capsulenet/govern/pkg/governance"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// initProposals creates the proposals table. The partial index on
// (status, voting_ends_at) serves the sweeper's due-proposal query; rows with
// an unset voting_ends_at (drafts) never appear in it.
func (db *DB) initProposals(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS proposals (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			proposal_type TEXT NOT NULL,
			status TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}'::jsonb,
			proposer_id TEXT NOT NULL,
			voting_starts_at TIMESTAMPTZ,
			voting_ends_at TIMESTAMPTZ,
			quorum_percentage DOUBLE PRECISION NOT NULL DEFAULT 0.30,
			approval_threshold DOUBLE PRECISION NOT NULL DEFAULT 0.50,
			votes_for BIGINT NOT NULL DEFAULT 0,
			votes_against BIGINT NOT NULL DEFAULT 0,
			votes_abstain BIGINT NOT NULL DEFAULT 0,
			weight_for DOUBLE PRECISION NOT NULL DEFAULT 0,
			weight_against DOUBLE PRECISION NOT NULL DEFAULT 0,
			weight_abstain DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_eligible_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			ai_analysis TEXT NOT NULL DEFAULT '',
			executed_at TIMESTAMPTZ,
			execution_result TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_proposals_status_ends
			ON proposals(status, voting_ends_at)
			WHERE voting_ends_at IS NOT NULL;

		CREATE INDEX IF NOT EXISTS idx_proposals_status_created
			ON proposals(status, created_at DESC);
	`

	return db.Exec(ctx, query)
}

const proposalColumns = `
	id, title, description, proposal_type, status, payload, proposer_id,
	voting_starts_at, voting_ends_at, quorum_percentage, approval_threshold,
	votes_for, votes_against, votes_abstain,
	weight_for, weight_against, weight_abstain, total_eligible_weight,
	ai_analysis, executed_at, execution_result, created_at, updated_at
`

func scanProposal(row pgx.Row) (*govmodels.Proposal, error) {
	var p govmodels.Proposal
	var payload []byte
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Type, &p.Status, &payload, &p.ProposerID,
		&p.VotingStartsAt, &p.VotingEndsAt, &p.QuorumPercentage, &p.ApprovalThreshold,
		&p.VotesFor, &p.VotesAgainst, &p.VotesAbstain,
		&p.WeightFor, &p.WeightAgainst, &p.WeightAbstain, &p.TotalEligibleWeight,
		&p.AIAnalysis, &p.ExecutedAt, &p.ExecutionResult, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Payload = payload
	return &p, nil
}

// InsertProposal stores a new proposal row.
func (db *DB) InsertProposal(ctx context.Context, p *govmodels.Proposal) error {
	query := `
		INSERT INTO proposals (` + proposalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	err := db.Exec(ctx, query,
		p.ID, p.Title, p.Description, p.Type, p.Status, []byte(p.Payload), p.ProposerID,
		p.VotingStartsAt, p.VotingEndsAt, p.QuorumPercentage, p.ApprovalThreshold,
		p.VotesFor, p.VotesAgainst, p.VotesAbstain,
		p.WeightFor, p.WeightAgainst, p.WeightAbstain, p.TotalEligibleWeight,
		p.AIAnalysis, p.ExecutedAt, p.ExecutionResult, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("%w: proposal %s already exists", governance.ErrValidation, p.ID)
		}
		return storeErr("insert proposal", err)
	}

	return nil
}

// GetProposal retrieves a proposal by ID.
func (db *DB) GetProposal(ctx context.Context, id uuid.UUID) (*govmodels.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`

	p, err := scanProposal(db.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, governance.ErrProposalNotFound
		}
		return nil, storeErr("get proposal", err)
	}

	return p, nil
}

// GetProposalForUpdate retrieves a proposal with a row lock. Must be called
// inside InTx; concurrent lifecycle transitions on the same proposal
// serialize on the lock and the second sees the first's committed state.
func (db *DB) GetProposalForUpdate(ctx context.Context, id uuid.UUID) (*govmodels.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1 FOR UPDATE`

	p, err := scanProposal(db.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, governance.ErrProposalNotFound
		}
		return nil, storeErr("get proposal for update", err)
	}

	return p, nil
}

// UpdateProposal writes the proposal's mutable fields back.
func (db *DB) UpdateProposal(ctx context.Context, p *govmodels.Proposal) error {
	query := `
		UPDATE proposals SET
			title = $2, description = $3, proposal_type = $4, status = $5,
			payload = $6, voting_starts_at = $7, voting_ends_at = $8,
			quorum_percentage = $9, approval_threshold = $10,
			votes_for = $11, votes_against = $12, votes_abstain = $13,
			weight_for = $14, weight_against = $15, weight_abstain = $16,
			total_eligible_weight = $17, ai_analysis = $18,
			executed_at = $19, execution_result = $20, updated_at = $21
		WHERE id = $1
	`

	tag, err := db.GetExecutor(ctx).Exec(ctx, query,
		p.ID, p.Title, p.Description, p.Type, p.Status,
		[]byte(p.Payload), p.VotingStartsAt, p.VotingEndsAt,
		p.QuorumPercentage, p.ApprovalThreshold,
		p.VotesFor, p.VotesAgainst, p.VotesAbstain,
		p.WeightFor, p.WeightAgainst, p.WeightAbstain,
		p.TotalEligibleWeight, p.AIAnalysis,
		p.ExecutedAt, p.ExecutionResult, p.UpdatedAt,
	)
	if err != nil {
		return storeErr("update proposal", err)
	}
	if tag.RowsAffected() == 0 {
		return governance.ErrProposalNotFound
	}

	return nil
}

// ListProposals returns proposals newest-first, optionally filtered by status.
func (db *DB) ListProposals(ctx context.Context, f governance.ProposalFilter) ([]*govmodels.Proposal, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + proposalColumns + ` FROM proposals`
	args := []any{}
	if f.Status != nil {
		query += ` WHERE status = $1`
		args = append(args, *f.Status)
	}
	query += ` ORDER BY created_at DESC, id`
	args = append(args, limit, f.Offset)
	if f.Status != nil {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list proposals", err)
	}
	defer rows.Close()

	proposals := make([]*govmodels.Proposal, 0, limit)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, storeErr("scan proposal", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list proposals", err)
	}

	return proposals, nil
}

// ListDueProposals returns IDs of ACTIVE proposals whose voting window ended
// at or before asOf, oldest deadline first. Drafts never match: activation is
// the only writer of voting_ends_at and always sets it.
func (db *DB) ListDueProposals(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 256
	}

	query := `
		SELECT id FROM proposals
		WHERE status = $1 AND voting_ends_at IS NOT NULL AND voting_ends_at <= $2
		ORDER BY voting_ends_at
		LIMIT $3
	`

	rows, err := db.Query(ctx, query, govmodels.StatusActive, asOf, limit)
	if err != nil {
		return nil, storeErr("list due proposals", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan due proposal id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list due proposals", err)
	}

	return ids, nil
}
