package governance

import (
	"context"

	govmodels "github.com/capsulenet/govern/pkg/db/models/governance"
	"github.com/capsulenet/govern/pkg/db/postgres"
	"github.com/capsulenet/govern/pkg/governance"
	"github.com/google/uuid"
)

// initVotes creates the vote ledger. The primary key on
// (proposal_id, voter_id) is the hard uniqueness constraint the revote
// semantics hang off: a concurrent duplicate cast cannot produce two rows.
func (db *DB) initVotes(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS votes (
			id UUID NOT NULL,
			proposal_id UUID NOT NULL REFERENCES proposals(id),
			voter_id TEXT NOT NULL,
			decision TEXT NOT NULL,
			weight DOUBLE PRECISION NOT NULL,
			reasoning TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (proposal_id, voter_id)
		);

		CREATE INDEX IF NOT EXISTS idx_votes_proposal_created
			ON votes(proposal_id, created_at);
	`

	return db.Exec(ctx, query)
}

const voteColumns = `id, proposal_id, voter_id, decision, weight, reasoning, created_at, updated_at`

// UpsertVote inserts a vote, or on conflict with an existing
// (proposal_id, voter_id) row updates decision, weight and reasoning in
// place (the revote path). created_at and the row's original id survive a
// revote; updated_at advances.
func (db *DB) UpsertVote(ctx context.Context, v *govmodels.Vote) (*govmodels.Vote, error) {
	query := `
		INSERT INTO votes (` + voteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (proposal_id, voter_id) DO UPDATE SET
			decision = EXCLUDED.decision,
			weight = EXCLUDED.weight,
			reasoning = EXCLUDED.reasoning,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + voteColumns

	row := db.QueryRow(ctx, query,
		v.ID, v.ProposalID, v.VoterID, v.Decision, v.Weight, v.Reasoning,
		v.CreatedAt, v.UpdatedAt,
	)

	var stored govmodels.Vote
	err := row.Scan(
		&stored.ID, &stored.ProposalID, &stored.VoterID, &stored.Decision,
		&stored.Weight, &stored.Reasoning, &stored.CreatedAt, &stored.UpdatedAt,
	)
	if err != nil {
		return nil, storeErr("upsert vote", err)
	}

	return &stored, nil
}

// GetVote returns the voter's vote on the proposal.
func (db *DB) GetVote(ctx context.Context, proposalID uuid.UUID, voterID string) (*govmodels.Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes WHERE proposal_id = $1 AND voter_id = $2`

	var v govmodels.Vote
	err := db.QueryRow(ctx, query, proposalID, voterID).Scan(
		&v.ID, &v.ProposalID, &v.VoterID, &v.Decision,
		&v.Weight, &v.Reasoning, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, governance.ErrVoteNotFound
		}
		return nil, storeErr("get vote", err)
	}

	return &v, nil
}

// ListVotes returns all votes on a proposal ordered by creation time.
func (db *DB) ListVotes(ctx context.Context, proposalID uuid.UUID) ([]*govmodels.Vote, error) {
	query := `
		SELECT ` + voteColumns + `
		FROM votes
		WHERE proposal_id = $1
		ORDER BY created_at, voter_id
	`

	rows, err := db.Query(ctx, query, proposalID)
	if err != nil {
		return nil, storeErr("list votes", err)
	}
	defer rows.Close()

	votes := make([]*govmodels.Vote, 0)
	for rows.Next() {
		var v govmodels.Vote
		err := rows.Scan(
			&v.ID, &v.ProposalID, &v.VoterID, &v.Decision,
			&v.Weight, &v.Reasoning, &v.CreatedAt, &v.UpdatedAt,
		)
		if err != nil {
			return nil, storeErr("scan vote", err)
		}
		votes = append(votes, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list votes", err)
	}

	return votes, nil
}

// TallyVotes recomputes the six-value aggregate from the vote rows. A pure
// function of the ledger's current state: grouping by decision, counting rows
// and summing weights. Never incremental, so a revote's previous contribution
// cannot linger.
func (db *DB) TallyVotes(ctx context.Context, proposalID uuid.UUID) (govmodels.Tally, error) {
	query := `
		SELECT decision, COUNT(*), COALESCE(SUM(weight), 0)
		FROM votes
		WHERE proposal_id = $1
		GROUP BY decision
	`

	rows, err := db.Query(ctx, query, proposalID)
	if err != nil {
		return govmodels.Tally{}, storeErr("tally votes", err)
	}
	defer rows.Close()

	var tally govmodels.Tally
	for rows.Next() {
		var decision govmodels.VoteDecision
		var count int64
		var weight float64
		if err := rows.Scan(&decision, &count, &weight); err != nil {
			return govmodels.Tally{}, storeErr("scan tally row", err)
		}

		switch decision {
		case govmodels.DecisionFor:
			tally.VotesFor = count
			tally.WeightFor = weight
		case govmodels.DecisionAgainst:
			tally.VotesAgainst = count
			tally.WeightAgainst = weight
		case govmodels.DecisionAbstain:
			tally.VotesAbstain = count
			tally.WeightAbstain = weight
		}
	}
	if err := rows.Err(); err != nil {
		return govmodels.Tally{}, storeErr("tally votes", err)
	}

	return tally, nil
}
