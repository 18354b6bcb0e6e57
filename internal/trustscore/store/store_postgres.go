package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"verihire/internal/trustscore/models"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
	txcontext "verihire/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const scoreColumns = `id, candidate_id, score, breakdown, source, analysis, extras, computed_at`

func (s *PostgresStore) Save(ctx context.Context, score *models.TrustScore) error {
	breakdown, err := json.Marshal(score.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	extras, err := json.Marshal(score.Extras)
	if err != nil {
		return fmt.Errorf("marshal extras: %w", err)
	}
	_, err = txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO trust_scores (`+scoreColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(score.ID), score.CandidateID.String(), score.Score, string(breakdown),
		string(score.Source), score.Analysis, string(extras), score.ComputedAt)
	if err != nil {
		return fmt.Errorf("insert trust score: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, candidateID domain.CandidateID) (*models.TrustScore, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+scoreColumns+` FROM trust_scores
		WHERE candidate_id = $1
		ORDER BY computed_at DESC
		LIMIT 1
	`, candidateID.String())
	score, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest trust score: %w", err)
	}
	return score, nil
}

func (s *PostgresStore) ListByCandidate(ctx context.Context, candidateID domain.CandidateID) ([]models.TrustScore, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT `+scoreColumns+` FROM trust_scores
		WHERE candidate_id = $1
		ORDER BY computed_at DESC
	`, candidateID.String())
	if err != nil {
		return nil, fmt.Errorf("list trust scores: %w", err)
	}
	defer rows.Close()

	var out []models.TrustScore
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trust score: %w", err)
		}
		out = append(out, *score)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*models.TrustScore, error) {
	var (
		score       models.TrustScore
		id          uuid.UUID
		candidateID string
		source      string
		breakdown   []byte
		extras      []byte
	)
	err := row.Scan(&id, &candidateID, &score.Score, &breakdown, &source, &score.Analysis, &extras, &score.ComputedAt)
	if err != nil {
		return nil, err
	}
	score.ID = domain.ScoreID(id)
	score.CandidateID = domain.CandidateID(candidateID)
	score.Source = models.Source(source)
	if err := json.Unmarshal(breakdown, &score.Breakdown); err != nil {
		return nil, fmt.Errorf("decode breakdown: %w", err)
	}
	if len(extras) > 0 {
		if err := json.Unmarshal(extras, &score.Extras); err != nil {
			return nil, fmt.Errorf("decode extras: %w", err)
		}
	}
	return &score, nil
}
