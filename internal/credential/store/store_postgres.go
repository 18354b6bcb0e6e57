package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"verihire/internal/credential/models"
	"verihire/internal/platform/postgres"
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

const credentialColumns = `id, candidate_id, hash, score, verification_count, trust_level,
	experience_years, recipient, token_id, tx_hash, status, issued_at`

func (s *PostgresStore) FindByCandidate(ctx context.Context, candidateID domain.CandidateID) (*models.Credential, error) {
	var (
		c          models.Credential
		id         uuid.UUID
		candidate  string
		trustLevel string
		status     string
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+credentialColumns+` FROM credentials WHERE candidate_id = $1
	`, candidateID.String()).Scan(&id, &candidate, &c.Hash, &c.Score, &c.VerificationCount, &trustLevel,
		&c.ExperienceYears, &c.Recipient, &c.TokenID, &c.TxHash, &status, &c.IssuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	c.ID = domain.CredentialID(id)
	c.CandidateID = domain.CandidateID(candidate)
	c.TrustLevel = models.TrustLevel(trustLevel)
	c.Status = models.Status(status)
	return &c, nil
}

// Reserve inserts a pending row. The UNIQUE (candidate_id) constraint makes
// it the single winner across replicas; every other caller gets
// sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Reserve(ctx context.Context, c *models.Credential) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', '', $9, $10)
		ON CONFLICT (candidate_id) DO NOTHING
	`, uuid.UUID(c.ID), c.CandidateID.String(), c.Hash, c.Score, c.VerificationCount, string(c.TrustLevel),
		c.ExperienceYears, c.Recipient, string(models.StatusPending), c.IssuedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("reserve credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve credential: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

// Finalize stores the ledger receipt on the caller's pending reservation.
func (s *PostgresStore) Finalize(ctx context.Context, c *models.Credential) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE credentials SET token_id = $1, tx_hash = $2, status = $3
		WHERE id = $4 AND status = $5
	`, c.TokenID, c.TxHash, string(models.StatusIssued), uuid.UUID(c.ID), string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("finalize credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize credential: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Discard deletes the caller's pending reservation after a failed mint.
func (s *PostgresStore) Discard(ctx context.Context, id domain.CredentialID, candidateID domain.CandidateID) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		DELETE FROM credentials WHERE id = $1 AND candidate_id = $2 AND status = $3
	`, uuid.UUID(id), candidateID.String(), string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("discard credential reservation: %w", err)
	}
	return nil
}
