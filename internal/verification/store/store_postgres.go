package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"verihire/internal/platform/postgres"
	"verihire/internal/verification/models"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
	txcontext "verihire/pkg/platform/tx"
)

// PostgresStore persists verification state in PostgreSQL. Reservation and
// outcome inserts use ON CONFLICT DO NOTHING so a taken key is reported as
// sentinel.ErrAlreadyUsed without aborting the surrounding transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, candidate_id, entry_id, company, position, start_date, end_date, employer_email,
	token_hash, status, expires_at, created_at, sent_at, completed_at, expiry_notified_at,
	dispatch_attempts, delivery_id, dispatch_error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.VerificationRequest, error) {
	var (
		r           models.VerificationRequest
		id, entryID uuid.UUID
		candidateID string
		status      string
		sentAt      sql.NullTime
		completedAt sql.NullTime
		notifiedAt  sql.NullTime
	)
	err := row.Scan(&id, &candidateID, &entryID, &r.Company, &r.Position, &r.StartDate, &r.EndDate,
		&r.EmployerEmail, &r.TokenHash, &status, &r.ExpiresAt, &r.CreatedAt, &sentAt, &completedAt,
		&notifiedAt, &r.DispatchAttempts, &r.DeliveryID, &r.DispatchError)
	if err != nil {
		return nil, err
	}
	r.ID = domain.VerificationID(id)
	r.CandidateID = domain.CandidateID(candidateID)
	r.EntryID = domain.EntryID(entryID)
	r.Status = models.Status(status)
	r.SentAt = timePtr(sentAt)
	r.CompletedAt = timePtr(completedAt)
	r.ExpiryNotifiedAt = timePtr(notifiedAt)
	return &r, nil
}

func (s *PostgresStore) CreateRequest(ctx context.Context, r *models.VerificationRequest) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO verification_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, uuid.UUID(r.ID), r.CandidateID.String(), uuid.UUID(r.EntryID), r.Company, r.Position,
		r.StartDate, r.EndDate, r.EmployerEmail, r.TokenHash, string(r.Status), r.ExpiresAt,
		r.CreatedAt, r.SentAt, r.CompletedAt, r.ExpiryNotifiedAt, r.DispatchAttempts,
		r.DeliveryID, r.DispatchError)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create verification request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRequest(ctx context.Context, id domain.VerificationID) (*models.VerificationRequest, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM verification_requests WHERE id = $1`, uuid.UUID(id))
	r, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) UpdateRequest(ctx context.Context, r *models.VerificationRequest) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE verification_requests
		SET token_hash = $2, status = $3, expires_at = $4, sent_at = $5, completed_at = $6,
		    expiry_notified_at = $7, dispatch_attempts = $8, delivery_id = $9, dispatch_error = $10
		WHERE id = $1
	`, uuid.UUID(r.ID), r.TokenHash, string(r.Status), r.ExpiresAt, r.SentAt, r.CompletedAt,
		r.ExpiryNotifiedAt, r.DispatchAttempts, r.DeliveryID, r.DispatchError)
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	return expectOne(res)
}

func (s *PostgresStore) ListByCandidate(ctx context.Context, candidateID domain.CandidateID) ([]models.VerificationRequest, error) {
	return s.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM verification_requests
		WHERE candidate_id = $1
		ORDER BY created_at DESC
	`, candidateID.String())
}

func (s *PostgresStore) CountByEntry(ctx context.Context, candidateID domain.CandidateID, entryID domain.EntryID) (int, error) {
	var n int
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verification_requests WHERE candidate_id = $1 AND entry_id = $2`,
		candidateID.String(), uuid.UUID(entryID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count verification requests: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ReserveNullifier(ctx context.Context, r *models.Reservation) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO nullifier_reservations (candidate_id, nullifier, verification_id, reserved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, r.CandidateID.String(), r.Nullifier, uuid.UUID(r.VerificationID), r.ReservedAt)
	if err != nil {
		return fmt.Errorf("reserve nullifier: %w", err)
	}
	return insertedOrTaken(res)
}

func (s *PostgresStore) FindReservation(ctx context.Context, candidateID domain.CandidateID, nullifier string) (*models.Reservation, error) {
	var (
		r   models.Reservation
		vid uuid.UUID
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT verification_id, reserved_at FROM nullifier_reservations
		WHERE candidate_id = $1 AND nullifier = $2
	`, candidateID.String(), nullifier).Scan(&vid, &r.ReservedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	r.CandidateID = candidateID
	r.Nullifier = nullifier
	r.VerificationID = domain.VerificationID(vid)
	return &r, nil
}

func (s *PostgresStore) SaveOutcome(ctx context.Context, o *models.VerificationOutcome) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO verification_outcomes (id, verification_id, candidate_id, nullifier, verified, comments, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
	`, uuid.UUID(o.ID), uuid.UUID(o.VerificationID), o.CandidateID.String(), o.Nullifier,
		o.Verified, o.Comments, o.RecordedAt)
	if err != nil {
		return fmt.Errorf("save verification outcome: %w", err)
	}
	return insertedOrTaken(res)
}

const outcomeColumns = `id, verification_id, candidate_id, nullifier, verified, comments, recorded_at`

func scanOutcome(row rowScanner) (*models.VerificationOutcome, error) {
	var (
		o           models.VerificationOutcome
		id, vid     uuid.UUID
		candidateID string
	)
	if err := row.Scan(&id, &vid, &candidateID, &o.Nullifier, &o.Verified, &o.Comments, &o.RecordedAt); err != nil {
		return nil, err
	}
	o.ID = domain.OutcomeID(id)
	o.VerificationID = domain.VerificationID(vid)
	o.CandidateID = domain.CandidateID(candidateID)
	return &o, nil
}

func (s *PostgresStore) FindOutcomeByRequest(ctx context.Context, id domain.VerificationID) (*models.VerificationOutcome, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+outcomeColumns+` FROM verification_outcomes WHERE verification_id = $1`, uuid.UUID(id))
	o, err := scanOutcome(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification outcome: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) ListOutcomesByCandidate(ctx context.Context, candidateID domain.CandidateID) ([]models.VerificationOutcome, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM verification_outcomes WHERE candidate_id = $1 ORDER BY recorded_at`,
		candidateID.String())
	if err != nil {
		return nil, fmt.Errorf("list verification outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]models.VerificationOutcome, 0)
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification outcome: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListExpiredUnnotified(ctx context.Context, now time.Time, limit int) ([]models.VerificationRequest, error) {
	return s.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM verification_requests
		WHERE status = 'sent' AND expires_at <= $1 AND expiry_notified_at IS NULL
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
}

func (s *PostgresStore) MarkExpiryNotified(ctx context.Context, id domain.VerificationID, at time.Time) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx,
		`UPDATE verification_requests SET expiry_notified_at = $2 WHERE id = $1`, uuid.UUID(id), at)
	if err != nil {
		return fmt.Errorf("mark expiry notified: %w", err)
	}
	return expectOne(res)
}

func (s *PostgresStore) queryRequests(ctx context.Context, query string, args ...any) ([]models.VerificationRequest, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verification requests: %w", err)
	}
	defer rows.Close()

	out := make([]models.VerificationRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func insertedOrTaken(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
