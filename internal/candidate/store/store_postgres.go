package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"verihire/internal/candidate/models"
	"verihire/internal/platform/postgres"
	"verihire/pkg/domain"
	"verihire/pkg/platform/sentinel"
	txcontext "verihire/pkg/platform/tx"
)

// PostgresStore persists candidates in PostgreSQL. Every method joins the
// transaction carried in ctx, if any.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const candidateColumns = `id, name, email, phone, skills, github_url, linkedin_url, presence, created_at, updated_at`

func (s *PostgresStore) FindCandidate(ctx context.Context, id domain.CandidateID) (*models.Candidate, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id.String())

	var (
		c        models.Candidate
		rawID    string
		skills   pq.StringArray
		presence []byte
	)
	err := row.Scan(&rawID, &c.Name, &c.Email, &c.Phone, &skills,
		&c.Profiles.GitHubURL, &c.Profiles.LinkedInURL, &presence, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find candidate: %w", err)
	}
	c.ID = domain.CandidateID(rawID)
	c.Skills = []string(skills)
	if c.Skills == nil {
		c.Skills = []string{}
	}
	if len(presence) > 0 {
		var p models.PresenceSignals
		if err := json.Unmarshal(presence, &p); err != nil {
			return nil, fmt.Errorf("decode presence: %w", err)
		}
		c.Presence = &p
	}
	return &c, nil
}

func (s *PostgresStore) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	presence, err := encodePresence(c.Presence)
	if err != nil {
		return err
	}
	_, err = txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO candidates (`+candidateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID.String(), c.Name, c.Email, c.Phone, pq.Array(nonNil(c.Skills)),
		c.Profiles.GitHubURL, c.Profiles.LinkedInURL, presence, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create candidate: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCandidate(ctx context.Context, c *models.Candidate) error {
	presence, err := encodePresence(c.Presence)
	if err != nil {
		return err
	}
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE candidates
		SET name = $2, email = $3, phone = $4, skills = $5, github_url = $6,
		    linkedin_url = $7, presence = $8, updated_at = $9
		WHERE id = $1
	`, c.ID.String(), c.Name, c.Email, c.Phone, pq.Array(nonNil(c.Skills)),
		c.Profiles.GitHubURL, c.Profiles.LinkedInURL, presence, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	return expectOne(res)
}

const entryColumns = `id, candidate_id, ordinal, company, position, start_date, end_date, description, location,
	placeholder, superseded_at, superseded_by, frozen_at, created_at, updated_at`

func (s *PostgresStore) ListWorkHistory(ctx context.Context, id domain.CandidateID) ([]models.WorkHistoryEntry, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM work_history_entries
		WHERE candidate_id = $1 AND superseded_at IS NULL
		ORDER BY ordinal, created_at
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list work history: %w", err)
	}
	defer rows.Close()

	out := make([]models.WorkHistoryEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindEntry(ctx context.Context, id domain.CandidateID, entryID domain.EntryID) (*models.WorkHistoryEntry, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM work_history_entries
		WHERE candidate_id = $1 AND id = $2
	`, id.String(), uuid.UUID(entryID))
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// FindEntryForUpdate reads the entry and, inside a transaction, row-locks it
// until commit so freezing and editing the same entry serialize.
func (s *PostgresStore) FindEntryForUpdate(ctx context.Context, id domain.CandidateID, entryID domain.EntryID) (*models.WorkHistoryEntry, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM work_history_entries
		WHERE candidate_id = $1 AND id = $2
		FOR UPDATE
	`, id.String(), uuid.UUID(entryID))
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *PostgresStore) AddEntries(ctx context.Context, entries []models.WorkHistoryEntry) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	for _, e := range entries {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO work_history_entries (`+entryColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`, uuid.UUID(e.ID), e.CandidateID.String(), e.Ordinal, e.Company, e.Position, e.StartDate, e.EndDate,
			e.Description, e.Location, e.Placeholder, e.SupersededAt, nullableEntryID(e.SupersededBy), e.FrozenAt,
			e.CreatedAt, e.UpdatedAt)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrAlreadyUsed
			}
			return fmt.Errorf("insert work history entry: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpdateEntry(ctx context.Context, e *models.WorkHistoryEntry) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE work_history_entries
		SET company = $2, position = $3, start_date = $4, end_date = $5, description = $6, location = $7,
		    placeholder = $8, superseded_at = $9, superseded_by = $10, frozen_at = $11, updated_at = $12
		WHERE id = $1
	`, uuid.UUID(e.ID), e.Company, e.Position, e.StartDate, e.EndDate, e.Description, e.Location,
		e.Placeholder, e.SupersededAt, nullableEntryID(e.SupersededBy), e.FrozenAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update work history entry: %w", err)
	}
	return expectOne(res)
}

func (s *PostgresStore) SupersedeActive(ctx context.Context, id domain.CandidateID, at time.Time) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE work_history_entries
		SET superseded_at = $2, updated_at = $2
		WHERE candidate_id = $1 AND superseded_at IS NULL
	`, id.String(), at)
	if err != nil {
		return fmt.Errorf("supersede work history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceEducation(ctx context.Context, id domain.CandidateID, education []models.Education) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	if _, err := exec.ExecContext(ctx, `DELETE FROM education_entries WHERE candidate_id = $1`, id.String()); err != nil {
		return fmt.Errorf("clear education: %w", err)
	}
	for _, e := range education {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO education_entries (id, candidate_id, ordinal, institution, degree, field, year)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, e.ID, id.String(), e.Ordinal, e.Institution, e.Degree, e.Field, e.Year)
		if err != nil {
			return fmt.Errorf("insert education: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListEducation(ctx context.Context, id domain.CandidateID) ([]models.Education, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, candidate_id, ordinal, institution, degree, field, year
		FROM education_entries
		WHERE candidate_id = $1
		ORDER BY ordinal
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list education: %w", err)
	}
	defer rows.Close()

	out := make([]models.Education, 0)
	for rows.Next() {
		var (
			e     models.Education
			rawID string
		)
		if err := rows.Scan(&e.ID, &rawID, &e.Ordinal, &e.Institution, &e.Degree, &e.Field, &e.Year); err != nil {
			return nil, fmt.Errorf("scan education: %w", err)
		}
		e.CandidateID = domain.CandidateID(rawID)
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.WorkHistoryEntry, error) {
	var (
		e            models.WorkHistoryEntry
		id           uuid.UUID
		candidateID  string
		supersededAt sql.NullTime
		supersededBy uuid.NullUUID
		frozenAt     sql.NullTime
	)
	err := row.Scan(&id, &candidateID, &e.Ordinal, &e.Company, &e.Position, &e.StartDate, &e.EndDate,
		&e.Description, &e.Location, &e.Placeholder, &supersededAt, &supersededBy, &frozenAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan work history entry: %w", err)
	}
	e.ID = domain.EntryID(id)
	e.CandidateID = domain.CandidateID(candidateID)
	if supersededAt.Valid {
		t := supersededAt.Time
		e.SupersededAt = &t
	}
	if supersededBy.Valid {
		by := domain.EntryID(supersededBy.UUID)
		e.SupersededBy = &by
	}
	if frozenAt.Valid {
		t := frozenAt.Time
		e.FrozenAt = &t
	}
	return &e, nil
}

func nullableEntryID(id *domain.EntryID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*id), Valid: true}
}

// encodePresence returns a JSON string or nil, never []byte, since lib/pq
// would send bytes in bytea encoding.
func encodePresence(p *models.PresenceSignals) (any, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode presence: %w", err)
	}
	return string(raw), nil
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

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
