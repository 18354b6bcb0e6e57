package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "verihire/pkg/platform/audit"
	txcontext "verihire/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Appends join the transaction in ctx, so an event is persisted if and only
// if the state change it describes commits. The relay publishes rows to Kafka.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// OutboxEntry is an unpublished outbox row.
type OutboxEntry struct {
	ID          uuid.UUID
	CandidateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type outboxPayload struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Timestamp      string `json:"timestamp"`
	CandidateID    string `json:"candidate_id,omitempty"`
	VerificationID string `json:"verification_id,omitempty"`
	Action         string `json:"action"`
	Decision       string `json:"decision,omitempty"`
	Reason         string `json:"reason,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	Subject        string `json:"subject,omitempty"`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	payload, err := json.Marshal(outboxPayload{
		ID:             eventID.String(),
		Category:       string(category),
		Timestamp:      event.Timestamp.UTC().Format(time.RFC3339Nano),
		CandidateID:    event.CandidateID,
		VerificationID: event.VerificationID,
		Action:         event.Action,
		Decision:       event.Decision,
		Reason:         event.Reason,
		RequestID:      event.RequestID,
		Subject:        event.Subject,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, candidate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		eventID, event.CandidateID, event.Action, string(payload), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *Store) ListByCandidate(ctx context.Context, candidateID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM audit_outbox WHERE candidate_id = $1 ORDER BY created_at ASC
	`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var p outboxPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode audit payload: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, p.Timestamp)
		events = append(events, audit.Event{
			Category:       audit.EventCategory(p.Category),
			Timestamp:      ts,
			CandidateID:    p.CandidateID,
			VerificationID: p.VerificationID,
			Action:         p.Action,
			Decision:       p.Decision,
			Reason:         p.Reason,
			RequestID:      p.RequestID,
			Subject:        p.Subject,
		})
	}
	return events, rows.Err()
}

// FetchUnpublished returns up to limit rows not yet relayed, oldest first.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, candidate_id, event_type, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.CandidateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkPublished stamps published_at on the given rows.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_outbox SET published_at = NOW() WHERE id = ANY($1::uuid[])
	`, pq.Array(strIDs))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
