package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"verihire/pkg/platform/audit/store/postgres"
)

type fakeSource struct {
	entries []postgres.OutboxEntry
	marked  []uuid.UUID
}

func (f *fakeSource) FetchUnpublished(_ context.Context, limit int) ([]postgres.OutboxEntry, error) {
	if len(f.entries) > limit {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeSource) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	f.marked = append(f.marked, ids...)
	return nil
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func entry(candidate string) postgres.OutboxEntry {
	return postgres.OutboxEntry{
		ID:          uuid.New(),
		CandidateID: candidate,
		EventType:   "verification_recorded",
		Payload:     []byte(`{"action":"verification_recorded"}`),
		CreatedAt:   time.Now(),
	}
}

func TestRelayOnce_PublishesAndMarks(t *testing.T) {
	src := &fakeSource{entries: []postgres.OutboxEntry{entry("a"), entry("b")}}
	prod := &fakeProducer{}
	r := New(src, prod, "verihire.audit")

	n, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, prod.records, 2)
	assert.Equal(t, "verihire.audit", prod.records[0].Topic)
	assert.Equal(t, []byte("a"), prod.records[0].Key)
	assert.ElementsMatch(t, []uuid.UUID{src.entries[0].ID, src.entries[1].ID}, src.marked)
}

func TestRelayOnce_ProduceFailureLeavesRowsUnmarked(t *testing.T) {
	src := &fakeSource{entries: []postgres.OutboxEntry{entry("a")}}
	prod := &fakeProducer{err: errors.New("broker down")}
	r := New(src, prod, "verihire.audit")

	_, err := r.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, src.marked)
}

func TestRelayOnce_RespectsBatchSize(t *testing.T) {
	src := &fakeSource{entries: []postgres.OutboxEntry{entry("a"), entry("b"), entry("c")}}
	prod := &fakeProducer{}
	r := New(src, prod, "t", WithBatchSize(2))

	n, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
