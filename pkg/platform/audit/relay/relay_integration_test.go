//go:build integration

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "verihire/pkg/platform/audit"
	"verihire/pkg/platform/audit/store/postgres"
	"verihire/pkg/testutil/containers"
)

type RelayIntegrationSuite struct {
	suite.Suite
	store    *postgres.Store
	producer *kgo.Client
	broker   string
	topic    string
}

func TestRelayIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RelayIntegrationSuite))
}

func (s *RelayIntegrationSuite) SetupSuite() {
	pg := containers.GetManager().GetPostgres(s.T())
	s.broker = containers.GetManager().GetKafka(s.T()).Broker
	s.store = postgres.New(pg.DB)
	s.topic = "verihire.audit." + uuid.NewString()[:8]

	client, err := NewKafkaClient([]string{s.broker}, s.topic)
	s.Require().NoError(err)
	s.producer = client
}

func (s *RelayIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *RelayIntegrationSuite) TestEnsureTopicIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(EnsureTopic(ctx, s.producer, s.topic, 1))
	s.Require().NoError(EnsureTopic(ctx, s.producer, s.topic, 1))
}

func (s *RelayIntegrationSuite) TestRelaysOutboxToKafka() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(EnsureTopic(ctx, s.producer, s.topic, 1))

	candidate := "cand-" + uuid.NewString()[:8]
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		CandidateID: candidate,
		Action:      string(audit.EventResumeIngested),
		Timestamp:   time.Now(),
	}))

	relay := New(s.store, s.producer, s.topic)
	relayed := 0
	for {
		n, err := relay.RelayOnce(ctx)
		s.Require().NoError(err)
		if n == 0 {
			break
		}
		relayed += n
	}
	s.GreaterOrEqual(relayed, 1)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var found *kgo.Record
	for found == nil && ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		fetches.EachRecord(func(r *kgo.Record) {
			if string(r.Key) == candidate {
				found = r
			}
		})
	}
	s.Require().NotNil(found, "relayed record not consumed")
	s.Contains(string(found.Value), candidate)

	pending, err := s.store.FetchUnpublished(ctx, 1000)
	s.Require().NoError(err)
	for _, e := range pending {
		s.NotEqual(candidate, e.CandidateID)
	}
}
