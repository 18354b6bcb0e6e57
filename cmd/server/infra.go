package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	candidateservice "verihire/internal/candidate/service"
	candidatestore "verihire/internal/candidate/store"
	"verihire/internal/credential/lock"
	credentialservice "verihire/internal/credential/service"
	credentialstore "verihire/internal/credential/store"
	"verihire/internal/platform/config"
	"verihire/internal/platform/metrics"
	"verihire/internal/platform/postgres"
	platformredis "verihire/internal/platform/redis"
	"verihire/internal/providers/identity"
	"verihire/internal/providers/ledger"
	"verihire/internal/providers/messaging"
	httptransport "verihire/internal/transport/http"
	trustservice "verihire/internal/trustscore/service"
	truststore "verihire/internal/trustscore/store"
	verificationservice "verihire/internal/verification/service"
	verificationstore "verihire/internal/verification/store"
	audit "verihire/pkg/platform/audit"
	"verihire/pkg/platform/audit/relay"
	auditmemory "verihire/pkg/platform/audit/store/memory"
	auditpostgres "verihire/pkg/platform/audit/store/postgres"
	txcontext "verihire/pkg/platform/tx"
)

// infra holds the stores and collaborators selected by configuration.
type infra struct {
	candidates     candidateservice.Store
	candidateTx    candidateservice.StoreTx
	verifications  verificationservice.Store
	verificationTx verificationservice.StoreTx
	scores         trustservice.Store
	credentials    credentialservice.Store
	audit          audit.Store
	outbox         relay.Source
	producer       *kgo.Client

	verifier  verificationservice.IdentityVerifier
	messenger verificationservice.Messenger
	ledger    credentialservice.Ledger
	locker    credentialservice.Locker

	health  []httptransport.HealthCheck
	closers []func()
}

func (i *infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
}

func newInfra(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics) (*infra, error) {
	i := &infra{}
	ok := false
	defer func() {
		if !ok {
			i.Close()
		}
	}()

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		i.closers = append(i.closers, func() { _ = db.Close() })
		if err := postgres.ApplySchema(ctx, db); err != nil {
			return nil, err
		}
		i.usePostgres(db)
		log.Info("using postgres stores")
	} else {
		i.useMemory()
		log.Warn("DATABASE_URL not set; using in-memory stores")
	}

	if err := i.useLocker(ctx, cfg.Redis, log); err != nil {
		return nil, err
	}
	if err := i.useProducer(ctx, cfg.Kafka, log); err != nil {
		return nil, err
	}
	if err := i.useCollaborators(ctx, cfg, log, m); err != nil {
		return nil, err
	}
	ok = true
	return i, nil
}

func (i *infra) usePostgres(db *sql.DB) {
	cstore := candidatestore.NewPostgres(db)
	vstore := verificationstore.NewPostgres(db)
	auditStore := auditpostgres.New(db)

	i.candidates = cstore
	i.candidateTx = txcontext.NewPostgres[candidateservice.Store](db, cstore)
	i.verifications = vstore
	i.verificationTx = txcontext.NewPostgres[verificationservice.Store](db, vstore)
	i.scores = truststore.NewPostgres(db)
	i.credentials = credentialstore.NewPostgres(db)
	i.audit = auditStore
	i.outbox = auditStore
	i.health = append(i.health, httptransport.HealthCheck{Name: "postgres", Check: db.PingContext})
}

func (i *infra) useMemory() {
	cstore := candidatestore.NewInMemory()
	vstore := verificationstore.NewInMemory()

	i.candidates = cstore
	i.candidateTx = txcontext.NewSharded[candidateservice.Store](cstore)
	i.verifications = vstore
	i.verificationTx = txcontext.NewSharded[verificationservice.Store](vstore)
	i.scores = truststore.NewInMemory()
	i.credentials = credentialstore.NewInMemory()
	i.audit = auditmemory.NewInMemoryStore()
}

func (i *infra) useLocker(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) error {
	client, err := platformredis.New(ctx, cfg)
	if err != nil {
		return err
	}
	if client == nil {
		log.Warn("REDIS_URL not set; credential issuance is serialized per process only")
		i.locker = lock.NewMemory()
		return nil
	}
	i.closers = append(i.closers, func() { _ = client.Close() })
	i.locker = lock.NewRedis(client.Client, "verihire:credential:")
	i.health = append(i.health, httptransport.HealthCheck{Name: "redis", Check: client.Health})
	return nil
}

func (i *infra) useProducer(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) error {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	if i.outbox == nil {
		log.Warn("KAFKA_BROKERS set without DATABASE_URL; audit relay disabled")
		return nil
	}
	client, err := relay.NewKafkaClient(cfg.Brokers, cfg.Topic)
	if err != nil {
		return err
	}
	i.closers = append(i.closers, client.Close)
	if err := relay.EnsureTopic(ctx, client, cfg.Topic, cfg.Partitions); err != nil {
		return err
	}
	i.producer = client
	i.health = append(i.health, httptransport.HealthCheck{Name: "kafka", Check: client.Ping})
	return nil
}

func (i *infra) useCollaborators(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics) error {
	if cfg.Identity.AppID != "" {
		i.verifier = identity.NewWorldID(cfg.Identity.BaseURL, cfg.Identity.AppID, cfg.Identity.Action, cfg.Identity.Timeout, m)
	} else {
		log.Warn("WORLD_ID_APP_ID not set; identity proofs are accepted without verification")
		i.verifier = identity.NewInsecure(log)
	}

	var sender messaging.Sender = messaging.NewLogSender(log)
	if cfg.Messaging.FromAddress != "" {
		ses, err := messaging.NewSES(ctx, cfg.Messaging.SESRegion, cfg.Messaging.FromAddress)
		if err != nil {
			return fmt.Errorf("configure ses: %w", err)
		}
		sender = ses
	} else {
		log.Warn("SES_FROM_ADDRESS not set; verification links are logged instead of emailed")
	}
	i.messenger = messaging.NewRateLimited(sender, cfg.Messaging.RatePerSecond, cfg.Messaging.Burst, cfg.Messaging.Timeout, m)

	if cfg.Ledger.URL != "" {
		i.ledger = ledger.NewHTTP(cfg.Ledger.URL, cfg.Ledger.APIKey, cfg.Ledger.Timeout, m)
	} else {
		log.Warn("LEDGER_URL not set; credentials are minted on an in-memory ledger")
		i.ledger = ledger.NewMemory()
	}
	return nil
}
