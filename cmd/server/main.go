package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	candidatehandler "verihire/internal/candidate/handler"
	candidateservice "verihire/internal/candidate/service"
	credentialhandler "verihire/internal/credential/handler"
	credentialservice "verihire/internal/credential/service"
	"verihire/internal/platform/config"
	"verihire/internal/platform/httpserver"
	"verihire/internal/platform/logger"
	"verihire/internal/platform/metrics"
	"verihire/internal/providers/reasoning"
	"verihire/internal/status"
	httptransport "verihire/internal/transport/http"
	"verihire/internal/trustscore/engine"
	trusthandler "verihire/internal/trustscore/handler"
	trustservice "verihire/internal/trustscore/service"
	verificationhandler "verihire/internal/verification/handler"
	verificationservice "verihire/internal/verification/service"
	"verihire/internal/verification/token"
	"verihire/pkg/platform/audit/publisher"
	"verihire/pkg/platform/audit/relay"
	"verihire/pkg/platform/circuit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, cfgErr := config.Load()
	log := logger.New(cfg.Server.LogLevel)
	if cfgErr != nil {
		log.Warn("some configuration values were ignored", "error", cfgErr)
	}
	if cfg.UsesDevSecrets() {
		log.Warn("using development signing keys; set REQUEST_TOKEN_SECRET and CREDENTIAL_HMAC_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

// run wires every dependency and blocks until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	infra, err := newInfra(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer infra.Close()

	auditor := publisher.NewPublisher(infra.audit, publisher.WithLogger(log))
	defer auditor.Close()

	candidates := candidateservice.New(infra.candidates, infra.candidateTx, infra.verifications,
		candidateservice.WithLogger(log),
		candidateservice.WithAuditPublisher(auditor),
		candidateservice.WithMetrics(m),
	)
	verifications := verificationservice.New(
		infra.verifications,
		infra.verificationTx,
		candidates,
		token.NewSigner(cfg.Token.Secret, cfg.Token.Issuer, cfg.Token.TTL),
		infra.verifier,
		infra.messenger,
		verificationservice.WithLogger(log),
		verificationservice.WithAuditPublisher(auditor),
		verificationservice.WithMetrics(m),
		verificationservice.WithPublicBaseURL(cfg.Server.PublicBaseURL),
	)

	reasoner := reasoning.NewClient(cfg.Reasoning.APIURL, cfg.Reasoning.APIKey, cfg.Reasoning.Model, cfg.Reasoning.Timeout, m)
	if !reasoner.Configured() {
		log.Warn("reasoning service not configured; trust scores use the deterministic fallback")
	}
	calculator := engine.New(reasoner,
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithBreaker(circuit.New("reasoning", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second))),
	)
	scores := trustservice.New(infra.scores, candidates, verifications, calculator,
		trustservice.WithLogger(log),
		trustservice.WithAuditPublisher(auditor),
		trustservice.WithMetrics(m),
	)
	credentials := credentialservice.New(infra.credentials, candidates, verifications, scores, infra.ledger,
		[]byte(cfg.Credential.HMACKey),
		credentialservice.WithLogger(log),
		credentialservice.WithAuditPublisher(auditor),
		credentialservice.WithMetrics(m),
		credentialservice.WithLocker(infra.locker),
		credentialservice.WithLockTTL(credentialservice.LockTTL(cfg.Reasoning.Timeout, cfg.Ledger.Timeout)),
		credentialservice.WithDefaultRecipient(cfg.Ledger.DefaultRecipient),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  m,
		Gatherer: reg,
		Handlers: []httptransport.Registrar{
			candidatehandler.New(candidates, log),
			verificationhandler.New(verifications, log),
			trusthandler.New(scores, log),
			credentialhandler.New(credentials, log),
			status.NewHandler(status.NewService(candidates, verifications, scores, credentials), log),
			httptransport.NewAuditHandler(auditor, log),
		},
		Health: infra.health,
	})

	scheduler := cron.New()
	if _, err := verifications.ScheduleSweep(scheduler, cfg.Sweep.Schedule); err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.RequestTimeout+cfg.Ledger.Timeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting verihire", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if infra.producer != nil {
		outbox := relay.New(infra.outbox, infra.producer, cfg.Kafka.Topic, relay.WithLogger(log))
		g.Go(func() error {
			if err := outbox.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit relay: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
