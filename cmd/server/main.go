package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"attesto/internal/attestation"
	attestationmetrics "attesto/internal/attestation/metrics"
	"attesto/internal/audit"
	auditkafka "attesto/internal/audit/kafka"
	auditmemory "attesto/internal/audit/store/memory"
	auditpostgres "attesto/internal/audit/store/postgres"
	"attesto/internal/guard"
	"attesto/internal/jwtauth"
	"attesto/internal/platform/config"
	"attesto/internal/platform/httpserver"
	"attesto/internal/platform/logger"
	"attesto/internal/platform/metrics"
	platformredis "attesto/internal/platform/redis"
	"attesto/internal/policy"
	policystore "attesto/internal/policy/store"
	"attesto/internal/quorum"
	"attesto/internal/router"
	routermetrics "attesto/internal/router/metrics"
	httptransport "attesto/internal/transport/http"
	"attesto/internal/verification"
	verificationstore "attesto/internal/verification/store"
	"attesto/internal/zkverifier"
	"attesto/pkg/domain"
)

// EnsureTopic only creates missing topics; clusters provisioned out-of-band
// keep their own partition and replication settings.
const (
	auditTopicPartitions = 3
	auditTopicReplicas   = 1
)

// main wires the collaborators and keeps the lifecycle small. Business
// rules live in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres when a DSN is configured, Redis as the shared-state
	// alternative for verification records, in-memory otherwise.
	var db *sql.DB
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	owner, err := domain.ParseIdentity(cfg.Auth.Owner)
	if err != nil {
		return fmt.Errorf("owner identity: %w", err)
	}
	submitter, err := domain.ParseIdentity(cfg.Auth.Submitter)
	if err != nil {
		return fmt.Errorf("submitter identity: %w", err)
	}
	roles, err := guard.New(owner, submitter, guard.WithLogger(log))
	if err != nil {
		return err
	}

	var (
		auditStore audit.Store
		outbox     audit.OutboxSource
	)
	if db != nil {
		pg := auditpostgres.New(db)
		auditStore, outbox = pg, pg
	} else {
		auditStore = auditmemory.NewInMemoryStore()
	}
	publisher := audit.NewPublisher(auditStore, audit.WithLogger(log))

	var policyStore policy.Store = policystore.NewInMemory()
	if db != nil {
		policyStore = policystore.NewPostgres(db)
	}
	policies := policy.New(policyStore, roles,
		policy.WithLogger(log),
		policy.WithAuditPublisher(publisher),
	)

	manager, err := domain.ParseIdentity(cfg.Gateway.Identity)
	if err != nil {
		return fmt.Errorf("gateway identity: %w", err)
	}
	sources := verification.NewResolver()
	for _, raw := range cfg.Gateway.Sources {
		source, err := domain.ParseSourceRef(raw)
		if err != nil {
			return fmt.Errorf("source %q: %w", raw, err)
		}
		var store verification.Store
		switch {
		case db != nil:
			store = verificationstore.NewPostgres(db, source)
		case redisClient != nil:
			store = verificationstore.NewRedis(redisClient, source)
		default:
			store = verificationstore.NewInMemory()
		}
		sources.Register(verification.NewService(source, manager, store, verification.WithLogger(log)))
	}

	var registry quorum.Registry = noQuorum{}
	if len(cfg.Quorum.Operators) > 0 {
		operators, err := parseOperators(cfg.Quorum.Operators)
		if err != nil {
			return err
		}
		set, err := quorum.NewOperatorSet(operators, cfg.Quorum.Num, cfg.Quorum.Den)
		if err != nil {
			return fmt.Errorf("operator set: %w", err)
		}
		registry = quorum.NewBLSRegistry(set, quorum.WithLogger(log))
		log.Info("oracle quorum configured",
			"operators", set.Len(),
			"total_stake", set.TotalStake(),
			"quorum_stake", set.QuorumStake(),
		)
	} else {
		log.Warn("no oracle operators configured, attestation submissions will be rejected")
	}

	verifiers := zkverifier.NewRegistry()
	if err := registerVerifiers(verifiers, cfg.Verifiers.Keys); err != nil {
		return err
	}

	gateway, err := attestation.NewGateway(manager, registry, sources, roles, publisher,
		attestation.WithLogger(log),
		attestation.WithMetrics(attestationmetrics.New()),
	)
	if err != nil {
		return err
	}

	var checks router.Service
	switch cfg.Router.Strategy {
	case router.StrategyCached:
		checks = router.NewCached(policies, sources, verifiers, publisher,
			router.WithLogger(log), router.WithMetrics(routermetrics.New()))
	case router.StrategyFresh:
		checks = router.NewFresh(policies, registry, verifiers, publisher,
			router.WithLogger(log), router.WithMetrics(routermetrics.New()))
	default:
		return fmt.Errorf("unknown router strategy %q", cfg.Router.Strategy)
	}

	tokens := jwtauth.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	handler := httptransport.NewRouter(httptransport.Deps{
		Attestations:   httptransport.NewAttestationHandler(gateway, log),
		Eligibility:    httptransport.NewEligibilityHandler(checks, log),
		Admin:          httptransport.NewAdminHandler(policies, roles, log),
		Records:        httptransport.NewRecordsHandler(sources, publisher, log),
		TokenValidator: tokens,
		Logger:         log,
		Metrics:        metrics.New(),
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	srv := httpserver.New(cfg.Server.Addr, handler)

	g, ctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Seeds) > 0 && outbox != nil {
		sink, err := auditkafka.NewSink(cfg.Kafka.Seeds, cfg.Kafka.AuditTopic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer sink.Close()
		if err := sink.EnsureTopic(ctx, auditTopicPartitions, auditTopicReplicas); err != nil {
			return fmt.Errorf("ensure audit topic: %w", err)
		}
		relay := audit.NewWorker(outbox, sink,
			audit.WithPollInterval(cfg.Kafka.OutboxPollInterval),
			audit.WithWorkerLogger(log),
		)
		g.Go(func() error { return relay.Run(ctx) })
		log.Info("audit relay started", "topic", cfg.Kafka.AuditTopic)
	}

	g.Go(func() error {
		log.Info("server listening",
			"addr", cfg.Server.Addr,
			"strategy", cfg.Router.Strategy,
			"sources", cfg.Gateway.Sources,
			"verifiers", len(verifiers.Refs()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
