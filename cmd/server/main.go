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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	assethandler "tessera/internal/asset/handler"
	assetservice "tessera/internal/asset/service"
	compliancecache "tessera/internal/compliance/cache"
	compliancehandler "tessera/internal/compliance/handler"
	complianceservice "tessera/internal/compliance/service"
	disthandler "tessera/internal/distribution/handler"
	distmetrics "tessera/internal/distribution/metrics"
	distmodels "tessera/internal/distribution/models"
	distservice "tessera/internal/distribution/service"
	jwttoken "tessera/internal/jwt_token"
	ledgerhandler "tessera/internal/ledger/handler"
	ledgermetrics "tessera/internal/ledger/metrics"
	ledgerservice "tessera/internal/ledger/service"
	"tessera/internal/outbox"
	"tessera/internal/payout"
	"tessera/internal/platform/config"
	"tessera/internal/platform/httpserver"
	"tessera/internal/platform/kafka"
	"tessera/internal/platform/logger"
	"tessera/internal/platform/metrics"
	"tessera/internal/platform/otel"
	"tessera/internal/platform/redis"
	ratelimitmetrics "tessera/internal/ratelimit/metrics"
	ratelimit "tessera/internal/ratelimit/middleware"
	"tessera/internal/ratelimit/store/bucket"
	settingshandler "tessera/internal/settings/handler"
	settingsservice "tessera/internal/settings/service"
	"tessera/internal/stats"
	httptransport "tessera/internal/transport/http"
	"tessera/pkg/domain"
	"tessera/pkg/platform/audit/publisher"
	"tessera/pkg/platform/circuit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tessera: %v\n", err)
		os.Exit(1)
	}
}

// run wires dependencies explicitly and blocks until ctx is cancelled or a
// component fails.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	operator, err := domain.ParsePartyID(cfg.Platform.OperatorID)
	if err != nil {
		return fmt.Errorf("PLATFORM_OPERATOR_ID: %w", err)
	}
	mode, err := distmodels.ParseDenominatorMode(cfg.Platform.DenominatorMode)
	if err != nil {
		return err
	}

	shutdownTracing, err := otel.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st, err := openStores(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn("store close failed", "error", err)
		}
	}()

	complianceOpts := []complianceservice.Option{
		complianceservice.WithBreaker(circuit.New("compliance-store")),
	}
	var window ratelimit.Limiter = bucket.New()
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		complianceOpts = append(complianceOpts,
			complianceservice.WithCache(compliancecache.NewRedis(rdb.Client, cfg.Platform.ComplianceCacheTTL)))
		window = bucket.NewRedis(rdb.Client)
		st.checks["redis"] = rdb.Health
	}
	limiter := ratelimit.New(window, ratelimit.Limits{
		Read:   cfg.RateLimit.Read,
		Write:  cfg.RateLimit.Write,
		Window: cfg.RateLimit.Window,
	}, log,
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		ratelimit.WithMetrics(ratelimitmetrics.New(reg)),
	)

	events, err := eventPublisher(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	if p, ok := events.(*kafka.Producer); ok {
		defer p.Close()
		st.checks["kafka"] = p.Health
	}

	auditPublisher := publisher.New(st.audit, publisher.WithLogger(log))

	settings, err := settingsservice.New(st.settings, operator,
		settingsservice.WithLogger(log),
		settingsservice.WithAuditPublisher(auditPublisher),
		settingsservice.WithTxRunner(st.runner),
		settingsservice.WithDefaultFees(cfg.Platform.PlatformFeeBP, cfg.Platform.ManagerFeeBP),
	)
	if err != nil {
		return err
	}
	compliance := complianceservice.New(st.compliance, operator, append(complianceOpts,
		complianceservice.WithLogger(log),
		complianceservice.WithAuditPublisher(auditPublisher),
		complianceservice.WithTxRunner(st.runner),
	)...)
	assets := assetservice.New(st.assets, operator,
		assetservice.WithLogger(log),
		assetservice.WithAuditPublisher(auditPublisher),
		assetservice.WithTxRunner(st.runner),
	)
	journal := payout.NewJournal(st.payouts, st.journal)
	ledger := ledgerservice.New(st.ledger, compliance, assets, journal, operator,
		ledgerservice.WithLogger(log),
		ledgerservice.WithAuditPublisher(auditPublisher),
		ledgerservice.WithMetrics(ledgermetrics.New(reg)),
		ledgerservice.WithTxRunner(st.runner),
		ledgerservice.WithPauseGuard(settings),
	)
	distributions := distservice.New(st.distributions, ledger, assets, settings, journal, operator,
		distservice.WithLogger(log),
		distservice.WithAuditPublisher(auditPublisher),
		distservice.WithMetrics(distmetrics.New(reg)),
		distservice.WithTxRunner(st.runner),
		distservice.WithPauseGuard(settings),
		distservice.WithDenominatorMode(mode),
		distservice.WithMaxBatchSize(cfg.Platform.MaxBatchSize),
	)

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		Validator:      jwttoken.NewJWTServiceAdapter(jwt),
		AdminTokenHash: cfg.Server.AdminTokenHash,
		Operator:       operator,
		Checks:         st.checks,
		RateLimit:      limiter.Handler,
		Modules: []any{
			assethandler.New(assets, log),
			ledgerhandler.New(ledger, log),
			disthandler.New(distributions, log),
			compliancehandler.New(compliance, log),
			settingshandler.New(settings, log),
			stats.NewHandler(st.stats, log),
		},
	})
	if cfg.Server.AdminTokenHash == "" {
		log.Warn("ADMIN_TOKEN_HASH not set, admin routes are disabled")
	}

	relay := outbox.NewRelay(st.outbox, events,
		outbox.WithLogger(log),
		outbox.WithInterval(cfg.Outbox.PollInterval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithRegisterer(reg),
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting tessera", "addr", cfg.Server.Addr, "denominator_mode", mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// eventPublisher returns the Kafka producer when brokers are configured and
// a log publisher otherwise.
func eventPublisher(ctx context.Context, cfg config.Kafka, log *slog.Logger) (outbox.Publisher, error) {
	producer, err := kafka.NewProducer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if producer == nil {
		log.Warn("KAFKA_BROKERS not set, outbox events go to the log")
		return outbox.NewLogPublisher(log), nil
	}
	if err := producer.EnsureTopic(ctx, cfg.Partitions, cfg.ReplicationFactor); err != nil {
		producer.Close()
		return nil, err
	}
	return producer, nil
}
