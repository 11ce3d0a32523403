package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"refsync/internal/admin"
	"refsync/internal/conceptcache"
	"refsync/internal/notify"
	"refsync/internal/platform/config"
	"refsync/internal/platform/httpserver"
	"refsync/internal/platform/kafka"
	"refsync/internal/platform/logger"
	"refsync/internal/platform/metrics"
	"refsync/internal/platform/postgres"
	platformredis "refsync/internal/platform/redis"
	"refsync/internal/reconcile/catalog"
	"refsync/internal/reconcile/fetcher"
	identityrec "refsync/internal/reconcile/identity"
	"refsync/internal/reconcile/orchestrator"
	"refsync/internal/reconcile/orgedition"
	"refsync/internal/reconcile/ports"
	"refsync/internal/reconcile/refset"
	"refsync/internal/reconcile/stats"
	"refsync/internal/reconcile/store"
	"refsync/internal/remote/identity"
	"refsync/internal/remote/terminology"
	"refsync/pkg/platform/audit"
	"refsync/pkg/platform/audit/publisher"
	auditmemory "refsync/pkg/platform/audit/store/memory"
	auditpostgres "refsync/pkg/platform/audit/store/postgres"
)

const conceptCacheSize = 50_000

// main wires dependencies and either runs one reconciliation or serves the
// admin surface while running on a schedule.
func main() {
	if err := run(); err != nil {
		slog.Error("refsync exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	st, auditStore, closeStore, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	pub := publisher.NewPublisher(auditStore, publisher.WithAsyncBuffer(256), publisher.WithLogger(log))
	defer pub.Close()

	cache, closeCache, err := openConceptCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	term, err := terminology.New(cfg.Terminology.URL,
		terminology.WithTimeout(cfg.Terminology.Timeout),
		terminology.WithMaxRetries(cfg.Terminology.MaxRetries),
		terminology.WithLogger(log),
		terminology.WithObserver(m),
	)
	if err != nil {
		return err
	}
	idp, err := identity.New(cfg.Identity.URL, cfg.Identity.Application, cfg.Identity.Password,
		identity.WithLogger(log),
		identity.WithObserver(m),
	)
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	remote, err := fetcher.New(term, idp, fetcher.WithLogger(log), fetcher.WithConceptCache(cache))
	if err != nil {
		return err
	}

	counters := stats.New()
	orgs, err := orgedition.New(st, counters, orgedition.WithLogger(log), orgedition.WithAuditPublisher(pub))
	if err != nil {
		return err
	}
	members, err := identityrec.New(st, remote, counters,
		identityrec.WithLogger(log),
		identityrec.WithAuditPublisher(pub),
		identityrec.WithCatalog(cat),
	)
	if err != nil {
		return err
	}
	refsets, err := refset.New(st, remote, counters,
		refset.WithLogger(log),
		refset.WithAuditPublisher(pub),
		refset.WithCatalog(cat),
	)
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	orch, err := orchestrator.New(remote, orgs, members, refsets, counters, cfg.Mode,
		orchestrator.WithLogger(log),
		orchestrator.WithAuditPublisher(pub),
		orchestrator.WithNotifier(notifier),
		orchestrator.WithRunObserver(m),
	)
	if err != nil {
		return err
	}

	if cfg.Interval == 0 {
		_, err := orch.Run(ctx)
		return err
	}

	srv := httpserver.New(cfg.AdminAddr, admin.New(ctx, orch, admin.WithLogger(log)).Router())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Serve(gctx, srv, log)
	})
	g.Go(func() error {
		schedule(gctx, orch, cfg.Interval, log)
		return nil
	})
	return g.Wait()
}

// schedule runs immediately and then every interval until ctx is done.
func schedule(ctx context.Context, orch *orchestrator.Orchestrator, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := orch.Run(ctx); err != nil {
			if errors.Is(err, orchestrator.ErrRunInProgress) {
				log.InfoContext(ctx, "scheduled sync skipped, a run is in progress")
			} else {
				log.ErrorContext(ctx, "scheduled sync failed", "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func openStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (ports.Store, audit.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no database configured, state is kept in memory")
		return store.NewInMemory(), auditmemory.NewInMemoryStore(), func() {}, nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	pg := store.NewPostgres(db)
	if err := pg.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return pg, auditpostgres.New(db), func() { _ = db.Close() }, nil
}

func openConceptCache(ctx context.Context, cfg config.Config, log *slog.Logger) (ports.ConceptCache, func(), error) {
	client, err := platformredis.Open(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		lru, err := conceptcache.NewLRU(conceptCacheSize)
		if err != nil {
			return nil, nil, err
		}
		return lru, func() {}, nil
	}
	cache := conceptcache.NewRedis(client, conceptcache.WithTTL(cfg.Redis.TTL), conceptcache.WithLogger(log))
	return cache, func() { _ = client.Close() }, nil
}

func buildNotifier(ctx context.Context, cfg config.Config, log *slog.Logger) (ports.Notifier, func(), error) {
	var out notify.Fanout
	closeFn := func() {}

	if cfg.Mail.SMTPAddr != "" {
		mail, err := notify.NewMail(cfg.Mail.SMTPAddr, cfg.Mail.From, cfg.Mail.To)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, mail)
	}

	client, err := kafka.Open(ctx, cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		closeFn = client.Close
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic); err != nil {
			client.Close()
			return nil, nil, err
		}
		k, err := notify.NewKafka(client, cfg.Kafka.Topic)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		out = append(out, k)
	}

	if len(out) == 0 {
		return notify.NewLog(log), closeFn, nil
	}
	return out, closeFn, nil
}
