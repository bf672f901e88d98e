package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pgt-ticketing/internal/access"
	"pgt-ticketing/internal/api"
	"pgt-ticketing/internal/audit"
	"pgt-ticketing/internal/catalog"
	"pgt-ticketing/internal/common/aws"
	"pgt-ticketing/internal/common/camunda"
	"pgt-ticketing/internal/common/config"
	"pgt-ticketing/internal/common/database"
	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/common/observability"
	"pgt-ticketing/internal/common/validation"
	"pgt-ticketing/internal/issuance"
	"pgt-ticketing/internal/notify"
	"pgt-ticketing/internal/oracle"
	"pgt-ticketing/internal/solana"
	"pgt-ticketing/internal/tickets"
	"pgt-ticketing/internal/tickets/memstore"
	"pgt-ticketing/internal/tickets/pgstore"
	"pgt-ticketing/internal/tickets/redisstore"
	"pgt-ticketing/internal/tier"
	verifyholder "pgt-ticketing/internal/workers/access/verify-holder"
	claimticket "pgt-ticketing/internal/workers/tickets/claim-ticket"
)

// dependencies are the long-lived clients shared by the HTTP server and the
// job workers. Any of them may be nil when not configured.
type dependencies struct {
	postgres *database.PostgresClient
	redis    *database.RedisClient
	es       *database.ElasticsearchClient
	zeebe    *camunda.Client
	store    tickets.Store
	catalog  *catalog.Catalog
	ledger   *oracle.RPCLedger
}

func buildDependencies(ctx context.Context, cfg *config.Config, log logger.Logger) (*dependencies, error) {
	deps := &dependencies{}

	cat, err := catalog.Load(cfg)
	if err != nil {
		return nil, fmt.Errorf("load resource catalog: %w", err)
	}
	deps.catalog = cat
	log.Info("resource catalog loaded", map[string]interface{}{"resources": len(cat.IDs())})

	// Redis backs the redis store and sold-out alert de-duplication.
	if cfg.Tickets.Store == config.StoreRedis || (cfg.Notifications.Enabled && cfg.Database.Redis.Address != "") {
		if err := retryWithBackoff(func() error {
			client, err := database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err := client.Ping(ctx); err != nil {
				client.Close()
				return err
			}
			deps.redis = client
			return nil
		}, 5, 2*time.Second, log, "Redis connection"); err != nil {
			return nil, err
		}
		log.Info("connected to Redis", map[string]interface{}{"address": cfg.Database.Redis.Address})
	}

	switch cfg.Tickets.Store {
	case config.StorePostgres:
		if err := retryWithBackoff(func() error {
			client, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := client.Ping(ctx); err != nil {
				client.Close()
				return err
			}
			deps.postgres = client
			return nil
		}, 5, 2*time.Second, log, "PostgreSQL connection"); err != nil {
			return nil, err
		}
		store := pgstore.New(deps.postgres)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure ticket schema: %w", err)
		}
		deps.store = store
		log.Info("connected to PostgreSQL", map[string]interface{}{"host": cfg.Database.Postgres.Host})
	case config.StoreRedis:
		deps.store = redisstore.New(deps.redis.GetClient(), "")
	case config.StoreMemory:
		deps.store = memstore.New()
		log.Warn("using in-memory ticket store; claims are lost on restart", nil)
	case config.StoreNone:
		log.Warn("no ticket store configured; running degraded pass issuance", nil)
	}

	if cfg.Audit.Enabled {
		client, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx); err != nil {
			// audit is best effort; the gate keeps serving without it
			log.Warn("Elasticsearch not reachable at startup", map[string]interface{}{"error": err})
		}
		deps.es = client
	}

	if cfg.Camunda.Enabled {
		client, err := camunda.NewClient(ctx, cfg.Camunda, camunda.DefaultRetryConfig, log)
		if err != nil {
			return nil, err
		}
		deps.zeebe = client
	}

	return deps, nil
}

// Readiness returns a probe for every networked backend in use.
func (d *dependencies) Readiness() map[string]api.ReadinessCheck {
	checks := map[string]api.ReadinessCheck{}
	if d.ledger != nil {
		checks["oracle"] = d.ledger.Health
	}
	if d.postgres != nil {
		checks["postgres"] = d.postgres.Ping
	}
	if d.redis != nil {
		checks["redis"] = d.redis.Ping
	}
	if d.es != nil {
		checks["elasticsearch"] = d.es.Ping
	}
	if d.zeebe != nil {
		checks["zeebe"] = d.zeebe.HealthCheck
	}
	return checks
}

func (d *dependencies) Close() {
	if d.zeebe != nil {
		d.zeebe.Close()
	}
	if d.postgres != nil {
		d.postgres.Close()
	}
	if d.redis != nil {
		d.redis.Close()
	}
}

func buildGate(cfg *config.Config, deps *dependencies, log logger.Logger, obs *observability.Observability) (*access.Gate, error) {
	mint, err := solana.ParsePublicKey(cfg.Chain.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("chain.token_mint: %w", err)
	}
	tokenProgram := solana.TokenProgramID
	if cfg.Chain.TokenProgram != "" {
		if tokenProgram, err = solana.ParsePublicKey(cfg.Chain.TokenProgram); err != nil {
			return nil, fmt.Errorf("chain.token_program: %w", err)
		}
	}

	thresholds, err := tier.ParseThresholds(
		cfg.Access.Thresholds.Silver,
		cfg.Access.Thresholds.Gold,
		cfg.Access.Thresholds.Platinum,
	)
	if err != nil {
		return nil, err
	}
	minimum, err := decimal.NewFromString(cfg.Access.MinimumBalance)
	if err != nil {
		return nil, fmt.Errorf("access.minimum_balance: %w", err)
	}

	deps.ledger = oracle.NewRPCLedger(cfg.Chain.RPCURL, cfg.Chain.Commitment, tokenProgram, cfg.ChainTimeout())
	balances := oracle.New(deps.ledger, cfg.ChainTimeout(), log, obs)

	return access.NewGate(balances, access.Options{
		Mint:           mint,
		MinimumBalance: minimum,
		Thresholds:     thresholds,
		Resources:      deps.catalog,
	}, log, obs)
}

func buildIssuer(cfg *config.Config, deps *dependencies, log logger.Logger, obs *observability.Observability) issuance.Issuer {
	if deps.store == nil {
		return issuance.NewEphemeralIssuer(cfg.PassTTL(), cfg.Tickets.PassResourceTag, tickets.UTCClock, log)
	}

	allocator := tickets.NewAllocator(deps.store, log,
		tickets.WithRetryPolicy(tickets.RetryPolicy{
			MaxAttempts: cfg.Tickets.ClaimMaxAttempts,
			Backoff:     config.GetDuration(cfg.Tickets.ClaimRetryBackoff),
		}),
		tickets.WithObservability(obs),
	)

	var sink audit.Sink = audit.NopSink{}
	if deps.es != nil {
		sink = audit.NewElasticsearchSink(deps.es, cfg.Audit.Index, log)
	}

	return issuance.NewDurableIssuer(allocator, deps.catalog, sink, buildAlerter(cfg, deps, log), log)
}

func buildAlerter(cfg *config.Config, deps *dependencies, log logger.Logger) notify.Alerter {
	n := cfg.Notifications
	if !n.Enabled {
		return notify.NopAlerter{}
	}

	ctx := context.Background()
	var channels []notify.Channel
	if n.AWS.SNS.Enabled {
		client, err := aws.NewSNSClient(ctx, n.AWS.Region, n.AWS.SNS.TopicARN)
		if err != nil {
			log.Error("SNS channel disabled", map[string]interface{}{"error": err})
		} else {
			channels = append(channels, notify.NewSNSChannel(client))
		}
	}
	if n.AWS.SES.Enabled {
		client, err := aws.NewSESClient(ctx, n.AWS.Region, n.AWS.SES.FromEmail)
		if err != nil {
			log.Error("SES channel disabled", map[string]interface{}{"error": err})
		} else {
			channels = append(channels, notify.NewSESChannel(client, n.AWS.SES.To))
		}
	}

	var dedupe notify.Deduper
	if deps.redis != nil {
		dedupe = deps.redis
	}
	return notify.NewNotifier(log, dedupe, time.Duration(n.DedupTTL)*time.Second, channels...)
}

func startWorkers(
	cfg *config.Config,
	deps *dependencies,
	service *issuance.Service,
	validator *validation.Validator,
	log logger.Logger,
	obs *observability.Observability,
) []*camunda.Worker {
	if deps.zeebe == nil {
		return nil
	}

	type registration struct {
		taskType string
		build    func(wc config.WorkerConfig) camunda.JobHandler
	}
	registrations := []registration{
		{
			taskType: verifyholder.TaskType,
			build: func(wc config.WorkerConfig) camunda.JobHandler {
				return verifyholder.NewHandler(verifyholder.LoadConfig(wc), service, validator, obs, log)
			},
		},
		{
			taskType: claimticket.TaskType,
			build: func(wc config.WorkerConfig) camunda.JobHandler {
				return claimticket.NewHandler(claimticket.LoadConfig(wc), service, validator, obs, log)
			},
		},
	}

	var workers []*camunda.Worker
	var started []string
	for _, reg := range registrations {
		if !config.IsWorkerEnabled(cfg, reg.taskType) {
			log.Info("worker disabled", map[string]interface{}{"taskType": reg.taskType})
			continue
		}
		wc := config.GetWorkerConfig(cfg, reg.taskType)
		workers = append(workers, camunda.NewWorker(deps.zeebe.GetClient(), reg.taskType, wc, reg.build(wc), log))
		started = append(started, reg.taskType)
	}

	sort.Strings(started)
	log.Info("job workers started", map[string]interface{}{"workers": started})
	return workers
}
