package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"triage_server/adapter/out/graph"
	"triage_server/adapter/out/messaging"
	"triage_server/adapter/out/mongodb"
	"triage_server/adapter/out/persistence"
	"triage_server/adapter/out/provider/gmail"
	"triage_server/config"
	"triage_server/core/agent/llm"
	"triage_server/core/port/out"
	"triage_server/core/service/auth"
	"triage_server/core/service/classification"
	"triage_server/core/service/dashboard"
	"triage_server/core/service/roster"
	"triage_server/core/service/triage"
	"triage_server/infra/database"
	"triage_server/pkg/cache"
	"triage_server/pkg/crypto"
	"triage_server/pkg/logger"
	"triage_server/pkg/ratelimit"
	"triage_server/pkg/resilience"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	oauthStateTTL   = 10 * time.Minute
	connectTimeout  = 15 * time.Second
	archiveRetained = 90 * 24 * time.Hour
)

// Dependencies is built once per process. API and worker share it so every
// caller goes through the same classification engine and rate gate.
type Dependencies struct {
	Config *config.Config
	Log    *logger.Logger
	ZLog   zerolog.Logger

	Postgres *database.Postgres
	Redis    *redis.Client
	Mongo    *mongo.Client
	Neo4j    neo4j.DriverWithContext

	// Repositories
	Classifications *persistence.ClassificationAdapter
	Reviews         *persistence.ReviewQueueAdapter
	Team            *persistence.TeamMemberAdapter
	Tokens          *persistence.TokenAdapter

	// Providers
	Gmail *gmail.Gateway

	// Services
	Engine      *classification.Engine
	Roster      *roster.Service
	Triage      *triage.Service
	Dashboard   *dashboard.Service
	MailboxAuth *auth.Service
}

func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	log := logger.Default()
	deps := &Dependencies{
		Config: cfg,
		Log:    log,
		ZLog: zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerologLevel(cfg.LogLevel)).
			With().Timestamp().Str("service", "triage").Logger(),
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	// PostgreSQL
	pg, err := database.NewPostgres(connectCtx, cfg.DatabaseURL, database.DefaultPostgresConfig())
	if err != nil {
		return fail(err)
	}
	deps.Postgres = pg
	closers = append(closers, func() {
		log.WithField("pool", pg.Stats()).Info("closing postgres")
		pg.Close()
	})
	if err := persistence.Migrate(connectCtx, pg.DB); err != nil {
		return fail(err)
	}
	log.WithField("max_conns", pg.Stats().MaxConns).Info("postgres connected")

	// Redis (optional)
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(connectCtx, cfg.RedisURL, database.DefaultRedisConfig())
		if err != nil {
			log.WithError(err).Warn("redis unavailable, using in-memory oauth state and no stats cache")
		} else {
			deps.Redis = rdb
			closers = append(closers, func() { rdb.Close() })
			log.Info("redis connected")
		}
	}

	// MongoDB (optional body archive)
	var archive out.BodyArchive
	if cfg.MongoDBURL != "" {
		client, err := mongodb.NewClient(connectCtx, cfg.MongoDBURL)
		if err != nil {
			log.WithError(err).Warn("mongodb unavailable, body archive disabled")
		} else {
			deps.Mongo = client
			closers = append(closers, func() {
				dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer dcancel()
				client.Disconnect(dctx)
			})
			ba := mongodb.NewBodyArchive(client.Database(cfg.MongoDBName), archiveRetained)
			if err := ba.EnsureIndexes(connectCtx); err != nil {
				log.WithError(err).Warn("failed to ensure archive indexes")
			}
			archive = ba
			log.Info("mongodb connected")
		}
	}

	// Neo4j (optional routing graph)
	var routing out.RoutingGraph
	if cfg.Neo4jURL != "" {
		driver, err := graph.NewDriver(connectCtx, cfg.Neo4jURL, cfg.Neo4jUsername, cfg.Neo4jPassword)
		if err != nil {
			log.WithError(err).Warn("neo4j unavailable, routing graph disabled")
		} else {
			deps.Neo4j = driver
			closers = append(closers, func() {
				dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer dcancel()
				driver.Close(dctx)
			})
			ra := graph.NewRoutingAdapter(driver, "")
			if err := ra.EnsureIndexes(connectCtx); err != nil {
				log.WithError(err).Warn("failed to ensure graph constraints")
			}
			routing = ra
			log.Info("neo4j connected")
		}
	}

	// Repositories
	cipher, err := crypto.NewTokenCipher(cfg.EncryptionKey)
	if err != nil {
		return fail(fmt.Errorf("failed to init token cipher: %w", err))
	}
	if cipher == nil {
		log.Warn("ENCRYPTION_KEY not set, oauth tokens are stored unsealed")
	}
	deps.Classifications = persistence.NewClassificationAdapter(pg.DB)
	deps.Reviews = persistence.NewReviewQueueAdapter(pg.DB)
	deps.Team = persistence.NewTeamMemberAdapter(pg.DB)
	deps.Tokens = persistence.NewTokenAdapter(pg.DB, cipher)

	var states out.OAuthStateStore = persistence.NewMemoryOAuthStateStore(oauthStateTTL)
	var statsCache out.Cache
	var events out.EventPublisher
	if deps.Redis != nil {
		states = persistence.NewRedisOAuthStateStore(deps.Redis, oauthStateTTL)
		statsCache = cache.NewRedisCache(deps.Redis, "triage:")
		events = messaging.NewRedisProducer(deps.Redis)
	}

	// Gmail
	deps.Gmail = gmail.NewGateway(gmail.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}, deps.Tokens, gmail.NewBreaker(log), log)

	// Classification engine
	var backend out.GenerativeBackend = llm.Unconfigured{}
	if cfg.LLMAPIKey == "" {
		log.Warn("LLM_API_KEY not set, every email will use keyword fallback")
	} else {
		backend = llm.NewClient(llm.ClientConfig{
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			BaseURL:     cfg.LLMBaseURL,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
		}, resilience.New(resilience.DefaultConfig("llm"), log))
	}

	deps.Engine = classification.NewEngine(backend, classification.Options{
		MaxAttempts:   cfg.LLMMaxAttempts,
		QuotaBackoff:  cfg.LLMQuotaBackoff,
		ParseBackoff:  cfg.LLMParseBackoff,
		TeamLeadEmail: cfg.TeamLeadEmail,
		RateGate: classification.RateGateConfig{
			MinInterval: cfg.LLMMinInterval,
			WindowLimit: cfg.LLMWindowLimit,
			Window:      cfg.LLMWindow,
		},
		Logger: log,
	})

	// Services
	deps.Roster = roster.NewService(deps.Team, roster.Config{
		EnvMembers: cfg.TeamMembers,
		File:       cfg.TeamRosterFile,
	}, log)

	deps.Dashboard = dashboard.NewService(deps.Classifications, deps.Reviews, dashboard.Options{
		Cache:   statsCache,
		Archive: archive,
		Graph:   routing,
	}, log)

	deps.Triage = triage.NewService(triage.Deps{
		Engine:          deps.Engine,
		Roster:          deps.Roster,
		Mailboxes:       deps.Gmail,
		Classifications: deps.Classifications,
		Reviews:         deps.Reviews,
		Archive:         archive,
		Graph:           routing,
		Events:          events,
		Stats:           deps.Dashboard,
		Locks:           ratelimit.NewBatchLock(deps.Redis),
	}, triage.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		AutoReplyTemplate:   cfg.AutoReplyTemplate,
		AutoReplyEnabled:    cfg.AutoReplyEnabled,
		AutoForward:         cfg.AutoForward,
		DefaultMaxResults:   cfg.PollMaxResults,
	}, log)

	deps.MailboxAuth = auth.NewService(deps.Gmail, deps.Tokens, states, log)

	return deps, cleanup, nil
}

func zerologLevel(level string) zerolog.Level {
	switch logger.ParseLevel(level) {
	case logger.LevelDebug:
		return zerolog.DebugLevel
	case logger.LevelWarn:
		return zerolog.WarnLevel
	case logger.LevelError:
		return zerolog.ErrorLevel
	case logger.LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
