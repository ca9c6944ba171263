package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	accesshandler "github.com/soyaya/boardling-sub008/internal/access/handler"
	accessservice "github.com/soyaya/boardling-sub008/internal/access/service"
	"github.com/soyaya/boardling-sub008/internal/analytics/aggregator"
	analyticsrepo "github.com/soyaya/boardling-sub008/internal/analytics/repository"
	"github.com/soyaya/boardling-sub008/internal/config"
	"github.com/soyaya/boardling-sub008/internal/db"
	entrepo "github.com/soyaya/boardling-sub008/internal/entitlement/repository"
	entservice "github.com/soyaya/boardling-sub008/internal/entitlement/service"
	healthhandler "github.com/soyaya/boardling-sub008/internal/health/handler"
	paymentrepo "github.com/soyaya/boardling-sub008/internal/payment/repository"
	paymentservice "github.com/soyaya/boardling-sub008/internal/payment/service"
	"github.com/soyaya/boardling-sub008/internal/privacy/engine"
	privacyrepo "github.com/soyaya/boardling-sub008/internal/privacy/repository"
	privacyservice "github.com/soyaya/boardling-sub008/internal/privacy/service"
	"github.com/soyaya/boardling-sub008/internal/ratelimit"
	"github.com/soyaya/boardling-sub008/internal/security"
	"github.com/soyaya/boardling-sub008/internal/server"
	"github.com/soyaya/boardling-sub008/internal/telemetry"
	telemetryotel "github.com/soyaya/boardling-sub008/internal/telemetry/otel"
	"github.com/soyaya/boardling-sub008/internal/telemetry/producer"
	walletrepo "github.com/soyaya/boardling-sub008/internal/wallet/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	instruments, err := telemetryotel.NewInstruments(providers.MeterProvider)
	if err != nil {
		log.Fatalf("otel: instruments: %v", err)
	}

	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	var eventProducer producer.Producer
	if p := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.EventsTopic); p != nil {
		eventProducer = p
		emitters = append(emitters, p)
		log.Printf("events: publishing to kafka topic %s", cfg.EventsTopic)
	}
	events := telemetry.Fanout(emitters...)

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	policySrc := ""
	if cfg.AccessPolicyFile != "" {
		b, err := os.ReadFile(cfg.AccessPolicyFile)
		if err != nil {
			log.Fatalf("access policy: %v", err)
		}
		policySrc = string(b)
	}
	evaluator, err := engine.NewOPAEvaluator(ctx, policySrc)
	if err != nil {
		log.Fatalf("access policy: %v", err)
	}

	privacyRepo := privacyrepo.NewPostgresRepository(database)
	policy := privacyservice.NewPolicy(walletrepo.NewPostgresRepository(database), privacyRepo, privacyRepo, evaluator, events)

	gate, err := entservice.NewGate(cfg.GateConfig())
	if err != nil {
		log.Fatalf("entitlements: %v", err)
	}
	entitlements := entservice.NewService(gate, entrepo.NewPostgresRepository(database), events)
	payments := paymentservice.NewFlow(paymentrepo.NewPostgresRepository(database), events)

	agg, err := aggregator.New(cfg.AggregatorConfig())
	if err != nil {
		log.Fatalf("aggregator: %v", err)
	}
	broker := accessservice.NewBroker(policy, gate, entitlements, payments, agg, instruments)

	pubKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}
	verifier, err := security.NewVerifier(pubKey, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}

	var limiter ratelimit.Limiter
	var redisClient *redis.Client
	if cfg.RateLimitPerMinute > 0 {
		local := ratelimit.NewLocal(cfg.RateLimitPerMinute, time.Minute)
		limiter = local
		if cfg.RedisAddr != "" {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
			limiter = ratelimit.NewRedis(redisClient, cfg.RateLimitPerMinute, time.Minute, local)
			log.Printf("ratelimit: shared via redis at %s", cfg.RedisAddr)
		}
	}

	api := accesshandler.New(broker, analyticsrepo.NewPostgresRepository(database), cfg.SampleLookback(), instruments)
	router := server.NewRouter(server.Deps{
		API:            api,
		Verifier:       verifier,
		Limiter:        limiter,
		Health:         healthhandler.New(database, evaluator),
		Metrics:        instruments,
		TracerProvider: providers.TracerProvider,
	})

	srv := server.NewHTTPServer(cfg.HTTPAddr, router)
	err = server.Run(ctx, srv, nil)

	// Let in-flight async event emits finish before their sinks close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()
	if eventProducer != nil {
		if cerr := eventProducer.Close(); cerr != nil {
			log.Printf("events: kafka close: %v", cerr)
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if cerr := database.Close(); cerr != nil {
		log.Printf("db: close: %v", cerr)
	}
	if serr := providers.Shutdown(shutdownCtx); serr != nil {
		log.Printf("otel: shutdown: %v", serr)
	}
	if err != nil {
		log.Fatalf("server: %v", err)
	}
}
