// Worker consumes Kafka on behalf of the API: pre-aggregated activity samples are upserted into
// Postgres, and observed shielded payments settle their intents.
// Set DATABASE_URL and KAFKA_BROKERS; topics and groups default to the INGEST_* and SETTLEMENT_* keys.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	accessservice "github.com/soyaya/boardling-sub008/internal/access/service"
	"github.com/soyaya/boardling-sub008/internal/analytics/ingest"
	analyticsrepo "github.com/soyaya/boardling-sub008/internal/analytics/repository"
	"github.com/soyaya/boardling-sub008/internal/config"
	"github.com/soyaya/boardling-sub008/internal/db"
	entrepo "github.com/soyaya/boardling-sub008/internal/entitlement/repository"
	entservice "github.com/soyaya/boardling-sub008/internal/entitlement/service"
	paymentrepo "github.com/soyaya/boardling-sub008/internal/payment/repository"
	paymentservice "github.com/soyaya/boardling-sub008/internal/payment/service"
	"github.com/soyaya/boardling-sub008/internal/payment/settlement"
	"github.com/soyaya/boardling-sub008/internal/privacy/engine"
	privacyrepo "github.com/soyaya/boardling-sub008/internal/privacy/repository"
	privacyservice "github.com/soyaya/boardling-sub008/internal/privacy/service"
	"github.com/soyaya/boardling-sub008/internal/telemetry"
	"github.com/soyaya/boardling-sub008/internal/telemetry/producer"
	walletrepo "github.com/soyaya/boardling-sub008/internal/wallet/repository"
)

type runner interface {
	Run(ctx context.Context) error
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("worker: database: %v", err)
	}
	defer database.Close()

	var events telemetry.EventEmitter
	if p := producer.NewKafkaProducer(brokers, cfg.EventsTopic); p != nil {
		events = p
		defer func() {
			time.Sleep(telemetry.ShutdownDrainDuration)
			if err := p.Close(); err != nil {
				log.Printf("worker: close event producer: %v", err)
			}
		}()
	}

	policySrc := ""
	if cfg.AccessPolicyFile != "" {
		b, err := os.ReadFile(cfg.AccessPolicyFile)
		if err != nil {
			log.Fatalf("worker: access policy: %v", err)
		}
		policySrc = string(b)
	}
	evaluator, err := engine.NewOPAEvaluator(ctx, policySrc)
	if err != nil {
		log.Fatalf("worker: access policy: %v", err)
	}
	privacyRepo := privacyrepo.NewPostgresRepository(database)
	policy := privacyservice.NewPolicy(walletrepo.NewPostgresRepository(database), privacyRepo, privacyRepo, evaluator, events)

	gate, err := entservice.NewGate(cfg.GateConfig())
	if err != nil {
		log.Fatalf("worker: entitlements: %v", err)
	}
	entitlements := entservice.NewService(gate, entrepo.NewPostgresRepository(database), events)
	payments := paymentservice.NewFlow(paymentrepo.NewPostgresRepository(database), events)
	settler := accessservice.NewSettlement(payments, policy, entitlements)

	runners := map[string]runner{
		"ingest":     ingest.NewKafkaConsumer(brokers, cfg.IngestTopic, cfg.KafkaGroupID, analyticsrepo.NewPostgresRepository(database)),
		"settlement": settlement.NewKafkaConsumer(brokers, cfg.SettlementTopic, cfg.SettlementGroupID, settler),
	}
	log.Printf("worker: consuming activity samples from %s (group %s)", cfg.IngestTopic, cfg.KafkaGroupID)
	log.Printf("worker: consuming payment settlements from %s (group %s)", cfg.SettlementTopic, cfg.SettlementGroupID)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed bool
	)
	for name, r := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.Close()
			if err := r.Run(ctx); err != nil {
				log.Printf("worker: %s: %v", name, err)
				mu.Lock()
				failed = true
				mu.Unlock()
				// One consumer failing stops the other so the process restarts as a whole.
				stop()
			}
		}()
	}
	wg.Wait()
	if failed {
		log.Println("worker: stopped after consumer failure")
		os.Exit(1)
	}
	log.Println("worker: stopped")
}
