// seed inserts development sample data for local testing.
// Idempotent: existing rows are left alone and activity samples are upserted.
// When JWT_PRIVATE_KEY is set, access tokens for the dev users are printed.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/soyaya/boardling-sub008/internal/analytics/domain"
	analyticsrepo "github.com/soyaya/boardling-sub008/internal/analytics/repository"
	"github.com/soyaya/boardling-sub008/internal/config"
	"github.com/soyaya/boardling-sub008/internal/db"
	entrepo "github.com/soyaya/boardling-sub008/internal/entitlement/repository"
	entservice "github.com/soyaya/boardling-sub008/internal/entitlement/service"
	projectdomain "github.com/soyaya/boardling-sub008/internal/project/domain"
	projectrepo "github.com/soyaya/boardling-sub008/internal/project/repository"
	"github.com/soyaya/boardling-sub008/internal/security"
	userdomain "github.com/soyaya/boardling-sub008/internal/user/domain"
	userrepo "github.com/soyaya/boardling-sub008/internal/user/repository"
	walletdomain "github.com/soyaya/boardling-sub008/internal/wallet/domain"
	walletrepo "github.com/soyaya/boardling-sub008/internal/wallet/repository"
)

const (
	devUserID    = "dev-user-001"
	devUserEmail = "dev@example.com"
	viewerID     = "dev-user-002"
	viewerEmail  = "viewer@example.com"
	devProjectID = "dev-project-001"
	seedWeeks    = 8
)

var devWallets = []walletdomain.Wallet{
	{ID: "dev-wallet-private", Address: "zs1devprivate0000000000000000000000000000000000000", AddressKind: walletdomain.AddressKindShielded, PrivacyMode: walletdomain.PrivacyModePrivate},
	{ID: "dev-wallet-public", Address: "t1DevPublic000000000000000000000000", AddressKind: walletdomain.AddressKindTransparent, PrivacyMode: walletdomain.PrivacyModePublic},
	{ID: "dev-wallet-paid", Address: "u1devmonetizable00000000000000000000000000000000000", AddressKind: walletdomain.AddressKindUnified, PrivacyMode: walletdomain.PrivacyModeMonetizable},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	now := time.Now().UTC()
	if err := seedAccounts(ctx, userrepo.NewPostgresRepository(conn), projectrepo.NewPostgresRepository(conn), now); err != nil {
		log.Fatalf("seed accounts: %v", err)
	}
	if err := seedWallets(ctx, walletrepo.NewPostgresRepository(conn), now); err != nil {
		log.Fatalf("seed wallets: %v", err)
	}
	if err := analyticsrepo.NewPostgresRepository(conn).UpsertSamples(ctx, sampleHistory(now)); err != nil {
		log.Fatalf("seed samples: %v", err)
	}

	gate, err := entservice.NewGate(cfg.GateConfig())
	if err != nil {
		log.Fatalf("entitlements: %v", err)
	}
	ents := entrepo.NewPostgresRepository(conn)
	for _, id := range []string{devUserID, viewerID} {
		e := gate.NewEntitlement(id, now)
		if _, err := ents.CreateIfAbsent(ctx, &e); err != nil {
			log.Fatalf("seed entitlement %s: %v", id, err)
		}
	}

	log.Println("Seed completed successfully.")
	printTokens(cfg)
}

func seedAccounts(ctx context.Context, users userrepo.Repository, projects projectrepo.Repository, now time.Time) error {
	for _, u := range []userdomain.User{{ID: devUserID, Email: devUserEmail}, {ID: viewerID, Email: viewerEmail}} {
		u.CreatedAt = now
		created, err := users.CreateIfAbsent(ctx, &u)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
		if !created {
			log.Printf("seed: user %s already exists", u.ID)
		}
	}
	p := projectdomain.Project{ID: devProjectID, UserID: devUserID, Name: "Dev Project", CreatedAt: now}
	if _, err := projects.CreateIfAbsent(ctx, &p); err != nil {
		return fmt.Errorf("project: %w", err)
	}
	return nil
}

func seedWallets(ctx context.Context, repo *walletrepo.PostgresRepository, now time.Time) error {
	for _, w := range devWallets {
		existing, err := repo.GetByID(ctx, w.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		w.ProjectID = devProjectID
		w.IsActive = true
		w.CreatedAt = now
		if err := repo.Create(ctx, &w); err != nil {
			return fmt.Errorf("wallet %s: %w", w.ID, err)
		}
	}
	return nil
}

// sampleHistory gives each dev wallet a different trajectory: steady, growing and fading.
func sampleHistory(now time.Time) []domain.ActivitySample {
	start := now.Truncate(24*time.Hour).AddDate(0, 0, -7*seedWeeks)
	var out []domain.ActivitySample
	for week := 0; week < seedWeeks; week++ {
		period := start.AddDate(0, 0, 7*week)
		out = append(out,
			domain.ActivitySample{WalletID: devWallets[0].ID, PeriodStart: period, TransactionCount: 12, ActiveDays: 4, TotalVolume: 3.5, SequenceComplexityScore: 55},
			domain.ActivitySample{WalletID: devWallets[1].ID, PeriodStart: period, TransactionCount: 2 + 3*week, ActiveDays: 1 + week%7, TotalVolume: float64(week) * 1.25, SequenceComplexityScore: float64(20 + 8*week)},
			domain.ActivitySample{WalletID: devWallets[2].ID, PeriodStart: period, TransactionCount: 30 - 4*week, ActiveDays: 7 - week, TotalVolume: 12 - float64(week), SequenceComplexityScore: 70},
		)
	}
	return out
}

func printTokens(cfg *config.Config) {
	if cfg.JWTPrivateKey == "" {
		fmt.Println("JWT_PRIVATE_KEY not set; no dev tokens minted.")
		return
	}
	signer, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}
	issuer, err := security.NewIssuer(signer, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}
	for _, id := range []string{devUserID, viewerID} {
		tok, exp, err := issuer.Issue(id)
		if err != nil {
			log.Fatalf("jwt: %v", err)
		}
		fmt.Printf("%s (expires %s):\n%s\n", id, exp.Format(time.RFC3339), tok)
	}
}
