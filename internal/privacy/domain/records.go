package domain

import (
	"time"

	analyticsdomain "github.com/soyaya/boardling-sub008/internal/analytics/domain"
	walletdomain "github.com/soyaya/boardling-sub008/internal/wallet/domain"
)

// RecordKind names a kind of analytics record that can be anonymized.
type RecordKind string

const (
	RecordKindWallet   RecordKind = "wallet"
	RecordKindActivity RecordKind = "activity"
	RecordKindScore    RecordKind = "score"
)

// Record is an identifiable analytics record. The set of kinds is closed: each kind converts itself
// field by field into an anonymous struct that has no identifier fields at all.
type Record interface {
	Kind() RecordKind
	Anonymize() AnonymousRecord
	isRecord()
}

// AnonymousRecord is the identifier-free form of a Record.
type AnonymousRecord interface {
	RecordKind() RecordKind
}

// WalletRecord is a wallet together with its derived metrics, as served to its owner.
type WalletRecord struct {
	WalletID         string                              `json:"wallet_id"`
	ProjectID        string                              `json:"project_id"`
	OwnerID          string                              `json:"owner_id"`
	Address          string                              `json:"address"`
	AddressKind      walletdomain.AddressKind            `json:"address_kind"`
	PrivacyMode      walletdomain.PrivacyMode            `json:"privacy_mode"`
	IsActive         bool                                `json:"is_active"`
	CreatedAt        time.Time                           `json:"created_at"`
	TransactionCount int                                 `json:"transaction_count"`
	ActiveDays       int                                 `json:"active_days"`
	TotalVolume      float64                             `json:"total_volume"`
	Latest           *analyticsdomain.ProductivityScore  `json:"latest_score,omitempty"`
	History          []analyticsdomain.ProductivityScore `json:"score_history"`
}

// AnonymousWallet keeps only a wallet's derived metrics.
type AnonymousWallet struct {
	Kind             RecordKind               `json:"kind"`
	AddressKind      walletdomain.AddressKind `json:"address_kind"`
	IsActive         bool                     `json:"is_active"`
	TransactionCount int                      `json:"transaction_count"`
	ActiveDays       int                      `json:"active_days"`
	TotalVolume      float64                  `json:"total_volume"`
	Latest           *AnonymousScore          `json:"latest_score,omitempty"`
	History          []AnonymousScore         `json:"score_history"`
}

func (WalletRecord) Kind() RecordKind { return RecordKindWallet }
func (WalletRecord) isRecord()        {}

func (r WalletRecord) Anonymize() AnonymousRecord {
	out := AnonymousWallet{
		Kind:             RecordKindWallet,
		AddressKind:      r.AddressKind,
		IsActive:         r.IsActive,
		TransactionCount: r.TransactionCount,
		ActiveDays:       r.ActiveDays,
		TotalVolume:      r.TotalVolume,
		History:          make([]AnonymousScore, len(r.History)),
	}
	if r.Latest != nil {
		s := anonymousScore(*r.Latest)
		out.Latest = &s
	}
	for i, s := range r.History {
		out.History[i] = anonymousScore(s)
	}
	return out
}

func (AnonymousWallet) RecordKind() RecordKind { return RecordKindWallet }

// ActivityRecord wraps one raw activity sample.
type ActivityRecord struct {
	Sample analyticsdomain.ActivitySample `json:"sample"`
}

// AnonymousActivity is an activity sample without its wallet id.
type AnonymousActivity struct {
	Kind                    RecordKind `json:"kind"`
	PeriodStart             time.Time  `json:"period_start"`
	TransactionCount        int        `json:"transaction_count"`
	ActiveDays              int        `json:"active_days"`
	TotalVolume             float64    `json:"total_volume"`
	SequenceComplexityScore float64    `json:"sequence_complexity_score"`
}

func (ActivityRecord) Kind() RecordKind { return RecordKindActivity }
func (ActivityRecord) isRecord()        {}

func (r ActivityRecord) Anonymize() AnonymousRecord {
	return AnonymousActivity{
		Kind:                    RecordKindActivity,
		PeriodStart:             r.Sample.PeriodStart,
		TransactionCount:        r.Sample.TransactionCount,
		ActiveDays:              r.Sample.ActiveDays,
		TotalVolume:             r.Sample.TotalVolume,
		SequenceComplexityScore: r.Sample.SequenceComplexityScore,
	}
}

func (AnonymousActivity) RecordKind() RecordKind { return RecordKindActivity }

// ScoreRecord wraps one productivity score.
type ScoreRecord struct {
	Score analyticsdomain.ProductivityScore `json:"score"`
}

// AnonymousScore is a productivity score without its wallet id.
type AnonymousScore struct {
	Kind           RecordKind `json:"kind"`
	PeriodStart    time.Time  `json:"period_start"`
	RetentionScore float64    `json:"retention_score"`
	ActivityScore  float64    `json:"activity_score"`
	AdoptionScore  float64    `json:"adoption_score"`
	TotalScore     float64    `json:"total_score"`
}

func (ScoreRecord) Kind() RecordKind { return RecordKindScore }
func (ScoreRecord) isRecord()        {}

func (r ScoreRecord) Anonymize() AnonymousRecord { return anonymousScore(r.Score) }

func (AnonymousScore) RecordKind() RecordKind { return RecordKindScore }

func anonymousScore(s analyticsdomain.ProductivityScore) AnonymousScore {
	return AnonymousScore{
		Kind:           RecordKindScore,
		PeriodStart:    s.PeriodStart,
		RetentionScore: s.RetentionScore,
		ActivityScore:  s.ActivityScore,
		AdoptionScore:  s.AdoptionScore,
		TotalScore:     s.TotalScore,
	}
}
