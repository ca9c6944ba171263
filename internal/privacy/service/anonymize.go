package service

import "github.com/soyaya/boardling-sub008/internal/privacy/domain"

// AnonymizeWalletData returns the identifier-free form of rec. rec is not modified.
func AnonymizeWalletData(rec domain.Record) domain.AnonymousRecord {
	if rec == nil {
		return nil
	}
	return rec.Anonymize()
}

// AnonymizeWalletDataBatch anonymizes each record in order. Nil records are dropped.
func AnonymizeWalletDataBatch(recs []domain.Record) []domain.AnonymousRecord {
	out := make([]domain.AnonymousRecord, 0, len(recs))
	for _, r := range recs {
		if a := AnonymizeWalletData(r); a != nil {
			out = append(out, a)
		}
	}
	return out
}
