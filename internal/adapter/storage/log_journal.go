package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/reseller/internal/core/domain"
)

// LogJournal records registrations as structured log lines. Used when no
// MySQL journal is configured.
type LogJournal struct {
	logger *zap.SugaredLogger
}

func NewLogJournal(logger *zap.SugaredLogger) *LogJournal {
	return &LogJournal{logger: logger.Named("journal")}
}

func (j *LogJournal) RecordSellerRegistered(ctx context.Context, event domain.SellerRegistered) error {
	j.logger.Infow("seller registered",
		"registry", event.RegistryID,
		"index", event.Index,
		"seller", event.Seller.String(),
		"owner", event.Owner.String(),
		"registered_at", event.RegisteredAt,
	)
	return nil
}
