package port

import (
	"context"

	"github.com/rl1809/reseller/internal/core/domain"
)

type EventSink interface {
	// RecordSellerRegistered journals a committed registration
	RecordSellerRegistered(ctx context.Context, event domain.SellerRegistered) error
}
