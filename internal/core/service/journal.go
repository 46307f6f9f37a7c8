package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/reseller/internal/core/domain"
	"github.com/rl1809/reseller/internal/metrics"
	"github.com/rl1809/reseller/internal/port"
)

const journalWriteTimeout = 5 * time.Second

// RunJournalWorker drains queue into sink until the queue is closed.
// Failed writes are logged and not retried; the registry store is the
// source of truth.
func RunJournalWorker(id int, queue <-chan domain.SellerRegistered, sink port.EventSink, logger *zap.SugaredLogger, m *metrics.Metrics) {
	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)

		err := sink.RecordSellerRegistered(ctx, event)
		m.ObserveJournalWrite(err)
		m.SetQueueDepth(len(queue))
		if err != nil {
			logger.Errorw("failed to journal seller registration",
				"worker", id, "registry", event.RegistryID, "index", event.Index, "error", err)
		} else {
			logger.Debugw("journaled seller registration",
				"worker", id, "registry", event.RegistryID, "index", event.Index)
		}

		cancel()
	}
}
