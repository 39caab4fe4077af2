package events

import (
	"context"
	"log/slog"
)

// LogPublisher records events in the application log when no broker is set up.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, ev CheckoutCompleted) error {
	p.log.Info("checkout completed",
		slog.String("kind", string(ev.Kind)),
		slog.String("record_id", ev.RecordID),
		slog.String("transaction_id", ev.TransactionID),
		slog.Int64("amount_cents", ev.AmountCents),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
