package kafka

import (
	// Go Internal Packages
	"context"
	"encoding/json"

	// Local Packages
	models "wallet-ledger/models"

	// External Packages
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

// EventPublisher publishes committed ledger events keyed by client ID, so events
// of one client keep their order within a partition.
type EventPublisher struct {
	Client *kgo.Client
	Logger *zap.Logger
}

func NewEventPublisher(brokers []string, topic string, logger *zap.Logger, metrics *kprom.Metrics) (*EventPublisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &EventPublisher{Client: client, Logger: logger}, nil
}

// Publish buffers the event and returns at once. Delivery failures are logged.
func (p *EventPublisher) Publish(ctx context.Context, event models.LedgerEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		p.Logger.Error("failed to marshal ledger event", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	record := &kgo.Record{Key: []byte(event.ClientID), Value: value}
	p.Client.TryProduce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			p.Logger.Warn("failed to publish ledger event",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.Error(err),
			)
		}
	})
}

// Close flushes buffered events and closes the client.
func (p *EventPublisher) Close(ctx context.Context) {
	if err := p.Client.Flush(ctx); err != nil {
		p.Logger.Warn("failed to flush ledger events", zap.Error(err))
	}
	p.Client.Close()
}
