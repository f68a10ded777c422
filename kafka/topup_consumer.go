package kafka

import (
	// Go Internal Packages
	"context"
	"errors"
	"fmt"
	"time"

	// Local Packages
	models "wallet-ledger/models"

	// External Packages
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

type ConsumerConfig struct {
	Brokers        []string
	Name           string
	Topic          string
	RecordsPerPoll int
	// RetryBackoff is the first delay before a failed batch is retried. It
	// doubles up to MaxRetryBackoff.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

type Consumer struct {
	Client    *kgo.Client
	Config    *ConsumerConfig
	Processor TopupProcessor
	Logger    *zap.Logger
}

type TopupProcessor interface {
	ProcessRecords(ctx context.Context, records []models.Record) error
}

// NewTopupConsumer creates a consumer group member for the top-up topic. Offsets
// are committed by hand once a batch has been applied (Poll starts consuming).
func NewTopupConsumer(conf *ConsumerConfig, logger *zap.Logger, processor TopupProcessor, metrics *kprom.Metrics) (*Consumer, error) {
	if conf.RetryBackoff <= 0 {
		conf.RetryBackoff = 500 * time.Millisecond
	}
	if conf.MaxRetryBackoff <= 0 {
		conf.MaxRetryBackoff = 30 * time.Second
	}
	c := &Consumer{Config: conf, Processor: processor, Logger: logger}

	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...),
		kgo.ConsumerGroup(conf.Name),
		kgo.ConsumeTopics(conf.Topic),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	c.Client = client
	return c, nil
}

// Poll polls for records until ctx is canceled. A batch is committed only after
// it was processed; a failed batch is retried with backoff.
func (c *Consumer) Poll(ctx context.Context) error {
	defer c.Client.Close()

	consumerName := c.Config.Name
	for {
		if ctx.Err() != nil {
			c.Logger.Warn("polling stopped: context canceled")
			return nil
		}

		c.Logger.Debug(fmt.Sprintf("%s: polling for records", consumerName))
		fetches := c.Client.PollRecords(ctx, c.Config.RecordsPerPoll)
		if fetches.IsClientClosed() {
			return errors.New("kafka client closed")
		}
		if errors.Is(fetches.Err0(), context.Canceled) {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.Logger.Error("fetch error", zap.String("topic", topic), zap.Int32("partition", partition), zap.Error(err))
		})

		fetched := fetches.Records()
		records := make([]models.Record, len(fetched))
		for idx, record := range fetched {
			records[idx] = models.Record{
				Key:   record.Key,
				Value: record.Value,
				Topic: record.Topic,
			}
		}

		if err := c.process(ctx, records); err != nil {
			return nil
		}

		if len(fetched) > 0 {
			if err := c.Client.CommitRecords(ctx, fetched...); err != nil {
				c.Logger.Error("failed to commit records", zap.Error(err))
			}
		}
		c.Client.AllowRebalance()
	}
}

// process retries the batch until it succeeds or ctx is done.
func (c *Consumer) process(ctx context.Context, records []models.Record) error {
	backoff := c.Config.RetryBackoff
	for {
		err := c.Processor.ProcessRecords(ctx, records)
		if err == nil {
			return nil
		}
		c.Logger.Error("failed to process records, retrying",
			zap.Int("records", len(records)),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.Config.MaxRetryBackoff {
			backoff = c.Config.MaxRetryBackoff
		}
	}
}
