package redis

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"

	// Local Packages
	models "wallet-ledger/models"

	// External Packages
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type DeadLetterQueue struct {
	client   *redis.Client
	logger   *zap.Logger
	listName string
}

func NewDeadLetterQueue(client *redis.Client, logger *zap.Logger) *DeadLetterQueue {
	return &DeadLetterQueue{client: client, logger: logger, listName: "failed-topups"}
}

// Send stores every rejected top-up under "dlq:topup:{record_key}" and appends it
// to the failed-topups list for replay. It fails only when nothing was stored.
func (r *DeadLetterQueue) Send(ctx context.Context, letters []models.DeadLetter) error {
	if len(letters) == 0 {
		return nil
	}

	var lastErr error
	successCount := 0
	for _, letter := range letters {
		jsonData, err := json.Marshal(letter)
		if err != nil {
			r.logger.Error("failed to marshal dead letter", zap.Error(err))
			continue
		}

		key := fmt.Sprintf("dlq:topup:%s", letter.Record.Key)
		pipe := r.client.TxPipeline()
		pipe.Set(ctx, key, jsonData, 0)
		pipe.RPush(ctx, r.listName, jsonData)
		if _, err = pipe.Exec(ctx); err != nil {
			r.logger.Error("failed to store dead letter", zap.String("key", key), zap.Error(err))
			lastErr = err
			continue
		}
		successCount++
	}

	if successCount > 0 {
		r.logger.Info("dead letters stored", zap.Int("count", successCount))
	}
	if successCount == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}
