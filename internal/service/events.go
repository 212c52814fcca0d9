package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"giftledger/internal/model"
	"giftledger/internal/repository"

	"gorm.io/gorm"
)

// writeCardEvent appends a card event to the outbox inside the caller's
// transaction, so the event is published exactly when the balance change
// commits.
func writeCardEvent(ctx context.Context, tx *gorm.DB, outboxRepo *repository.OutboxRepository, topic, eventType, cardCode string, fields map[string]interface{}) error {
	payload := map[string]interface{}{
		"event":       eventType,
		"card_code":   cardCode,
		"occurred_at": time.Now().Format(time.RFC3339),
	}
	for k, v := range fields {
		payload[k] = v
	}
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: cardCode,
		Topic:      topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("write outbox message: %w", err)
	}
	return nil
}
