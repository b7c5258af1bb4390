package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-commerce/internal/config"
	"ms-commerce/internal/logger"
	"ms-commerce/internal/models"
)

// Producer publishes purchase lifecycle events and fire-and-forget
// notifications. One writer serves all topics; messages carry their topic.
type Producer struct {
	Writer *kafka.Writer
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

func (p *Producer) publish(topic, key string, payload any) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	p.Logger.LogKafka("PUBLISH", topic, key)

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

func (p *Producer) PublishPurchaseCreated(purchase models.Purchase) error {
	return p.publish(p.Topics.PurchaseCreated, purchase.ID, purchase)
}

func (p *Producer) PublishPurchaseCompleted(purchase models.Purchase) error {
	return p.publish(p.Topics.PurchaseCompleted, purchase.ID, purchase)
}

func (p *Producer) PublishPurchaseRefunded(purchase models.Purchase) error {
	return p.publish(p.Topics.PurchaseRefunded, purchase.ID, purchase)
}

func (p *Producer) PublishPurchaseCancelled(purchase models.Purchase) error {
	return p.publish(p.Topics.PurchaseCancelled, purchase.ID, purchase)
}

func (p *Producer) PublishTicketsIssued(purchaseID string, tickets []models.Ticket) error {
	codes := make([]string, len(tickets))
	for i, t := range tickets {
		codes[i] = t.Code
	}
	payload := map[string]any{
		"purchase_id": purchaseID,
		"count":       len(tickets),
		"codes":       codes,
		"issued_at":   time.Now(),
	}
	return p.publish(p.Topics.TicketIssued, purchaseID, payload)
}

// Notify is the notification collaborator: fire-and-forget, failures are
// logged and never propagated to the purchase flow.
func (p *Producer) Notify(event string, payload any) {
	msg := map[string]any{
		"event":     event,
		"payload":   payload,
		"timestamp": time.Now(),
	}
	if err := p.publish(p.Topics.Notifications, event, msg); err != nil {
		p.Logger.Warn("KAFKA", fmt.Sprintf("notification %s dropped: %v", event, err))
	}
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
