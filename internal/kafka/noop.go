package kafka

import (
	"ms-commerce/internal/logger"
	"ms-commerce/internal/models"
)

// Noop satisfies the publisher surface when Kafka is disabled. Events are
// dropped silently; notifications are logged so operators can see the gap.
type Noop struct {
	Logger *logger.Logger
}

func (n Noop) PublishPurchaseCreated(models.Purchase) error   { return nil }
func (n Noop) PublishPurchaseCompleted(models.Purchase) error { return nil }
func (n Noop) PublishPurchaseRefunded(models.Purchase) error  { return nil }
func (n Noop) PublishPurchaseCancelled(models.Purchase) error { return nil }

func (n Noop) PublishTicketsIssued(string, []models.Ticket) error { return nil }

func (n Noop) Notify(event string, _ any) {
	if n.Logger != nil {
		n.Logger.Debug("KAFKA", "notification "+event+" dropped, kafka disabled")
	}
}
