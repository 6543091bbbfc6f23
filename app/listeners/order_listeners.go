// Package listeners reacts to domain events fired by the services.
package listeners

import (
	"context"
	"time"

	"github.com/shashiranjanraj/storefront/app/jobs"
	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/queue"
	"github.com/shashiranjanraj/storefront/pkg/ws"
)

// LiveMessage is what connected admin consoles receive.
type LiveMessage struct {
	Event string       `json:"event"`
	Order models.Order `json:"order"`
}

// Register wires the order.placed listeners. q and hub may each be nil.
func Register(bus *event.Bus, q *queue.Manager, hub *ws.Hub) {
	if q != nil {
		bus.Listen(services.EventOrderPlaced, func(payload any) {
			order, ok := payload.(models.Order)
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := q.Dispatch(ctx, jobs.NewOrderConfirmation(order)); err != nil {
				logger.Error("order confirmation not queued", "order_id", order.OrderID, "error", err)
			}
		})
	}

	if hub != nil {
		bus.Listen(services.EventOrderPlaced, func(payload any) {
			order, ok := payload.(models.Order)
			if !ok {
				return
			}
			n, err := hub.Publish(services.EventOrderPlaced, LiveMessage{Event: services.EventOrderPlaced, Order: order})
			if err != nil {
				logger.Error("live feed encode failed", "order_id", order.OrderID, "error", err)
				return
			}
			logger.Debug("live feed published", "order_id", order.OrderID, "subscribers", n)
		})
	}
}
