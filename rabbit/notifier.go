package rabbit

import (
	"context"

	"github.com/sirupsen/logrus"

	"exchange-core-service/models"
)

const (
	tradeEventsExchange = "exchange.trades"
	orderEventsExchange = "exchange.orders"
)

// EventNotifier publishes trade and order events fire-and-forget. Publish
// failures are logged and swallowed so event delivery never blocks matching.
type EventNotifier struct {
	sender Sender
}

func NewEventNotifier(sender Sender) *EventNotifier {
	return &EventNotifier{sender: sender}
}

func (n *EventNotifier) PublishTrade(ctx context.Context, event models.TradeEvent) {
	if err := n.sender.SendMessage(ctx, event, tradeEventsExchange, event.Symbol); err != nil {
		logrus.WithField("tradeId", event.TradeId).Warningln("Trade event publish failed: ", err.Error())
	}
}

func (n *EventNotifier) PublishOrder(ctx context.Context, event models.OrderEvent) {
	if err := n.sender.SendMessage(ctx, event, orderEventsExchange, event.Cryptopair); err != nil {
		logrus.WithField("orderId", event.OrderId).Warningln("Order event publish failed: ", err.Error())
	}
}
