package rabbit

import (
	"context"
	"encoding/json"

	"github.com/rabbitmq/amqp091-go"
)

type ParserFunc[T any] func([]byte) (*T, error)
type HandlerFunc[T any] func(context.Context, *T)

// JsonParser decodes a message body into T.
func JsonParser[T any](body []byte) (*T, error) {
	var payload T
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

type Processor[T any] struct {
	parser  ParserFunc[T]
	handler HandlerFunc[T]
}

func NewProcessor[T any](parser ParserFunc[T], handler HandlerFunc[T]) Processor[T] {
	return Processor[T]{parser: parser, handler: handler}
}

func (p *Processor[T]) processMessage(ctx context.Context, msg amqp091.Delivery) {
	body, err := p.parser(msg.Body)

	if err != nil {
		msg.Nack(false, false)
		return
	}

	msg.Ack(false)
	p.handler(ctx, body)
}

// Consume drains the delivery channel until it closes or the context is
// canceled.
func (p *Processor[T]) Consume(ctx context.Context, deliveries <-chan amqp091.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}
			p.processMessage(ctx, msg)
		}
	}
}
