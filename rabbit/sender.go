package rabbit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Sender struct {
	channel *amqp091.Channel
}

func NewSender(ctx context.Context, channel *amqp091.Channel) Sender {
	s := Sender{channel: channel}
	go s.handleGraceful(ctx)
	return s
}

func (s *Sender) SendMessage(ctx context.Context, message interface{}, exchange, rk string) error {
	bytes, err := json.Marshal(message)

	if err != nil {
		return err
	}

	err = s.channel.PublishWithContext(ctx, exchange, rk, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        bytes,
	})

	if err != nil {
		return err
	}
	return nil
}

func (s *Sender) handleGraceful(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.channel.Close()
			return
		default:
			time.Sleep(time.Millisecond * 100)
		}

	}
}
