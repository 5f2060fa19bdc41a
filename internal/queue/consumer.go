package queue

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	q    string
}

func NewConsumer(url, exchange, queue string, keys []string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbit: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	qd, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	for _, key := range keys {
		if err := ch.QueueBind(qd.Name, key, exchange, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("bind queue to %s: %w", key, err)
		}
	}

	return &Consumer{conn: conn, ch: ch, q: qd.Name}, nil
}

func (c *Consumer) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Consume runs workers over the queue until ctx is cancelled. The handler
// receives the routing key and body; a non-nil error nacks with requeue.
func (c *Consumer) Consume(ctx context.Context, workers int, handle func(key string, body []byte) error) error {
	if c == nil || c.ch == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if workers <= 0 {
		workers = 1
	}

	if err := c.ch.Qos(50, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	msgs, err := c.ch.Consume(c.q, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case d, ok := <-msgs:
					if !ok {
						return
					}
					if err := handle(d.RoutingKey, d.Body); err != nil {
						d.Nack(false, true)
						continue
					}
					d.Ack(false)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}
